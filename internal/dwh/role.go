// Copyright © 2020 Banzai Cloud
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dwh

import (
	"context"

	"emperror.dev/errors"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/iam/iamiface"
	"logur.dev/logur"

	pkgIAM "github.com/banzaicloud/dwhctl/pkg/providers/amazon/iam"
)

const (
	redshiftServicePrincipal = "redshift.amazonaws.com"
	s3ReadOnlyPolicyARN      = "arn:aws:iam::aws:policy/AmazonS3ReadOnlyAccess"
	roleDescription          = "Allow Redshift clusters to call AWS service on your behalf."
	rolePath                 = "/"
)

// RoleProvisioner makes sure the IAM role assumed by the cluster exists.
type RoleProvisioner struct {
	iam    iamiface.IAMAPI
	logger logur.Logger
}

func NewRoleProvisioner(iamAPI iamiface.IAMAPI, logger logur.Logger) *RoleProvisioner {
	return &RoleProvisioner{
		iam:    iamAPI,
		logger: logger,
	}
}

// EnsureRole returns the ARN of the named role, creating it first if necessary.
// A created role can be assumed by Redshift and has read-only access to S3.
func (p *RoleProvisioner) EnsureRole(ctx context.Context, roleName string) (string, error) {
	logger := logur.WithFields(p.logger, map[string]interface{}{"role": roleName})

	role, err := pkgIAM.GetRole(ctx, p.iam, roleName)
	if err != nil {
		return "", err
	}

	if role != nil {
		logger.Info("IAM role already exists")

		return aws.StringValue(role.Arn), nil
	}

	assumeRolePolicy, err := pkgIAM.AssumeRolePolicyDocument(redshiftServicePrincipal)
	if err != nil {
		return "", err
	}

	logger.Info("creating IAM role")

	created, err := pkgIAM.CreateRole(ctx, p.iam, pkgIAM.CreateRoleInput{
		RoleName:                 roleName,
		Path:                     rolePath,
		Description:              roleDescription,
		AssumeRolePolicyDocument: assumeRolePolicy,
	})
	if err != nil {
		return "", err
	}

	attached := false
	if !created {
		logger.Info("IAM role was created concurrently")

		attached, err = pkgIAM.IsRolePolicyAttached(ctx, p.iam, roleName, s3ReadOnlyPolicyARN)
		if err != nil {
			return "", err
		}
	}

	if !attached {
		err = pkgIAM.AttachRolePolicy(ctx, p.iam, roleName, s3ReadOnlyPolicyARN)
		if err != nil {
			return "", err
		}
	}

	role, err = pkgIAM.GetRole(ctx, p.iam, roleName)
	if err != nil {
		return "", err
	}

	if role == nil {
		return "", errors.NewWithDetails("IAM role not found after creation", "role", roleName)
	}

	logger.Info("IAM role created", map[string]interface{}{"arn": aws.StringValue(role.Arn)})

	return aws.StringValue(role.Arn), nil
}
