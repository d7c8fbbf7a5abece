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

package iam

import (
	"context"

	"emperror.dev/errors"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/iam"
	"github.com/aws/aws-sdk-go/service/iam/iamiface"
	jsoniter "github.com/json-iterator/go"

	"github.com/banzaicloud/dwhctl/pkg/providers/amazon"
)

// PolicyDocument is an IAM policy document.
type PolicyDocument struct {
	Version   string            `json:"Version"`
	Statement []PolicyStatement `json:"Statement"`
}

// PolicyStatement is a single statement of a PolicyDocument.
type PolicyStatement struct {
	Action    string          `json:"Action"`
	Effect    string          `json:"Effect"`
	Principal PolicyPrincipal `json:"Principal"`
}

// PolicyPrincipal identifies who the statement applies to.
type PolicyPrincipal struct {
	Service string `json:"Service"`
}

// AssumeRolePolicyDocument returns a trust policy that lets the given AWS service assume a role.
func AssumeRolePolicyDocument(service string) (string, error) {
	document := PolicyDocument{
		Version: "2012-10-17",
		Statement: []PolicyStatement{
			{
				Action: "sts:AssumeRole",
				Effect: "Allow",
				Principal: PolicyPrincipal{
					Service: service,
				},
			},
		},
	}

	doc, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalToString(document)
	if err != nil {
		return "", errors.WrapIf(err, "failed to render assume role policy document")
	}

	return doc, nil
}

// GetRole returns the named role, or nil when no such role exists.
func GetRole(ctx context.Context, svc iamiface.IAMAPI, roleName string) (*iam.Role, error) {
	output, err := svc.GetRoleWithContext(ctx, &iam.GetRoleInput{
		RoleName: aws.String(roleName),
	})
	if err != nil {
		if amazon.IsAWSErrorCode(err, iam.ErrCodeNoSuchEntityException) {
			return nil, nil // no such IAM role
		}

		return nil, errors.WrapIfWithDetails(err, "failed to get IAM role", "role", roleName)
	}

	return output.Role, nil
}

// CreateRoleInput describes a role to create.
type CreateRoleInput struct {
	RoleName                 string
	Path                     string
	Description              string
	AssumeRolePolicyDocument string
}

// CreateRole creates a role.
// The returned bool is false if a role with the same name already existed.
func CreateRole(ctx context.Context, svc iamiface.IAMAPI, input CreateRoleInput) (bool, error) {
	_, err := svc.CreateRoleWithContext(ctx, &iam.CreateRoleInput{
		RoleName:                 aws.String(input.RoleName),
		Path:                     aws.String(input.Path),
		Description:              aws.String(input.Description),
		AssumeRolePolicyDocument: aws.String(input.AssumeRolePolicyDocument),
	})
	if err != nil {
		if amazon.IsAWSErrorCode(err, iam.ErrCodeEntityAlreadyExistsException) {
			return false, nil
		}

		return false, errors.WrapIfWithDetails(err, "failed to create IAM role", "role", input.RoleName)
	}

	return true, nil
}

func IsRolePolicyAttached(ctx context.Context, svc iamiface.IAMAPI, roleName string, policyArn string) (bool, error) {
	found := false

	err := svc.ListAttachedRolePoliciesPagesWithContext(
		ctx,
		&iam.ListAttachedRolePoliciesInput{RoleName: aws.String(roleName)},
		func(page *iam.ListAttachedRolePoliciesOutput, lastPage bool) bool {
			for _, attachedPolicy := range page.AttachedPolicies {
				if aws.StringValue(attachedPolicy.PolicyArn) == policyArn {
					found = true

					return false
				}
			}

			return true
		},
	)
	if err != nil {
		return false, errors.WrapIfWithDetails(err, "failed to list attached role policies", "role", roleName)
	}

	return found, nil
}

func AttachRolePolicy(ctx context.Context, svc iamiface.IAMAPI, roleName string, policyArn string) error {
	_, err := svc.AttachRolePolicyWithContext(ctx, &iam.AttachRolePolicyInput{
		RoleName:  aws.String(roleName),
		PolicyArn: aws.String(policyArn),
	})

	return errors.WrapIfWithDetails(err, "failed to attach policy to IAM role", "role", roleName, "policy", policyArn)
}
