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

package ec2

import (
	"context"

	"emperror.dev/errors"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/ec2"
	"github.com/aws/aws-sdk-go/service/ec2/ec2iface"
	"logur.dev/logur"

	"github.com/banzaicloud/dwhctl/pkg/providers/amazon"
)

// ErrCodeDuplicatePermission is returned by EC2 when an identical ingress rule is already present.
const ErrCodeDuplicatePermission = "InvalidPermission.Duplicate"

// ErrDefaultSecurityGroupNotFound is returned when a VPC has no security group named "default".
const ErrDefaultSecurityGroupNotFound = errors.Sentinel("VPC has no default security group")

// IngressRule is a single inbound rule of a security group.
type IngressRule struct {
	Protocol string
	FromPort int64
	ToPort   int64
	CidrIP   string
}

type NetworkSvc struct {
	ec2Api ec2iface.EC2API
	log    logur.Logger
}

func NewNetworkSvc(ec2Api ec2iface.EC2API, logger logur.Logger) *NetworkSvc {
	return &NetworkSvc{
		ec2Api: ec2Api,
		log:    logger,
	}
}

// GetVpcDefaultSecurityGroup returns the ID of the security group named "default" in the VPC.
func (svc *NetworkSvc) GetVpcDefaultSecurityGroup(ctx context.Context, vpcId string) (string, error) {
	logger := logur.WithFields(svc.log, map[string]interface{}{"vpcId": vpcId})

	result, err := svc.ec2Api.DescribeSecurityGroupsWithContext(ctx, &ec2.DescribeSecurityGroupsInput{
		Filters: []*ec2.Filter{
			{
				Name:   aws.String("vpc-id"),
				Values: []*string{aws.String(vpcId)},
			},
			{
				Name:   aws.String("group-name"),
				Values: []*string{aws.String("default")},
			},
		},
	})
	if err != nil {
		return "", errors.WrapIfWithDetails(err, "failed to describe default security group of the VPC", "vpcId", vpcId)
	}

	if len(result.SecurityGroups) == 0 {
		logger.Info("VPC has no default security group")

		return "", errors.WithDetails(ErrDefaultSecurityGroupNotFound, "vpcId", vpcId)
	}

	return aws.StringValue(result.SecurityGroups[0].GroupId), nil
}

// AuthorizeIngress adds the rule to the security group.
// The returned bool is false when an identical rule was already present.
func (svc *NetworkSvc) AuthorizeIngress(ctx context.Context, groupId string, rule IngressRule) (bool, error) {
	logger := logur.WithFields(svc.log, map[string]interface{}{
		"securityGroupId": groupId,
		"protocol":        rule.Protocol,
		"fromPort":        rule.FromPort,
		"toPort":          rule.ToPort,
		"cidr":            rule.CidrIP,
	})

	_, err := svc.ec2Api.AuthorizeSecurityGroupIngressWithContext(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
		GroupId: aws.String(groupId),
		IpPermissions: []*ec2.IpPermission{
			{
				IpProtocol: aws.String(rule.Protocol),
				FromPort:   aws.Int64(rule.FromPort),
				ToPort:     aws.Int64(rule.ToPort),
				IpRanges: []*ec2.IpRange{
					{
						CidrIp: aws.String(rule.CidrIP),
					},
				},
			},
		},
	})
	if err != nil {
		if amazon.IsAWSErrorCode(err, ErrCodeDuplicatePermission) {
			logger.Info("ingress rule already exists")

			return false, nil
		}

		return false, errors.WrapIfWithDetails(err, "failed to authorize security group ingress", "securityGroupId", groupId)
	}

	logger.Info("ingress rule authorized")

	return true, nil
}
