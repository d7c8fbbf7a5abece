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
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/ec2"
	"github.com/aws/aws-sdk-go/service/ec2/ec2iface"
	"github.com/aws/aws-sdk-go/service/iam"
	"github.com/aws/aws-sdk-go/service/iam/iamiface"
	"github.com/aws/aws-sdk-go/service/redshift"
	"github.com/aws/aws-sdk-go/service/redshift/redshiftiface"

	"github.com/banzaicloud/dwhctl/pkg/providers/amazon"
)

const (
	testClusterIdentifier = "dwhcluster"
	testRoleName          = "dwhRole"
	testRoleARN           = "arn:aws:iam::123456789012:role/dwhRole"
	testVpcID             = "vpc-0123"
	testSecurityGroupID   = "sg-0123"
	testEndpoint          = "dwhcluster.abc123.us-west-2.redshift.amazonaws.com"
)

func testConfig() Config {
	return Config{
		ClusterType:       "multi-node",
		NumNodes:          4,
		NodeType:          "dc2.large",
		ClusterIdentifier: testClusterIdentifier,
		DB:                "dwh",
		DBUser:            "dwhuser",
		DBPassword:        "Passw0rd",
		Port:              5439,
		IAMRoleName:       testRoleName,
	}
}

func testPollConfig() PollConfig {
	return PollConfig{
		Interval:    time.Millisecond,
		MaxAttempts: 5,
	}
}

type mockClients struct {
	iam      *mockIAMSvc
	ec2      *mockEC2Svc
	redshift *mockRedshiftSvc
}

func newMockClients(describeResults ...describeResult) mockClients {
	return mockClients{
		iam:      newMockIAMSvc(),
		ec2:      newMockEC2Svc(),
		redshift: &mockRedshiftSvc{describeResults: describeResults},
	}
}

func (m mockClients) clients() amazon.Clients {
	return amazon.Clients{
		IAM:      m.iam,
		EC2:      m.ec2,
		Redshift: m.redshift,
	}
}

// IAM API mock

type mockIAMSvc struct {
	iamiface.IAMAPI

	roles      map[string]string
	policies   map[string][]string
	getRoleErr error

	// number of GetRole calls answered with NoSuchEntity regardless of roles
	getRoleMisses int

	getRoleCallCount   int
	createRoleInputs   []*iam.CreateRoleInput
	attachPolicyInputs []*iam.AttachRolePolicyInput
}

func newMockIAMSvc() *mockIAMSvc {
	return &mockIAMSvc{
		roles:    map[string]string{},
		policies: map[string][]string{},
	}
}

func (mock *mockIAMSvc) GetRoleWithContext(_ aws.Context, input *iam.GetRoleInput, _ ...request.Option) (*iam.GetRoleOutput, error) {
	mock.getRoleCallCount++

	if mock.getRoleErr != nil {
		return nil, mock.getRoleErr
	}

	arn, ok := mock.roles[aws.StringValue(input.RoleName)]
	if !ok || mock.getRoleCallCount <= mock.getRoleMisses {
		return nil, awserr.New(iam.ErrCodeNoSuchEntityException, "the role cannot be found", nil)
	}

	return &iam.GetRoleOutput{
		Role: &iam.Role{
			RoleName: input.RoleName,
			Arn:      aws.String(arn),
		},
	}, nil
}

func (mock *mockIAMSvc) CreateRoleWithContext(_ aws.Context, input *iam.CreateRoleInput, _ ...request.Option) (*iam.CreateRoleOutput, error) {
	mock.createRoleInputs = append(mock.createRoleInputs, input)

	name := aws.StringValue(input.RoleName)
	if _, ok := mock.roles[name]; ok {
		return nil, awserr.New(iam.ErrCodeEntityAlreadyExistsException, "role already exists", nil)
	}

	mock.roles[name] = "arn:aws:iam::123456789012:role/" + name

	return &iam.CreateRoleOutput{
		Role: &iam.Role{
			RoleName: input.RoleName,
			Arn:      aws.String(mock.roles[name]),
		},
	}, nil
}

func (mock *mockIAMSvc) AttachRolePolicyWithContext(_ aws.Context, input *iam.AttachRolePolicyInput, _ ...request.Option) (*iam.AttachRolePolicyOutput, error) {
	mock.attachPolicyInputs = append(mock.attachPolicyInputs, input)

	name := aws.StringValue(input.RoleName)
	mock.policies[name] = append(mock.policies[name], aws.StringValue(input.PolicyArn))

	return &iam.AttachRolePolicyOutput{}, nil
}

func (mock *mockIAMSvc) ListAttachedRolePoliciesPagesWithContext(_ aws.Context, input *iam.ListAttachedRolePoliciesInput, fn func(*iam.ListAttachedRolePoliciesOutput, bool) bool, _ ...request.Option) error {
	page := &iam.ListAttachedRolePoliciesOutput{}
	for _, arn := range mock.policies[aws.StringValue(input.RoleName)] {
		page.AttachedPolicies = append(page.AttachedPolicies, &iam.AttachedPolicy{PolicyArn: aws.String(arn)})
	}

	fn(page, true)

	return nil
}

// EC2 API mock

type mockEC2Svc struct {
	ec2iface.EC2API

	// authorized ingress rules
	rules []string

	authorizeCallCount int
}

func newMockEC2Svc() *mockEC2Svc {
	return &mockEC2Svc{}
}

func (mock *mockEC2Svc) DescribeSecurityGroupsWithContext(_ aws.Context, input *ec2.DescribeSecurityGroupsInput, _ ...request.Option) (*ec2.DescribeSecurityGroupsOutput, error) {
	for _, filter := range input.Filters {
		if aws.StringValue(filter.Name) == "vpc-id" && aws.StringValue(filter.Values[0]) != testVpcID {
			return &ec2.DescribeSecurityGroupsOutput{}, nil
		}
	}

	return &ec2.DescribeSecurityGroupsOutput{
		SecurityGroups: []*ec2.SecurityGroup{
			{
				GroupId:   aws.String(testSecurityGroupID),
				GroupName: aws.String("default"),
				VpcId:     aws.String(testVpcID),
			},
		},
	}, nil
}

func (mock *mockEC2Svc) AuthorizeSecurityGroupIngressWithContext(_ aws.Context, input *ec2.AuthorizeSecurityGroupIngressInput, _ ...request.Option) (*ec2.AuthorizeSecurityGroupIngressOutput, error) {
	mock.authorizeCallCount++

	var added []string
	for _, permission := range input.IpPermissions {
		for _, ipRange := range permission.IpRanges {
			rule := fmt.Sprintf(
				"%s %s %d-%d %s",
				aws.StringValue(input.GroupId),
				aws.StringValue(permission.IpProtocol),
				aws.Int64Value(permission.FromPort),
				aws.Int64Value(permission.ToPort),
				aws.StringValue(ipRange.CidrIp),
			)

			for _, existing := range mock.rules {
				if existing == rule {
					return nil, awserr.New("InvalidPermission.Duplicate", "the specified rule already exists", nil)
				}
			}

			added = append(added, rule)
		}
	}

	mock.rules = append(mock.rules, added...)

	return &ec2.AuthorizeSecurityGroupIngressOutput{}, nil
}

// Redshift API mock

type describeResult struct {
	identifier string
	status     string
	err        error
}

func clusterStatus(status string) describeResult {
	return describeResult{identifier: testClusterIdentifier, status: status}
}

func clusterNotFound() describeResult {
	return describeResult{err: awserr.New(redshift.ErrCodeClusterNotFoundFault, "cluster not found", nil)}
}

type mockRedshiftSvc struct {
	redshiftiface.RedshiftAPI

	createErr error
	deleteErr error

	// consumed one by one, the last one is repeated
	describeResults []describeResult

	createInputs      []*redshift.CreateClusterInput
	deleteInputs      []*redshift.DeleteClusterInput
	describeCallCount int
}

func (mock *mockRedshiftSvc) CreateClusterWithContext(_ aws.Context, input *redshift.CreateClusterInput, _ ...request.Option) (*redshift.CreateClusterOutput, error) {
	mock.createInputs = append(mock.createInputs, input)

	if mock.createErr != nil {
		return nil, mock.createErr
	}

	return &redshift.CreateClusterOutput{
		Cluster: &redshift.Cluster{
			ClusterIdentifier: input.ClusterIdentifier,
			ClusterStatus:     aws.String(ClusterStatusCreating),
		},
	}, nil
}

func (mock *mockRedshiftSvc) DeleteClusterWithContext(_ aws.Context, input *redshift.DeleteClusterInput, _ ...request.Option) (*redshift.DeleteClusterOutput, error) {
	mock.deleteInputs = append(mock.deleteInputs, input)

	if mock.deleteErr != nil {
		return nil, mock.deleteErr
	}

	return &redshift.DeleteClusterOutput{}, nil
}

func (mock *mockRedshiftSvc) DescribeClustersWithContext(_ aws.Context, input *redshift.DescribeClustersInput, _ ...request.Option) (*redshift.DescribeClustersOutput, error) {
	if len(mock.describeResults) == 0 {
		return nil, fmt.Errorf("unexpected DescribeClusters call for %s", aws.StringValue(input.ClusterIdentifier))
	}

	idx := mock.describeCallCount
	if idx >= len(mock.describeResults) {
		idx = len(mock.describeResults) - 1
	}
	mock.describeCallCount++

	result := mock.describeResults[idx]
	if result.err != nil {
		return nil, result.err
	}

	return &redshift.DescribeClustersOutput{
		Clusters: []*redshift.Cluster{
			{
				ClusterIdentifier: aws.String(result.identifier),
				ClusterStatus:     aws.String(result.status),
				DBName:            aws.String("dwh"),
				MasterUsername:    aws.String("dwhuser"),
				VpcId:             aws.String(testVpcID),
				Endpoint: &redshift.Endpoint{
					Address: aws.String(testEndpoint),
					Port:    aws.Int64(5439),
				},
				IamRoles: []*redshift.ClusterIamRole{
					{IamRoleArn: aws.String(testRoleARN)},
				},
			},
		},
	}, nil
}

func errClusterExists() error {
	return awserr.New(redshift.ErrCodeClusterAlreadyExistsFault, "cluster already exists", nil)
}
