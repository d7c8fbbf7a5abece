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

	"github.com/aws/aws-sdk-go/service/ec2/ec2iface"
	"logur.dev/logur"

	pkgEC2 "github.com/banzaicloud/dwhctl/pkg/providers/amazon/ec2"
)

const (
	ingressProtocol = "tcp"
	ingressCIDR     = "0.0.0.0/0"
)

// NetworkOpener lets clients reach the warehouse port.
type NetworkOpener struct {
	network *pkgEC2.NetworkSvc
	logger  logur.Logger
}

func NewNetworkOpener(ec2API ec2iface.EC2API, logger logur.Logger) *NetworkOpener {
	return &NetworkOpener{
		network: pkgEC2.NewNetworkSvc(ec2API, logger),
		logger:  logger,
	}
}

// OpenPort allows inbound TCP traffic from anywhere on port in the default security group of the VPC.
// Opening an already open port is not an error.
func (o *NetworkOpener) OpenPort(ctx context.Context, vpcID string, port int) error {
	groupID, err := o.network.GetVpcDefaultSecurityGroup(ctx, vpcID)
	if err != nil {
		return err
	}

	_, err = o.network.AuthorizeIngress(ctx, groupID, pkgEC2.IngressRule{
		Protocol: ingressProtocol,
		FromPort: int64(port),
		ToPort:   int64(port),
		CidrIP:   ingressCIDR,
	})

	return err
}
