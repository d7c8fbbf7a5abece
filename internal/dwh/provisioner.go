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
	"io"
	"time"

	"emperror.dev/errors"
	"github.com/jonboulle/clockwork"
	"logur.dev/logur"

	"github.com/banzaicloud/dwhctl/pkg/providers/amazon"
)

// CreateResult describes a cluster that is ready to accept connections.
type CreateResult struct {
	RoleARN          string
	Cluster          *Cluster
	ConnectionString string
	Elapsed          time.Duration
}

// Provisioner runs the create and delete flows of a warehouse cluster.
type Provisioner struct {
	config Config

	roles    *RoleProvisioner
	clusters *ClusterController
	network  *NetworkOpener

	verifier ConnectionVerifier
	clock    clockwork.Clock
	logger   logur.Logger
}

// ProvisionerOption configures optional Provisioner dependencies.
type ProvisionerOption func(p *Provisioner)

func WithClock(clock clockwork.Clock) ProvisionerOption {
	return func(p *Provisioner) {
		p.clock = clock
	}
}

func WithConnectionVerifier(verifier ConnectionVerifier) ProvisionerOption {
	return func(p *Provisioner) {
		p.verifier = verifier
	}
}

// WithStatusOutput reports the polled cluster status as "ClusterStatus: >>> <status>" lines to w.
func WithStatusOutput(w io.Writer) ProvisionerOption {
	return func(p *Provisioner) {
		p.clusters.SetStatusOutput(w)
	}
}

func NewProvisioner(config Config, poll PollConfig, clients amazon.Clients, logger logur.Logger, opts ...ProvisionerOption) *Provisioner {
	p := &Provisioner{
		config:   config,
		roles:    NewRoleProvisioner(clients.IAM, logger),
		clusters: NewClusterController(clients.Redshift, config, poll, logger),
		network:  NewNetworkOpener(clients.EC2, logger),
		verifier: VerifyConnection,
		clock:    clockwork.NewRealClock(),
		logger:   logger,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Create provisions the IAM role and the cluster, opens the warehouse port and
// returns the connection details once the cluster is available.
func (p *Provisioner) Create(ctx context.Context) (*CreateResult, error) {
	startTime := p.clock.Now()

	roleARN, err := p.roles.EnsureRole(ctx, p.config.IAMRoleName)
	if err != nil {
		return nil, errors.WrapIf(err, "failed to provision IAM role")
	}

	cluster, err := p.clusters.Create(ctx, roleARN)
	if err != nil {
		return nil, err
	}

	port := p.config.Port
	if cluster.EndpointPort != 0 {
		port = cluster.EndpointPort
	}

	if cluster.VpcID == "" {
		p.logger.Warn("cluster is not in a VPC, skipping ingress rule", map[string]interface{}{"cluster": cluster.Identifier})
	} else {
		err = p.network.OpenPort(ctx, cluster.VpcID, port)
		if err != nil {
			return nil, errors.WrapIf(err, "failed to open cluster port")
		}
	}

	connectionString := ConnectionString(p.config, cluster.EndpointAddress, port)

	if p.config.VerifyConnection {
		p.logger.Info("verifying database connection", map[string]interface{}{"cluster": cluster.Identifier})

		err = p.verifier(ctx, connectionString)
		if err != nil {
			return nil, errors.WrapIfWithDetails(err, "cluster is available but not reachable", "cluster", cluster.Identifier)
		}
	}

	elapsed := p.clock.Now().Sub(startTime)

	p.logger.Info("cluster provisioned", map[string]interface{}{
		"cluster": cluster.Identifier,
		"elapsed": elapsed.String(),
	})

	return &CreateResult{
		RoleARN:          roleARN,
		Cluster:          cluster,
		ConnectionString: connectionString,
		Elapsed:          elapsed,
	}, nil
}

// Delete deletes the cluster and returns nil once it is verified to be gone.
// The IAM role is left in place.
func (p *Provisioner) Delete(ctx context.Context) error {
	startTime := p.clock.Now()

	err := p.clusters.Delete(ctx)
	if err != nil {
		return err
	}

	p.logger.Info("cluster deprovisioned", map[string]interface{}{
		"cluster": p.config.ClusterIdentifier,
		"elapsed": p.clock.Now().Sub(startTime).String(),
	})

	return nil
}
