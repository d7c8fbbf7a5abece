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
	"time"

	"emperror.dev/errors"
	"github.com/lestrrat-go/backoff"

	pkgBackoff "github.com/banzaicloud/dwhctl/pkg/backoff"
)

// Config describes the warehouse cluster and the role it runs with.
type Config struct {
	// single-node or multi-node
	ClusterType string

	// Ignored for single-node clusters
	NumNodes int

	NodeType string

	ClusterIdentifier string

	// Database name and master user credentials
	DB         string
	DBUser     string
	DBPassword string

	Port int

	// IAM role assumed by the cluster to read S3
	IAMRoleName string

	// Ping the database once the cluster is available
	VerifyConnection bool
}

// Validate checks that the identifiers the provisioner depends on are present.
func (c Config) Validate() error {
	var errs error

	if c.ClusterIdentifier == "" {
		errs = errors.Append(errs, errors.New("dwh cluster identifier is required"))
	}

	if c.IAMRoleName == "" {
		errs = errors.Append(errs, errors.New("dwh iam role name is required"))
	}

	return errs
}

// PollConfig bounds how long the cluster state is polled.
type PollConfig struct {
	Interval    time.Duration
	MaxAttempts int
}

func (c PollConfig) Validate() error {
	var errs error

	if c.Interval <= 0 {
		errs = errors.Append(errs, errors.New("poll interval must be positive"))
	}

	if c.MaxAttempts < 1 {
		errs = errors.Append(errs, errors.New("poll max attempts must be at least 1"))
	}

	return errs
}

// policy fires up to MaxAttempts+1 times (zero retries would mean unlimited),
// so callers cap the attempts with backoff.RetryAttempts.
func (c PollConfig) policy() backoff.Policy {
	return pkgBackoff.NewConstantBackoffPolicy(pkgBackoff.ConstantBackoffConfig{
		Delay:      c.Interval,
		MaxRetries: c.MaxAttempts,
	})
}
