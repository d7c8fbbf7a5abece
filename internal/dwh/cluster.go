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
	"fmt"
	"io"
	"io/ioutil"

	"emperror.dev/errors"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/redshift"
	"github.com/aws/aws-sdk-go/service/redshift/redshiftiface"
	"logur.dev/logur"

	"github.com/banzaicloud/dwhctl/pkg/backoff"
	"github.com/banzaicloud/dwhctl/pkg/providers/amazon"
)

// Cluster status values reported by Redshift.
const (
	ClusterStatusAvailable = "available"
	ClusterStatusCreating  = "creating"
	ClusterStatusDeleting  = "deleting"
	ClusterStatusDeleted   = "deleted"
)

const singleNodeClusterType = "single-node"

// Cluster is a snapshot of a Redshift cluster.
type Cluster struct {
	Identifier      string
	Status          string
	EndpointAddress string
	EndpointPort    int
	VpcID           string
	IAMRoleARNs     []string
	DBName          string
	MasterUsername  string
}

func clusterFromAWS(c *redshift.Cluster) *Cluster {
	cluster := &Cluster{
		Identifier:     aws.StringValue(c.ClusterIdentifier),
		Status:         aws.StringValue(c.ClusterStatus),
		VpcID:          aws.StringValue(c.VpcId),
		DBName:         aws.StringValue(c.DBName),
		MasterUsername: aws.StringValue(c.MasterUsername),
	}

	if c.Endpoint != nil {
		cluster.EndpointAddress = aws.StringValue(c.Endpoint.Address)
		cluster.EndpointPort = int(aws.Int64Value(c.Endpoint.Port))
	}

	for _, role := range c.IamRoles {
		cluster.IAMRoleARNs = append(cluster.IAMRoleARNs, aws.StringValue(role.IamRoleArn))
	}

	return cluster
}

// ClusterController creates and deletes a Redshift cluster and waits for the operations to finish.
type ClusterController struct {
	redshift redshiftiface.RedshiftAPI
	config   Config
	poll     PollConfig
	logger   logur.Logger

	// receives a "ClusterStatus: >>> <status>" line per poll
	status io.Writer
}

func NewClusterController(redshiftAPI redshiftiface.RedshiftAPI, config Config, poll PollConfig, logger logur.Logger) *ClusterController {
	return &ClusterController{
		redshift: redshiftAPI,
		config:   config,
		poll:     poll,
		logger:   logur.WithFields(logger, map[string]interface{}{"cluster": config.ClusterIdentifier}),
		status:   ioutil.Discard,
	}
}

// SetStatusOutput sets where the observed cluster status is reported.
func (c *ClusterController) SetStatusOutput(w io.Writer) {
	c.status = w
}

func (c *ClusterController) reportStatus(status string) {
	_, _ = fmt.Fprintf(c.status, "ClusterStatus: >>> %s\n", status)
}

// Describe returns the current state of the cluster or ErrClusterNotFound.
func (c *ClusterController) Describe(ctx context.Context) (*Cluster, error) {
	output, err := c.redshift.DescribeClustersWithContext(ctx, &redshift.DescribeClustersInput{
		ClusterIdentifier: aws.String(c.config.ClusterIdentifier),
	})
	if err != nil {
		if amazon.IsAWSErrorCode(err, redshift.ErrCodeClusterNotFoundFault) {
			return nil, errors.WithDetails(ErrClusterNotFound, "cluster", c.config.ClusterIdentifier)
		}

		return nil, errors.WrapIfWithDetails(err, "failed to describe cluster", "cluster", c.config.ClusterIdentifier)
	}

	if len(output.Clusters) == 0 {
		return nil, errors.WithDetails(ErrClusterNotFound, "cluster", c.config.ClusterIdentifier)
	}

	return clusterFromAWS(output.Clusters[0]), nil
}

// Create requests a new cluster with the given IAM role attached and waits until it is available.
// An already existing cluster with the same identifier is waited for as well.
func (c *ClusterController) Create(ctx context.Context, roleARN string) (*Cluster, error) {
	input := &redshift.CreateClusterInput{
		ClusterType:        aws.String(c.config.ClusterType),
		NodeType:           aws.String(c.config.NodeType),
		DBName:             aws.String(c.config.DB),
		ClusterIdentifier:  aws.String(c.config.ClusterIdentifier),
		MasterUsername:     aws.String(c.config.DBUser),
		MasterUserPassword: aws.String(c.config.DBPassword),
		Port:               aws.Int64(int64(c.config.Port)),
		IamRoles:           aws.StringSlice([]string{roleARN}),
	}

	if c.config.ClusterType != singleNodeClusterType {
		input.NumberOfNodes = aws.Int64(int64(c.config.NumNodes))
	}

	c.logger.Info("creating cluster", map[string]interface{}{
		"clusterType": c.config.ClusterType,
		"nodeType":    c.config.NodeType,
		"numNodes":    c.config.NumNodes,
	})

	_, err := c.redshift.CreateClusterWithContext(ctx, input)
	if err != nil {
		if !amazon.IsAWSErrorCode(err, redshift.ErrCodeClusterAlreadyExistsFault) {
			return nil, errors.WrapIfWithDetails(err, "failed to create cluster", "cluster", c.config.ClusterIdentifier)
		}

		c.logger.Info("cluster already exists")
	}

	var cluster *Cluster
	var lastStatus string
	var describeErr error

	err = backoff.RetryAttempts(ctx, func() error {
		current, err := c.Describe(ctx)
		if errors.Is(err, ErrClusterNotFound) {
			// a freshly requested cluster may not be visible yet
			c.logger.Info("cluster is not visible yet")

			return err
		}
		if err != nil {
			describeErr = err

			return backoff.MarkErrorPermanent(err)
		}

		lastStatus = current.Status

		if current.Identifier == c.config.ClusterIdentifier && current.Status == ClusterStatusAvailable {
			cluster = current

			return nil
		}

		c.reportStatus(current.Status)

		return errClusterNotReady
	}, c.poll.policy(), c.poll.MaxAttempts)

	if describeErr != nil {
		return nil, errors.WrapIf(describeErr, "failed to wait for cluster to become available")
	}

	var exhausted *backoff.ExhaustedError
	if errors.As(err, &exhausted) {
		return nil, &TimeoutError{
			ClusterIdentifier: c.config.ClusterIdentifier,
			DesiredState:      ClusterStatusAvailable,
			LastStatus:        lastStatus,
			Attempts:          exhausted.Attempts,
		}
	}
	if err != nil {
		return nil, errors.WrapIf(err, "failed to wait for cluster to become available")
	}

	c.logger.Info("cluster is available", map[string]interface{}{"endpoint": cluster.EndpointAddress})

	return cluster, nil
}

// Delete deletes the cluster without a final snapshot and waits until Redshift no longer knows about it.
// It returns nil only if the cluster was seen to be gone.
func (c *ClusterController) Delete(ctx context.Context) error {
	c.logger.Info("deleting cluster")

	_, err := c.redshift.DeleteClusterWithContext(ctx, &redshift.DeleteClusterInput{
		ClusterIdentifier:        aws.String(c.config.ClusterIdentifier),
		SkipFinalClusterSnapshot: aws.Bool(true),
	})
	if err != nil {
		if amazon.IsAWSErrorCode(err, redshift.ErrCodeClusterNotFoundFault) {
			c.logger.Info("cluster does not exist")

			return nil
		}

		return errors.WrapIfWithDetails(err, "failed to delete cluster", "cluster", c.config.ClusterIdentifier)
	}

	var lastStatus string
	var stopErr error

	err = backoff.RetryAttempts(ctx, func() error {
		current, err := c.Describe(ctx)
		if errors.Is(err, ErrClusterNotFound) {
			return nil
		}
		if err != nil {
			stopErr = err

			return backoff.MarkErrorPermanent(err)
		}

		lastStatus = current.Status
		c.reportStatus(current.Status)

		if current.Status != ClusterStatusDeleting {
			stopErr = &UnexpectedStatusError{
				ClusterIdentifier: c.config.ClusterIdentifier,
				Expected:          ClusterStatusDeleting,
				Status:            current.Status,
			}

			return backoff.MarkErrorPermanent(stopErr)
		}

		return errClusterNotReady
	}, c.poll.policy(), c.poll.MaxAttempts)

	if stopErr != nil {
		return errors.WrapIf(stopErr, "failed to wait for cluster deletion")
	}

	var exhausted *backoff.ExhaustedError
	if errors.As(err, &exhausted) {
		return &TimeoutError{
			ClusterIdentifier: c.config.ClusterIdentifier,
			DesiredState:      ClusterStatusDeleted,
			LastStatus:        lastStatus,
			Attempts:          exhausted.Attempts,
		}
	}
	if err != nil {
		return errors.WrapIf(err, "failed to wait for cluster deletion")
	}

	c.logger.Info("cluster deleted")

	return nil
}
