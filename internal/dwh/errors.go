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

	"emperror.dev/errors"
)

// ErrClusterNotFound is returned when Redshift does not know the cluster identifier.
const ErrClusterNotFound = errors.Sentinel("cluster not found")

const errClusterNotReady = errors.Sentinel("cluster is not ready yet")

// TimeoutError is returned when the cluster did not reach the desired state within the poll budget.
type TimeoutError struct {
	ClusterIdentifier string
	DesiredState      string
	LastStatus        string
	Attempts          int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf(
		"cluster %q did not become %s after %d attempts (last status: %q)",
		e.ClusterIdentifier,
		e.DesiredState,
		e.Attempts,
		e.LastStatus,
	)
}

// UnexpectedStatusError is returned when the cluster leaves the expected transitional state
// for something other than the desired one.
type UnexpectedStatusError struct {
	ClusterIdentifier string
	Expected          string
	Status            string
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("cluster %q is in status %q, expected %q", e.ClusterIdentifier, e.Status, e.Expected)
}
