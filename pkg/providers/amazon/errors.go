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

package amazon

import (
	"emperror.dev/errors"
	"github.com/aws/aws-sdk-go/aws/awserr"
)

// IsAWSErrorCode reports whether err (or an error it wraps) is an AWS API error with one of the given codes.
func IsAWSErrorCode(err error, codes ...string) bool {
	if err == nil {
		return false
	}

	var awsErr awserr.Error
	if !errors.As(err, &awsErr) {
		return false
	}

	for _, code := range codes {
		if awsErr.Code() == code {
			return true
		}
	}

	return false
}
