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
	"fmt"
	"strings"

	"emperror.dev/errors"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"logur.dev/logur"
)

// Config holds the credentials and location of the AWS account to work with.
type Config struct {
	// Access key ID and secret access key.
	// When both are empty the default credential chain (environment, shared config, instance role) is used.
	Key    string
	Secret string

	Region string

	// Turns on AWS SDK request logging
	Debug bool
}

// Validate validates the configuration.
func (c Config) Validate() error {
	var errs error

	if c.Region == "" {
		errs = errors.Append(errs, errors.New("aws region is required"))
	}

	if (c.Key == "") != (c.Secret == "") {
		errs = errors.Append(errs, errors.New("aws key and secret must be set together"))
	}

	return errs
}

// NewSession creates an AWS session for the configured account and region.
// SDK debug output goes to logger on debug level.
func NewSession(config Config, logger logur.Logger) (*session.Session, error) {
	lv := aws.LogOff
	if config.Debug {
		lv = aws.LogDebug
	}

	awsConfig := &aws.Config{
		Region:   aws.String(config.Region),
		LogLevel: aws.LogLevel(lv),
		Logger:   NewAWSLogger(logger),
	}

	if config.Key != "" {
		awsConfig.Credentials = CreateAWSCredentials(config.Key, config.Secret)
	}

	sess, err := session.NewSessionWithOptions(session.Options{
		Config:            *awsConfig,
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, errors.WrapIfWithDetails(err, "failed to create AWS session", "region", config.Region)
	}

	return sess, nil
}

// NewAWSLogger returns an aws.Logger writing to logger.
// The SDK default logger writes to the standard output.
func NewAWSLogger(logger logur.Logger) aws.Logger {
	return aws.LoggerFunc(func(args ...interface{}) {
		logger.Debug(strings.TrimSpace(fmt.Sprint(args...)), map[string]interface{}{"component": "aws-sdk"})
	})
}

func CreateAWSCredentials(accessKeyID string, secretAccessKey string) *credentials.Credentials {
	return credentials.NewStaticCredentials(accessKeyID, secretAccessKey, "")
}
