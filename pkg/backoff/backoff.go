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

package backoff

import (
	"context"
	"time"

	"emperror.dev/errors"
	"github.com/lestrrat-go/backoff"
)

// ConstantBackoffConfig describes a policy that waits the same amount of time between attempts.
type ConstantBackoffConfig struct {
	Delay          time.Duration
	MaxRetries     int
	MaxElapsedTime time.Duration
}

func NewConstantBackoffPolicy(config ConstantBackoffConfig) *backoff.Constant {
	return backoff.NewConstant(config.Delay, backoff.WithMaxRetries(config.MaxRetries), backoff.WithMaxElapsedTime(config.MaxElapsedTime))
}

// ErrAttemptsExhausted is matched (errors.Is) by the error Retry returns when the policy gives up.
const ErrAttemptsExhausted = errors.Sentinel("all attempts failed")

// ExhaustedError is returned when the backoff policy stops before the function succeeded.
// Err is the error returned by the last attempt.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	if e.Err == nil {
		return ErrAttemptsExhausted.Error()
	}

	return ErrAttemptsExhausted.Error() + ": " + e.Err.Error()
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

func (e *ExhaustedError) Is(target error) bool {
	return target == ErrAttemptsExhausted
}

// Retry calls function until it returns nil, returns a permanent error or the policy gives up.
func Retry(ctx context.Context, function func() error, backoffPolicy backoff.Policy) error {
	return RetryAttempts(ctx, function, backoffPolicy, 0)
}

// RetryAttempts is Retry with function called at most maxAttempts times.
// Zero means the policy alone decides when to give up.
func RetryAttempts(ctx context.Context, function func() error, backoffPolicy backoff.Policy, maxAttempts int) (err error) {
	b, cancel := backoffPolicy.Start(ctx)
	defer cancel()

	attempts := 0
	for {
		select {
		case <-ctx.Done():
			return errors.WrapIf(ctx.Err(), "retry aborted")
		case <-b.Done():
			if ctxErr := ctx.Err(); ctxErr != nil {
				return errors.WrapIf(ctxErr, "retry aborted")
			}

			return &ExhaustedError{Attempts: attempts, Err: err}
		case <-b.Next():
			attempts++

			err = function()
			if err == nil {
				return nil
			}

			if backoff.IsPermanentError(err) {
				return errors.WrapIf(err, "permanent error happened during retrying")
			}

			if maxAttempts > 0 && attempts >= maxAttempts {
				return &ExhaustedError{Attempts: attempts, Err: err}
			}
		}
	}
}

// MarkErrorPermanent marks an error permanent error so it won't be retried (unlike with non-marked errors considered as transient)
func MarkErrorPermanent(err error) error {
	if err == nil {
		return nil
	}

	return backoff.MarkPermanent(err)
}
