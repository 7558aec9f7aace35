package aptosman

import (
	"context"
	"time"

	"github.com/TEENet-io/bridge-client-aptos/common"
	"github.com/cenkalti/backoff/v4"
	"github.com/cockroachdb/errors"
	logger "github.com/sirupsen/logrus"
)

// RetryConfig is an exponential retry policy for transient failures.
type RetryConfig struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: time.Second,
		MaxInterval:     10 * time.Second,
	}
}

// Retry runs op until it succeeds, fails with an error that is not a
// common.ErrNetwork, runs out of retries or ctx is done.
func Retry[T any](ctx context.Context, cfg RetryConfig, op func() (T, error)) (T, error) {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = cfg.InitialInterval
	exp.MaxInterval = cfg.MaxInterval
	exp.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, cfg.MaxRetries), ctx)

	var result T
	err := backoff.RetryNotify(func() error {
		v, err := op()
		if err != nil {
			if !errors.Is(err, common.ErrNetwork) {
				return backoff.Permanent(err)
			}
			return err
		}
		result = v
		return nil
	}, policy, func(err error, next time.Duration) {
		logger.WithError(err).WithField("retry_in", next).Warn("transient failure, retrying")
	})
	return result, err
}
