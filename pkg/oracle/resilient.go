package oracle

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// ResilientGenerator wraps a Generator with a per-call timeout, a token
// bucket rate limit, a single retry, and a circuit breaker. When the
// breaker is open, calls fail fast with ErrUnavailable instead of piling
// onto a struggling oracle.
type ResilientGenerator struct {
	inner   Generator
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	timeout time.Duration
	retries int
	logger  *logrus.Logger
}

// ResilientOptions configure the resilience wrapper.
type ResilientOptions struct {
	Timeout    time.Duration
	RetryCount int     // retries after the first attempt
	RateLimit  float64 // calls per second; <= 0 disables limiting
	Burst      int
}

// NewResilientGenerator wraps inner with the standard resilience stack.
func NewResilientGenerator(inner Generator, opts ResilientOptions, logger *logrus.Logger) *ResilientGenerator {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RetryCount < 0 {
		opts.RetryCount = 0
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "SemanticOracle",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	return &ResilientGenerator{
		inner:   inner,
		breaker: breaker,
		limiter: limiter,
		timeout: opts.Timeout,
		retries: opts.RetryCount,
		logger:  logger,
	}
}

// Generate runs one guarded call, retrying once per configured retry on
// transient failure. All failure modes map to ErrUnavailable.
func (g *ResilientGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= g.retries; attempt++ {
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return "", fmt.Errorf("%w: rate limit wait: %v", ErrUnavailable, err)
			}
		}

		result, err := g.breaker.Execute(func() (interface{}, error) {
			callCtx, cancel := context.WithTimeout(ctx, g.timeout)
			defer cancel()
			return g.inner.Generate(callCtx, prompt)
		})
		if err == nil {
			return result.(string), nil
		}
		lastErr = err

		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return "", fmt.Errorf("%w: circuit open", ErrUnavailable)
		}
		if ctx.Err() != nil {
			break
		}

		g.logger.WithFields(logrus.Fields{
			"attempt": attempt + 1,
			"error":   err.Error(),
		}).Warn("Oracle call failed")
	}

	return "", fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}
