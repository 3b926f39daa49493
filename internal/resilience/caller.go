package resilience

import (
	"context"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/qiranapp/qiran/internal/telemetry"
	"github.com/qiranapp/qiran/internal/utils"
)

// Kind is the operation family the typed failure is reported as.
type Kind string

const (
	KindEmbedding    Kind = "embedding"
	KindModeration   Kind = "moderation"
	KindConversation Kind = "conversation"
	KindGeneric      Kind = "ai_integration"
)

// RetryConfig shapes the exponential backoff between attempts:
// delay = InitialDelay × Multiplier^attempt + jitter, capped at MaxDelay.
type RetryConfig struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterFrac   float64 // fraction of the delay added as random jitter
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		JitterFrac:   0.25,
	}
}

// Caller wraps upstream AI calls with classification, bounded retry and a
// per-class circuit breaker. Callers never see raw upstream errors; every
// failure is converted to a typed AppError.
type Caller struct {
	breakers *BreakerSet
	retry    RetryConfig
	log      *logrus.Logger
	sink     telemetry.Sink

	sleep func(ctx context.Context, d time.Duration) error // override in tests
}

func NewCaller(breakers *BreakerSet, retry RetryConfig, log *logrus.Logger, sink telemetry.Sink) *Caller {
	if breakers == nil {
		breakers = NewBreakerSet()
	}
	if retry.InitialDelay <= 0 {
		retry = DefaultRetryConfig()
	}
	return &Caller{
		breakers: breakers,
		retry:    retry,
		log:      log,
		sink:     sink,
		sleep:    sleepCtx,
	}
}

func (c *Caller) Breakers() *BreakerSet { return c.breakers }

// Execute runs fn with retry and breaker protection. op names the upstream
// operation for logs and error payloads.
func Execute[T any](ctx context.Context, c *Caller, kind Kind, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	// Fail fast while any upstream-health breaker is open; the upstream is
	// known-bad, there is no point dispatching the call.
	for _, class := range upstreamClasses {
		if c.breakers.IsOpen(class) {
			return zero, utils.ED(utils.CodeCircuitOpen, op,
				"service temporarily unavailable", nil,
				map[string]any{
					"kind":           string(kind),
					"classification": string(class),
				})
		}
	}

	delay := c.retry.InitialDelay
	var lastErr error
	var lastClass Class

	for attempt := 1; ; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			for _, class := range upstreamClasses {
				if c.breakers.RecordSuccess(class) {
					c.emitTransition(ctx, class, StateClosed, op)
				}
			}
			return result, nil
		}

		lastErr = err
		lastClass = Classify(err)

		if c.log != nil {
			c.log.WithFields(logrus.Fields{
				"operation":      op,
				"kind":           string(kind),
				"classification": string(lastClass),
				"attempt":        attempt,
			}).WithError(err).Warn("upstream call failed")
		}

		if lastClass != ClassValidation {
			if c.breakers.RecordFailure(lastClass) {
				c.emitTransition(ctx, lastClass, StateOpen, op)
			}
		}

		if ctx.Err() != nil {
			break
		}
		if !lastClass.Retryable() || attempt >= lastClass.maxAttempts() {
			break
		}
		if c.breakers.IsOpen(lastClass) {
			break
		}

		jitter := time.Duration(rand.Float64() * c.retry.JitterFrac * float64(delay))
		if err := c.sleep(ctx, delay+jitter); err != nil {
			break
		}
		delay = time.Duration(float64(delay) * c.retry.Multiplier)
		if delay > c.retry.MaxDelay {
			delay = c.retry.MaxDelay
		}
	}

	return zero, typedError(kind, op, lastClass, lastErr)
}

func typedError(kind Kind, op string, class Class, err error) error {
	details := map[string]any{
		"kind":           string(kind),
		"classification": string(class),
	}
	var msg string
	switch kind {
	case KindEmbedding:
		msg = "embedding generation failed"
	case KindModeration:
		msg = "content moderation failed"
	case KindConversation:
		msg = "conversation generation failed"
	default:
		msg = "AI integration failed"
	}

	switch class {
	case ClassRateLimit:
		return utils.ED(utils.CodeRateLimited, op, msg+": upstream rate limited", err, details)
	case ClassNetwork:
		return utils.ED(utils.CodeNetworkError, op, msg+": network error", err, details)
	case ClassTimeout:
		return utils.ED(utils.CodeTimeout, op, msg+": upstream timed out", err, details)
	case ClassValidation:
		return utils.ED(utils.CodeInvalidArgument, op, msg+": invalid input", err, details)
	default:
		return utils.ED(utils.CodeUpstreamError, op, msg, err, details)
	}
}

func (c *Caller) emitTransition(ctx context.Context, class Class, to State, op string) {
	if c.log != nil {
		c.log.WithFields(logrus.Fields{
			"classification": string(class),
			"state":          string(to),
			"operation":      op,
		}).Warn("circuit breaker transition")
	}
	if c.sink == nil {
		return
	}
	kind := telemetry.KindBreakerClosed
	severity := "info"
	if to == StateOpen {
		kind = telemetry.KindBreakerOpen
		severity = "critical"
	}
	c.sink.Publish(ctx, telemetry.Alert{
		Kind:     kind,
		Severity: severity,
		Message:  "circuit breaker " + string(to),
		Fields: map[string]any{
			"classification": string(class),
			"operation":      op,
		},
	})
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
