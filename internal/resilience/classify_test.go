package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type classifiedError struct {
	class Class
}

func (e *classifiedError) Error() string         { return "pre-classified: " + string(e.class) }
func (e *classifiedError) Classification() Class { return e.class }

type fakeNetError struct{ timeout bool }

func (e *fakeNetError) Error() string   { return "dial tcp: connection refused" }
func (e *fakeNetError) Timeout() bool   { return e.timeout }
func (e *fakeNetError) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Class
	}{
		{"nil", nil, ClassAPI},
		{"pre-classified wins over message", fmt.Errorf("wrap: %w", &classifiedError{class: ClassRateLimit}), ClassRateLimit},
		{"deadline exceeded", context.DeadlineExceeded, ClassTimeout},
		{"net timeout", &fakeNetError{timeout: true}, ClassTimeout},
		{"net error", &fakeNetError{}, ClassNetwork},
		{"429 status text", errors.New("upstream returned 429"), ClassRateLimit},
		{"too many requests", errors.New("Too Many Requests"), ClassRateLimit},
		{"quota", errors.New("quota exhausted for project"), ClassRateLimit},
		{"timeout text", errors.New("request timeout waiting for response"), ClassTimeout},
		{"connection reset", errors.New("read: connection reset by peer"), ClassNetwork},
		{"no such host", errors.New("lookup api.example.com: no such host"), ClassNetwork},
		{"invalid input", errors.New("invalid request payload"), ClassValidation},
		{"400 status text", errors.New("status 400 bad request"), ClassValidation},
		{"unknown", errors.New("something odd happened"), ClassAPI},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.err))
		})
	}
}

func TestClassRetryPolicy(t *testing.T) {
	assert.True(t, ClassRateLimit.Retryable())
	assert.True(t, ClassNetwork.Retryable())
	assert.True(t, ClassTimeout.Retryable())
	assert.False(t, ClassValidation.Retryable())
	assert.False(t, ClassAPI.Retryable())

	assert.Equal(t, 4, ClassRateLimit.maxAttempts())
	assert.Equal(t, 4, ClassTimeout.maxAttempts())
	assert.Equal(t, 3, ClassNetwork.maxAttempts())
	assert.Equal(t, 1, ClassValidation.maxAttempts())
	assert.Equal(t, 1, ClassAPI.maxAttempts())
}
