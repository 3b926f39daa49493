package resilience

import (
	"context"
	"errors"
	"net"
	"strings"
)

// Class is the error classification keying retry policy and breakers.
type Class string

const (
	ClassRateLimit  Class = "rate_limit"
	ClassNetwork    Class = "network_error"
	ClassTimeout    Class = "timeout"
	ClassValidation Class = "validation_error"
	ClassAPI        Class = "api_error"
)

// upstreamClasses are the classes whose breakers guard upstream health;
// validation errors are the caller's fault and never trip a breaker.
var upstreamClasses = []Class{ClassRateLimit, ClassNetwork, ClassTimeout, ClassAPI}

// Classifier lets providers pre-classify their own errors.
type Classifier interface {
	Classification() Class
}

// Classify buckets an upstream error. Pre-classified errors win; otherwise
// fall back to stdlib error types and message heuristics.
func Classify(err error) Class {
	if err == nil {
		return ClassAPI
	}

	var cl Classifier
	if errors.As(err, &cl) {
		return cl.Classification()
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTimeout
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		if nerr.Timeout() {
			return ClassTimeout
		}
		return ClassNetwork
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit"),
		strings.Contains(msg, "too many requests"),
		strings.Contains(msg, "quota"),
		strings.Contains(msg, "429"):
		return ClassRateLimit
	case strings.Contains(msg, "timeout"),
		strings.Contains(msg, "deadline exceeded"):
		return ClassTimeout
	case strings.Contains(msg, "connection"),
		strings.Contains(msg, "network"),
		strings.Contains(msg, "no such host"),
		strings.Contains(msg, "broken pipe"):
		return ClassNetwork
	case strings.Contains(msg, "invalid"),
		strings.Contains(msg, "validation"),
		strings.Contains(msg, "400"):
		return ClassValidation
	default:
		return ClassAPI
	}
}

// Retryable reports whether a class is worth retrying at all.
func (c Class) Retryable() bool {
	switch c {
	case ClassRateLimit, ClassNetwork, ClassTimeout:
		return true
	default:
		return false
	}
}

// maxAttempts per class (first try included).
func (c Class) maxAttempts() int {
	switch c {
	case ClassRateLimit, ClassTimeout:
		return 4 // 3 retries
	case ClassNetwork:
		return 3 // 2 retries
	default:
		return 1
	}
}
