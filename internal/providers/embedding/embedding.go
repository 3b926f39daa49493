package embedding

import (
	"context"
	"fmt"

	"github.com/qiranapp/qiran/internal/resilience"
)

// Dimension every provider must produce. Vectors of any other length are
// rejected before they reach storage.
const Dimension = 768

// Provider turns text into a fixed-length float vector. Implementations are
// swappable; tests use a deterministic fake.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
	Model() string
	Close() error
}

// ProviderError carries an upstream HTTP status so the resilient caller can
// classify without parsing message text.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("embedding provider: %s (status %d)", e.Message, e.StatusCode)
}

func (e *ProviderError) Classification() resilience.Class {
	switch {
	case e.StatusCode == 429:
		return resilience.ClassRateLimit
	case e.StatusCode == 408 || e.StatusCode == 504:
		return resilience.ClassTimeout
	case e.StatusCode >= 400 && e.StatusCode < 500:
		return resilience.ClassValidation
	default:
		return resilience.ClassAPI
	}
}
