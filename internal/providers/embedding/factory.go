package embedding

import (
	"context"
	"fmt"
	"os"
)

// Env configuration for provider selection.
const (
	EnvProvider    = "EMBEDDING_PROVIDER" // vertex|openai (default vertex)
	EnvOpenAIKey   = "OPENAI_API_KEY"
	EnvOpenAIBase  = "OPENAI_BASE_URL"
	EnvOpenAIModel = "OPENAI_EMBEDDING_MODEL"
	EnvGCPProject  = "GCP_PROJECT_ID"
	EnvGCPLocation = "GCP_LOCATION"
	EnvVertexModel = "VERTEX_EMBEDDING_MODEL"
)

// NewFromEnv builds the configured provider.
func NewFromEnv(ctx context.Context) (Provider, error) {
	switch os.Getenv(EnvProvider) {
	case "openai":
		return NewOpenAIProvider(
			os.Getenv(EnvOpenAIKey),
			os.Getenv(EnvOpenAIBase),
			os.Getenv(EnvOpenAIModel),
		)
	case "vertex", "":
		project := os.Getenv(EnvGCPProject)
		if project == "" {
			return nil, fmt.Errorf("embedding provider: %s is not set", EnvGCPProject)
		}
		return NewVertexProvider(ctx, project,
			os.Getenv(EnvGCPLocation),
			os.Getenv(EnvVertexModel),
		)
	default:
		return nil, fmt.Errorf("embedding provider: unknown %s=%q", EnvProvider, os.Getenv(EnvProvider))
	}
}
