package embedding

import (
	"context"
	"fmt"

	aiplatform "cloud.google.com/go/aiplatform/apiv1"
	"cloud.google.com/go/aiplatform/apiv1/aiplatformpb"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/types/known/structpb"
)

// VertexProvider serves embeddings from a Vertex AI publisher model through
// the PredictionService.
type VertexProvider struct {
	client   *aiplatform.PredictionClient
	endpoint string
	model    string
}

func NewVertexProvider(ctx context.Context, projectID, location, modelName string) (*VertexProvider, error) {
	if modelName == "" {
		modelName = "text-embedding-005"
	}
	if location == "" {
		location = "us-central1"
	}

	c, err := aiplatform.NewPredictionClient(ctx,
		option.WithEndpoint(fmt.Sprintf("%s-aiplatform.googleapis.com:443", location)))
	if err != nil {
		return nil, err
	}

	return &VertexProvider{
		client: c,
		endpoint: fmt.Sprintf("projects/%s/locations/%s/publishers/google/models/%s",
			projectID, location, modelName),
		model: modelName,
	}, nil
}

func (v *VertexProvider) Close() error { return v.client.Close() }

func (v *VertexProvider) Dimension() int { return Dimension }

func (v *VertexProvider) Model() string { return v.model }

func (v *VertexProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	instance, err := structpb.NewValue(map[string]any{
		"content":   text,
		"task_type": "SEMANTIC_SIMILARITY",
	})
	if err != nil {
		return nil, err
	}
	params, err := structpb.NewValue(map[string]any{
		"outputDimensionality": Dimension,
	})
	if err != nil {
		return nil, err
	}

	resp, err := v.client.Predict(ctx, &aiplatformpb.PredictRequest{
		Endpoint:   v.endpoint,
		Instances:  []*structpb.Value{instance},
		Parameters: params,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Predictions) == 0 {
		return nil, &ProviderError{StatusCode: 502, Message: "no predictions returned"}
	}

	fields := resp.Predictions[0].GetStructValue().GetFields()
	emb, ok := fields["embeddings"]
	if !ok {
		return nil, &ProviderError{StatusCode: 502, Message: "prediction missing embeddings"}
	}
	values := emb.GetStructValue().GetFields()["values"].GetListValue().GetValues()
	if len(values) != Dimension {
		return nil, &ProviderError{
			StatusCode: 502,
			Message:    fmt.Sprintf("unexpected embedding dimension %d", len(values)),
		}
	}

	vec := make([]float32, len(values))
	for i, val := range values {
		vec[i] = float32(val.GetNumberValue())
	}
	return vec, nil
}
