package inference

import (
	"context"
	"encoding/base64"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient renders with the OpenAI Images API. The catalog model only
// selects batch and prompt limits; every request goes to the configured
// OpenAI image model. Guidance and seed have no equivalent there.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

func NewOpenAIClient(apiKey, imageModel string) *OpenAIClient {
	return NewOpenAIClientWithConfig(openai.DefaultConfig(apiKey), imageModel)
}

// NewOpenAIClientWithConfig allows pointing the client at another base URL.
func NewOpenAIClientWithConfig(cfg openai.ClientConfig, imageModel string) *OpenAIClient {
	if imageModel == "" {
		imageModel = openai.CreateImageModelDallE3
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		model:  imageModel,
	}
}

func (o *OpenAIClient) ProviderName() string { return "openai" }

func (o *OpenAIClient) GenerateImage(ctx context.Context, req Request) ([]byte, error) {
	prompt := req.Prompt
	if req.NegativePrompt != "" {
		prompt += ". Avoid: " + req.NegativePrompt
	}

	resp, err := o.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          o.model,
		N:              1,
		Size:           openai.CreateImageSize1024x1024,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return nil, fmt.Errorf("openai image API call: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, fmt.Errorf("openai returned no image data")
	}

	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return data, nil
}
