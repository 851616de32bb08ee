package scoring

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient scores images with an OpenAI vision model, forcing a
// function call for structured output.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

func NewOpenAIClient(apiKey string, model string) *OpenAIClient {
	return NewOpenAIClientWithConfig(openai.DefaultConfig(apiKey), model)
}

func NewOpenAIClientWithConfig(cfg openai.ClientConfig, model string) *OpenAIClient {
	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (o *OpenAIClient) ProviderName() string { return "openai" }
func (o *OpenAIClient) ModelName() string     { return o.model }

func (o *OpenAIClient) ScoreImage(ctx context.Context, image []byte, prompt string) (*Rating, error) {
	tools := []openai.Tool{
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        submitToolName,
				Description: "Submit the quality score for the image.",
				Parameters: map[string]interface{}{
					"type":       "object",
					"properties": scoreSchema,
					"required":   []string{"score"},
				},
			},
		},
	}

	dataURL := fmt.Sprintf("data:%s;base64,%s", http.DetectContentType(image), base64.StdEncoding.EncodeToString(image))
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: buildPrompt(prompt)},
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: dataURL, Detail: openai.ImageURLDetailLow},
					},
				},
			},
		},
		Tools: tools,
		ToolChoice: openai.ToolChoice{
			Type:     openai.ToolTypeFunction,
			Function: openai.ToolFunction{Name: submitToolName},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai returned no choices")
	}

	for _, call := range resp.Choices[0].Message.ToolCalls {
		if call.Function.Name != submitToolName {
			continue
		}
		var result submitScoreInput
		if err := json.Unmarshal([]byte(call.Function.Arguments), &result); err != nil {
			return nil, fmt.Errorf("parsing tool arguments: %w", err)
		}
		return &Rating{Score: clampScore(result.Score), Rationale: result.Rationale}, nil
	}

	return nil, fmt.Errorf("OpenAI ended without submitting a score")
}
