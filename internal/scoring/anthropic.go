package scoring

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
)

// AnthropicClient scores images with Claude vision. The answer comes back
// through a custom tool so it is structured JSON rather than free text.
type AnthropicClient struct {
	client *anthropic.Client
	model  string
}

func NewAnthropicClient(apiKey string, model string, opts ...option.RequestOption) *AnthropicClient {
	client := anthropic.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	return &AnthropicClient{
		client: &client,
		model:  model,
	}
}

func (a *AnthropicClient) ProviderName() string { return "anthropic" }
func (a *AnthropicClient) ModelName() string     { return a.model }

func (a *AnthropicClient) ScoreImage(ctx context.Context, image []byte, prompt string) (*Rating, error) {
	submitTool := anthropic.ToolParam{
		Name:        submitToolName,
		Description: param.NewOpt("Submit the quality score for the image."),
		InputSchema: anthropic.ToolInputSchemaParam{
			Properties: scoreSchema,
		},
	}

	mediaType := http.DetectContentType(image)
	message, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: 512,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewImageBlockBase64(mediaType, base64.StdEncoding.EncodeToString(image)),
				anthropic.NewTextBlock(buildPrompt(prompt)),
			),
		},
		Tools: []anthropic.ToolUnionParam{{OfTool: &submitTool}},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic API call: %w", err)
	}

	for _, block := range message.Content {
		toolUse, ok := block.AsAny().(anthropic.ToolUseBlock)
		if !ok || toolUse.Name != submitToolName {
			continue
		}

		inputBytes, err := json.Marshal(toolUse.Input)
		if err != nil {
			return nil, fmt.Errorf("marshaling tool input: %w", err)
		}
		var result submitScoreInput
		if err := json.Unmarshal(inputBytes, &result); err != nil {
			return nil, fmt.Errorf("parsing tool input: %w", err)
		}
		return &Rating{Score: clampScore(result.Score), Rationale: result.Rationale}, nil
	}

	return nil, fmt.Errorf("Claude ended without submitting a score (stop reason %s)", message.StopReason)
}
