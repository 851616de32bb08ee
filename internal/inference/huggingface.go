package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fleveque/stylelab/internal/model"
)

// HuggingFaceClient calls the Hugging Face Inference API text-to-image task.
// The model's Repo is appended to the base URL.
type HuggingFaceClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

func NewHuggingFaceClient(apiKey, baseURL string, logger *zap.Logger) *HuggingFaceClient {
	return &HuggingFaceClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			// Cold models can take a while to load on the provider side.
			Timeout: 2 * time.Minute,
		},
		logger: logger,
	}
}

func (h *HuggingFaceClient) ProviderName() string { return "huggingface" }

type hfParameters struct {
	NegativePrompt string  `json:"negative_prompt,omitempty"`
	GuidanceScale  float64 `json:"guidance_scale,omitempty"`
	Seed           *int64  `json:"seed,omitempty"`
}

type hfRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
}

func (h *HuggingFaceClient) GenerateImage(ctx context.Context, req Request) ([]byte, error) {
	payload := hfRequest{Inputs: req.Prompt}
	// Only send what the model accepts.
	if req.Model.Supports(model.FeatureNegativePrompt) {
		payload.Parameters.NegativePrompt = req.NegativePrompt
	}
	if req.Model.Supports(model.FeatureGuidanceScale) {
		payload.Parameters.GuidanceScale = req.Guidance
	}
	if req.Model.Supports(model.FeatureSeed) {
		seed := req.Seed
		payload.Parameters.Seed = &seed
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	url := h.baseURL + "/" + req.Model.Repo
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "image/png")
	httpReq.Header.Set("User-Agent", "stylelab/1.0")
	if h.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+h.apiKey)
	}

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling huggingface: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, &ProviderError{Provider: h.ProviderName(), StatusCode: resp.StatusCode, Body: string(msg)}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("huggingface returned an empty image for %s", req.Model.Repo)
	}

	h.logger.Debug("image generated",
		zap.String("repo", req.Model.Repo),
		zap.Int("bytes", len(data)),
	)
	return data, nil
}
