// Package inference talks to hosted text-to-image providers. Each provider
// implements Client, so the renderer does not care which one is configured.
package inference

import (
	"context"
	"fmt"

	"github.com/fleveque/stylelab/internal/model"
)

// Request is one text-to-image call.
type Request struct {
	Model          model.AIModel
	Prompt         string
	NegativePrompt string
	Guidance       float64
	Seed           int64
}

// Client generates a single image and returns its raw bytes. Provider and
// transport errors are returned as-is (wrapped with %w).
type Client interface {
	GenerateImage(ctx context.Context, req Request) ([]byte, error)
	ProviderName() string
}

// ProviderError is a non-success HTTP answer from a provider.
type ProviderError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s returned %d: %s", e.Provider, e.StatusCode, e.Body)
}

// maxImageBytes caps how much of a provider response is read.
const maxImageBytes = 20 << 20
