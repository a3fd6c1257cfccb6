package core

import (
	"context"

	"github.com/promptproof/market/internal/store"
)

// Capability is the kind of call routed to a provider.
type Capability int

const (
	TextCompletion Capability = iota
	ImageGeneration
)

func (c Capability) String() string {
	switch c {
	case TextCompletion:
		return "text_completion"
	case ImageGeneration:
		return "image_generation"
	default:
		return "unknown"
	}
}

const genericSystemInstruction = "You are a helpful assistant."

// Provider is an external model backend with its own catalog.
type Provider interface {
	// Name identifies the provider in catalogs and logs, e.g. "openai".
	Name() string

	// ListModels returns the ids of every model the provider serves.
	ListModels(ctx context.Context) ([]string, error)

	// Complete sends prompt as a single user turn and returns the reply text.
	Complete(ctx context.Context, prompt, model string, settings store.Settings) (string, error)

	// GenerateImage returns a URL (or inline payload) for the generated image.
	GenerateImage(ctx context.Context, prompt, model string, settings store.Settings) (string, error)
}
