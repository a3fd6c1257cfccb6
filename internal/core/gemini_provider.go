package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/generative-ai-go/genai"
	"github.com/promptproof/market/internal/store"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

type GeminiProvider struct {
	client *genai.Client
	logger *log.Logger
}

func NewGeminiProvider(ctx context.Context, apiKey string, logger *log.Logger) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiProvider{
		client: client,
		logger: logger,
	}, nil
}

func (p *GeminiProvider) Close() {
	if p.client != nil {
		if err := p.client.Close(); err != nil {
			p.logger.Errorf("Error closing GenAI client: %v", err)
		} else {
			p.logger.Debug("GenAI client closed.")
		}
	}
}

func (p *GeminiProvider) Name() string {
	return "gemini"
}

func (p *GeminiProvider) ListModels(ctx context.Context) ([]string, error) {
	var models []string
	it := p.client.ListModels(ctx)
	for {
		info, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("gemini list models request failed: %w", err)
		}
		// The API reports "models/gemini-1.5-flash"; the catalog keeps the bare id.
		models = append(models, strings.TrimPrefix(info.Name, "models/"))
	}
	return models, nil
}

func (p *GeminiProvider) Complete(ctx context.Context, prompt, model string, settings store.Settings) (string, error) {
	m := p.client.GenerativeModel(model)

	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(genericSystemInstruction)},
	}
	if settings.Temperature != nil {
		m.SetTemperature(float32(*settings.Temperature))
	}
	if settings.TopP != nil {
		m.SetTopP(float32(*settings.TopP))
	}
	if settings.MaxTokens != nil {
		m.SetMaxOutputTokens(int32(*settings.MaxTokens))
	}
	if settings.N != nil {
		m.SetCandidateCount(int32(*settings.N))
	}

	resp, err := m.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini GenerateContent failed: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini response was empty or had no valid candidates/parts")
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			responseText.WriteString(string(txt))
		} else {
			p.logger.Debugf("Gemini response part was not text: %T", part)
		}
	}

	if responseText.Len() == 0 {
		return "", fmt.Errorf("gemini returned no text parts")
	}
	return responseText.String(), nil
}

func (p *GeminiProvider) GenerateImage(context.Context, string, string, store.Settings) (string, error) {
	return "", fmt.Errorf("gemini: %w", ErrCapabilityUnsupported)
}
