package core

import (
	"context"
	"fmt"
	"math"
	"net/http"

	"github.com/promptproof/market/internal/store"
	"github.com/sashabaranov/go-openai"
)

// OpenAIOptions configures an OpenAI-compatible provider. Atoma serves the
// same wire format, so both providers are built from this type.
type OpenAIOptions struct {
	Name    string
	APIKey  string
	BaseURL string // empty keeps the client's default

	// Request defaults applied when the content settings leave them unset.
	DefaultSeed  *int
	User         string
	Stop         []string
	ImageQuality string
	ImageStyle   string
	ImageFormat  string

	HTTPClient *http.Client
}

type OpenAIProvider struct {
	name   string
	client *openai.Client
	opts   OpenAIOptions
}

func NewOpenAIProvider(opts OpenAIOptions) *OpenAIProvider {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	if opts.HTTPClient != nil {
		cfg.HTTPClient = opts.HTTPClient
	}
	return &OpenAIProvider{
		name:   opts.Name,
		client: openai.NewClientWithConfig(cfg),
		opts:   opts,
	}
}

// NewAtomaProvider returns an OpenAI-compatible provider preset with the
// request defaults Atoma deployments expect.
func NewAtomaProvider(apiKey, baseURL string) *OpenAIProvider {
	seed := 123
	return NewOpenAIProvider(OpenAIOptions{
		Name:         "atoma",
		APIKey:       apiKey,
		BaseURL:      baseURL,
		DefaultSeed:  &seed,
		User:         "user-1234",
		Stop:         []string{`json(["stop", "halt"])`},
		ImageQuality: "hd",
		ImageStyle:   "vivid",
		ImageFormat:  openai.CreateImageResponseFormatURL,
	})
}

func (p *OpenAIProvider) Name() string {
	return p.name
}

func (p *OpenAIProvider) ListModels(ctx context.Context) ([]string, error) {
	res, err := p.client.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s list models request failed: %w", p.name, err)
	}

	models := make([]string, 0, len(res.Models))
	for _, m := range res.Models {
		models = append(models, m.ID)
	}
	return models, nil
}

func (p *OpenAIProvider) Complete(ctx context.Context, prompt, model string, settings store.Settings) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: genericSystemInstruction},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Seed: p.opts.DefaultSeed,
		Stop: p.opts.Stop,
		User: p.opts.User,
	}
	if settings.Temperature != nil {
		req.Temperature = explicitFloat(*settings.Temperature)
	}
	if settings.TopP != nil {
		req.TopP = explicitFloat(*settings.TopP)
	}
	if settings.MaxTokens != nil {
		req.MaxTokens = *settings.MaxTokens
	}
	if settings.FrequencyPenalty != nil {
		req.FrequencyPenalty = float32(*settings.FrequencyPenalty)
	}
	if settings.PresencePenalty != nil {
		req.PresencePenalty = float32(*settings.PresencePenalty)
	}
	if settings.N != nil {
		req.N = *settings.N
	}
	if settings.Seed != nil {
		req.Seed = settings.Seed
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%s chat completion request failed: %w", p.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s returned no choices", p.name)
	}
	return resp.Choices[0].Message.Content, nil
}

// explicitFloat converts v for a go-openai field tagged omitempty. A zero
// would be dropped from the request, so it is sent as the smallest
// positive float32 instead.
func explicitFloat(v float64) float32 {
	if v == 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(v)
}

func (p *OpenAIProvider) GenerateImage(ctx context.Context, prompt, model string, settings store.Settings) (string, error) {
	req := openai.ImageRequest{
		Prompt:         prompt,
		Model:          model,
		Size:           settings.Size,
		Quality:        settings.Quality,
		Style:          settings.Style,
		ResponseFormat: p.opts.ImageFormat,
		User:           p.opts.User,
	}
	if settings.N != nil {
		req.N = *settings.N
	}
	if req.Quality == "" {
		req.Quality = p.opts.ImageQuality
	}
	if req.Style == "" {
		req.Style = p.opts.ImageStyle
	}

	resp, err := p.client.CreateImage(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%s image request failed: %w", p.name, err)
	}
	if len(resp.Data) == 0 {
		return "", fmt.Errorf("%s returned no image data", p.name)
	}
	if resp.Data[0].URL != "" {
		return resp.Data[0].URL, nil
	}
	return resp.Data[0].B64JSON, nil
}
