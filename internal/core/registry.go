package core

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/promptproof/market/internal/store"
	"github.com/promptproof/market/internal/utils"
)

type RegistryOptions struct {
	// DefaultProvider receives every model no catalog claims.
	DefaultProvider   string
	DefaultTextModel  string
	DefaultImageModel string

	ReasoningMarkers []string
	Timeout          time.Duration
}

// ProviderRegistry holds each provider's model catalog, fetched once when the
// registry is built. It is never mutated afterwards and is safe to share.
type ProviderRegistry struct {
	providers       []Provider
	catalogs        map[string][]string
	index           map[string]map[string]struct{}
	defaultProvider Provider
	opts            RegistryOptions
	logger          *log.Logger
}

// NewProviderRegistry queries every provider's catalog in order. A provider
// that cannot be reached gets an empty catalog instead of failing startup.
// The order of providers is the resolution order used by Route.
func NewProviderRegistry(ctx context.Context, logger *log.Logger, opts RegistryOptions, providers ...Provider) (*ProviderRegistry, error) {
	r := &ProviderRegistry{
		providers: providers,
		catalogs:  make(map[string][]string, len(providers)),
		index:     make(map[string]map[string]struct{}, len(providers)),
		opts:      opts,
		logger:    logger,
	}

	for _, p := range providers {
		if p.Name() == opts.DefaultProvider {
			r.defaultProvider = p
		}

		models, err := r.fetchCatalog(ctx, p)
		if err != nil {
			logger.Warn("Provider catalog unavailable, continuing without it", "provider", p.Name(), "err", err)
			models = []string{}
		}
		r.catalogs[p.Name()] = models

		set := make(map[string]struct{}, len(models))
		for _, m := range models {
			set[m] = struct{}{}
		}
		r.index[p.Name()] = set
		logger.Info("Loaded provider catalog", "provider", p.Name(), "models", len(models))
	}

	if r.defaultProvider == nil {
		return nil, fmt.Errorf("default provider %q is not registered", opts.DefaultProvider)
	}
	return r, nil
}

func (r *ProviderRegistry) fetchCatalog(ctx context.Context, p Provider) ([]string, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	return p.ListModels(ctx)
}

func (r *ProviderRegistry) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.opts.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.opts.Timeout)
}

// Models returns a copy of every provider's catalog keyed by provider name.
func (r *ProviderRegistry) Models() map[string][]string {
	out := make(map[string][]string, len(r.catalogs))
	for name, models := range r.catalogs {
		out[name] = append(make([]string, 0, len(models)), models...)
	}
	return out
}

// Resolve picks the provider and model a request for model is sent to. The
// first provider whose catalog lists model wins. Unknown models go to the
// default provider with the default model for the capability, and fallback
// is reported as true.
func (r *ProviderRegistry) Resolve(model string, capability Capability) (Provider, string, bool) {
	for _, p := range r.providers {
		if _, ok := r.index[p.Name()][model]; ok {
			return p, model, false
		}
	}
	return r.defaultProvider, r.defaultModel(capability), true
}

func (r *ProviderRegistry) defaultModel(capability Capability) string {
	if capability == ImageGeneration {
		return r.opts.DefaultImageModel
	}
	return r.opts.DefaultTextModel
}

// Route dispatches prompt to the provider serving model. Any provider error
// comes back wrapped in ErrProviderFailure. Text from reasoning models is
// returned without its thinking block.
func (r *ProviderRegistry) Route(ctx context.Context, model string, settings store.Settings, prompt string, capability Capability) (string, error) {
	p, resolved, fallback := r.Resolve(model, capability)
	if fallback {
		r.logger.Warn("Model not in any catalog, using default", "requested", model, "provider", p.Name(), "model", resolved)
	} else {
		r.logger.Debug("Routing request", "provider", p.Name(), "model", resolved, "capability", capability)
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var (
		out string
		err error
	)
	switch capability {
	case TextCompletion:
		out, err = p.Complete(ctx, prompt, resolved, settings)
	case ImageGeneration:
		out, err = p.GenerateImage(ctx, prompt, resolved, settings)
	default:
		err = fmt.Errorf("unknown capability %d", capability)
	}
	if err != nil {
		r.logger.Error("Provider call failed", "provider", p.Name(), "model", resolved, "capability", capability, "err", err)
		return "", fmt.Errorf("%w: %s: %w", ErrProviderFailure, p.Name(), err)
	}

	if capability == TextCompletion && utils.IsReasoningModel(resolved, r.opts.ReasoningMarkers) {
		out = utils.StripReasoning(out)
	}
	return out, nil
}
