package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/promptproof/market/internal/store"
)

type providerCall struct {
	capability Capability
	prompt     string
	model      string
	settings   store.Settings
}

// fakeProvider answers every call with reply (or err) and records what it
// was asked.
type fakeProvider struct {
	name    string
	models  []string
	listErr error
	reply   string
	err     error
	block   bool // wait for ctx to end instead of answering

	mu    sync.Mutex
	calls []providerCall
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) ListModels(context.Context) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.models, nil
}

func (f *fakeProvider) Complete(ctx context.Context, prompt, model string, settings store.Settings) (string, error) {
	return f.answer(ctx, providerCall{TextCompletion, prompt, model, settings})
}

func (f *fakeProvider) GenerateImage(ctx context.Context, prompt, model string, settings store.Settings) (string, error) {
	return f.answer(ctx, providerCall{ImageGeneration, prompt, model, settings})
}

func (f *fakeProvider) answer(ctx context.Context, call providerCall) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if f.err != nil {
		return "", f.err
	}
	if f.reply != "" {
		return f.reply, nil
	}
	return fmt.Sprintf("%s answered with %s", f.name, call.model), nil
}

func (f *fakeProvider) Calls() []providerCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]providerCall(nil), f.calls...)
}
