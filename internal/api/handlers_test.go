package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/promptproof/market/internal/core"
	"github.com/promptproof/market/internal/store"
	"github.com/promptproof/market/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	name   string
	models []string

	mu  sync.Mutex
	err error
}

func (p *stubProvider) setErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func (p *stubProvider) failure() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) ListModels(context.Context) ([]string, error) { return p.models, nil }

func (p *stubProvider) Complete(_ context.Context, prompt, model string, _ store.Settings) (string, error) {
	if err := p.failure(); err != nil {
		return "", err
	}
	return model + ": " + prompt, nil
}

func (p *stubProvider) GenerateImage(_ context.Context, _, model string, _ store.Settings) (string, error) {
	if err := p.failure(); err != nil {
		return "", err
	}
	return "https://images.example/" + model + ".png", nil
}

func newTestServer(t *testing.T) (*httptest.Server, *stubProvider) {
	t.Helper()
	logger := utils.DiscardLogger()
	openai := &stubProvider{name: "openai", models: []string{"gpt-4o-mini", "gpt-3.5-turbo", "dall-e-2"}}
	atoma := &stubProvider{name: "atoma", models: []string{"deepseek-r1"}}

	registry, err := core.NewProviderRegistry(context.Background(), logger, core.RegistryOptions{
		DefaultProvider:   "openai",
		DefaultTextModel:  "gpt-3.5-turbo",
		DefaultImageModel: "dall-e-2",
	}, atoma, openai)
	require.NoError(t, err)

	svc := core.NewMarketplaceService(store.NewMemoryStore(), registry, core.ServiceDefaults{
		TextModel:    "gpt-3.5-turbo",
		ImageModel:   "dall-e-2",
		TextSettings: store.Settings{Temperature: store.Float64(0.7)},
	}, logger)

	server := httptest.NewServer(NewRouter(NewAPIHandler(svc, logger), logger, []string{"*"}))
	t.Cleanup(server.Close)
	return server, openai
}

func do(t *testing.T, method, url string, body any) (int, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func doList(t *testing.T, url string) (int, []any) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out []any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestHealthEndpoints(t *testing.T) {
	server, _ := newTestServer(t)

	status, body := do(t, http.MethodGet, server.URL+"/healthcheck", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])

	status, body = do(t, http.MethodGet, server.URL+"/api/v1/test", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Success", body["message"])
	assert.Equal(t, []any{}, body["data"])
}

func TestMarketplaceFlow(t *testing.T) {
	server, _ := newTestServer(t)
	api := server.URL + "/api/v1"

	for _, id := range []string{"U1", "U2", "U3"} {
		status, body := do(t, http.MethodPost, api+"/users", map[string]any{"id": id, "username": "user " + id})
		require.Equal(t, http.StatusOK, status, body)
	}

	status, body := do(t, http.MethodPost, api+"/content/add_text_completion", map[string]any{
		"owner_id":    "U1",
		"title":       "Joke Bot",
		"description": "You are a comedian",
		"llm_model":   "gpt-4o-mini",
		"price":       2.5,
	})
	require.Equal(t, http.StatusOK, status, body)
	contentID, _ := body["id"].(string)
	require.NotEmpty(t, contentID)
	assert.Equal(t, 0.7, body["llm_settings"].(map[string]any)["temperature"])

	status, body = do(t, http.MethodPost, api+"/content/purchase", map[string]any{"user_id": "U2", "content_id": contentID})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "U2", body["user_id"])

	status, body = do(t, http.MethodPost, api+"/content/purchase", map[string]any{"user_id": "U2", "content_id": contentID})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, core.ErrDuplicatePurchase.Error(), body["detail"])

	status, _ = do(t, http.MethodPost, api+"/content/purchase", map[string]any{"user_id": "U9", "content_id": contentID})
	assert.Equal(t, http.StatusNotFound, status)

	status, body = do(t, http.MethodPost, api+"/content/test_chat_completion", map[string]any{
		"query": "tell a joke", "content_id": contentID, "user_id": "U2",
	})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "gpt-4o-mini: ## Description:\nYou are a comedian\n## User Query:\ntell a joke", body["response"])

	status, _ = do(t, http.MethodPost, api+"/content/test_chat_completion", map[string]any{
		"query": "tell a joke", "content_id": contentID, "user_id": "U3",
	})
	assert.Equal(t, http.StatusForbidden, status)

	status, body = do(t, http.MethodGet, api+"/content/get_content/"+contentID, nil)
	require.Equal(t, http.StatusOK, status)
	results := body["metadata"].(map[string]any)["test_results"].([]any)
	assert.Len(t, results, 1)

	status, body = do(t, http.MethodGet, api+"/content/total_sold/"+contentID, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1.0, body["total_sold"])

	status, body = do(t, http.MethodGet, api+"/users/U2/total_purchased", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1.0, body["total_purchased"])

	status, body = do(t, http.MethodGet, api+"/users/U1/total_sold", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1.0, body["total_sold"])

	status, list := doList(t, api+"/users/U2/purchases")
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, list, 1)

	status, list = doList(t, api+"/users/U1/content")
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, list, 1)

	status, list = doList(t, api+"/content/get_n_items?n=5")
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, list, 1)

	status, body = do(t, http.MethodPost, api+"/content/search", map[string]any{"query": "joke"})
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, body["results"], 1)
}

func TestErrorMapping(t *testing.T) {
	server, openai := newTestServer(t)
	api := server.URL + "/api/v1"

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"unknown user", http.MethodGet, "/users/nobody", nil, http.StatusNotFound},
		{"unknown content", http.MethodGet, "/content/get_content/nope", nil, http.StatusNotFound},
		{"unknown content sales", http.MethodGet, "/content/total_sold/nope", nil, http.StatusNotFound},
		{"bad n", http.MethodGet, "/content/get_n_items?n=many", nil, http.StatusBadRequest},
		{"missing username", http.MethodPost, "/users", map[string]any{"id": "x"}, http.StatusBadRequest},
		{"missing title", http.MethodPost, "/content/add_text_completion", map[string]any{"description": "d"}, http.StatusBadRequest},
		{"missing settings", http.MethodPost, "/content/test_chat_completion", map[string]any{"query": "hi"}, http.StatusBadRequest},
		{"purchase unknown content", http.MethodPost, "/content/purchase", map[string]any{"user_id": "U1", "content_id": "nope"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, tt.method, api+tt.path, tt.body)
			assert.Equal(t, tt.status, status)
			assert.NotEmpty(t, body["detail"])
		})
	}

	t.Run("malformed body", func(t *testing.T) {
		resp, err := http.Post(api+"/content/search", "application/json", bytes.NewBufferString("{"))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("duplicate user id", func(t *testing.T) {
		status, _ := do(t, http.MethodPost, api+"/users", map[string]any{"id": "dup", "username": "a"})
		require.Equal(t, http.StatusOK, status)
		status, _ = do(t, http.MethodPost, api+"/users", map[string]any{"id": "dup", "username": "b"})
		assert.Equal(t, http.StatusConflict, status)
	})

	t.Run("provider failure", func(t *testing.T) {
		openai.setErr(errors.New("upstream exploded"))
		defer openai.setErr(nil)

		status, body := do(t, http.MethodPost, api+"/content/test_chat_completion", map[string]any{
			"query": "hi", "llm_settings": map[string]any{"temperature": 0.1},
		})
		assert.Equal(t, http.StatusBadGateway, status)
		assert.Equal(t, "model provider request failed", body["detail"])
	})
}

func TestModelEndpoints(t *testing.T) {
	server, _ := newTestServer(t)
	api := server.URL + "/api/v1"

	status, body := do(t, http.MethodGet, api+"/content/list_model_names", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{"deepseek-r1"}, body["atoma"])
	assert.Len(t, body["openai"], 3)

	status, body = do(t, http.MethodPost, api+"/content/test_chat_completion", map[string]any{
		"query": "hi", "llm_model": "not-a-model", "llm_settings": map[string]any{"temperature": 0.1},
	})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "gpt-3.5-turbo: hi", body["response"])

	status, body = do(t, http.MethodPost, api+"/content/test_image_gen", map[string]any{"query": "a cat"})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "https://images.example/dall-e-2.png", body["response"])

	status, body = do(t, http.MethodPost, api+"/content/add_image_generation", map[string]any{
		"owner_id": "U1", "title": "Cats", "description": "Watercolor cats",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "dall-e-2", body["llm_model"])
	assert.Equal(t, "image", body["metadata"].(map[string]any)["content_type"])
}
