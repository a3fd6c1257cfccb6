package core

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/promptproof/market/internal/store"
)

// ServiceDefaults are applied when a request or content item leaves the
// model or its settings unset.
type ServiceDefaults struct {
	TextModel     string
	ImageModel    string
	TextSettings  store.Settings
	ImageSettings store.Settings
}

// TestRequest runs a query either against a purchased content item
// (ContentID and UserID) or directly against a model (Model and Settings).
type TestRequest struct {
	Query     string          `json:"query"`
	Model     string          `json:"llm_model,omitempty"`
	Settings  *store.Settings `json:"llm_settings,omitempty"`
	ContentID string          `json:"content_id,omitempty"`
	UserID    string          `json:"user_id,omitempty"`
}

type MarketplaceService struct {
	store        store.Store
	entitlements *Entitlements
	registry     *ProviderRegistry
	defaults     ServiceDefaults
	logger       *log.Logger

	// resultsMu guards the read-modify-write of test_results.
	resultsMu sync.Mutex
}

func NewMarketplaceService(s store.Store, registry *ProviderRegistry, defaults ServiceDefaults, logger *log.Logger) *MarketplaceService {
	return &MarketplaceService{
		store:        s,
		entitlements: NewEntitlements(s, logger.With("component", "entitlements")),
		registry:     registry,
		defaults:     defaults,
		logger:       logger,
	}
}

// Users

func (s *MarketplaceService) AddUser(ctx context.Context, user *store.User) (*store.User, error) {
	if strings.TrimSpace(user.Username) == "" {
		return nil, invalidRequest("username is required")
	}
	created, err := s.store.AddUser(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	s.logger.Info("User created", "id", created.ID, "username", created.Username)
	return created, nil
}

func (s *MarketplaceService) GetUser(ctx context.Context, id string) (*store.User, error) {
	user, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *MarketplaceService) PurchasesByUser(ctx context.Context, userID string) ([]store.Purchase, error) {
	return s.store.GetPurchasesByUser(ctx, userID)
}

// Content

// CreateTextContent lists a new text completion item. Model and settings
// default to the configured text defaults.
func (s *MarketplaceService) CreateTextContent(ctx context.Context, content *store.Content) (*store.Content, error) {
	return s.createContent(ctx, content, s.defaults.TextModel, s.defaults.TextSettings)
}

// CreateImageContent lists a new image generation item and tags its
// metadata with content_type "image".
func (s *MarketplaceService) CreateImageContent(ctx context.Context, content *store.Content) (*store.Content, error) {
	if content.Metadata == nil {
		content.Metadata = map[string]any{}
	}
	content.Metadata["content_type"] = "image"
	return s.createContent(ctx, content, s.defaults.ImageModel, s.defaults.ImageSettings)
}

func (s *MarketplaceService) createContent(ctx context.Context, content *store.Content, model string, settings store.Settings) (*store.Content, error) {
	if strings.TrimSpace(content.Title) == "" {
		return nil, invalidRequest("title is required")
	}
	if content.Price < 0 {
		return nil, invalidRequest("price must not be negative")
	}
	if content.ModelName == "" {
		content.ModelName = model
	}
	if content.Settings.IsZero() {
		content.Settings = settings
	}

	created, err := s.store.AddContent(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("failed to create content: %w", err)
	}
	s.logger.Info("Content created", "id", created.ID, "owner", created.OwnerID, "model", created.ModelName)
	return created, nil
}

func (s *MarketplaceService) GetContent(ctx context.Context, id string) (*store.Content, error) {
	content, err := s.store.GetContent(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get content: %w", err)
	}
	if content == nil {
		return nil, ErrContentNotFound
	}
	return content, nil
}

func (s *MarketplaceService) SearchContent(ctx context.Context, query string) ([]store.Content, error) {
	return s.store.SearchContent(ctx, query)
}

func (s *MarketplaceService) ContentByOwner(ctx context.Context, ownerID string) ([]store.Content, error) {
	return s.store.GetContentByOwner(ctx, ownerID)
}

func (s *MarketplaceService) FirstN(ctx context.Context, n int) ([]store.Content, error) {
	if n < 0 {
		return nil, invalidRequest("n must not be negative")
	}
	return s.store.GetNItems(ctx, n)
}

// Purchases and aggregates

func (s *MarketplaceService) PurchaseContent(ctx context.Context, userID, contentID string) (*store.Purchase, error) {
	if userID == "" || contentID == "" {
		return nil, invalidRequest("user_id and content_id are required")
	}
	return s.entitlements.RecordPurchase(ctx, userID, contentID)
}

// TotalSold counts the purchases of one content item.
func (s *MarketplaceService) TotalSold(ctx context.Context, contentID string) (int, error) {
	if _, err := s.GetContent(ctx, contentID); err != nil {
		return 0, err
	}
	purchases, err := s.store.GetPurchasesByContent(ctx, contentID)
	if err != nil {
		return 0, fmt.Errorf("failed to count sales: %w", err)
	}
	return len(purchases), nil
}

// TotalPurchased counts the purchases made by one user.
func (s *MarketplaceService) TotalPurchased(ctx context.Context, userID string) (int, error) {
	if _, err := s.GetUser(ctx, userID); err != nil {
		return 0, err
	}
	purchases, err := s.store.GetPurchasesByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to count purchases: %w", err)
	}
	return len(purchases), nil
}

// TotalSoldByOwner counts the purchases across every item a user owns.
func (s *MarketplaceService) TotalSoldByOwner(ctx context.Context, ownerID string) (int, error) {
	if _, err := s.GetUser(ctx, ownerID); err != nil {
		return 0, err
	}
	owned, err := s.store.GetContentByOwner(ctx, ownerID)
	if err != nil {
		return 0, fmt.Errorf("failed to list owned content: %w", err)
	}

	total := 0
	for _, c := range owned {
		purchases, err := s.store.GetPurchasesByContent(ctx, c.ID)
		if err != nil {
			return 0, fmt.Errorf("failed to count sales of %s: %w", c.ID, err)
		}
		total += len(purchases)
	}
	return total, nil
}

func (s *MarketplaceService) ListModelNames() map[string][]string {
	return s.registry.Models()
}

// Tests

// TestChatCompletion runs req through a text model. When req names a
// content item the caller must have bought it, and the exchange is appended
// to the item's test_results.
func (s *MarketplaceService) TestChatCompletion(ctx context.Context, req TestRequest) (string, error) {
	var (
		content  *store.Content
		model    string
		settings store.Settings
		prompt   string
	)

	if req.ContentID != "" {
		var err error
		if content, err = s.authorize(ctx, req); err != nil {
			return "", err
		}
		model = content.ModelName
		settings = contentSettings(content, req.Settings)
		prompt = Compose(req.Query, content.HiddenPrompt(), content.Description)
	} else {
		if req.Settings == nil || req.Settings.IsZero() {
			return "", invalidRequest("either content_id or llm_settings must be provided")
		}
		model = req.Model
		if model == "" {
			model = s.defaults.TextModel
		}
		settings = *req.Settings
		prompt = Compose(req.Query, "", "")
	}

	response, err := s.registry.Route(ctx, model, settings, prompt, TextCompletion)
	if err != nil {
		return "", err
	}

	if content != nil {
		if err := s.recordTestResult(ctx, content.ID, req.Query, response); err != nil {
			s.logger.Warn("Failed to save test result", "content", content.ID, "err", err)
		}
	}
	return response, nil
}

// recordTestResult appends one exchange to the stored item's test_results.
// The item is re-read under the lock so concurrent tests do not overwrite
// each other's entries.
func (s *MarketplaceService) recordTestResult(ctx context.Context, contentID, query, response string) error {
	s.resultsMu.Lock()
	defer s.resultsMu.Unlock()

	current, err := s.store.GetContent(ctx, contentID)
	if err != nil {
		return err
	}
	if current == nil {
		return ErrContentNotFound
	}
	current.AppendTestResult(query, response)
	return s.store.UpdateContentMetadata(ctx, contentID, current.Metadata)
}

// TestImageGeneration is TestChatCompletion for image models. Results are
// not recorded on the content item.
func (s *MarketplaceService) TestImageGeneration(ctx context.Context, req TestRequest) (string, error) {
	var (
		model    string
		settings store.Settings
		prompt   string
	)

	if req.ContentID != "" {
		content, err := s.authorize(ctx, req)
		if err != nil {
			return "", err
		}
		model = content.ModelName
		settings = contentSettings(content, req.Settings)
		prompt = ComposeImage(req.Query, content.HiddenPrompt(), content.Description)
	} else {
		model = req.Model
		if model == "" {
			model = s.defaults.ImageModel
		}
		settings = s.defaults.ImageSettings
		if req.Settings != nil && !req.Settings.IsZero() {
			settings = *req.Settings
		}
		prompt = ComposeImage(req.Query, "", "")
	}

	return s.registry.Route(ctx, model, settings, prompt, ImageGeneration)
}

func (s *MarketplaceService) authorize(ctx context.Context, req TestRequest) (*store.Content, error) {
	if req.UserID == "" {
		return nil, invalidRequest("user_id is required")
	}
	return s.entitlements.Authorize(ctx, req.UserID, req.ContentID)
}

// contentSettings prefers what the owner stored and falls back to the
// request only when the item has none.
func contentSettings(content *store.Content, requested *store.Settings) store.Settings {
	if content.Settings.IsZero() && requested != nil {
		return *requested
	}
	return content.Settings
}
