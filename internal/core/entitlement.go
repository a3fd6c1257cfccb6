package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/promptproof/market/internal/store"
)

// Entitlements decides whether a user may test a content item and records
// purchases. It is the only writer of purchases, so holding mu around
// check-then-insert keeps one purchase per (user, content) pair.
type Entitlements struct {
	store  store.Store
	mu     sync.Mutex
	logger *log.Logger
}

func NewEntitlements(s store.Store, logger *log.Logger) *Entitlements {
	return &Entitlements{store: s, logger: logger}
}

// Authorize returns the content when userID holds a purchase for it.
// A missing content item is reported before a missing purchase.
func (e *Entitlements) Authorize(ctx context.Context, userID, contentID string) (*store.Content, error) {
	content, err := e.store.GetContent(ctx, contentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load content %s: %w", contentID, err)
	}
	if content == nil {
		return nil, ErrContentNotFound
	}

	purchases, err := e.store.GetPurchasesByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load purchases for user %s: %w", userID, err)
	}
	for _, p := range purchases {
		if p.ContentID == contentID {
			return content, nil
		}
	}

	e.logger.Info("Entitlement denied", "user", userID, "content", contentID)
	return nil, ErrEntitlementDenied
}

// RecordPurchase checks, in order, that the content exists, that the user
// has not bought it yet and that the user exists, then stores the purchase.
func (e *Entitlements) RecordPurchase(ctx context.Context, userID, contentID string) (*store.Purchase, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	content, err := e.store.GetContent(ctx, contentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load content %s: %w", contentID, err)
	}
	if content == nil {
		return nil, ErrContentNotFound
	}

	existing, err := e.store.GetPurchasesByContent(ctx, contentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load purchases for content %s: %w", contentID, err)
	}
	for _, p := range existing {
		if p.UserID == userID {
			e.logger.Info("Duplicate purchase rejected", "user", userID, "content", contentID)
			return nil, ErrDuplicatePurchase
		}
	}

	user, err := e.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user %s: %w", userID, err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	purchase, err := e.store.AddPurchase(ctx, &store.Purchase{UserID: userID, ContentID: contentID})
	if err != nil {
		return nil, fmt.Errorf("failed to record purchase: %w", err)
	}
	e.logger.Info("Purchase recorded", "id", purchase.ID, "user", userID, "content", contentID)
	return purchase, nil
}
