package core

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrContentNotFound = fmt.Errorf("content %w", ErrNotFound)
	ErrUserNotFound    = fmt.Errorf("user %w", ErrNotFound)

	ErrEntitlementDenied = errors.New("user has not purchased this content")
	ErrDuplicatePurchase = errors.New("user has already purchased this content")
	ErrInvalidRequest    = errors.New("invalid request")

	ErrProviderFailure       = errors.New("provider failure")
	ErrCapabilityUnsupported = errors.New("capability not supported by provider")
)

func invalidRequest(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, msg)
}
