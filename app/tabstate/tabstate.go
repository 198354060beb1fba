// Package tabstate holds per-tab client state: success-reconciliation markers keyed by
// checkout session id and one-shot flags. A tab's state lives as long as the tab, which
// the stores model as a sliding TTL.
package tabstate

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-billing-bff/app/entity"
)

const (
	DefaultTabTTL = 12 * time.Hour

	FlagPaymentCompleted = "payment_completed"

	MaxTabIDLength = 128
)

var (
	ErrTabRequired = errors.New("tab id is required")
	ErrTabInvalid  = errors.New("tab id must be at most 128 letters, digits, '-' or '_'")
)

// Store implementations slide a tab's TTL on every access to any of its state.
type Store interface {
	// GetMarker returns nil when the session has not been seen in the tab.
	GetMarker(ctx context.Context, tabID, sessionID string) (*entity.SessionMarker, error)
	// ClaimMarker records a processing marker only if none exists and reports whether
	// this caller won the claim.
	ClaimMarker(ctx context.Context, tabID, sessionID string) (bool, error)
	SaveMarker(ctx context.Context, tabID string, marker *entity.SessionMarker) error
	SetFlag(ctx context.Context, tabID, name string) error
	// ConsumeFlag reads and clears a flag.
	ConsumeFlag(ctx context.Context, tabID, name string) (bool, error)
	CloseTab(ctx context.Context, tabID string) error
}

func normalizeTab(tabID string) (string, error) {
	tabID = strings.TrimSpace(tabID)
	if tabID == "" {
		return "", ErrTabRequired
	}
	if !ValidTabID(tabID) {
		return "", ErrTabInvalid
	}
	return tabID, nil
}

// ValidTabID reports whether id fits the tab id alphabet: ASCII letters, digits,
// '-' and '_', at most MaxTabIDLength long.
func ValidTabID(id string) bool {
	if id == "" || len(id) > MaxTabIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}
