package contracts

import (
	"context"
	"time"
)

// PresenceStore tracks which users currently hold a live connection, as
// TTL-based keys. Multiple devices refresh the same key, so presence only
// lapses once the last connection stops heartbeating.
type PresenceStore interface {
	UpdateOnlineStatus(ctx context.Context, userID string, ttl time.Duration) error
	IsOnline(ctx context.Context, userID string) (bool, error)
}
