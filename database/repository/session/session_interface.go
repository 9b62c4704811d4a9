package sessionRepo

import (
	"context"
	"errors"

	"flexify/models"
)

// ErrCorruptSession marks stored session data that cannot be decoded.
var ErrCorruptSession = errors.New("persisted session is corrupt")

// Storage keys, one per persisted session field.
const (
	KeyToken        = "sf_token"
	KeyRefreshToken = "sf_refresh_token"
	KeyUser         = "sf_user"
	KeyRole         = "sf_role"
)

// Keys lists the storage keys in a fixed order.
var Keys = []string{KeyToken, KeyRefreshToken, KeyUser, KeyRole}

// SessionStorage persists the session across restarts. Implementations write
// and clear the four keys as one set; a reader never observes a subset of a
// Save or Clear.
type SessionStorage interface {
	// Load returns whatever is stored. Missing keys come back as "".
	Load(ctx context.Context) (models.PersistedSession, error)
	// Save replaces all four keys.
	Save(ctx context.Context, s models.PersistedSession) error
	// Clear removes all four keys.
	Clear(ctx context.Context) error
}
