// Package prefs provides per-user notification preferences.
package prefs

import (
	"errors"
	"time"

	"github.com/partnerhub/notify/internal/domain"
)

// Repository errors.
var ErrNotFound = errors.New("notification preference not found")

// BatchMode controls how emails for an event type are delivered to a user.
type BatchMode string

// Batch modes.
const (
	BatchModeImmediate BatchMode = "immediate"
	BatchModeWindowed  BatchMode = "windowed"
)

// Valid reports whether the mode is known.
func (m BatchMode) Valid() bool {
	return m == BatchModeImmediate || m == BatchModeWindowed
}

// Preference holds a user's channel opt-out and batching settings.
// A row is created lazily with defaults on first access.
type Preference struct {
	UserID       string                         `json:"user_id"`
	EmailEnabled bool                           `json:"email_enabled"`
	BatchModes   map[domain.EventType]BatchMode `json:"batch_modes"`
	CreatedAt    time.Time                      `json:"created_at"`
	UpdatedAt    time.Time                      `json:"updated_at"`
}

// Default returns the preference applied to users without a stored row:
// email enabled, no per-event overrides.
func Default(userID string) *Preference {
	return &Preference{
		UserID:       userID,
		EmailEnabled: true,
		BatchModes:   make(map[domain.EventType]BatchMode),
	}
}

// ModeFor returns the user's override for an event type, or empty when the
// system default applies.
func (p *Preference) ModeFor(t domain.EventType) BatchMode {
	return p.BatchModes[t]
}
