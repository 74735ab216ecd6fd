package prefs

import (
	"context"
	"errors"
	"fmt"

	"github.com/partnerhub/notify/internal/domain"
)

// Repository defines data access for notification preferences.
type Repository interface {
	Get(ctx context.Context, userID string) (*Preference, error)
	Upsert(ctx context.Context, pref *Preference) error
}

// Service resolves and updates user notification preferences.
type Service struct {
	repo Repository
}

// NewService creates a new preferences service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Resolve returns the user's preference, creating the default row on first
// access.
func (s *Service) Resolve(ctx context.Context, userID string) (*Preference, error) {
	pref, err := s.repo.Get(ctx, userID)
	if err == nil {
		return pref, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("get preference: %w", err)
	}

	pref = Default(userID)
	if err := s.repo.Upsert(ctx, pref); err != nil {
		return nil, fmt.Errorf("create default preference: %w", err)
	}
	return pref, nil
}

// Update applies a partial change to the user's preference.
// A nil emailEnabled leaves the flag untouched; batchModes entries overwrite
// existing overrides per event type (an immediate/windowed value), and are
// validated by the caller.
func (s *Service) Update(ctx context.Context, userID string, emailEnabled *bool, batchModes map[domain.EventType]BatchMode) (*Preference, error) {
	pref, err := s.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}

	if emailEnabled != nil {
		pref.EmailEnabled = *emailEnabled
	}
	for t, m := range batchModes {
		pref.BatchModes[t] = m
	}

	if err := s.repo.Upsert(ctx, pref); err != nil {
		return nil, fmt.Errorf("update preference: %w", err)
	}
	return pref, nil
}
