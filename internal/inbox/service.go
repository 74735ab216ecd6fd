package inbox

import (
	"context"
)

// Service provides user inbox reads.
type Service struct {
	repo Repository
}

// NewService creates a new inbox service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns a page of the user's inbox, newest first.
func (s *Service) List(ctx context.Context, userID string, filter ListFilter) ([]Item, int64, error) {
	return s.repo.List(ctx, userID, filter.Normalize())
}

// UnreadCount returns the number of unread items for the user.
func (s *Service) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return s.repo.UnreadCount(ctx, userID)
}

// MarkRead flags one of the user's items as read.
func (s *Service) MarkRead(ctx context.Context, userID, itemID string) error {
	return s.repo.MarkRead(ctx, userID, itemID)
}

// MarkAllRead flags all of the user's unread items and returns the count.
func (s *Service) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return s.repo.MarkAllRead(ctx, userID)
}
