package application

import (
	"context"

	"github.com/anihangout/hangout/internal/domain"
)

func (s *Service) record(ctx context.Context, actorID uint, action, targetType string, targetID uint, metadata string) {
	var target *uint
	if targetID != 0 {
		target = &targetID
	}
	s.WriteActivity(ctx, &actorID, action, targetType, target, metadata)
}

// ListActivity returns the user's own activity, newest first.
func (s *Service) ListActivity(ctx context.Context, userID uint, limit int) ([]domain.ActivityRecord, error) {
	limit = clampLimit(limit, 30, 500)
	return s.repo.ListActivityLogs(ctx, &userID, limit)
}

func (s *Service) ListAllActivity(ctx context.Context, limit int) ([]domain.ActivityRecord, error) {
	limit = clampLimit(limit, 100, 1000)
	return s.repo.ListActivityLogs(ctx, nil, limit)
}
