package application

import (
	"context"

	"github.com/anihangout/hangout/internal/domain"
)

type notice struct {
	recipientID uint
	actor       domain.User
	kind        string
	targetType  string
	targetID    uint
	message     string
}

// notify stores and pushes a notification. Self-actions and recipients who
// turned notifications off are skipped. Failures are logged, never returned.
func (s *Service) notify(ctx context.Context, n notice) {
	if n.recipientID == 0 || n.recipientID == n.actor.ID {
		return
	}
	if !s.boolPreference(ctx, n.recipientID, PrefNotificationsEnabled, true) {
		return
	}
	created, err := s.repo.CreateNotification(ctx, domain.Notification{
		RecipientID:   n.recipientID,
		ActorID:       n.actor.ID,
		ActorUsername: n.actor.Username,
		Type:          n.kind,
		TargetType:    n.targetType,
		TargetID:      n.targetID,
		Message:       n.message,
	})
	if err != nil {
		s.log.WithError(err).WithField("type", n.kind).Warn("create notification")
		return
	}
	s.publish(domain.UserTopic(n.recipientID), domain.EventNotificationCreated, created)
}

func (s *Service) ListNotifications(ctx context.Context, userID uint, unreadOnly bool, limit int) ([]domain.Notification, error) {
	limit = clampLimit(limit, 50, 200)
	return s.repo.ListNotifications(ctx, userID, unreadOnly, limit)
}

func (s *Service) UnreadNotificationCount(ctx context.Context, userID uint) (int64, error) {
	return s.repo.CountUnreadNotifications(ctx, userID)
}

// MarkNotificationRead only touches notifications addressed to userID.
func (s *Service) MarkNotificationRead(ctx context.Context, userID, notificationID uint) error {
	if notificationID == 0 {
		return invalidf("notification id is required")
	}
	ok, err := s.repo.MarkNotificationRead(ctx, notificationID, userID, s.now())
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Service) MarkAllNotificationsRead(ctx context.Context, userID uint) (int64, error) {
	return s.repo.MarkAllNotificationsRead(ctx, userID, s.now())
}
