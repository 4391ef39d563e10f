package sqlite

import (
	"context"
	"time"

	"github.com/anihangout/hangout/internal/domain"
)

type notificationRow struct {
	NotificationModel
	ActorUsername string
}

func toNotification(item notificationRow) domain.Notification {
	return domain.Notification{
		ID:            item.ID,
		RecipientID:   item.RecipientID,
		ActorID:       item.ActorID,
		ActorUsername: item.ActorUsername,
		Type:          item.Type,
		TargetType:    item.TargetType,
		TargetID:      item.TargetID,
		Message:       item.Message,
		ReadAt:        item.ReadAt,
		CreatedAt:     item.CreatedAt,
	}
}

func (r *Repository) CreateNotification(ctx context.Context, value domain.Notification) (domain.Notification, error) {
	m := NotificationModel{
		RecipientID: value.RecipientID,
		ActorID:     value.ActorID,
		Type:        value.Type,
		TargetType:  value.TargetType,
		TargetID:    value.TargetID,
		Message:     value.Message,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.Notification{}, mapErr(err)
	}
	out := toNotification(notificationRow{NotificationModel: m})
	out.ActorUsername = value.ActorUsername
	return out, nil
}

func (r *Repository) ListNotifications(ctx context.Context, recipientID uint, unreadOnly bool, limit int) ([]domain.Notification, error) {
	q := r.db.WithContext(ctx).Table("notifications").
		Select("notifications.*, users.username AS actor_username").
		Joins("LEFT JOIN users ON users.id = notifications.actor_id").
		Where("notifications.recipient_id = ?", recipientID)
	if unreadOnly {
		q = q.Where("notifications.read_at IS NULL")
	}
	rows := make([]notificationRow, 0)
	if err := q.Order("notifications.id DESC").Limit(limit).Scan(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.Notification, 0, len(rows))
	for _, item := range rows {
		result = append(result, toNotification(item))
	}
	return result, nil
}

func (r *Repository) CountUnreadNotifications(ctx context.Context, recipientID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&NotificationModel{}).
		Where("recipient_id = ? AND read_at IS NULL", recipientID).
		Count(&count).Error
	return count, err
}

// MarkNotificationRead reports false when no notification with that id belongs to the recipient.
func (r *Repository) MarkNotificationRead(ctx context.Context, id, recipientID uint, at time.Time) (bool, error) {
	var m NotificationModel
	err := r.db.WithContext(ctx).Where("id = ? AND recipient_id = ?", id, recipientID).First(&m).Error
	if err != nil {
		if mapErr(err) == domain.ErrNotFound {
			return false, nil
		}
		return false, err
	}
	if m.ReadAt != nil {
		return true, nil
	}
	err = r.db.WithContext(ctx).Model(&NotificationModel{}).Where("id = ?", id).Update("read_at", at).Error
	return err == nil, err
}

func (r *Repository) MarkAllNotificationsRead(ctx context.Context, recipientID uint, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&NotificationModel{}).
		Where("recipient_id = ? AND read_at IS NULL", recipientID).
		Update("read_at", at)
	return res.RowsAffected, res.Error
}

func (r *Repository) DeleteReadNotificationsBefore(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("read_at IS NOT NULL AND read_at < ?", before).Delete(&NotificationModel{})
	return res.RowsAffected, res.Error
}
