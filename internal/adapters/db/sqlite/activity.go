package sqlite

import (
	"context"
	"time"

	"github.com/anihangout/hangout/internal/domain"
)

func (r *Repository) CreateActivityLog(ctx context.Context, value domain.ActivityLog) error {
	m := ActivityLogModel{
		ActorUserID: value.ActorUserID,
		Action:      value.Action,
		TargetType:  value.TargetType,
		TargetID:    value.TargetID,
		Metadata:    value.Metadata,
	}
	return r.db.WithContext(ctx).Create(&m).Error
}

// ListActivityLogs returns the newest entries, restricted to one actor when actorUserID is set.
func (r *Repository) ListActivityLogs(ctx context.Context, actorUserID *uint, limit int) ([]domain.ActivityRecord, error) {
	type row struct {
		ID            uint
		ActorUserID   *uint
		ActorUsername string
		Action        string
		TargetType    string
		TargetID      *uint
		Metadata      string
		CreatedAt     time.Time
	}
	where := ""
	args := make([]any, 0, 2)
	if actorUserID != nil {
		where = "WHERE a.actor_user_id = ?"
		args = append(args, *actorUserID)
	}
	args = append(args, limit)

	rows := make([]row, 0)
	err := r.db.WithContext(ctx).Raw(`
SELECT a.id,
       a.actor_user_id,
       COALESCE(u.username, '') AS actor_username,
       a.action,
       a.target_type,
       a.target_id,
       COALESCE(a.metadata, '') AS metadata,
       a.created_at
FROM activity_logs a
LEFT JOIN users u ON u.id = a.actor_user_id
`+where+`
ORDER BY a.id DESC
LIMIT ?
`, args...).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	result := make([]domain.ActivityRecord, 0, len(rows))
	for _, m := range rows {
		result = append(result, domain.ActivityRecord{
			ID:            m.ID,
			ActorUserID:   m.ActorUserID,
			ActorUsername: m.ActorUsername,
			Action:        m.Action,
			TargetType:    m.TargetType,
			TargetID:      m.TargetID,
			Metadata:      m.Metadata,
			CreatedAt:     m.CreatedAt,
		})
	}
	return result, nil
}
