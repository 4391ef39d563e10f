package sqlite

import (
	"context"
	"time"

	"github.com/anihangout/hangout/internal/domain"
)

// CreateFollow inserts the edge and reports whether it was new.
func (r *Repository) CreateFollow(ctx context.Context, followerID, followeeID uint) (domain.Follow, bool, error) {
	m := FollowModel{FollowerID: followerID, FolloweeID: followeeID}
	res := r.db.WithContext(ctx).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Attrs(FollowModel{CreatedAt: time.Now().UTC()}).
		FirstOrCreate(&m)
	if res.Error != nil {
		return domain.Follow{}, false, mapErr(res.Error)
	}
	return domain.Follow{
		ID:         m.ID,
		FollowerID: m.FollowerID,
		FolloweeID: m.FolloweeID,
		CreatedAt:  m.CreatedAt,
	}, res.RowsAffected > 0, nil
}

func (r *Repository) DeleteFollow(ctx context.Context, followerID, followeeID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Delete(&FollowModel{})
	return res.RowsAffected > 0, res.Error
}

func (r *Repository) IsFollowing(ctx context.Context, followerID, followeeID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&FollowModel{}).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Count(&count).Error
	return count > 0, err
}

func (r *Repository) ListFollowers(ctx context.Context, userID uint, limit int) ([]domain.User, error) {
	rows := make([]UserModel, 0)
	err := r.db.WithContext(ctx).
		Joins("JOIN follows f ON f.follower_id = users.id").
		Where("f.followee_id = ?", userID).
		Order("f.id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toUsers(rows), nil
}

func (r *Repository) ListFollowing(ctx context.Context, userID uint, limit int) ([]domain.User, error) {
	rows := make([]UserModel, 0)
	err := r.db.WithContext(ctx).
		Joins("JOIN follows f ON f.followee_id = users.id").
		Where("f.follower_id = ?", userID).
		Order("f.id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toUsers(rows), nil
}

func (r *Repository) CountFollowers(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&FollowModel{}).Where("followee_id = ?", userID).Count(&count).Error
	return count, err
}

func (r *Repository) CountFollowing(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&FollowModel{}).Where("follower_id = ?", userID).Count(&count).Error
	return count, err
}

func (r *Repository) FollowingIDs(ctx context.Context, userID uint) ([]uint, error) {
	ids := make([]uint, 0)
	err := r.db.WithContext(ctx).Model(&FollowModel{}).
		Where("follower_id = ?", userID).
		Pluck("followee_id", &ids).Error
	return ids, err
}

// SuggestUsers walks the follow graph outward from userID up to maxDepth hops
// and ranks users the viewer does not follow yet by how many paths reach them.
// At depth 2 the path count equals the number of mutual connections.
func (r *Repository) SuggestUsers(ctx context.Context, userID uint, maxDepth, limit int) ([]domain.UserSuggestion, error) {
	if maxDepth < 2 {
		maxDepth = 2
	}
	type row struct {
		UserID  uint
		Mutuals int
	}
	rows := make([]row, 0)
	err := r.db.WithContext(ctx).Raw(`
WITH RECURSIVE walk(depth, current_user_id, path) AS (
    SELECT 0, ?, ',' || CAST(? AS TEXT) || ','
    UNION ALL
    SELECT
        walk.depth + 1,
        f.followee_id,
        walk.path || CAST(f.followee_id AS TEXT) || ','
    FROM walk
    JOIN follows f ON f.follower_id = walk.current_user_id
    WHERE walk.depth < ?
      AND instr(walk.path, ',' || CAST(f.followee_id AS TEXT) || ',') = 0
)
SELECT walk.current_user_id AS user_id, COUNT(*) AS mutuals
FROM walk
WHERE walk.depth >= 2
  AND walk.current_user_id <> ?
  AND walk.current_user_id NOT IN (SELECT followee_id FROM follows WHERE follower_id = ?)
GROUP BY walk.current_user_id
ORDER BY mutuals DESC, walk.current_user_id ASC
LIMIT ?
`, userID, userID, maxDepth, userID, userID, limit).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []domain.UserSuggestion{}, nil
	}

	ids := make([]uint, 0, len(rows))
	for _, item := range rows {
		ids = append(ids, item.UserID)
	}
	users := make([]UserModel, 0, len(ids))
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	byID := make(map[uint]UserModel, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	result := make([]domain.UserSuggestion, 0, len(rows))
	for _, item := range rows {
		u, ok := byID[item.UserID]
		if !ok {
			continue
		}
		result = append(result, domain.UserSuggestion{User: toUser(u), Mutuals: item.Mutuals})
	}
	return result, nil
}
