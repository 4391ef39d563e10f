package sqlite

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/anihangout/hangout/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func toChannel(m ChannelModel) domain.Channel {
	return domain.Channel{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		Kind:        m.Kind,
		CreatedBy:   m.CreatedBy,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func (r *Repository) CreateChannel(ctx context.Context, value domain.Channel) (domain.Channel, error) {
	m := ChannelModel{
		Name:        strings.TrimSpace(value.Name),
		Description: value.Description,
		Kind:        defaultString(value.Kind, domain.ChannelPublic),
		CreatedBy:   value.CreatedBy,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.Channel{}, mapErr(err)
	}
	return toChannel(m), nil
}

func (r *Repository) GetChannelByID(ctx context.Context, id uint) (domain.Channel, error) {
	var m ChannelModel
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return domain.Channel{}, mapErr(err)
	}
	return toChannel(m), nil
}

func (r *Repository) GetChannelByName(ctx context.Context, name string) (domain.Channel, error) {
	var m ChannelModel
	if err := r.db.WithContext(ctx).Where("name = ?", strings.TrimSpace(name)).First(&m).Error; err != nil {
		return domain.Channel{}, mapErr(err)
	}
	return toChannel(m), nil
}

// ListChannelsForUser returns public channels plus every channel the user is a member of.
func (r *Repository) ListChannelsForUser(ctx context.Context, userID uint, limit int) ([]domain.Channel, error) {
	rows := make([]ChannelModel, 0)
	err := r.db.WithContext(ctx).
		Where("kind = ? OR id IN (SELECT channel_id FROM channel_members WHERE user_id = ?)", domain.ChannelPublic, userID).
		Order("name ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make([]domain.Channel, 0, len(rows))
	for _, m := range rows {
		result = append(result, toChannel(m))
	}
	return result, nil
}

func toMember(m ChannelMemberModel) domain.ChannelMember {
	return domain.ChannelMember{
		ID:                m.ID,
		ChannelID:         m.ChannelID,
		UserID:            m.UserID,
		Role:              m.Role,
		LastReadMessageID: m.LastReadMessageID,
		JoinedAt:          m.JoinedAt,
	}
}

// AddMember is idempotent; an existing membership is returned unchanged.
func (r *Repository) AddMember(ctx context.Context, value domain.ChannelMember) (domain.ChannelMember, error) {
	m := ChannelMemberModel{ChannelID: value.ChannelID, UserID: value.UserID}
	err := r.db.WithContext(ctx).
		Where("channel_id = ? AND user_id = ?", value.ChannelID, value.UserID).
		Attrs(ChannelMemberModel{
			Role:     defaultString(value.Role, domain.MemberRole),
			JoinedAt: time.Now().UTC(),
		}).
		FirstOrCreate(&m).Error
	if err != nil {
		return domain.ChannelMember{}, mapErr(err)
	}
	return toMember(m), nil
}

func (r *Repository) RemoveMember(ctx context.Context, channelID, userID uint) error {
	return r.db.WithContext(ctx).
		Where("channel_id = ? AND user_id = ?", channelID, userID).
		Delete(&ChannelMemberModel{}).Error
}

func (r *Repository) GetMember(ctx context.Context, channelID, userID uint) (domain.ChannelMember, error) {
	var m ChannelMemberModel
	if err := r.db.WithContext(ctx).Where("channel_id = ? AND user_id = ?", channelID, userID).First(&m).Error; err != nil {
		return domain.ChannelMember{}, mapErr(err)
	}
	return toMember(m), nil
}

func (r *Repository) ListMembers(ctx context.Context, channelID uint) ([]domain.ChannelMember, error) {
	type row struct {
		ChannelMemberModel
		Username string
	}
	rows := make([]row, 0)
	err := r.db.WithContext(ctx).Raw(`
SELECT cm.*, u.username AS username
FROM channel_members cm
JOIN users u ON u.id = cm.user_id
WHERE cm.channel_id = ?
ORDER BY cm.joined_at ASC, cm.id ASC
`, channelID).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make([]domain.ChannelMember, 0, len(rows))
	for _, item := range rows {
		member := toMember(item.ChannelMemberModel)
		member.Username = item.Username
		result = append(result, member)
	}
	return result, nil
}

// UpdateLastRead only moves the read marker forward.
func (r *Repository) UpdateLastRead(ctx context.Context, channelID, userID, messageID uint) error {
	res := r.db.WithContext(ctx).Model(&ChannelMemberModel{}).
		Where("channel_id = ? AND user_id = ? AND last_read_message_id < ?", channelID, userID, messageID).
		Update("last_read_message_id", messageID)
	return res.Error
}

func (r *Repository) UnreadCounts(ctx context.Context, userID uint) ([]domain.UnreadCount, error) {
	rows := make([]domain.UnreadCount, 0)
	err := r.db.WithContext(ctx).Raw(`
SELECT cm.channel_id AS channel_id, COUNT(m.id) AS unread
FROM channel_members cm
LEFT JOIN messages m
  ON m.channel_id = cm.channel_id
 AND m.id > cm.last_read_message_id
 AND m.author_id <> cm.user_id
 AND m.deleted = 0
WHERE cm.user_id = ?
GROUP BY cm.channel_id
ORDER BY cm.channel_id ASC
`, userID).Scan(&rows).Error
	return rows, err
}

type messageRow struct {
	MessageModel
	AuthorUsername string
}

func toMessage(m MessageModel) domain.Message {
	return domain.Message{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		AuthorID:  m.AuthorID,
		Body:      m.Body,
		ParentID:  m.ParentID,
		FileID:    m.FileID,
		Deleted:   m.Deleted,
		EditedAt:  m.EditedAt,
		CreatedAt: m.CreatedAt,
	}
}

func toMessages(rows []messageRow) []domain.Message {
	result := make([]domain.Message, 0, len(rows))
	for _, item := range rows {
		msg := toMessage(item.MessageModel)
		msg.AuthorUsername = item.AuthorUsername
		result = append(result, msg)
	}
	return result
}

func (r *Repository) messagesQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Table("messages").
		Select("messages.*, users.username AS author_username").
		Joins("LEFT JOIN users ON users.id = messages.author_id")
}

func (r *Repository) CreateMessage(ctx context.Context, value domain.Message) (domain.Message, error) {
	m := MessageModel{
		ChannelID: value.ChannelID,
		AuthorID:  value.AuthorID,
		Body:      value.Body,
		ParentID:  value.ParentID,
		FileID:    value.FileID,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.Message{}, mapErr(err)
	}
	return r.GetMessageByID(ctx, m.ID)
}

func (r *Repository) GetMessageByID(ctx context.Context, id uint) (domain.Message, error) {
	rows := make([]messageRow, 0, 1)
	if err := r.messagesQuery(ctx).Where("messages.id = ?", id).Limit(1).Scan(&rows).Error; err != nil {
		return domain.Message{}, err
	}
	if len(rows) == 0 {
		return domain.Message{}, domain.ErrNotFound
	}
	return toMessages(rows)[0], nil
}

func (r *Repository) UpdateMessageBody(ctx context.Context, id uint, body string, editedAt time.Time) (domain.Message, error) {
	res := r.db.WithContext(ctx).Model(&MessageModel{}).
		Where("id = ? AND deleted = ?", id, false).
		Updates(map[string]any{"body": body, "edited_at": editedAt})
	if res.Error != nil {
		return domain.Message{}, res.Error
	}
	if res.RowsAffected == 0 {
		return domain.Message{}, domain.ErrNotFound
	}
	return r.GetMessageByID(ctx, id)
}

// SoftDeleteMessage clears the body and drops the reactions; the row stays so
// replies and read markers keep pointing at something.
func (r *Repository) SoftDeleteMessage(ctx context.Context, id uint) (domain.Message, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&MessageModel{}).Where("id = ?", id).
			Updates(map[string]any{"body": "", "deleted": true})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return tx.Where("message_id = ?", id).Delete(&MessageReactionModel{}).Error
	})
	if err != nil {
		return domain.Message{}, err
	}
	return r.GetMessageByID(ctx, id)
}

func (r *Repository) ListMessages(ctx context.Context, channelID uint, page domain.Page) ([]domain.Message, error) {
	q := r.messagesQuery(ctx).Where("messages.channel_id = ?", channelID)
	if page.BeforeID > 0 {
		q = q.Where("messages.id < ?", page.BeforeID)
	}
	rows := make([]messageRow, 0)
	if err := q.Order("messages.id DESC").Limit(page.Limit).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return toMessages(rows), nil
}

func (r *Repository) SearchMessages(ctx context.Context, channelID uint, query string, limit int) ([]domain.Message, error) {
	like := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
	rows := make([]messageRow, 0)
	err := r.messagesQuery(ctx).
		Where("messages.channel_id = ? AND messages.deleted = ? AND LOWER(messages.body) LIKE ?", channelID, false, like).
		Order("messages.id DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return toMessages(rows), nil
}

// ToggleReaction removes the reaction when present and adds it otherwise.
// It reports whether the reaction exists afterwards.
func (r *Repository) ToggleReaction(ctx context.Context, messageID, userID uint, emoji string) (bool, error) {
	added := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("message_id = ? AND user_id = ? AND emoji = ?", messageID, userID, emoji).
			Delete(&MessageReactionModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
		added = true
		return tx.Create(&MessageReactionModel{MessageID: messageID, UserID: userID, Emoji: emoji}).Error
	})
	if err != nil {
		return false, mapErr(err)
	}
	return added, nil
}

func (r *Repository) ListReactions(ctx context.Context, messageIDs []uint) ([]domain.MessageReaction, error) {
	if len(messageIDs) == 0 {
		return []domain.MessageReaction{}, nil
	}
	rows := make([]MessageReactionModel, 0)
	if err := r.db.WithContext(ctx).Where("message_id IN ?", messageIDs).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.MessageReaction, 0, len(rows))
	for _, m := range rows {
		result = append(result, domain.MessageReaction{
			ID:        m.ID,
			MessageID: m.MessageID,
			UserID:    m.UserID,
			Emoji:     m.Emoji,
			CreatedAt: m.CreatedAt,
		})
	}
	return result, nil
}

func (r *Repository) UpsertTyping(ctx context.Context, value domain.TypingIndicator) error {
	m := TypingIndicatorModel{ChannelID: value.ChannelID, UserID: value.UserID, ExpiresAt: value.ExpiresAt}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "channel_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"expires_at"}),
	}).Create(&m).Error
}

func (r *Repository) GetTyping(ctx context.Context, channelID, userID uint) (domain.TypingIndicator, error) {
	var m TypingIndicatorModel
	err := r.db.WithContext(ctx).Where("channel_id = ? AND user_id = ?", channelID, userID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.TypingIndicator{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.TypingIndicator{}, err
	}
	return domain.TypingIndicator{ChannelID: m.ChannelID, UserID: m.UserID, ExpiresAt: m.ExpiresAt}, nil
}

func (r *Repository) DeleteTyping(ctx context.Context, channelID, userID uint) error {
	return r.db.WithContext(ctx).
		Where("channel_id = ? AND user_id = ?", channelID, userID).
		Delete(&TypingIndicatorModel{}).Error
}

func (r *Repository) ListTyping(ctx context.Context, channelID uint, now time.Time) ([]domain.TypingIndicator, error) {
	type row struct {
		ChannelID uint
		UserID    uint
		Username  string
		ExpiresAt time.Time
	}
	rows := make([]row, 0)
	err := r.db.WithContext(ctx).Raw(`
SELECT t.channel_id, t.user_id, u.username, t.expires_at
FROM typing_indicators t
JOIN users u ON u.id = t.user_id
WHERE t.channel_id = ? AND t.expires_at > ?
ORDER BY u.username ASC
`, channelID, now).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make([]domain.TypingIndicator, 0, len(rows))
	for _, item := range rows {
		result = append(result, domain.TypingIndicator{
			ChannelID: item.ChannelID,
			UserID:    item.UserID,
			Username:  item.Username,
			ExpiresAt: item.ExpiresAt,
		})
	}
	return result, nil
}

func (r *Repository) DeleteExpiredTyping(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&TypingIndicatorModel{})
	return res.RowsAffected, res.Error
}
