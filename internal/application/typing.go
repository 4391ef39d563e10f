package application

import (
	"context"
	"errors"

	"github.com/anihangout/hangout/internal/domain"
)

// SetTyping marks the user as typing in the channel until now+ttl. While the
// stored indicator has more than half of its ttl left the call is a no-op, so
// keystroke-driven clients cause at most one write and broadcast per half ttl.
// It reports whether an update was broadcast.
func (s *Service) SetTyping(ctx context.Context, userID, channelID uint) (bool, error) {
	if _, _, err := s.requireMember(ctx, userID, channelID); err != nil {
		return false, err
	}
	if !s.boolPreference(ctx, userID, PrefTypingIndicator, true) {
		return false, nil
	}
	now := s.now()
	current, err := s.repo.GetTyping(ctx, channelID, userID)
	switch {
	case err == nil:
		if current.ExpiresAt.Sub(now) > s.typingTTL/2 {
			return false, nil
		}
	case !errors.Is(err, domain.ErrNotFound):
		return false, err
	}

	indicator := domain.TypingIndicator{ChannelID: channelID, UserID: userID, ExpiresAt: now.Add(s.typingTTL)}
	if err := s.repo.UpsertTyping(ctx, indicator); err != nil {
		return false, err
	}
	if u, err := s.repo.GetUserByID(ctx, userID); err == nil {
		indicator.Username = u.Username
	}
	s.publish(domain.ChannelTopic(channelID), domain.EventTypingUpdated, map[string]any{
		"channel_id": channelID,
		"user_id":    userID,
		"username":   indicator.Username,
		"typing":     true,
		"expires_at": indicator.ExpiresAt,
	})
	return true, nil
}

func (s *Service) ClearTyping(ctx context.Context, userID, channelID uint) error {
	if _, _, err := s.channelForReader(ctx, userID, channelID); err != nil {
		return err
	}
	s.stopTyping(ctx, channelID, userID)
	return nil
}

func (s *Service) stopTyping(ctx context.Context, channelID, userID uint) {
	if _, err := s.repo.GetTyping(ctx, channelID, userID); err != nil {
		return
	}
	if err := s.repo.DeleteTyping(ctx, channelID, userID); err != nil {
		s.log.WithError(err).WithField("channel_id", channelID).Warn("clear typing")
		return
	}
	s.publish(domain.ChannelTopic(channelID), domain.EventTypingUpdated, map[string]any{
		"channel_id": channelID,
		"user_id":    userID,
		"typing":     false,
	})
}

// ListTyping returns the unexpired indicators of the channel other than the viewer's own.
func (s *Service) ListTyping(ctx context.Context, viewerID, channelID uint) ([]domain.TypingIndicator, error) {
	if _, _, err := s.channelForReader(ctx, viewerID, channelID); err != nil {
		return nil, err
	}
	all, err := s.repo.ListTyping(ctx, channelID, s.now())
	if err != nil {
		return nil, err
	}
	result := make([]domain.TypingIndicator, 0, len(all))
	for _, t := range all {
		if t.UserID == viewerID {
			continue
		}
		result = append(result, t)
	}
	return result, nil
}
