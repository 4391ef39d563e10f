package application

import (
	"context"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/anihangout/hangout/internal/domain"
)

const (
	maxDisplayNameLength = 64
	maxBioLength         = 280
	suggestionDepth      = 2
)

func (s *Service) GetUser(ctx context.Context, userID uint) (domain.User, error) {
	return s.repo.GetUserByID(ctx, userID)
}

func (s *Service) GetProfile(ctx context.Context, viewerID uint, username string) (domain.Profile, error) {
	u, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		return domain.Profile{}, err
	}
	p := domain.Profile{User: u}
	if p.FollowerCount, err = s.repo.CountFollowers(ctx, u.ID); err != nil {
		return domain.Profile{}, err
	}
	if p.FollowingCount, err = s.repo.CountFollowing(ctx, u.ID); err != nil {
		return domain.Profile{}, err
	}
	if p.PostCount, err = s.repo.CountPostsByAuthor(ctx, u.ID); err != nil {
		return domain.Profile{}, err
	}
	if viewerID != 0 && viewerID != u.ID {
		if p.FollowedByMe, err = s.repo.IsFollowing(ctx, viewerID, u.ID); err != nil {
			return domain.Profile{}, err
		}
	}
	return p, nil
}

func (s *Service) UpdateProfile(ctx context.Context, userID uint, displayName, bio, avatarURL string) (domain.User, error) {
	displayName = strings.TrimSpace(displayName)
	bio = strings.TrimSpace(bio)
	avatarURL = strings.TrimSpace(avatarURL)
	if utf8.RuneCountInString(displayName) > maxDisplayNameLength {
		return domain.User{}, invalidf("display name is longer than %d characters", maxDisplayNameLength)
	}
	if utf8.RuneCountInString(bio) > maxBioLength {
		return domain.User{}, invalidf("bio is longer than %d characters", maxBioLength)
	}
	if avatarURL != "" {
		parsed, err := url.Parse(avatarURL)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			return domain.User{}, invalidf("avatar url must be an absolute http(s) url")
		}
	}
	current, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}
	u, err := s.repo.UpdateUserProfile(ctx, domain.User{
		ID:          userID,
		DisplayName: defaultString(displayName, current.Username),
		Bio:         bio,
		AvatarURL:   avatarURL,
	})
	if err != nil {
		return domain.User{}, err
	}
	s.record(ctx, userID, "social.profile.update", "user", userID, "")
	return u, nil
}

// Follow is idempotent. Only a newly created follow notifies the followee.
func (s *Service) Follow(ctx context.Context, followerID, followeeID uint) error {
	if followerID == 0 || followeeID == 0 {
		return invalidf("follower and followee are required")
	}
	if followerID == followeeID {
		return invalidf("you cannot follow yourself")
	}
	followee, err := s.repo.GetUserByID(ctx, followeeID)
	if err != nil {
		return err
	}
	_, created, err := s.repo.CreateFollow(ctx, followerID, followee.ID)
	if err != nil {
		return err
	}
	if !created {
		return nil
	}
	follower, err := s.repo.GetUserByID(ctx, followerID)
	if err != nil {
		return err
	}
	s.record(ctx, followerID, "social.follow", "user", followeeID, "")
	s.notify(ctx, notice{
		recipientID: followeeID,
		actor:       follower,
		kind:        domain.NotifyFollow,
		targetType:  "user",
		targetID:    followerID,
		message:     follower.Username + " started following you",
	})
	return nil
}

func (s *Service) Unfollow(ctx context.Context, followerID, followeeID uint) error {
	if followerID == 0 || followeeID == 0 {
		return invalidf("follower and followee are required")
	}
	removed, err := s.repo.DeleteFollow(ctx, followerID, followeeID)
	if err != nil {
		return err
	}
	if removed {
		s.record(ctx, followerID, "social.unfollow", "user", followeeID, "")
	}
	return nil
}

// ToggleFollow flips the follow state and returns whether the follower now follows.
func (s *Service) ToggleFollow(ctx context.Context, followerID, followeeID uint) (bool, error) {
	following, err := s.repo.IsFollowing(ctx, followerID, followeeID)
	if err != nil {
		return false, err
	}
	if following {
		return false, s.Unfollow(ctx, followerID, followeeID)
	}
	return true, s.Follow(ctx, followerID, followeeID)
}

func (s *Service) FollowByUsername(ctx context.Context, followerID uint, username string, follow bool) error {
	u, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		return err
	}
	if follow {
		return s.Follow(ctx, followerID, u.ID)
	}
	return s.Unfollow(ctx, followerID, u.ID)
}

func (s *Service) ListFollowers(ctx context.Context, username string, limit int) ([]domain.User, error) {
	u, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return s.repo.ListFollowers(ctx, u.ID, clampLimit(limit, 100, 1000))
}

func (s *Service) ListFollowing(ctx context.Context, username string, limit int) ([]domain.User, error) {
	u, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return s.repo.ListFollowing(ctx, u.ID, clampLimit(limit, 100, 1000))
}

func (s *Service) SearchUsers(ctx context.Context, query string, limit int) ([]domain.User, error) {
	return s.repo.SearchUsers(ctx, query, clampLimit(limit, 20, 100))
}

// SuggestUsers ranks friends-of-friends by mutual connections and tops the
// list up with the newest users the viewer does not follow yet.
func (s *Service) SuggestUsers(ctx context.Context, userID uint, limit int) ([]domain.UserSuggestion, error) {
	limit = clampLimit(limit, 10, 50)
	suggestions, err := s.repo.SuggestUsers(ctx, userID, suggestionDepth, limit)
	if err != nil {
		return nil, err
	}
	if len(suggestions) >= limit {
		return suggestions, nil
	}

	following, err := s.repo.FollowingIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	exclude := append([]uint{userID}, following...)
	for _, item := range suggestions {
		exclude = append(exclude, item.User.ID)
	}
	newest, err := s.repo.ListNewestUsers(ctx, exclude, limit-len(suggestions))
	if err != nil {
		return nil, err
	}
	for _, u := range newest {
		suggestions = append(suggestions, domain.UserSuggestion{User: u})
	}
	return suggestions, nil
}

func (s *Service) SetPresence(ctx context.Context, userID uint, status string) error {
	switch status {
	case domain.StatusOnline, domain.StatusAway, domain.StatusOffline:
	default:
		return invalidf("unknown status %q", status)
	}
	if err := s.repo.SetUserStatus(ctx, userID, status, s.now()); err != nil {
		return err
	}
	s.publish(domain.PresenceTopic, domain.EventPresenceUpdated, map[string]any{
		"user_id": userID,
		"status":  status,
	})
	return nil
}
