package application

import (
	"context"
	"fmt"
	"time"

	"github.com/anihangout/hangout/internal/domain"
	"github.com/sirupsen/logrus"
)

const (
	PermRead  = "hangout.read"
	PermWrite = "hangout.write"
	PermAdmin = "hangout.admin"
)

const (
	DefaultTypingTTL      = 5 * time.Second
	DefaultMaxUploadBytes = 10 << 20
)

type Service struct {
	repo      domain.Repository
	events    domain.EventPublisher
	verifier  domain.TokenVerifier
	blobs     domain.BlobStore
	log       logrus.FieldLogger
	typingTTL time.Duration
	maxUpload int64
	now       func() time.Time
}

type Option func(*Service)

func WithEvents(p domain.EventPublisher) Option {
	return func(s *Service) {
		if p != nil {
			s.events = p
		}
	}
}

func WithTokenVerifier(v domain.TokenVerifier) Option {
	return func(s *Service) { s.verifier = v }
}

func WithBlobStore(b domain.BlobStore) Option {
	return func(s *Service) { s.blobs = b }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func WithTypingTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.typingTTL = d
		}
	}
}

func WithMaxUploadBytes(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxUpload = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(repo domain.Repository, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		events:    nopPublisher{},
		log:       logrus.StandardLogger(),
		typingTTL: DefaultTypingTTL,
		maxUpload: DefaultMaxUploadBytes,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, string, any) {}

func (s *Service) publish(topic, eventType string, payload any) {
	s.events.Publish(topic, eventType, payload)
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalid, fmt.Sprintf(format, args...))
}

func forbiddenf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrForbidden, fmt.Sprintf(format, args...))
}

func clampLimit(limit, fallback, ceiling int) int {
	if limit <= 0 {
		limit = fallback
	}
	if limit > ceiling {
		limit = ceiling
	}
	return limit
}

// CleanupResult counts the rows removed by one Cleanup pass.
type CleanupResult struct {
	Sessions      int64 `json:"sessions"`
	Typing        int64 `json:"typing"`
	Notifications int64 `json:"notifications"`
}

// Cleanup purges expired sessions and typing indicators, and read
// notifications older than retention.
func (s *Service) Cleanup(ctx context.Context, retention time.Duration) (CleanupResult, error) {
	var result CleanupResult
	now := s.now()

	n, err := s.repo.DeleteExpiredSessions(ctx, now)
	if err != nil {
		return result, fmt.Errorf("delete expired sessions: %w", err)
	}
	result.Sessions = n

	n, err = s.repo.DeleteExpiredTyping(ctx, now)
	if err != nil {
		return result, fmt.Errorf("delete expired typing: %w", err)
	}
	result.Typing = n

	if retention > 0 {
		n, err = s.repo.DeleteReadNotificationsBefore(ctx, now.Add(-retention))
		if err != nil {
			return result, fmt.Errorf("delete read notifications: %w", err)
		}
		result.Notifications = n
	}
	return result, nil
}
