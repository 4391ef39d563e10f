package application

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/anihangout/hangout/internal/adapters/db/sqlite"
	"github.com/anihangout/hangout/internal/domain"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

type recordedEvent struct {
	Topic   string
	Type    string
	Payload any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *recordingPublisher) Publish(topic, eventType string, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{Topic: topic, Type: eventType, Payload: payload})
}

func (p *recordingPublisher) ofType(eventType string) []recordedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]recordedEvent, 0)
	for _, e := range p.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type memoryBlobs struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memoryBlobs) Put(_ context.Context, key string, r io.Reader, maxBytes int64) (int64, error) {
	buf, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return 0, err
	}
	if int64(len(buf)) > maxBytes {
		return 0, fmt.Errorf("%w: file exceeds %d bytes", domain.ErrInvalid, maxBytes)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = make(map[string][]byte)
	}
	m.data[key] = buf
	return int64(len(buf)), nil
}

func (m *memoryBlobs) Open(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	buf, ok := m.data[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(buf)), nil
}

func (m *memoryBlobs) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	svc    *Service
	events *recordingPublisher
	blobs  *memoryBlobs
	clock  *fakeClock
	logs   *test.Hook
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	ctx := context.Background()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "hangout_app_test.db"))
	require.NoError(t, err)
	require.NoError(t, sqlite.RunMigrations(ctx, db, nil))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	f := &fixture{
		events: &recordingPublisher{},
		blobs:  &memoryBlobs{},
		clock:  &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		logs:   hook,
	}
	base := []Option{
		WithEvents(f.events),
		WithBlobStore(f.blobs),
		WithLogger(logger),
		WithClock(f.clock.Now),
	}
	f.svc = NewService(sqlite.NewRepository(db), append(base, opts...)...)
	require.NoError(t, f.svc.Seed(ctx))
	return f
}

func (f *fixture) user(t *testing.T, username string) domain.User {
	t.Helper()
	u, err := f.svc.Register(context.Background(), username+"@example.test", username, "password123")
	require.NoError(t, err)
	return u
}

func (f *fixture) identity(t *testing.T, u domain.User) domain.Identity {
	t.Helper()
	id, err := f.svc.identityByUserID(context.Background(), u.ID)
	require.NoError(t, err)
	return id
}
