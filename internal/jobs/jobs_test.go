package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anihangout/hangout/internal/application"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCleaner struct {
	calls     atomic.Int32
	retention time.Duration
	result    application.CleanupResult
	err       error
}

func (f *fakeCleaner) Cleanup(_ context.Context, retention time.Duration) (application.CleanupResult, error) {
	f.calls.Add(1)
	f.retention = retention
	return f.result, f.err
}

func TestRunCleanupLogsOutcome(t *testing.T) {
	logger, hook := test.NewNullLogger()

	c := &fakeCleaner{result: application.CleanupResult{Sessions: 2}}
	RunCleanup(context.Background(), c, time.Hour, logger)
	assert.Equal(t, time.Hour, c.retention)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)
	assert.Equal(t, int64(2), hook.LastEntry().Data["sessions"])

	hook.Reset()
	RunCleanup(context.Background(), &fakeCleaner{}, time.Hour, logger)
	assert.Nil(t, hook.LastEntry(), "nothing removed, nothing logged")

	RunCleanup(context.Background(), &fakeCleaner{err: errors.New("db locked")}, time.Hour, logger)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestSchedulerRunsCleanup(t *testing.T) {
	logger, _ := test.NewNullLogger()
	s := NewScheduler(logger)
	c := &fakeCleaner{}
	require.NoError(t, s.AddCleanup("@every 1s", c, time.Minute))
	assert.Error(t, s.AddCleanup("not a schedule", c, time.Minute))

	s.Start()
	assert.Eventually(t, func() bool { return c.calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
