package queue_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/campaign-dispatcher/internal/queue"
)

type fakeSweeper struct {
	mu        sync.Mutex
	calls     int
	lastOlder time.Duration
	swept     int
	sweptErr  error
}

func (f *fakeSweeper) SweepStuckSending(ctx context.Context, olderThan time.Duration) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastOlder = olderThan
	return f.swept, f.sweptErr
}

func (f *fakeSweeper) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestSweepTrigger_RunsOnSchedule(t *testing.T) {
	fs := &fakeSweeper{swept: 2}
	trig, err := queue.NewSweepTrigger("@every 20ms", fs, 5*time.Minute, zerolog.Nop())
	require.NoError(t, err)

	trig.Start()
	defer trig.Stop()

	require.Eventually(t, func() bool { return fs.callCount() > 0 }, time.Second, 5*time.Millisecond)

	fs.mu.Lock()
	defer fs.mu.Unlock()
	assert.Equal(t, 5*time.Minute, fs.lastOlder)
}

func TestSweepTrigger_RejectsInvalidSchedule(t *testing.T) {
	fs := &fakeSweeper{}
	_, err := queue.NewSweepTrigger("not-a-cron-spec", fs, time.Minute, zerolog.Nop())
	require.Error(t, err)
}
