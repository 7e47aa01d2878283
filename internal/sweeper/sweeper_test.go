package sweeper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"laundrylink-backend/config"
)

type mockStore struct {
	mu    sync.Mutex
	calls []time.Time
	n     int
	err   error
}

func (m *mockStore) CompletePastBookings(ctx context.Context, now time.Time, loc *time.Location) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, now)
	return m.n, m.err
}

func (m *mockStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func TestSweepOnce(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	ms := &mockStore{n: 3}
	s := NewService(config.SweeperConfig{Enabled: true, Interval: time.Minute}, loc, ms, zap.NewNop().Sugar())
	fixed := time.Date(2026, time.March, 14, 6, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	assert.Equal(t, 3, s.SweepOnce(context.Background()))
	assert.Equal(t, loc, ms.calls[0].Location())
	assert.True(t, fixed.Equal(ms.calls[0]))

	ms.err = errors.New("db down")
	assert.Zero(t, s.SweepOnce(context.Background()))
}

func TestRun_Disabled(t *testing.T) {
	ms := &mockStore{}
	s := NewService(config.SweeperConfig{Enabled: false, Interval: time.Millisecond}, time.UTC, ms, zap.NewNop().Sugar())

	done := make(chan struct{})
	go func() {
		s.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disabled sweeper should return immediately")
	}
	assert.Zero(t, ms.count())
}

func TestRun_TicksUntilCancelled(t *testing.T) {
	ms := &mockStore{}
	s := NewService(config.SweeperConfig{Enabled: true, Interval: 5 * time.Millisecond}, time.UTC, ms, zap.NewNop().Sugar())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return ms.count() >= 3 }, time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancellation")
	}
}
