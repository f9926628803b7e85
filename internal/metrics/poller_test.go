package metrics

import (
	"bytes"
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/uestack/internal/db"
	"github.com/banshee-data/uestack/internal/stack"
)

type fakeSource struct {
	mu    sync.Mutex
	calls int
}

func (s *fakeSource) GetMetrics() (stack.Metrics, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return stack.Metrics{
		Tick: stack.TickPoint(s.calls),
		NAS:  stack.NASMetrics{State: stack.EMMRegistered, ActiveEPSBearers: 1},
		RRC:  stack.RRCMetrics{State: stack.RRCConnected},
	}, true
}

type captureRecorder struct {
	mu    sync.Mutex
	seen  []stack.Metrics
	ready []bool
}

func (r *captureRecorder) Record(m stack.Metrics, ready bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, m)
	r.ready = append(r.ready, ready)
}

func (r *captureRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition never met")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestPoller_FansOutToAllRecorders(t *testing.T) {
	src := &fakeSource{}
	a, b := &captureRecorder{}, &captureRecorder{}
	p := NewPoller(zerolog.Nop(), src, 2*time.Millisecond, a, b)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	waitFor(t, func() bool { return a.count() >= 3 && b.count() >= 3 })
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, a.count(), b.count(), "recorders see the same snapshots")
	a.mu.Lock()
	defer a.mu.Unlock()
	assert.True(t, a.ready[0])
	assert.NotZero(t, a.seen[0].Tick)
}

func TestPoller_DisabledWithoutPeriod(t *testing.T) {
	src := &fakeSource{}
	rec := &captureRecorder{}
	p := NewPoller(zerolog.Nop(), src, 0, rec)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	time.Sleep(10 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	assert.Zero(t, rec.count())
}

func TestLogRecorder_WritesSnapshotLine(t *testing.T) {
	var buf bytes.Buffer
	rec := NewLogRecorder(zerolog.New(&buf))

	rec.Record(stack.Metrics{
		Tick: 7,
		NAS:  stack.NASMetrics{State: stack.EMMRegistered},
		RRC:  stack.RRCMetrics{State: stack.RRCConnected},
	}, true)

	out := buf.String()
	assert.Contains(t, out, `"tick":7`)
	assert.Contains(t, out, `"ready":true`)
	assert.Contains(t, out, `"emm":"REGISTERED"`)
	assert.Contains(t, out, `"rrc":"CONNECTED"`)
}

func TestDBRecorder_PersistsSnapshots(t *testing.T) {
	database, err := db.NewDB(filepath.Join(t.TempDir(), "metrics.db"))
	require.NoError(t, err)
	defer database.Close()

	rec := NewDBRecorder(zerolog.Nop(), database, "sess-1")
	rec.Record(stack.Metrics{
		Tick: 9,
		NAS:  stack.NASMetrics{State: stack.EMMRegistered, ActiveEPSBearers: 1},
		RRC:  stack.RRCMetrics{State: stack.RRCConnected},
	}, true)

	snaps, err := database.RecentSnapshots(5)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "sess-1", snaps[0].Session)
	assert.Equal(t, int64(9), snaps[0].Tick)
	assert.True(t, snaps[0].Ready)
	assert.Equal(t, "REGISTERED", snaps[0].EMMState)
}
