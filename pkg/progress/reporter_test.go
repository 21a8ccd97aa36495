package progress

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const receiveTimeout = 2 * time.Second

func receive(t *testing.T, ch <-chan Snapshot) Snapshot {
	t.Helper()

	select {
	case snap, ok := <-ch:
		require.True(t, ok, "channel closed")

		return snap
	case <-time.After(receiveTimeout):
		t.Fatal("no snapshot received")
	}

	return Snapshot{}
}

func drain(ch <-chan Snapshot) []Snapshot {
	var out []Snapshot
	for snap := range ch {
		out = append(out, snap)
	}

	return out
}

func TestNewReporter_DefaultInterval(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DefaultInterval, NewReporter(0).Interval())
	assert.Equal(t, time.Second, NewReporter(time.Second).Interval())
}

func TestReporter_EmitsImmediately(t *testing.T) {
	t.Parallel()

	r := NewReporter(time.Hour)
	ch, _ := r.Subscribe(4)

	r.Start(Source{Total: 10, Done: func() int64 { return 0 }})

	snap := receive(t, ch)
	assert.Equal(t, Unknown, snap.Remaining)

	r.Stop(false)
	assert.Empty(t, drain(ch))
}

func TestReporter_TicksAndFinal(t *testing.T) {
	t.Parallel()

	var done atomic.Int64

	var paused atomic.Bool
	paused.Store(true)

	r := NewReporter(10 * time.Millisecond)
	ch, _ := r.Subscribe(64)

	r.Start(Source{Total: 4, Done: done.Load, Paused: paused.Load})

	first := receive(t, ch)
	assert.True(t, first.Paused)

	done.Store(2)
	paused.Store(false)

	deadline := time.After(receiveTimeout)

wait:
	for {
		select {
		case snap := <-ch:
			if snap.Percent == 50 && !snap.Paused {
				break wait
			}
		case <-deadline:
			t.Fatal("progress change never observed")
		}
	}

	r.Stop(true)

	rest := drain(ch)
	require.NotEmpty(t, rest)
	assert.InDelta(t, 100.0, rest[len(rest)-1].Percent, 1e-9)
}

func TestReporter_NoFinalOnCancel(t *testing.T) {
	t.Parallel()

	r := NewReporter(time.Hour)
	ch, _ := r.Subscribe(4)

	r.Start(Source{Total: 4, Done: func() int64 { return 1 }})
	receive(t, ch)

	r.Stop(false)

	for _, snap := range drain(ch) {
		assert.Less(t, snap.Percent, 100.0)
	}
}

func TestReporter_FinalReachesFullSubscriber(t *testing.T) {
	t.Parallel()

	r := NewReporter(time.Millisecond)
	ch, _ := r.Subscribe(1)

	r.Start(Source{Total: 4, Done: func() int64 { return 1 }})
	time.Sleep(20 * time.Millisecond)

	r.Stop(true)

	rest := drain(ch)
	require.Len(t, rest, 1)
	assert.InDelta(t, 100.0, rest[0].Percent, 1e-9)
}

func TestReporter_Unsubscribe(t *testing.T) {
	t.Parallel()

	r := NewReporter(time.Millisecond)
	ch, cancel := r.Subscribe(1)

	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)

	r.Start(Source{Total: 1, Done: func() int64 { return 0 }})
	r.Stop(true)
}

func TestReporter_StopBeforeStartAndSubscribeAfterStop(t *testing.T) {
	t.Parallel()

	r := NewReporter(time.Second)
	early, _ := r.Subscribe(2)

	r.Stop(true)
	r.Stop(true)

	rest := drain(early)
	require.Len(t, rest, 1)
	assert.InDelta(t, 100.0, rest[0].Percent, 1e-9)

	late, _ := r.Subscribe(1)
	_, ok := <-late
	assert.False(t, ok)
}
