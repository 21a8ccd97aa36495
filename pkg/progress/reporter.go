package progress

import (
	"sync"
	"time"
)

// DefaultInterval is the emission cadence used when none is configured.
const DefaultInterval = 10 * time.Second

// Source exposes the counters a Reporter samples. Done and Paused are called
// from the reporter goroutine and must be safe for concurrent use.
type Source struct {
	Total  int64
	Base   int64
	Done   func() int64
	Paused func() bool
}

// Reporter emits snapshots on a fixed cadence to any number of subscribers.
// A subscriber that is not keeping up misses snapshots; the ticker never blocks.
type Reporter struct {
	interval time.Duration

	mu      sync.Mutex
	subs    map[int]chan Snapshot
	nextID  int
	stopped bool
	started time.Time

	quit     chan struct{}
	finished chan struct{}
	stopOnce sync.Once
}

// NewReporter creates a reporter. A non-positive interval uses DefaultInterval.
func NewReporter(interval time.Duration) *Reporter {
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &Reporter{
		interval: interval,
		subs:     make(map[int]chan Snapshot),
		quit:     make(chan struct{}),
		finished: make(chan struct{}),
	}
}

// Interval returns the emission cadence.
func (r *Reporter) Interval() time.Duration {
	return r.interval
}

// Subscribe registers a consumer. The returned channel is closed by Stop or
// by calling the returned cancel function.
func (r *Reporter) Subscribe(buffer int) (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, max(buffer, 1))

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		close(ch)

		return ch, func() {}
	}

	id := r.nextID
	r.nextID++
	r.subs[id] = ch

	return ch, func() {
		r.mu.Lock()
		defer r.mu.Unlock()

		if sub, ok := r.subs[id]; ok {
			delete(r.subs, id)
			close(sub)
		}
	}
}

// Start begins emitting snapshots of src, the first one immediately.
func (r *Reporter) Start(src Source) {
	r.mu.Lock()
	r.started = time.Now()
	r.mu.Unlock()

	go r.loop(src)
}

func (r *Reporter) loop(src Source) {
	defer close(r.finished)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		r.publish(r.sample(src))

		select {
		case <-ticker.C:
		case <-r.quit:
			return
		}
	}
}

func (r *Reporter) sample(src Source) Snapshot {
	paused := false
	if src.Paused != nil {
		paused = src.Paused()
	}

	return Compute(r.Elapsed(), src.Total, src.Done(), src.Base, paused)
}

// Elapsed is the wall-clock time since Start.
func (r *Reporter) Elapsed() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started.IsZero() {
		return 0
	}

	return time.Since(r.started)
}

func (r *Reporter) publish(snap Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ch := range r.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}

// Stop ends the ticker. When completed is true a final 100% snapshot is sent
// first. All subscriber channels are closed. Stop is safe to call more than
// once and before Start.
func (r *Reporter) Stop(completed bool) {
	r.stopOnce.Do(func() {
		r.mu.Lock()
		running := !r.started.IsZero()
		r.mu.Unlock()

		if running {
			close(r.quit)
			<-r.finished
		}

		if completed {
			r.publishFinal(Final(r.Elapsed()))
		}

		r.mu.Lock()
		defer r.mu.Unlock()

		r.stopped = true

		for id, ch := range r.subs {
			delete(r.subs, id)
			close(ch)
		}
	})
}

// publishFinal delivers the last snapshot. A full subscriber buffer loses its
// oldest pending snapshot instead of the completion.
func (r *Reporter) publishFinal(snap Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ch := range r.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}

			select {
			case ch <- snap:
			default:
			}
		}
	}
}
