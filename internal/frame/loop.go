package frame

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultFrameInterval approximates one animation frame at 60Hz.
const DefaultFrameInterval = 16 * time.Millisecond

// Loop is a single-threaded task queue. Every task posted to the same Loop
// runs on one goroutine in posting order, which is the only place session
// state may be touched.
type Loop struct {
	mu      sync.Mutex
	tasks   []func()
	wake    chan struct{}
	clock   clockwork.Clock
	frameIn time.Duration
}

// NewLoop creates a loop whose timers use clock.
func NewLoop(clock clockwork.Clock, frameInterval time.Duration) *Loop {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if frameInterval <= 0 {
		frameInterval = DefaultFrameInterval
	}
	return &Loop{
		wake:    make(chan struct{}, 1),
		clock:   clock,
		frameIn: frameInterval,
	}
}

// Clock returns the clock driving the loop's timers.
func (l *Loop) Clock() clockwork.Clock {
	return l.clock
}

// Post queues fn. It is safe to call from any goroutine.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.tasks = append(l.tasks, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Run executes tasks until ctx is done.
func (l *Loop) Run(ctx context.Context) {
	for {
		l.Drain()
		select {
		case <-ctx.Done():
			return
		case <-l.wake:
		}
	}
}

// Drain runs queued tasks, including tasks they post, until the queue is
// empty. It returns the number of tasks run. Tests drive loops with it.
func (l *Loop) Drain() int {
	n := 0
	for {
		l.mu.Lock()
		if len(l.tasks) == 0 {
			l.mu.Unlock()
			return n
		}
		task := l.tasks[0]
		l.tasks[0] = nil
		l.tasks = l.tasks[1:]
		l.mu.Unlock()

		task()
		n++
	}
}

// AfterFunc runs fn on the loop once d has elapsed. The returned function
// cancels it; cancellation wins even if the timer already fired but fn has not
// run yet. Cancel must be called from the loop.
func (l *Loop) AfterFunc(d time.Duration, fn func()) (cancel func()) {
	cancelled := false
	timer := l.clock.AfterFunc(d, func() {
		l.Post(func() {
			if !cancelled {
				fn()
			}
		})
	})
	return func() {
		cancelled = true
		timer.Stop()
	}
}

// RequestFrame implements Scheduler with a fixed frame interval.
func (l *Loop) RequestFrame(fn func()) (cancel func()) {
	return l.AfterFunc(l.frameIn, fn)
}
