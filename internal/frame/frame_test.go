package frame

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoop_RunsTasksInOrder(t *testing.T) {
	loop := NewLoop(clockwork.NewFakeClock(), 0)

	var got []int
	for i := 0; i < 5; i++ {
		loop.Post(func() {
			got = append(got, i)
			if i == 2 {
				loop.Post(func() { got = append(got, 99) })
			}
		})
	}

	assert.Equal(t, 6, loop.Drain())
	assert.Equal(t, []int{0, 1, 2, 3, 4, 99}, got)
	assert.Zero(t, loop.Drain())
}

func TestLoop_RunStopsWithContext(t *testing.T) {
	loop := NewLoop(nil, 0)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(done)
	}()

	ran := make(chan struct{})
	loop.Post(func() { close(ran) })
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("task did not run")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
}

func TestLoop_AfterFuncCancel(t *testing.T) {
	clock := clockwork.NewFakeClock()
	loop := NewLoop(clock, 0)

	fired := 0
	loop.AfterFunc(100*time.Millisecond, func() { fired++ })
	cancel := loop.AfterFunc(100*time.Millisecond, func() { fired += 10 })
	cancel()

	clock.Advance(100 * time.Millisecond)
	require.Eventually(t, func() bool {
		loop.Drain()
		return fired > 0
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, fired)
}

func TestLocalWindow_DeliversWithSourceAndOrigin(t *testing.T) {
	loop := NewLoop(clockwork.NewFakeClock(), 0)
	parent := NewLocalWindow(loop, "http://docs.local")
	child := NewLocalWindow(loop, "http://view.local")

	var got []Event
	remove := parent.AddListener(func(ev Event) { got = append(got, ev) })

	parent.PostMessage([]byte(`{"type":"iframe-ready"}`), AnyOrigin, child)
	parent.PostMessage([]byte(`{"type":"resize","payload":10}`), "http://docs.local", child)
	parent.PostMessage([]byte(`{"type":"resize","payload":20}`), "http://elsewhere", child)
	loop.Drain()

	require.Len(t, got, 2)
	assert.Equal(t, "http://view.local", got[0].Origin)
	assert.Same(t, child, got[0].Source.(*LocalWindow))
	assert.JSONEq(t, `{"type":"resize","payload":10}`, string(got[1].Data))

	remove()
	parent.PostMessage([]byte(`{"type":"iframe-ready"}`), AnyOrigin, child)
	loop.Drain()
	assert.Len(t, got, 2)
	assert.Zero(t, parent.Listeners())
}

func TestLocalWindow_ListenersInRegistrationOrder(t *testing.T) {
	loop := NewLoop(clockwork.NewFakeClock(), 0)
	w := NewLocalWindow(loop, "http://a")

	var order []string
	w.AddListener(func(Event) { order = append(order, "first") })
	w.AddListener(func(Event) { order = append(order, "second") })
	w.PostMessage([]byte(`{}`), AnyOrigin, nil)
	loop.Drain()

	assert.Equal(t, []string{"first", "second"}, order)
}
