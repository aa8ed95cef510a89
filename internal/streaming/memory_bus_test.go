package streaming

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case e, ok := <-ch:
		require.True(t, ok, "channel closed")
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestMemoryBus_PublishSubscribe(t *testing.T) {
	bus := NewMemoryBus(0)
	ctx := context.Background()

	ch, cancel, err := bus.Subscribe(ctx, Filter{})
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, bus.Publish(ctx, Event{Type: "step.completed", WorkflowID: "w1", StepID: "s1"}))

	got := receive(t, ch)
	assert.Equal(t, "step.completed", got.Type)
	assert.Equal(t, "s1", got.StepID)
	assert.False(t, got.Timestamp.IsZero(), "timestamp is stamped on publish")
}

func TestMemoryBus_Filter(t *testing.T) {
	bus := NewMemoryBus(0)
	ctx := context.Background()

	ch, cancel, err := bus.Subscribe(ctx, Filter{WorkflowID: "w1", Types: []string{"notify"}})
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, bus.Publish(ctx, Event{Type: "notify", WorkflowID: "w2"}))
	require.NoError(t, bus.Publish(ctx, Event{Type: "step.started", WorkflowID: "w1"}))
	require.NoError(t, bus.Publish(ctx, Event{Type: "notify", WorkflowID: "w1", Payload: map[string]any{"n": 1}}))

	got := receive(t, ch)
	assert.Equal(t, 1, got.Payload["n"])

	select {
	case e := <-ch:
		t.Fatalf("unexpected event %+v", e)
	default:
	}
}

func TestFilter_Match(t *testing.T) {
	e := Event{Type: "a", WorkflowID: "w", ExecutionID: "x"}
	assert.True(t, Filter{}.Match(e))
	assert.True(t, Filter{ExecutionID: "x", Types: []string{"b", "a"}}.Match(e))
	assert.False(t, Filter{ExecutionID: "y"}.Match(e))
	assert.False(t, Filter{Types: []string{"b"}}.Match(e))
}

func TestMemoryBus_CancelClosesChannel(t *testing.T) {
	bus := NewMemoryBus(0)
	ch, cancel, err := bus.Subscribe(context.Background(), Filter{})
	require.NoError(t, err)

	cancel()
	cancel() // idempotent

	_, ok := <-ch
	assert.False(t, ok)
	require.NoError(t, bus.Publish(context.Background(), Event{Type: "x"}))
}

func TestMemoryBus_ContextEndsSubscription(t *testing.T) {
	bus := NewMemoryBus(0)
	ctx, cancel := context.WithCancel(context.Background())

	ch, _, err := bus.Subscribe(ctx, Filter{})
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscription not closed after context cancel")
	}

	_, _, err = bus.Subscribe(ctx, Filter{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, bus.Publish(ctx, Event{Type: "x"}), context.Canceled)
}

func TestMemoryBus_History(t *testing.T) {
	bus := NewMemoryBus(3)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(ctx, Event{Type: fmt.Sprintf("e%d", i)}))
	}

	all := bus.History(0)
	require.Len(t, all, 3)
	assert.Equal(t, "e2", all[0].Type)
	assert.Equal(t, "e4", all[2].Type)

	last := bus.History(2)
	require.Len(t, last, 2)
	assert.Equal(t, "e3", last[0].Type)
}

func TestMemoryBus_SlowSubscriberDoesNotBlock(t *testing.T) {
	bus := NewMemoryBus(0)
	ctx := context.Background()
	_, cancel, err := bus.Subscribe(ctx, Filter{})
	require.NoError(t, err)
	defer cancel()

	for i := 0; i < defaultChannelBuffer+10; i++ {
		require.NoError(t, bus.Publish(ctx, Event{Type: "tick"}))
	}
	assert.Equal(t, uint64(10), bus.Dropped())
}

func TestMemoryBus_ConcurrentPublish(t *testing.T) {
	bus := NewMemoryBus(1000)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_ = bus.Publish(ctx, Event{Type: "tick"})
			}
		}()
	}
	wg.Wait()
	assert.Len(t, bus.History(0), 200)
}
