package streaming

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultChannelBuffer = 64
	DefaultHistorySize   = 100
)

type subscriber struct {
	ch     chan Event
	filter Filter
}

// MemoryBus is the in-memory EventBus. Publish never blocks: a subscriber
// whose buffer is full misses the event.
type MemoryBus struct {
	mu      sync.RWMutex
	subs    map[uint64]*subscriber
	seq     atomic.Uint64
	dropped atomic.Uint64

	histMu   sync.Mutex
	history  []Event
	histSize int
	now      func() time.Time
}

// NewMemoryBus creates a bus keeping the last historySize events (100 when
// historySize <= 0).
func NewMemoryBus(historySize int) *MemoryBus {
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}
	return &MemoryBus{
		subs:     make(map[uint64]*subscriber),
		histSize: historySize,
		now:      time.Now,
	}
}

func (b *MemoryBus) Publish(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = b.now().UTC()
	}

	b.histMu.Lock()
	b.history = append(b.history, event)
	if over := len(b.history) - b.histSize; over > 0 {
		b.history = append(b.history[:0:0], b.history[over:]...)
	}
	b.histMu.Unlock()

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if !sub.filter.Match(event) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			b.dropped.Add(1)
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, filter Filter) (<-chan Event, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	id := b.seq.Add(1)
	sub := &subscriber{ch: make(chan Event, defaultChannelBuffer), filter: filter}

	b.mu.Lock()
	b.subs[id] = sub
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			close(sub.ch)
			b.mu.Unlock()
		})
	}

	if done := ctx.Done(); done != nil {
		go func() {
			<-done
			cancel()
		}()
	}
	return sub.ch, cancel, nil
}

func (b *MemoryBus) History(limit int) []Event {
	b.histMu.Lock()
	defer b.histMu.Unlock()

	start := 0
	if limit > 0 && limit < len(b.history) {
		start = len(b.history) - limit
	}
	return append([]Event(nil), b.history[start:]...)
}

// Dropped returns how many deliveries were skipped because a subscriber
// was full.
func (b *MemoryBus) Dropped() uint64 {
	return b.dropped.Load()
}

var _ EventBus = (*MemoryBus)(nil)
