// ABOUTME: In-memory fan-out of library snapshots to UI subscribers
// ABOUTME: Non-blocking publish; slow subscribers miss intermediate snapshots

package library

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

const (
	// subscriberBufferSize is the channel buffer for each subscriber.
	subscriberBufferSize = 64
)

// broadcaster provides in-memory pub/sub for published snapshots.
type broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]chan *Snapshot // subID -> ch
	closed      bool
	done        chan struct{}
	watchers    sync.WaitGroup // one per live Subscribe context watcher
	logger      *slog.Logger
}

func newBroadcaster(logger *slog.Logger) *broadcaster {
	return &broadcaster{
		subscribers: make(map[string]chan *Snapshot),
		done:        make(chan struct{}),
		logger:      logger.With("component", "broadcaster"),
	}
}

// Subscribe registers a subscriber. The subscription is removed and the
// channel closed when ctx is cancelled or the broadcaster is closed.
func (b *broadcaster) Subscribe(ctx context.Context) (<-chan *Snapshot, string) {
	subID := uuid.New().String()
	ch := make(chan *Snapshot, subscriberBufferSize)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, subID
	}
	b.subscribers[subID] = ch
	b.watchers.Add(1)
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "sub_id", subID)

	go func() {
		defer b.watchers.Done()
		select {
		case <-ctx.Done():
			b.Unsubscribe(subID)
		case <-b.done:
		}
	}()

	return ch, subID
}

// Publish sends a snapshot to every subscriber without blocking.
func (b *broadcaster) Publish(snap *Snapshot) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subscribers {
		select {
		case ch <- snap:
		default:
			b.logger.Debug("dropped snapshot for slow subscriber",
				"sub_id", id,
				"version", snap.Version)
		}
	}
}

// Unsubscribe removes a subscription and closes its channel.
func (b *broadcaster) Unsubscribe(subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, exists := b.subscribers[subID]
	if !exists {
		return
	}
	delete(b.subscribers, subID)
	close(ch)

	b.logger.Debug("subscriber removed", "sub_id", subID)
}

// Close closes all subscriber channels and stops their context watchers.
func (b *broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	close(b.done)
	for subID, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, subID)
	}
	b.closed = true
}
