// ABOUTME: Tests for the snapshot broadcaster
// ABOUTME: Covers fan-out, unsubscribe on cancel, slow subscribers and close

package library

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv(t *testing.T, ch <-chan *Snapshot) *Snapshot {
	t.Helper()
	select {
	case s, ok := <-ch:
		require.True(t, ok, "channel closed")
		return s
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

func TestBroadcaster_FanOut(t *testing.T) {
	b := newBroadcaster(slog.Default())
	defer b.Close()

	ch1, _ := b.Subscribe(t.Context())
	ch2, _ := b.Subscribe(t.Context())

	b.Publish(&Snapshot{Version: 7})

	assert.Equal(t, uint64(7), recv(t, ch1).Version)
	assert.Equal(t, uint64(7), recv(t, ch2).Version)
}

func TestBroadcaster_CancelUnsubscribes(t *testing.T) {
	b := newBroadcaster(slog.Default())
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, subID := b.Subscribe(ctx)
	cancel()

	require.Eventually(t, func() bool {
		b.mu.RLock()
		defer b.mu.RUnlock()
		_, ok := b.subscribers[subID]
		return !ok
	}, time.Second, 5*time.Millisecond)

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after cancel")

	// Unsubscribing twice is harmless.
	b.Unsubscribe(subID)
}

func TestBroadcaster_SlowSubscriberDoesNotBlock(t *testing.T) {
	b := newBroadcaster(slog.Default())
	defer b.Close()

	ch, _ := b.Subscribe(t.Context())

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBufferSize*2; i++ {
			b.Publish(&Snapshot{Version: uint64(i + 1)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}

	assert.Len(t, ch, subscriberBufferSize)
	assert.Equal(t, uint64(1), recv(t, ch).Version, "oldest buffered snapshot first")
}

func TestBroadcaster_CloseClosesChannels(t *testing.T) {
	b := newBroadcaster(slog.Default())

	ch, _ := b.Subscribe(t.Context())
	b.Close()

	_, ok := <-ch
	assert.False(t, ok)

	late, _ := b.Subscribe(t.Context())
	_, ok = <-late
	assert.False(t, ok, "subscribing after close returns a closed channel")

	b.Publish(&Snapshot{Version: 1})
}

func TestBroadcaster_CloseStopsContextWatchers(t *testing.T) {
	b := newBroadcaster(slog.Default())

	// Contexts that are never cancelled.
	for i := 0; i < 5; i++ {
		b.Subscribe(context.Background())
	}
	b.Close()
	b.Close()

	stopped := make(chan struct{})
	go func() {
		b.watchers.Wait()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("subscription watchers still running after Close")
	}
}

func TestBroadcaster_ConcurrentPublishSubscribe(t *testing.T) {
	b := newBroadcaster(slog.Default())
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			ch, _ := b.Subscribe(ctx)
			_ = ch
		}()
		go func(v uint64) {
			defer wg.Done()
			b.Publish(&Snapshot{Version: v})
		}(uint64(i))
	}
	wg.Wait()
}
