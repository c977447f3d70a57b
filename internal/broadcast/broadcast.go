// Package broadcast fans out newly ingested log records to live-tail
// subscribers (the SSE stream endpoint). It ports the asyncio.Queue-based
// subscribe/unsubscribe/notify design in
// original_source/src/collector.py to goroutines and channels.
package broadcast

import (
	"sync"

	"github.com/mareekkk/logstream/internal/models"
)

// queueCapacity bounds each subscriber's backlog. A slow subscriber drops
// its oldest buffered record rather than blocking the publisher, matching
// the original's QueueFull handling.
const queueCapacity = 1000

// Broadcaster fans records out to any number of subscribers. The zero value
// is not usable; construct with New.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[int64]chan models.LogRecord
	next int64
}

func New() *Broadcaster {
	return &Broadcaster{subs: make(map[int64]chan models.LogRecord)}
}

// Subscribe registers a new subscriber and returns its channel plus an id
// to pass to Unsubscribe. The channel is never closed by Publish; only
// Unsubscribe closes it, so callers must read until Unsubscribe is called.
func (b *Broadcaster) Subscribe() (<-chan models.LogRecord, int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	ch := make(chan models.LogRecord, queueCapacity)
	b.subs[id] = ch
	return ch, id
}

// Unsubscribe removes and closes the subscriber's channel. Safe to call
// more than once for the same id.
func (b *Broadcaster) Unsubscribe(id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.subs[id]
	if !ok {
		return
	}
	delete(b.subs, id)
	close(ch)
}

// Publish fans rec out to every current subscriber. A subscriber whose
// queue is full has its oldest buffered record dropped to make room,
// matching the original collector's drop-oldest overflow policy rather than
// blocking the ingestion pipeline on a slow reader.
func (b *Broadcaster) Publish(rec models.LogRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- rec:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- rec:
			default:
			}
		}
	}
}

// SubscriberCount reports the current number of live subscribers, mainly
// for diagnostics/tests.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
