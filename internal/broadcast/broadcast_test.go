package broadcast

import (
	"testing"

	"github.com/mareekkk/logstream/internal/models"
)

func TestPublishDeliversToAllSubscribers(t *testing.T) {
	b := New()
	ch1, id1 := b.Subscribe()
	ch2, id2 := b.Subscribe()
	defer b.Unsubscribe(id1)
	defer b.Unsubscribe(id2)

	rec := models.LogRecord{Message: "hello"}
	b.Publish(rec)

	got1 := <-ch1
	got2 := <-ch2
	if got1.Message != "hello" || got2.Message != "hello" {
		t.Fatalf("subscribers did not receive published record: %+v %+v", got1, got2)
	}
}

func TestUnsubscribeClosesChannelAndStopsDelivery(t *testing.T) {
	b := New()
	ch, id := b.Subscribe()
	b.Unsubscribe(id)

	if _, open := <-ch; open {
		t.Fatalf("expected channel to be closed after unsubscribe")
	}
	if b.SubscriberCount() != 0 {
		t.Fatalf("expected 0 subscribers after unsubscribe")
	}

	// Publishing after unsubscribe must not panic on the closed channel.
	b.Publish(models.LogRecord{Message: "ignored"})
}

func TestPublishDropsOldestWhenSubscriberQueueIsFull(t *testing.T) {
	b := New()
	ch, id := b.Subscribe()
	defer b.Unsubscribe(id)

	for i := 0; i < queueCapacity+10; i++ {
		b.Publish(models.LogRecord{Message: "x"})
	}

	if b.SubscriberCount() != 1 {
		t.Fatalf("expected subscriber to remain registered after overflow")
	}
	drained := 0
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				t.Fatalf("channel closed unexpectedly")
			}
			drained++
		default:
			if drained == 0 {
				t.Fatalf("expected buffered records to survive overflow")
			}
			if drained > queueCapacity {
				t.Fatalf("drained more than capacity: %d", drained)
			}
			return
		}
	}
}

func TestUnsubscribeUnknownIDIsNoop(t *testing.T) {
	b := New()
	b.Unsubscribe(999)
}

func TestDoubleUnsubscribeIsSafe(t *testing.T) {
	b := New()
	_, id := b.Subscribe()
	b.Unsubscribe(id)
	b.Unsubscribe(id)
}
