package bus

import (
	"context"
	"testing"
	"time"
)

func TestTopicFormat(t *testing.T) {
	if got := Topic(EventViewableInstructors, 42); got != "eval.viewable-instructors.42" {
		t.Fatalf("topic: %q", got)
	}
}

func TestInMemoryPublishSubscribe(t *testing.T) {
	b := NewInMemoryBus()
	ctx := context.Background()

	ch, err := b.Subscribe(ctx, "eval.viewable-students.1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := b.Publish(ctx, "eval.viewable-students.1"); err != nil {
		t.Fatalf("publish: %v", err)
	}
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	// Unrelated topics stay silent.
	if err := b.Publish(ctx, "eval.viewable-students.2"); err != nil {
		t.Fatalf("publish: %v", err)
	}
	select {
	case <-ch:
		t.Fatal("received event for foreign topic")
	case <-time.After(50 * time.Millisecond):
	}

	if err := b.Unsubscribe(ctx, "eval.viewable-students.1", ch); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after unsubscribe")
	}
}

func TestInMemorySubscribeContextCancel(t *testing.T) {
	b := NewInMemoryBus()
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := b.Subscribe(ctx, "t")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for cancellation cleanup")
	}
}
