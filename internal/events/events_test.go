package events

import (
	"testing"
	"time"
)

func recvEvent(t *testing.T, ch <-chan Event, within time.Duration) Event {
	t.Helper()
	select {
	case e, ok := <-ch:
		if !ok {
			t.Fatalf("subscription closed unexpectedly")
		}
		return e
	case <-time.After(within):
		t.Fatalf("timed out waiting for event")
		return nil
	}
}

func TestBus_PublishReachesAllSubscribers(t *testing.T) {
	b := NewBus()
	a, cancelA := b.Subscribe(1)
	defer cancelA()
	c, cancelC := b.Subscribe(1)
	defer cancelC()

	b.Publish(ModeChanged{Mode: "turns"})

	for _, ch := range []<-chan Event{a, c} {
		e := recvEvent(t, ch, 100*time.Millisecond)
		mc, ok := e.(ModeChanged)
		if !ok || mc.Mode != "turns" {
			t.Fatalf("want ModeChanged{turns}, got %#v", e)
		}
	}
}

func TestBus_SlowSubscriberDropsNotBlocks(t *testing.T) {
	b := NewBus()
	ch, cancel := b.Subscribe(1)
	defer cancel()

	b.Publish(DeviceOnline{DeviceID: "r1"})
	b.Publish(DeviceOffline{DeviceID: "r1"}) // buffer full, dropped

	e := recvEvent(t, ch, 100*time.Millisecond)
	if _, ok := e.(DeviceOnline); !ok {
		t.Fatalf("want the first event, got %#v", e)
	}
	select {
	case e := <-ch:
		t.Fatalf("expected dropped second event, got %#v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBus_CancelClosesChannel(t *testing.T) {
	b := NewBus()
	ch, cancel := b.Subscribe(1)
	cancel()
	if _, ok := <-ch; ok {
		t.Fatalf("expected closed channel after cancel")
	}
	// publishing after cancel must not panic
	b.Publish(DeviceUnlocked{DeviceID: "r1"})
}
