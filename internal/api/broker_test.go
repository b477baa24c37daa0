package api

import (
	"testing"
	"time"
)

func TestBrokerPublishSubscribe(t *testing.T) {
	b := NewBroker()
	tid := "trip1"
	ch := b.Subscribe(tid)
	defer func() { recover() }() // ignore close panic if already closed

	evt := SSEEvent{Type: "trip.started", Data: map[string]any{"tripId": tid}}
	b.Publish(tid, evt)

	select {
	case got := <-ch:
		if got.Type != evt.Type { t.Fatalf("got type %s, want %s", got.Type, evt.Type) }
		if got.Data["tripId"].(string) != tid { t.Fatalf("bad payload: %+v", got.Data) }
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}

	b.Unsubscribe(tid, ch)
	select {
	case _, ok := <-ch:
		if ok { t.Fatal("channel should be closed after unsubscribe") }
	case <-time.After(50 * time.Millisecond):
		// acceptable if already drained and closed
	}
}

func TestBrokerIsolatesTrips(t *testing.T) {
	b := NewBroker()
	ch1 := b.Subscribe("trip1")
	ch2 := b.Subscribe("trip2")
	defer b.Unsubscribe("trip1", ch1)
	defer b.Unsubscribe("trip2", ch2)

	b.Publish("trip1", SSEEvent{Type: "trip.completed"})
	select {
	case <-ch1:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("trip1 subscriber missed its event")
	}
	select {
	case got := <-ch2:
		t.Fatalf("trip2 subscriber received foreign event: %+v", got)
	case <-time.After(50 * time.Millisecond):
	}
}
