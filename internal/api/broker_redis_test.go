package api

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestRedisBrokerPublishSubscribe(t *testing.T) {
	mr := miniredis.RunT(t)
	b, err := NewRedisBroker("redis://" + mr.Addr())
	if err != nil { t.Fatalf("NewRedisBroker: %v", err) }

	ch := b.Subscribe("trip1")
	defer b.Unsubscribe("trip1", ch)

	b.Publish("trip1", SSEEvent{Type: "trip.started", Data: map[string]any{"tripId": "trip1"}})

	select {
	case got := <-ch:
		if got.Type != "trip.started" { t.Fatalf("got type %s", got.Type) }
		if got.Data["tripId"].(string) != "trip1" { t.Fatalf("bad payload: %+v", got.Data) }
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for redis event")
	}
}

func TestRedisBrokerBadURL(t *testing.T) {
	if _, err := NewRedisBroker("not-a-url"); err == nil {
		t.Fatal("expected parse error")
	}
}
