package store

import (
	"testing"
)

func TestSplitEvents(t *testing.T) {
	if got := splitEvents(""); got != nil {
		t.Fatalf("empty -> nil expected, got %v", got)
	}
	got := splitEvents("trip.started,trip.completed")
	if len(got) != 2 || got[0] != "trip.started" || got[1] != "trip.completed" {
		t.Fatalf("unexpected split: %v", got)
	}
	if got := splitEvents("trip.created"); len(got) != 1 || got[0] != "trip.created" {
		t.Fatalf("single event: %v", got)
	}
}

func TestNullIfEmpty(t *testing.T) {
	if v := nullIfEmpty(""); v != nil {
		t.Fatalf("empty string -> nil expected")
	}
	if v := nullIfEmpty("x"); v == nil {
		t.Fatalf("non-empty -> non-nil expected")
	}
}
