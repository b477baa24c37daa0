package api

import (
	"sync"
)

type SSEEvent struct {
	Type string
	Data map[string]any
}

type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan SSEEvent]struct{} // tripId -> set of channels
}

func NewBroker() *Broker {
	return &Broker{subs: map[string]map[chan SSEEvent]struct{}{}}
}

func (b *Broker) Subscribe(tripID string) chan SSEEvent {
	ch := make(chan SSEEvent, 8)
	b.mu.Lock()
	if b.subs[tripID] == nil { b.subs[tripID] = map[chan SSEEvent]struct{}{} }
	b.subs[tripID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(tripID string, ch chan SSEEvent) {
	b.mu.Lock()
	if m := b.subs[tripID]; m != nil {
		delete(m, ch)
		if len(m) == 0 { delete(b.subs, tripID) }
	}
	b.mu.Unlock()
	close(ch)
}

func (b *Broker) Publish(tripID string, evt SSEEvent) {
	b.mu.Lock()
	m := b.subs[tripID]
	for ch := range m {
		select { case ch <- evt: default: }
	}
	b.mu.Unlock()
}
