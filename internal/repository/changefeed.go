package repository

import "sync"

// ChangeFeed is the gateway's notification stream: every successful mutation
// publishes one event, and subscribers (the aggregator) react by recomputing
// their views. Events carry no payload — the current snapshot is always read
// back from the store.
type ChangeFeed struct {
	mu   sync.Mutex
	subs map[int]chan struct{}
	next int
}

func NewChangeFeed() *ChangeFeed {
	return &ChangeFeed{subs: make(map[int]chan struct{})}
}

// Subscribe returns a change channel and a cancel function. The channel has a
// one-slot buffer; bursts collapse into a single pending event, which is all
// a recompute-on-read consumer needs.
func (f *ChangeFeed) Subscribe() (<-chan struct{}, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.next
	f.next++
	ch := make(chan struct{}, 1)
	f.subs[id] = ch
	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs, id)
	}
	return ch, cancel
}

// Publish notifies all subscribers without blocking.
func (f *ChangeFeed) Publish() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
