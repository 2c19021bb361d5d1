package netmgmt

import "sync"

// subscription is one registered callback.
type subscription struct {
	id   uint64
	mask Event
	cb   EventCallback
}

// eventBus fans raised events out to matching subscriptions.
//
// Thread Safety: safe for concurrent use. Callbacks run outside the lock, so
// a callback may add or remove subscriptions.
type eventBus struct {
	mu     sync.Mutex
	nextID uint64
	subs   []subscription
}

func (b *eventBus) add(mask Event, cb EventCallback) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, mask: mask, cb: cb})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *eventBus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// raise invokes every subscription whose mask includes info.Event. It
// returns the number of callbacks run.
func (b *eventBus) raise(info EventInfo) int {
	b.mu.Lock()
	matched := make([]EventCallback, 0, len(b.subs))
	for _, s := range b.subs {
		if s.mask&info.Event != 0 && s.cb != nil {
			matched = append(matched, s.cb)
		}
	}
	b.mu.Unlock()

	for _, cb := range matched {
		cb(info)
	}
	return len(matched)
}

func (b *eventBus) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
