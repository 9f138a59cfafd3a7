package realtime

import (
	"log"
	"sync"

	"github.com/google/uuid"
)

const subscriptionBuffer = 64

// Subscription is one scoped listener. Events arrive on C in the order they
// were committed for a given row; the channel is closed on Unsubscribe.
type Subscription struct {
	ID     string
	Filter Filter
	C      chan ChangeEvent
}

// Broker routes change events to matching subscriptions. Publish is called
// from a single goroutine per watched collection, so each subscription sees
// events for a row in commit order. There is no ordering guarantee across
// subscriptions.
type Broker struct {
	mu   sync.RWMutex
	subs map[string]*Subscription
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[string]*Subscription)}
}

// Subscribe registers a new subscription for events matching f.
func (b *Broker) Subscribe(f Filter) *Subscription {
	sub := &Subscription{
		ID:     uuid.NewString(),
		Filter: f,
		C:      make(chan ChangeEvent, subscriptionBuffer),
	}

	b.mu.Lock()
	b.subs[sub.ID] = sub
	b.mu.Unlock()
	return sub
}

// Unsubscribe removes the subscription and closes its channel.
func (b *Broker) Unsubscribe(id string) {
	b.mu.Lock()
	sub, ok := b.subs[id]
	if ok {
		delete(b.subs, id)
	}
	b.mu.Unlock()

	if ok {
		close(sub.C)
	}
}

// Publish delivers evt to every matching subscription. A subscriber that
// cannot keep up has the event dropped rather than stalling the dispatch
// loop; its view reconciles on the next full fetch.
func (b *Broker) Publish(evt ChangeEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		if !sub.Filter.Match(evt) {
			continue
		}
		select {
		case sub.C <- evt:
		default:
			log.Printf("[REALTIME] [WARN] subscription %s full, dropping %s/%s event", sub.ID, evt.Table, evt.Event)
		}
	}
}

// SubscriptionCount returns the number of live subscriptions.
func (b *Broker) SubscriptionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
