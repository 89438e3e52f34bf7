package interaction

import "sync"

// Bus fans events out to subscribers by topic. Subscribers are called in
// subscription order on the publishing goroutine.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[Topic][]subscriber
}

type subscriber struct {
	id int
	fn func(Event)
}

// Subscription is a live registration; Remove tears it down.
type Subscription struct {
	bus   *Bus
	topic Topic
	id    int
	once  sync.Once
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[Topic][]subscriber)}
}

// Subscribe registers fn for topic.
func (b *Bus) Subscribe(topic Topic, fn func(Event)) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.subs[topic] = append(b.subs[topic], subscriber{id: b.nextID, fn: fn})
	return &Subscription{bus: b, topic: topic, id: b.nextID}
}

// Publish delivers e to every subscriber of its topic.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	subs := b.subs[e.Topic()]
	b.mu.RUnlock()
	for _, s := range subs {
		s.fn(e)
	}
}

// Count returns the number of live subscriptions for topic.
func (b *Bus) Count(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

// Remove unregisters the subscription. Calling it again is a no-op.
func (s *Subscription) Remove() {
	s.once.Do(func() {
		b := s.bus
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.subs[s.topic]
		out := make([]subscriber, 0, len(list))
		for _, sub := range list {
			if sub.id != s.id {
				out = append(out, sub)
			}
		}
		b.subs[s.topic] = out
	})
}
