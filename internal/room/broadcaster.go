// Package room fans live text frames out to every connection joined to a
// hub. Delivery is best-effort, at-most-once: a subscriber whose queue is
// full misses the frame.
package room

import "sync"

// subscriptionBuffer is how many frames queue up per subscriber before
// delivery becomes lossy for that subscriber.
const subscriptionBuffer = 100

// Broadcaster owns one fan-out channel set per active hub. The room map is
// instance state, so independent broadcasters can coexist (handy in tests);
// there is no process-wide singleton.
type Broadcaster struct {
	mu    sync.RWMutex
	rooms map[string]map[*Subscription]struct{}
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		rooms: make(map[string]map[*Subscription]struct{}),
	}
}

// Subscription is one connection's membership in a hub's room. Frames()
// yields frames in publish order until Close.
type Subscription struct {
	broadcaster *Broadcaster
	hubID       string
	frames      chan string

	mu     sync.Mutex
	closed bool
}

// Join subscribes to the hub's room, creating the room lazily on first join.
func (b *Broadcaster) Join(hubID string) *Subscription {
	sub := &Subscription{
		broadcaster: b,
		hubID:       hubID,
		frames:      make(chan string, subscriptionBuffer),
	}

	b.mu.Lock()
	subs, ok := b.rooms[hubID]
	if !ok {
		subs = make(map[*Subscription]struct{})
		b.rooms[hubID] = subs
	}
	subs[sub] = struct{}{}
	b.mu.Unlock()

	return sub
}

// Publish delivers frame to every current subscriber of the hub, dropping
// it for subscribers whose queue is full. Publishing to a hub with no
// subscribers is a harmless no-op.
func (b *Broadcaster) Publish(hubID, frame string) {
	// Snapshot the subscriber set so the channel sends happen outside
	// the room lock.
	b.mu.RLock()
	subs := make([]*Subscription, 0, len(b.rooms[hubID]))
	for sub := range b.rooms[hubID] {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()

	for _, sub := range subs {
		sub.push(frame)
	}
}

// SubscriberCount reports how many subscriptions the hub's room currently
// has. Zero means the room has been collected.
func (b *Broadcaster) SubscriberCount(hubID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.rooms[hubID])
}

func (s *Subscription) push(frame string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	select {
	case s.frames <- frame:
		return true
	default:
		// Slow subscriber; the frame is gone for this one.
		return false
	}
}

// Frames returns the subscription's inbound frame channel. It is closed by
// Close; already-queued frames can still be drained afterwards.
func (s *Subscription) Frames() <-chan string {
	return s.frames
}

// Close removes the subscription from its room and closes the frame
// channel. The room entry is dropped when the last subscriber leaves.
// Close is idempotent and safe against concurrent Publish calls.
func (s *Subscription) Close() {
	b := s.broadcaster

	b.mu.Lock()
	if subs, ok := b.rooms[s.hubID]; ok {
		delete(subs, s)
		if len(subs) == 0 {
			delete(b.rooms, s.hubID)
		}
	}
	b.mu.Unlock()

	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.frames)
	}
	s.mu.Unlock()
}
