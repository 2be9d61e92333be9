// Package progress broadcasts orchestrator state transitions to observers
// subscribed to a single search's room.
package progress

import (
	"sync"

	"go.uber.org/zap"
)

type EventType string

const (
	EventProgress  EventType = "search_progress"
	EventCompleted EventType = "search_completed"
	EventFailed    EventType = "search_failed"
	EventCancelled EventType = "search_cancelled"
	EventFiltered  EventType = "results_filtered"
	EventSorted    EventType = "results_sorted"
)

type Event struct {
	Type     EventType `json:"type"`
	SearchID string    `json:"search_id"`
	Payload  any       `json:"payload,omitempty"`
}

// Subscription delivers one room's events. C is closed when the room shuts
// down or the subscription is cancelled; a slow consumer misses events
// rather than blocking the publisher.
type Subscription struct {
	C        <-chan Event
	ch       chan Event
	searchID string
	pub      *Publisher
	once     sync.Once
}

func (s *Subscription) Unsubscribe() {
	s.pub.remove(s.searchID, s, true)
}

// Publisher is a room-scoped fan-out bus. Events for a search are delivered
// in publish order to that room's subscribers only; delivery is best-effort
// at-most-once.
type Publisher struct {
	mu     sync.RWMutex
	rooms  map[string]map[*Subscription]struct{}
	buffer int
	log    *zap.Logger
}

func NewPublisher(buffer int, log *zap.Logger) *Publisher {
	if buffer <= 0 {
		buffer = 16
	}
	return &Publisher{
		rooms:  make(map[string]map[*Subscription]struct{}),
		buffer: buffer,
		log:    log,
	}
}

func (p *Publisher) Subscribe(searchID string) *Subscription {
	ch := make(chan Event, p.buffer)
	sub := &Subscription{C: ch, ch: ch, searchID: searchID, pub: p}

	p.mu.Lock()
	defer p.mu.Unlock()
	room, ok := p.rooms[searchID]
	if !ok {
		room = make(map[*Subscription]struct{})
		p.rooms[searchID] = room
	}
	room[sub] = struct{}{}
	return sub
}

func (p *Publisher) remove(searchID string, sub *Subscription, closeCh bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	room, ok := p.rooms[searchID]
	if !ok {
		return
	}
	if _, ok := room[sub]; !ok {
		return
	}
	delete(room, sub)
	if len(room) == 0 {
		delete(p.rooms, searchID)
	}
	if closeCh {
		sub.once.Do(func() { close(sub.ch) })
	}
}

// Publish delivers ev to the searchID room. A subscriber whose buffer is
// full simply misses the event; reconnecting observers re-query state
// instead of replaying history.
func (p *Publisher) Publish(searchID string, ev Event) {
	ev.SearchID = searchID

	p.mu.RLock()
	subs := make([]*Subscription, 0, len(p.rooms[searchID]))
	for sub := range p.rooms[searchID] {
		subs = append(subs, sub)
	}
	p.mu.RUnlock()

	for _, sub := range subs {
		select {
		case sub.ch <- ev:
		default:
			p.log.Warn("dropping progress event for slow subscriber",
				zap.String("search_id", searchID),
				zap.String("event", string(ev.Type)))
		}
	}
}

// CloseRoom ends every subscription in the room after its buffered events
// drain. Called by the orchestrator once a search reaches a terminal state.
func (p *Publisher) CloseRoom(searchID string) {
	p.mu.Lock()
	room := p.rooms[searchID]
	delete(p.rooms, searchID)
	p.mu.Unlock()

	for sub := range room {
		sub.once.Do(func() { close(sub.ch) })
	}
}

// RoomSize is used by tests and the ws bridge to observe membership.
func (p *Publisher) RoomSize(searchID string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.rooms[searchID])
}
