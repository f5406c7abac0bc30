package server

import (
	"log/slog"
	"sync"

	"sketchboard/internal/version"
)

const subscriberBuffer = 16

// Hub fans version change events out to the subscribers of each user.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*subscriber]struct{}
	log  *slog.Logger
}

type subscriber struct {
	ch chan version.Event
}

func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{subs: make(map[string]map[*subscriber]struct{}), log: log}
}

// Subscribe registers interest in userID's events. The returned cancel
// function unregisters and closes the channel.
func (h *Hub) Subscribe(userID string) (<-chan version.Event, func()) {
	sub := &subscriber{ch: make(chan version.Event, subscriberBuffer)}
	h.mu.Lock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[*subscriber]struct{})
	}
	h.subs[userID][sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[userID], sub)
			if len(h.subs[userID]) == 0 {
				delete(h.subs, userID)
			}
			h.mu.Unlock()
			close(sub.ch)
		})
	}
}

// Publish delivers ev to every subscriber of userID. Slow subscribers miss
// events instead of blocking the writer.
func (h *Hub) Publish(userID string, ev version.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[userID] {
		select {
		case sub.ch <- ev:
		default:
			h.log.Warn("dropping event for slow subscriber", slog.String("user", userID), slog.String("type", string(ev.Type)))
		}
	}
}

// Subscribers reports how many listeners userID has.
func (h *Hub) Subscribers(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}
