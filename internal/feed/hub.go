// Package feed fans state snapshots out to in-process subscribers.
package feed

import (
	"context"
	"sync"

	"github.com/hray3182/lifeline-checkin/internal/models"
)

// Hub delivers the latest snapshot per user to each subscriber. A slow
// subscriber only ever misses intermediate snapshots, never the newest one.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan *models.UserState]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan *models.UserState]struct{})}
}

// Subscribe registers for userID until ctx is done.
func (h *Hub) Subscribe(ctx context.Context, userID string) (<-chan *models.UserState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ch := make(chan *models.UserState, 1)

	h.mu.Lock()
	set, ok := h.subs[userID]
	if !ok {
		set = make(map[chan *models.UserState]struct{})
		h.subs[userID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subs[userID], ch)
		if len(h.subs[userID]) == 0 {
			delete(h.subs, userID)
		}
		close(ch)
	}()
	return ch, nil
}

// Publish sends state to every subscriber of state.UserID without blocking.
func (h *Hub) Publish(state *models.UserState) {
	if state == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[state.UserID] {
		snapshot := state.Clone()
		select {
		case ch <- snapshot:
			continue
		default:
		}
		// drop the stale snapshot still sitting in the buffer
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snapshot:
		default:
		}
	}
}

// Subscribers returns how many live subscriptions userID has.
func (h *Hub) Subscribers(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[userID])
}
