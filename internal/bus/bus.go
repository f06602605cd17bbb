// Package bus is the in-process broadcast fabric. Conversations are
// addressed by group name; membership is connection-scoped and never
// persisted.
package bus

import (
	"log/slog"
	"sync"
)

const memberBuffer = 32

// Member is one subscription to a group. Events arrive on Events() until
// the member leaves.
type Member struct {
	group string
	ch    chan any
}

// Events is the member's delivery channel. Closed on Leave.
func (m *Member) Events() <-chan any { return m.ch }

// Group returns the group this member joined.
func (m *Member) Group() string { return m.group }

// Hub fans published events out to every current member of a group.
// Delivery is per-publisher FIFO; no cross-publisher ordering.
type Hub struct {
	mu     sync.RWMutex
	groups map[string]map[*Member]struct{}
}

func NewHub() *Hub {
	return &Hub{groups: make(map[string]map[*Member]struct{})}
}

// Join subscribes a new member to a group.
func (h *Hub) Join(group string) *Member {
	m := &Member{group: group, ch: make(chan any, memberBuffer)}
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.groups[group]
	if !ok {
		members = make(map[*Member]struct{})
		h.groups[group] = members
	}
	members[m] = struct{}{}
	return m
}

// Leave unsubscribes the member and closes its channel. Safe to call once.
func (h *Hub) Leave(m *Member) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.groups[m.group]
	if !ok {
		return
	}
	if _, ok := members[m]; !ok {
		return
	}
	delete(members, m)
	if len(members) == 0 {
		delete(h.groups, m.group)
	}
	close(m.ch)
}

// Publish delivers an event to every current member of the group. A member
// that cannot keep up loses the event rather than stalling the publisher.
func (h *Hub) Publish(group string, event any) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for m := range h.groups[group] {
		select {
		case m.ch <- event:
		default:
			slog.Warn("bus member lagging, event dropped", "group", group)
		}
	}
}

// MemberCount reports current subscribers of a group.
func (h *Hub) MemberCount(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}
