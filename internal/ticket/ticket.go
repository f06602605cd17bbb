// Package ticket issues short-lived, single-use opaque credentials that
// bridge an authenticated HTTP session into a WebSocket handshake.
package ticket

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrInvalid covers missing, expired and already-redeemed tickets alike;
// callers cannot distinguish them and must not retry.
var ErrInvalid = errors.New("invalid ticket")

// DefaultTTL is how long an issued chat ticket stays redeemable.
const DefaultTTL = 60 * time.Second

type entry struct {
	userID  int64
	expires time.Time
}

// Registry is an in-memory single-use token store. Redemption is an atomic
// delete-and-return under one lock, so racing redeemers get one winner.
type Registry struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]entry
	now     func() time.Time
}

func NewRegistry(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Registry{
		ttl:     ttl,
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Issue mints a ticket for an identity with the registry's default TTL.
func (r *Registry) Issue(userID int64) string {
	return r.IssueTTL(userID, r.ttl)
}

// IssueTTL mints a ticket with an explicit TTL (password-reset tokens live
// longer than chat tickets).
func (r *Registry) IssueTTL(userID int64, ttl time.Duration) string {
	id := uuid.NewString()
	r.mu.Lock()
	r.entries[id] = entry{userID: userID, expires: r.now().Add(ttl)}
	r.mu.Unlock()
	return id
}

// Redeem consumes a ticket and returns the identity it was issued for.
// A ticket redeems at most once; the second caller gets ErrInvalid.
func (r *Registry) Redeem(id string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return 0, ErrInvalid
	}
	delete(r.entries, id)
	if r.now().After(e.expires) {
		return 0, ErrInvalid
	}
	return e.userID, nil
}

// Sweep drops expired entries and reports how many were removed. Redeem
// rejects expired tickets lazily either way; the sweep only bounds memory.
func (r *Registry) Sweep() int {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, e := range r.entries {
		if now.After(e.expires) {
			delete(r.entries, id)
			removed++
		}
	}
	return removed
}

// Len reports live entries, expired or not.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
