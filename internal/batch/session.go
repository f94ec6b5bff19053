package batch

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// Sessions keeps open aggregators by id. A session expires after ttl
// without use.
type Sessions struct {
	cache *cache.Cache
}

// NewSessions creates an empty session registry.
func NewSessions(ttl time.Duration) *Sessions {
	return &Sessions{cache: cache.New(ttl, ttl/2)}
}

// Open registers a and returns its session id.
func (s *Sessions) Open(a *Aggregator) string {
	id := uuid.NewString()
	s.cache.SetDefault(id, a)
	return id
}

// Get returns the aggregator of the session and extends its lifetime.
func (s *Sessions) Get(id string) (*Aggregator, bool) {
	v, found := s.cache.Get(id)
	if !found {
		return nil, false
	}
	s.cache.SetDefault(id, v)
	return v.(*Aggregator), true
}

// Close forgets the session.
func (s *Sessions) Close(id string) {
	s.cache.Delete(id)
}

// Count returns the number of open sessions.
func (s *Sessions) Count() int {
	return s.cache.ItemCount()
}

type confirmationKey struct{}

// WithConfirmation records in ctx whether the user confirmed the action.
func WithConfirmation(ctx context.Context, confirmed bool) context.Context {
	return context.WithValue(ctx, confirmationKey{}, confirmed)
}

// ContextConfirmer reads the confirmation recorded by WithConfirmation.
// Without one, nothing is confirmed.
type ContextConfirmer struct{}

func (ContextConfirmer) Confirm(ctx context.Context, _ string) bool {
	confirmed, _ := ctx.Value(confirmationKey{}).(bool)
	return confirmed
}
