package session

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// State is what we remember about a visitor between funnel runs.
type State struct {
	FormSubmitted bool   `json:"form_submitted"`
	CountryCode   string `json:"country_code,omitempty"`
	DialCode      string `json:"dial_code,omitempty"`
}

// Store is the narrow read/write surface for visitor state. Handlers and the
// wizard only see this interface so tests can inject a fake.
type Store interface {
	Load(ctx context.Context, visitorID string) (State, error)
	Save(ctx context.Context, visitorID string, state State) error
}

// MemoryStore keeps visitor state in process with a sliding TTL.
type MemoryStore struct {
	cache *cache.Cache
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{cache: cache.New(ttl, ttl*2)}
}

// Load returns the zero State for unknown visitors.
func (s *MemoryStore) Load(ctx context.Context, visitorID string) (State, error) {
	if v, ok := s.cache.Get(visitorID); ok {
		return v.(State), nil
	}
	return State{}, nil
}

func (s *MemoryStore) Save(ctx context.Context, visitorID string, state State) error {
	s.cache.Set(visitorID, state, cache.DefaultExpiration)
	return nil
}

// MarkSubmitted sets the form flag without touching the rest of the state.
func MarkSubmitted(ctx context.Context, store Store, visitorID string) error {
	st, err := store.Load(ctx, visitorID)
	if err != nil {
		return err
	}
	st.FormSubmitted = true
	return store.Save(ctx, visitorID, st)
}
