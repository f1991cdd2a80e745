package memory

import (
	"context"
	"sync"

	"github.com/arklim/account-auth/internal/core/domain"
)

// FlagStore is an in-memory flag source.
type FlagStore struct {
	mu    sync.RWMutex
	flags map[string]domain.Flag
}

// NewFlagStore constructs a flag store seeded with flags.
func NewFlagStore(flags ...domain.Flag) *FlagStore {
	store := &FlagStore{flags: make(map[string]domain.Flag, len(flags))}
	for _, flag := range flags {
		store.flags[flag.Tag] = flag
	}
	return store
}

// GetFlag returns the flag or nil when the tag is unset.
func (s *FlagStore) GetFlag(ctx context.Context, tag string) (*domain.Flag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	flag, ok := s.flags[tag]
	if !ok {
		return nil, nil
	}
	return &flag, nil
}

// SetFlag stores the flag, replacing any previous value.
func (s *FlagStore) SetFlag(ctx context.Context, flag domain.Flag) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.flags[flag.Tag] = flag
	return nil
}

// DeleteFlag removes the tag.
func (s *FlagStore) DeleteFlag(tag string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.flags, tag)
}
