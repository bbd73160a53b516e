package adapter

import (
	"fmt"
	"sort"

	"github.com/MrSnakeDoc/gamedeck/internal/domain"
)

// Set maps platform ids to their adapter. It is built once at startup and
// read-only afterwards, so lookups need no locking.
type Set struct {
	adapters map[domain.Platform]Adapter
}

// NewSet builds a Set. Registering two adapters for one platform is an error.
func NewSet(adapters ...Adapter) (*Set, error) {
	s := &Set{adapters: make(map[domain.Platform]Adapter, len(adapters))}
	for _, a := range adapters {
		p := a.Platform()
		if p == "" {
			return nil, fmt.Errorf("adapter %T has an empty platform id", a)
		}
		if _, dup := s.adapters[p]; dup {
			return nil, fmt.Errorf("duplicate adapter for platform %s", p)
		}
		s.adapters[p] = a
	}
	return s, nil
}

// Get returns the adapter for p or ErrAdapterUnavailable.
func (s *Set) Get(p domain.Platform) (Adapter, error) {
	if s != nil {
		if a, ok := s.adapters[p]; ok {
			return a, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrAdapterUnavailable, p)
}

// Platforms returns the registered platform ids, sorted.
func (s *Set) Platforms() []domain.Platform {
	if s == nil {
		return nil
	}
	out := make([]domain.Platform, 0, len(s.adapters))
	for p := range s.adapters {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Len returns the number of registered adapters.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.adapters)
}
