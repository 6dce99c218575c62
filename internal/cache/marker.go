package cache

import (
	"sort"
	"sync"

	"github.com/salonbook/mapsync/internal/surface"
	"github.com/salonbook/mapsync/pkg/core"
)

// MarkerEntry pairs a rendered marker handle with the descriptor it was created from.
type MarkerEntry struct {
	Handle     surface.Handle
	Descriptor core.MarkerDescriptor
}

// MarkerRegistry maps marker ids to the handles rendered for them on one surface
type MarkerRegistry struct {
	mu      sync.RWMutex
	markers map[string]MarkerEntry
}

// NewMarkerRegistry creates a new MarkerRegistry
func NewMarkerRegistry() *MarkerRegistry {
	return &MarkerRegistry{
		markers: make(map[string]MarkerEntry),
	}
}

// Get retrieves a marker entry by id
func (r *MarkerRegistry) Get(id string) (MarkerEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.markers[id]
	return e, ok
}

// Has reports whether id is registered
func (r *MarkerRegistry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.markers[id]
	return ok
}

// Set stores a marker entry by id
func (r *MarkerRegistry) Set(id string, e MarkerEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.markers[id] = e
}

// Delete removes a marker by id and returns the entry that was stored
func (r *MarkerRegistry) Delete(id string) (MarkerEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.markers[id]
	if ok {
		delete(r.markers, id)
	}
	return e, ok
}

// Len returns the number of registered markers
func (r *MarkerRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.markers)
}

// IDs returns the registered ids in ascending order
func (r *MarkerRegistry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.markers))
	for id := range r.markers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Drain clears the registry and returns every entry it held, ordered by id
func (r *MarkerRegistry) Drain() []MarkerEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.markers))
	for id := range r.markers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	entries := make([]MarkerEntry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, r.markers[id])
	}
	r.markers = make(map[string]MarkerEntry)
	return entries
}
