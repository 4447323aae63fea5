package snapshot

import (
	"sort"
	"sync"
)

// Store holds known StructureDefinitions keyed by canonical URL, guarded by
// a read-mostly RWMutex in the teacher's copy-on-write style (spec §5
// "Parameter registry cache" applies equally to the profile cache: readers
// never block writers, writes replace the whole map).
type Store struct {
	mu    sync.RWMutex
	defs  map[string]*StructureDefinition
	byRT  map[string][]*StructureDefinition
}

// NewStore builds an empty Store seeded with the base FHIR R4 definitions.
func NewStore() *Store {
	s := &Store{
		defs: make(map[string]*StructureDefinition),
		byRT: make(map[string][]*StructureDefinition),
	}
	registerBaseDefinitions(s)
	return s
}

// Register adds or replaces a StructureDefinition. Registering a profile
// over an existing URL invalidates nothing automatically; callers that
// cache generated snapshots use Cache.Invalidate for that (spec §4.6
// "internal/domain/structuredefinition ... calls
// internal/snapshot.Cache.Invalidate(url)").
func (s *Store) Register(sd *StructureDefinition) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.defs[sd.URL]; ok {
		s.removeFromTypeIndex(existing)
	}
	s.defs[sd.URL] = sd
	s.byRT[sd.Type] = append(s.byRT[sd.Type], sd)
}

func (s *Store) removeFromTypeIndex(sd *StructureDefinition) {
	list := s.byRT[sd.Type]
	for i, d := range list {
		if d.URL == sd.URL {
			s.byRT[sd.Type] = append(list[:i], list[i+1:]...)
			break
		}
	}
}

// Get returns the StructureDefinition registered under url.
func (s *Store) Get(url string) (*StructureDefinition, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sd, ok := s.defs[url]
	return sd, ok
}

// ByResourceType returns every registered profile whose Type matches
// resourceType, base definitions included.
func (s *Store) ByResourceType(resourceType string) []*StructureDefinition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.byRT[resourceType]
	out := make([]*StructureDefinition, len(list))
	copy(out, list)
	return out
}

// ResourceTypes returns every resource type with at least one registered
// StructureDefinition, sorted for deterministic output — used by the
// conformance statement builder (spec §6 metadata) to enumerate rest.resource
// entries.
func (s *Store) ResourceTypes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.byRT))
	for rt := range s.byRT {
		out = append(out, rt)
	}
	sort.Strings(out)
	return out
}
