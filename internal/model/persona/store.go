package persona

// FallbackID names the persona whose voice unknown artifacts borrow.
const FallbackID = "a"

// Store exposes persona retrieval for handlers and the turn pipeline.
type Store interface {
	List() []Persona
	FindByID(id string) (Persona, bool)
	Lookup(id string) Persona
}

// MemoryStore implements Store with an immutable in-memory slice.
type MemoryStore struct {
	items []Persona
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied personas.
func NewMemoryStore(items []Persona) *MemoryStore {
	return &MemoryStore{items: append([]Persona(nil), items...)}
}

// List returns the configured personas.
func (s *MemoryStore) List() []Persona {
	return append([]Persona(nil), s.items...)
}

// FindByID looks up a persona by identifier.
func (s *MemoryStore) FindByID(id string) (Persona, bool) {
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Persona{}, false
}

// Lookup never fails. Unknown ids get an empty system prompt, DefaultModel,
// and the voice of FallbackID.
func (s *MemoryStore) Lookup(id string) Persona {
	if p, ok := s.FindByID(id); ok {
		return p
	}

	fallback := Persona{ID: id, ModelName: DefaultModel}
	if base, ok := s.FindByID(FallbackID); ok {
		fallback.Voice = base.Voice
	}
	return fallback
}
