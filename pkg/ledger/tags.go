package ledger

import (
	"sort"
	"sync"
)

// Tag is a registered event-type category with a display name. The
// ledger never validates appended events against the registry; it
// exists only so consumers can render known categories.
type Tag struct {
	Name    string `json:"name"`
	Display string `json:"display"`
}

// TagRegistry is a concurrent registry of known event-type tags.
type TagRegistry struct {
	mu   sync.RWMutex
	tags map[string]string
}

// NewTagRegistry returns a registry seeded with the reserved
// governance tags.
func NewTagRegistry() *TagRegistry {
	r := &TagRegistry{tags: make(map[string]string)}
	r.Register(TagOwnershipTransfer, "Ownership transferred")
	r.Register(TagAccessGranted, "Actor access granted")
	r.Register(TagAccessRevoked, "Actor access revoked")
	r.Register(TagProductActivated, "Product activated")
	r.Register(TagProductDeactivated, "Product deactivated")
	return r
}

// Register adds or replaces a tag's display name.
func (r *TagRegistry) Register(name, display string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tags[name] = display
}

// Known reports whether a tag has been registered.
func (r *TagRegistry) Known(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tags[name]
	return ok
}

// List returns all registered tags sorted by name.
func (r *TagRegistry) List() []Tag {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tag, 0, len(r.tags))
	for name, display := range r.tags {
		out = append(out, Tag{Name: name, Display: display})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
