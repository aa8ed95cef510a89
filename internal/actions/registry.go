package actions

import (
	"sort"
	"strings"
	"sync"

	"github.com/rendis/gaiaflow/pkg/schema"
)

// Registry maps action names to handlers.
//
// A key registered as "shell" serves the action "shell" exactly and also
// acts as the namespace prefix "shell.". A key ending in a dot, such as
// "gaia.", is a pure prefix. Resolve tries the exact name first and then
// the longest matching prefix.
type Registry struct {
	mu       sync.RWMutex
	exact    map[string]Handler
	prefixes []prefixEntry // longest prefix first
	keys     map[string]Handler
}

type prefixEntry struct {
	key     string
	prefix  string
	handler Handler
}

// Entry describes one registration for listings.
type Entry struct {
	Name        string `json:"name"`
	Prefix      bool   `json:"prefix"`
	Description string `json:"description,omitempty"`
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		exact: make(map[string]Handler),
		keys:  make(map[string]Handler),
	}
}

// Register binds a handler to an action name or namespace prefix.
func (r *Registry) Register(nameOrPrefix string, h Handler) error {
	if nameOrPrefix == "" || nameOrPrefix == "." {
		return schema.NewError(schema.ErrCodeValidation, "action name is empty")
	}
	if h == nil {
		return schema.NewErrorf(schema.ErrCodeValidation, "handler for %q is nil", nameOrPrefix)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.keys[nameOrPrefix]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict, "action %q already registered", nameOrPrefix)
	}
	r.keys[nameOrPrefix] = h

	prefix := nameOrPrefix
	if !strings.HasSuffix(nameOrPrefix, ".") {
		r.exact[nameOrPrefix] = h
		prefix += "."
	}
	r.prefixes = append(r.prefixes, prefixEntry{key: nameOrPrefix, prefix: prefix, handler: h})
	sortPrefixes(r.prefixes)
	return nil
}

// MustRegister is Register for static wiring; it panics on error.
func (r *Registry) MustRegister(nameOrPrefix string, h Handler) {
	if err := r.Register(nameOrPrefix, h); err != nil {
		panic(err)
	}
}

// Unregister removes a registration. It reports whether the key existed.
func (r *Registry) Unregister(nameOrPrefix string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.keys[nameOrPrefix]; !ok {
		return false
	}
	delete(r.keys, nameOrPrefix)
	delete(r.exact, nameOrPrefix)

	kept := r.prefixes[:0]
	for _, p := range r.prefixes {
		if p.key != nameOrPrefix {
			kept = append(kept, p)
		}
	}
	r.prefixes = kept
	return true
}

// Resolve finds the handler for an action: exact name first, then the
// longest registered namespace prefix.
func (r *Registry) Resolve(action string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if h, ok := r.exact[action]; ok {
		return h, nil
	}
	for _, p := range r.prefixes {
		if strings.HasPrefix(action, p.prefix) {
			return p.handler, nil
		}
	}
	return nil, schema.NewErrorf(schema.ErrCodeNotFound, "handler not found for action %q", action)
}

// Has reports whether a key was registered verbatim.
func (r *Registry) Has(nameOrPrefix string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.keys[nameOrPrefix]
	return ok
}

// Count returns the number of registrations.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.keys)
}

// List returns all registrations sorted by name.
func (r *Registry) List() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, 0, len(r.keys))
	for key, h := range r.keys {
		e := Entry{Name: key, Prefix: strings.HasSuffix(key, ".")}
		if d, ok := h.(Describer); ok {
			e.Description = d.Description()
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func sortPrefixes(p []prefixEntry) {
	sort.SliceStable(p, func(i, j int) bool {
		if len(p[i].prefix) != len(p[j].prefix) {
			return len(p[i].prefix) > len(p[j].prefix)
		}
		// An explicit "ns." registration wins over the implicit prefix of "ns".
		return p[i].key == p[i].prefix && p[j].key != p[j].prefix
	})
}
