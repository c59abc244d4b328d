package translator

import (
	"fmt"
	"sort"
	"sync"

	"github.com/valpere/polytran/internal/errs"
)

// Registry maps provider ids to services. It is built once at startup and
// handed to the components that need it.
type Registry struct {
	mu       sync.RWMutex
	services map[string]TranslationService
}

func NewRegistry(services ...TranslationService) *Registry {
	r := &Registry{services: make(map[string]TranslationService)}
	for _, s := range services {
		r.Register(s)
	}
	return r
}

// NewDefaultRegistry registers every built-in provider.
func NewDefaultRegistry() *Registry {
	return NewRegistry(
		NewGoogleService(),
		NewSystranService(),
		NewMyMemoryService(),
		NewOllamaTranslator("", nil),
		NewOpenRouterService("", nil),
	)
}

// Register adds s under its Name, replacing any earlier registration.
func (r *Registry) Register(s TranslationService) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services[s.Name()] = s
}

// Get returns the provider registered under id.
func (r *Registry) Get(id string) (TranslationService, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.services[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errs.ErrProviderNotRegistered, id)
	}
	return s, nil
}

// Names lists registered provider ids in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.services))
	for name := range r.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
