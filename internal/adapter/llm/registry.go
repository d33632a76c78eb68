package llm

import (
	"fmt"
	"sort"
	"sync"

	"quorum-ai/internal/domain"
)

// ProviderClass partitions configured providers the way the config refers
// to them: local models answer alter turns by default, remote ones carry
// the moderator and any per-alter overrides.
type ProviderClass string

const (
	ClassLocal  ProviderClass = "local"
	ClassRemote ProviderClass = "remote"
)

// Registry resolves configured providers two ways: by name, for explicit
// bindings (the moderator setting, per-alter overrides), and by class, for
// the "first local" / "first remote" defaults the wiring falls back to.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]domain.LLMProvider
	defaults  map[ProviderClass]domain.LLMProvider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]domain.LLMProvider),
		defaults:  make(map[ProviderClass]domain.LLMProvider),
	}
}

// Register files a provider under its class. Names are unique across
// classes, and the first provider registered for a class becomes that
// class's default.
func (r *Registry) Register(class ProviderClass, provider domain.LLMProvider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := provider.Name()
	if name == "" {
		return domain.NewDomainError("Registry.Register", domain.ErrInvalidInput, "provider has no name")
	}
	if _, dup := r.providers[name]; dup {
		return domain.NewDomainError("Registry.Register", domain.ErrInvalidInput,
			fmt.Sprintf("provider %q already registered", name))
	}

	r.providers[name] = provider
	if _, ok := r.defaults[class]; !ok {
		r.defaults[class] = provider
	}
	return nil
}

// Get resolves a provider by its configured name.
func (r *Registry) Get(name string) (domain.LLMProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, domain.NewDomainError("Registry.Get", domain.ErrProviderNotFound, name)
	}
	return p, nil
}

// Default returns the first provider registered under the given class.
func (r *Registry) Default(class ProviderClass) (domain.LLMProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.defaults[class]
	if !ok {
		return nil, domain.NewDomainError("Registry.Default", domain.ErrProviderNotFound,
			fmt.Sprintf("no %s provider configured", class))
	}
	return p, nil
}

// Names lists the registered provider names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
