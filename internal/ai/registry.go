package ai

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var ErrUnknownProvider = errors.New("unknown ai provider")

// Factory builds a provider for one model.
type Factory func(ctx context.Context, model string) (Provider, error)

type registration struct {
	factory      Factory
	defaultModel string
}

// Registry maps backend names (ollama, openrouter, langchain) to factories.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]registration
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]registration)}
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Register adds a backend. defaultModel is used when Get gets no model.
func (r *Registry) Register(name, defaultModel string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[normalizeName(name)] = registration{factory: f, defaultModel: defaultModel}
}

func (r *Registry) Get(ctx context.Context, name, model string) (Provider, error) {
	r.mu.RLock()
	reg, ok := r.entries[normalizeName(name)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (have %s)", ErrUnknownProvider, name, strings.Join(r.Names(), ", "))
	}
	if strings.TrimSpace(model) == "" {
		model = reg.defaultModel
	}
	return reg.factory(ctx, model)
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.entries))
	for name := range r.entries {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
