package config

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/MrWong99/hearken/internal/pipeline"
	"github.com/MrWong99/hearken/pkg/engine"
)

// ErrEngineNotRegistered is returned by the New* methods when no factory has
// been registered under the requested engine name.
var ErrEngineNotRegistered = errors.New("config: engine not registered")

// Registry maps engine names to their constructor functions. It is safe for
// concurrent use and implements [pipeline.Builder].
type Registry struct {
	mu       sync.RWMutex
	wakeWord map[string]func(engine.WakeWordConfig) (engine.WakeWord, error)
	intent   map[string]func(engine.IntentConfig) (engine.Intent, error)
}

var _ pipeline.Builder = (*Registry)(nil)

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		wakeWord: make(map[string]func(engine.WakeWordConfig) (engine.WakeWord, error)),
		intent:   make(map[string]func(engine.IntentConfig) (engine.Intent, error)),
	}
}

// RegisterWakeWord registers a wake-word engine factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterWakeWord(name string, factory func(engine.WakeWordConfig) (engine.WakeWord, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.wakeWord[name] = factory
}

// RegisterIntent registers an intent engine factory under name.
func (r *Registry) RegisterIntent(name string, factory func(engine.IntentConfig) (engine.Intent, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intent[name] = factory
}

// NewWakeWord instantiates the wake-word engine registered under cfg.Name.
// Returns [ErrEngineNotRegistered] if no factory has been registered for that name.
func (r *Registry) NewWakeWord(cfg engine.WakeWordConfig) (engine.WakeWord, error) {
	r.mu.RLock()
	factory, ok := r.wakeWord[cfg.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: wake_word/%q", ErrEngineNotRegistered, cfg.Name)
	}
	return factory(cfg)
}

// NewIntent instantiates the intent engine registered under cfg.Name.
func (r *Registry) NewIntent(cfg engine.IntentConfig) (engine.Intent, error) {
	r.mu.RLock()
	factory, ok := r.intent[cfg.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: intent/%q", ErrEngineNotRegistered, cfg.Name)
	}
	return factory(cfg)
}

// Names returns the sorted names of all registered engines per kind.
func (r *Registry) Names() (wakeWord, intent []string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for name := range r.wakeWord {
		wakeWord = append(wakeWord, name)
	}
	for name := range r.intent {
		intent = append(intent, name)
	}
	slices.Sort(wakeWord)
	slices.Sort(intent)
	return wakeWord, intent
}
