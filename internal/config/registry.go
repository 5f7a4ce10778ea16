package config

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/MrWong99/nmspgate/pkg/artifact"
	"github.com/MrWong99/nmspgate/pkg/codec"
	"github.com/MrWong99/nmspgate/pkg/provider/asr"
)

// ErrNotRegistered is returned by Create* methods when no factory has been
// registered under the requested name.
var ErrNotRegistered = errors.New("config: backend not registered")

// Factory signatures per kind.
type (
	RecognizerFactory func(ctx context.Context, cfg RecognizerConfig) (asr.Provider, error)
	CodecFactory      func(cfg CodecConfig) (codec.Factory, error)
	StoreFactory      func(ctx context.Context, cfg DebugStoreConfig) (artifact.Store, error)
)

// Registry maps backend names to their constructors. It is safe for
// concurrent use.
type Registry struct {
	mu          sync.RWMutex
	recognizers map[string]RecognizerFactory
	codecs      map[string]CodecFactory
	stores      map[string]StoreFactory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		recognizers: make(map[string]RecognizerFactory),
		codecs:      make(map[string]CodecFactory),
		stores:      make(map[string]StoreFactory),
	}
}

// RegisterRecognizer registers a recognition backend under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterRecognizer(name string, f RecognizerFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recognizers[name] = f
}

// RegisterCodec registers a subframe codec under name.
func (r *Registry) RegisterCodec(name string, f CodecFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codecs[name] = f
}

// RegisterStore registers a debug store under name.
func (r *Registry) RegisterStore(name string, f StoreFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stores[name] = f
}

// CreateRecognizer builds the backend named by cfg.Name.
// Returns [ErrNotRegistered] if no factory has been registered for that name.
func (r *Registry) CreateRecognizer(ctx context.Context, cfg RecognizerConfig) (asr.Provider, error) {
	r.mu.RLock()
	f, ok := r.recognizers[cfg.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: recognizer/%q", ErrNotRegistered, cfg.Name)
	}
	return f(ctx, cfg)
}

// CreateCodec returns the decoder factory named by cfg.Name.
func (r *Registry) CreateCodec(cfg CodecConfig) (codec.Factory, error) {
	r.mu.RLock()
	f, ok := r.codecs[cfg.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: codec/%q", ErrNotRegistered, cfg.Name)
	}
	return f(cfg)
}

// CreateStore builds the debug store named by cfg.Name.
func (r *Registry) CreateStore(ctx context.Context, cfg DebugStoreConfig) (artifact.Store, error) {
	r.mu.RLock()
	f, ok := r.stores[cfg.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: debug_store/%q", ErrNotRegistered, cfg.Name)
	}
	return f(ctx, cfg)
}

// Names returns the sorted registered names of kind "recognizer", "codec"
// or "debug_store".
func (r *Registry) Names(kind string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	switch kind {
	case "recognizer":
		return slices.Sorted(maps.Keys(r.recognizers))
	case "codec":
		return slices.Sorted(maps.Keys(r.codecs))
	case "debug_store":
		return slices.Sorted(maps.Keys(r.stores))
	}
	return nil
}
