// Package mock provides an in-memory test double for artifact.Store.
package mock

import (
	"context"
	"maps"
	"sync"

	"github.com/MrWong99/nmspgate/pkg/artifact"
)

// AnnotateCall records a single invocation of Store.Annotate.
type AnnotateCall struct {
	Key  string
	Meta artifact.Metadata
}

// Store keeps objects in memory. Put and Annotate behave like a real backend
// unless an error is injected.
type Store struct {
	mu      sync.Mutex
	objects map[string]artifact.Object

	// PutErr, AnnotateErr and PingErr are returned by the matching method
	// when non-nil.
	PutErr      error
	AnnotateErr error
	PingErr     error

	// PutCalls records every object passed to Put.
	PutCalls []artifact.Object

	// AnnotateCalls records every Annotate call.
	AnnotateCalls []AnnotateCall

	// Closed reports whether Close was called.
	Closed bool
}

var _ artifact.Store = (*Store)(nil)

// Put records obj and stores it.
func (s *Store) Put(_ context.Context, obj artifact.Object) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PutCalls = append(s.PutCalls, obj)
	if s.PutErr != nil {
		return s.PutErr
	}
	if s.objects == nil {
		s.objects = make(map[string]artifact.Object)
	}
	if _, ok := s.objects[obj.Key]; ok {
		return artifact.ErrExists
	}
	obj.Data = append([]byte(nil), obj.Data...)
	obj.Meta = maps.Clone(obj.Meta)
	s.objects[obj.Key] = obj
	return nil
}

// Annotate records the call and merges meta into the stored object.
func (s *Store) Annotate(_ context.Context, key string, meta artifact.Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.AnnotateCalls = append(s.AnnotateCalls, AnnotateCall{Key: key, Meta: maps.Clone(meta)})
	if s.AnnotateErr != nil {
		return s.AnnotateErr
	}
	obj, ok := s.objects[key]
	if !ok {
		return artifact.ErrNotFound
	}
	obj.Meta = obj.Meta.Merge(meta)
	s.objects[key] = obj
	return nil
}

// Ping returns PingErr.
func (s *Store) Ping(context.Context) error { return s.PingErr }

// Close marks the store closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed = true
	return nil
}

// Object returns the stored object under key.
func (s *Store) Object(key string) (artifact.Object, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[key]
	return obj, ok
}

// Puts returns a snapshot of PutCalls.
func (s *Store) Puts() []artifact.Object {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]artifact.Object(nil), s.PutCalls...)
}

// Annotations returns a snapshot of AnnotateCalls.
func (s *Store) Annotations() []AnnotateCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]AnnotateCall(nil), s.AnnotateCalls...)
}
