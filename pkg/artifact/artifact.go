// Package artifact defines the Store interface for the optional debug copy of
// uploaded audio.
//
// Accounts with audio debug mode enabled get their upload stored before
// recognition, and the stored object is annotated with the language and
// transcript afterwards. Objects are written once; only their metadata
// changes.
//
// Store failures never fail an upload. Callers log them and carry on, which
// is why [Guard] wraps a store in a circuit breaker.
package artifact

import (
	"context"
	"errors"
	"maps"
	"time"
)

var (
	// ErrNotFound is returned by Annotate when the key does not exist.
	ErrNotFound = errors.New("artifact: not found")

	// ErrExists is returned by Put when the key is already taken.
	ErrExists = errors.New("artifact: already exists")
)

// Well-known metadata keys.
const (
	MetaLanguage   = "language"
	MetaModel      = "model"
	MetaTranscript = "transcript"
)

// Metadata is a flat set of string attributes stored next to an object.
type Metadata map[string]string

// Merge returns a copy of m with every entry of other applied on top.
func (m Metadata) Merge(other Metadata) Metadata {
	out := make(Metadata, len(m)+len(other))
	maps.Copy(out, m)
	maps.Copy(out, other)
	return out
}

// Object is one stored artifact.
type Object struct {
	Key         string
	ContentType string
	Data        []byte
	Meta        Metadata
}

// Store persists debug artifacts.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Put writes obj under obj.Key. Writing an existing key fails with
	// [ErrExists] where the backend can detect it.
	Put(ctx context.Context, obj Object) error

	// Annotate merges meta into the metadata of an existing object.
	Annotate(ctx context.Context, key string, meta Metadata) error

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases backend connections.
	Close() error
}

// keyTimeLayout sorts lexically in time order.
const keyTimeLayout = "20060102T150405.000000Z"

// Key returns the object key of an upload by uid at t: "<uid>/<timestamp><ext>".
func Key(uid string, t time.Time, ext string) string {
	return uid + "/" + t.UTC().Format(keyTimeLayout) + ext
}
