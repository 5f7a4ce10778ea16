package artifact_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/nmspgate/internal/resilience"
	"github.com/MrWong99/nmspgate/pkg/artifact"
	"github.com/MrWong99/nmspgate/pkg/artifact/mock"
)

var errTest = errors.New("test error")

func TestKey(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 3, 4, 5, 6, 7, 891_234_000, time.FixedZone("CET", 3600))
	got := artifact.Key("uid-42", at, ".wav")
	if want := "uid-42/20260304T040607.891234Z.wav"; got != want {
		t.Errorf("Key = %q, want %q", got, want)
	}
}

func TestMetadata_Merge(t *testing.T) {
	t.Parallel()

	base := artifact.Metadata{"language": "en-us", "model": "chirp_2"}
	got := base.Merge(artifact.Metadata{"transcript": "hi", "model": "latest_short"})

	if got["language"] != "en-us" || got["model"] != "latest_short" || got["transcript"] != "hi" {
		t.Errorf("Merge = %v", got)
	}
	if base["model"] != "chirp_2" || len(base) != 2 {
		t.Errorf("Merge mutated receiver: %v", base)
	}
}

func TestGuard_PassesThrough(t *testing.T) {
	t.Parallel()

	store := &mock.Store{}
	g := artifact.Guard(store, resilience.NewBreaker(resilience.BreakerConfig{Name: "debug-store"}))
	ctx := context.Background()

	if err := g.Put(ctx, artifact.Object{Key: "u/1.wav", Data: []byte("RIFF")}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := g.Annotate(ctx, "u/1.wav", artifact.Metadata{artifact.MetaTranscript: "hello"}); err != nil {
		t.Fatalf("Annotate: %v", err)
	}
	obj, ok := store.Object("u/1.wav")
	if !ok || obj.Meta[artifact.MetaTranscript] != "hello" {
		t.Errorf("stored object = %+v", obj)
	}
}

func TestGuard_OpensAfterFailures(t *testing.T) {
	t.Parallel()

	store := &mock.Store{PutErr: errTest}
	g := artifact.Guard(store, resilience.NewBreaker(resilience.BreakerConfig{
		Name:        "debug-store",
		MaxFailures: 2,
		Cooldown:    time.Hour,
	}))
	ctx := context.Background()
	obj := artifact.Object{Key: "u/1.wav"}

	for range 2 {
		if err := g.Put(ctx, obj); !errors.Is(err, errTest) {
			t.Fatalf("Put err = %v, want %v", err, errTest)
		}
	}
	if err := g.Put(ctx, obj); !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Errorf("Put err = %v, want %v", err, resilience.ErrCircuitOpen)
	}
	if n := len(store.Puts()); n != 2 {
		t.Errorf("store called %d times, want 2", n)
	}
	if g.Breaker().State() != resilience.StateOpen {
		t.Errorf("state = %v, want open", g.Breaker().State())
	}
}

func TestGuard_NotFoundKeepsBreakerClosed(t *testing.T) {
	t.Parallel()

	g := artifact.Guard(&mock.Store{}, resilience.NewBreaker(resilience.BreakerConfig{MaxFailures: 1}))
	for range 3 {
		err := g.Annotate(context.Background(), "missing", artifact.Metadata{"a": "b"})
		if !errors.Is(err, artifact.ErrNotFound) {
			t.Fatalf("Annotate err = %v, want %v", err, artifact.ErrNotFound)
		}
	}
	if g.Breaker().State() != resilience.StateClosed {
		t.Errorf("state = %v, want closed", g.Breaker().State())
	}
}

func TestMockStore_WriteOnce(t *testing.T) {
	t.Parallel()

	s := &mock.Store{}
	ctx := context.Background()
	if err := s.Put(ctx, artifact.Object{Key: "k"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(ctx, artifact.Object{Key: "k"}); !errors.Is(err, artifact.ErrExists) {
		t.Errorf("second Put err = %v, want %v", err, artifact.ErrExists)
	}
}
