package gateway

import (
	"context"
	"log/slog"
	"time"

	"github.com/MrWong99/nmspgate/internal/auth"
	"github.com/MrWong99/nmspgate/internal/observe"
)

// requestContext collects what one upload learned along the way, for the
// final log line.
type requestContext struct {
	start    time.Time
	id       *auth.Identity
	frames   int
	pcmBytes int
	audio    time.Duration
	words    int
	stages   []slog.Attr
}

func (rc *requestContext) timing(stage string, d time.Duration) {
	rc.stages = append(rc.stages, slog.Duration(stage, d))
}

func (rc *requestContext) log(ctx context.Context, status int, outcome string, err error) {
	attrs := []slog.Attr{
		slog.Int("status", status),
		slog.String("outcome", outcome),
		slog.Duration("total", time.Since(rc.start)),
		slog.Int("frames", rc.frames),
		slog.Int("pcm_bytes", rc.pcmBytes),
		slog.Duration("audio", rc.audio),
		slog.Int("words", rc.words),
	}
	if rc.id != nil {
		attrs = append(attrs, slog.Any("identity", rc.id))
	}
	if len(rc.stages) > 0 {
		args := make([]any, len(rc.stages))
		for i, a := range rc.stages {
			args[i] = a
		}
		attrs = append(attrs, slog.Group("stages", args...))
	}

	level := slog.LevelInfo
	switch {
	case err == nil:
	case status >= 500:
		level = slog.LevelError
		attrs = append(attrs, slog.String("err", err.Error()))
	default:
		level = slog.LevelWarn
		attrs = append(attrs, slog.String("err", err.Error()))
	}
	observe.Logger(ctx).LogAttrs(ctx, level, "upload finished", attrs...)
}
