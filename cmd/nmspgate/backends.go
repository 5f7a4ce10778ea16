package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MrWong99/nmspgate/internal/app"
	"github.com/MrWong99/nmspgate/internal/config"
	"github.com/MrWong99/nmspgate/pkg/artifact"
	"github.com/MrWong99/nmspgate/pkg/artifact/postgres"
	"github.com/MrWong99/nmspgate/pkg/artifact/s3store"
	"github.com/MrWong99/nmspgate/pkg/codec"
	"github.com/MrWong99/nmspgate/pkg/codec/framed"
	"github.com/MrWong99/nmspgate/pkg/codec/opus"
	"github.com/MrWong99/nmspgate/pkg/codec/speex"
	"github.com/MrWong99/nmspgate/pkg/provider/asr"
	"github.com/MrWong99/nmspgate/pkg/provider/asr/google"
)

// registerBuiltins wires every backend that ships with nmspgate into reg.
func registerBuiltins(reg *config.Registry) {
	// ── Recognizers ───────────────────────────────────────────────────────────

	reg.RegisterRecognizer(config.RecognizerGoogleV2, func(ctx context.Context, rc config.RecognizerConfig) (asr.Provider, error) {
		return google.NewV2(ctx, rc.Project, rc.Region, googleOptions(rc)...)
	})
	reg.RegisterRecognizer(config.RecognizerGoogleV1, func(ctx context.Context, rc config.RecognizerConfig) (asr.Provider, error) {
		return google.NewV1(ctx, rc.LegacyModel, googleOptions(rc)...)
	})

	// ── Codecs ────────────────────────────────────────────────────────────────

	reg.RegisterCodec(config.CodecSpeex, func(config.CodecConfig) (codec.Factory, error) {
		// Probe once: builds without libspeex fail here, not on the first upload.
		dec, err := speex.Factory()
		if err != nil {
			return nil, err
		}
		_ = dec.Close()
		return speex.Factory, nil
	})
	reg.RegisterCodec(config.CodecOpus, func(config.CodecConfig) (codec.Factory, error) {
		return opus.Factory, nil
	})
	reg.RegisterCodec(config.CodecPassthrough, func(config.CodecConfig) (codec.Factory, error) {
		return framed.Factory, nil
	})

	// ── Debug stores ──────────────────────────────────────────────────────────

	reg.RegisterStore(config.StoreS3, func(_ context.Context, dc config.DebugStoreConfig) (artifact.Store, error) {
		return s3store.New(s3store.Config{
			Bucket:          dc.Bucket,
			Prefix:          dc.Prefix,
			Region:          dc.Region,
			Endpoint:        dc.Endpoint,
			AccessKeyID:     dc.AccessKeyID,
			SecretAccessKey: dc.SecretAccessKey,
		})
	})
	reg.RegisterStore(config.StorePostgres, func(ctx context.Context, dc config.DebugStoreConfig) (artifact.Store, error) {
		return postgres.New(ctx, dc.PostgresDSN)
	})
}

func googleOptions(rc config.RecognizerConfig) []google.Option {
	var opts []google.Option
	if rc.APIKey != "" {
		opts = append(opts, google.WithAPIKey(rc.APIKey))
	}
	if rc.Endpoint != "" {
		opts = append(opts, google.WithEndpoint(rc.Endpoint))
	}
	return opts
}

// buildBackends instantiates the backends named in cfg using the registry.
func buildBackends(ctx context.Context, cfg *config.Config, reg *config.Registry) (*app.Backends, error) {
	b := &app.Backends{}

	rec, err := reg.CreateRecognizer(ctx, cfg.Recognizer)
	if err != nil {
		return nil, fmt.Errorf("create recognizer %q: %w", cfg.Recognizer.Name, err)
	}
	b.Recognizer = rec
	slog.Info("backend created", "kind", "recognizer", "name", cfg.Recognizer.Name)

	dec, err := reg.CreateCodec(cfg.Codec)
	if err != nil {
		_ = rec.Close()
		return nil, fmt.Errorf("create codec %q: %w", cfg.Codec.Name, err)
	}
	b.Decoders = dec
	slog.Info("backend created", "kind", "codec", "name", cfg.Codec.Name)

	if name := cfg.DebugStore.Name; name != "" {
		store, err := reg.CreateStore(ctx, cfg.DebugStore)
		if err != nil {
			_ = rec.Close()
			return nil, fmt.Errorf("create debug store %q: %w", name, err)
		}
		b.Store = store
		slog.Info("backend created", "kind", "debug_store", "name", name)
	}

	return b, nil
}
