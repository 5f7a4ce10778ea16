// Package google implements asr.Provider on Google Cloud Speech-to-Text.
//
// [V2] talks to the v2 API with recognizer "_" (no stored recognizer) and
// sends LINEAR16 audio; it is the path for chirp models. [V1] talks to the v1
// API and additionally accepts SPEEX_WITH_HEADER_BYTE, so firmware audio can
// be forwarded without local decoding.
package google

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/MrWong99/nmspgate/pkg/provider/asr"
)

// DefaultRegion is the location used when none is configured.
const DefaultRegion = "global"

// Option configures a provider at construction time.
type Option func(*options)

type options struct {
	apiKey        string
	endpoint      string
	clientOptions []option.ClientOption
}

// WithAPIKey authenticates with an API key instead of application default
// credentials.
func WithAPIKey(key string) Option {
	return func(o *options) { o.apiKey = key }
}

// WithEndpoint overrides the API endpoint (host:port).
func WithEndpoint(endpoint string) Option {
	return func(o *options) { o.endpoint = endpoint }
}

// WithClientOptions appends raw client options, e.g. for tests.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(o *options) { o.clientOptions = append(o.clientOptions, opts...) }
}

func (o *options) build() []option.ClientOption {
	var out []option.ClientOption
	if o.apiKey != "" {
		out = append(out, option.WithAPIKey(o.apiKey))
	}
	if o.endpoint != "" {
		out = append(out, option.WithEndpoint(o.endpoint))
	}
	return append(out, o.clientOptions...)
}

// regionalEndpoint returns the endpoint serving region. Non-global
// recognizers are only reachable through their regional host.
func regionalEndpoint(region string) string {
	if region == "" || region == DefaultRegion {
		return ""
	}
	return region + "-speech.googleapis.com:443"
}

// classify maps a backend error onto the asr sentinels.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("google: %w: %w", asr.ErrTimeout, err)
	}
	switch status.Code(err) {
	case codes.Unavailable:
		return fmt.Errorf("google: %w: %w", asr.ErrUnavailable, err)
	case codes.DeadlineExceeded:
		return fmt.Errorf("google: %w: %w", asr.ErrTimeout, err)
	}
	return fmt.Errorf("google: recognize: %w", err)
}

// languageTag restores BCP-47 casing ("en-us" → "en-US") for the backend.
func languageTag(lang string) string {
	base, region, ok := strings.Cut(lang, "-")
	if !ok || len(region) != 2 {
		return lang
	}
	return base + "-" + strings.ToUpper(region)
}
