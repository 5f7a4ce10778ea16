package google

import (
	"context"
	"fmt"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/MrWong99/nmspgate/pkg/codec"
	"github.com/MrWong99/nmspgate/pkg/provider/asr"
)

// DefaultLegacyModel is the v1 model used when none is configured.
const DefaultLegacyModel = "latest_short"

// v1Client is the subset of the v1 client used by V1.
type v1Client interface {
	Recognize(ctx context.Context, req *speechpb.RecognizeRequest, opts ...gax.CallOption) (*speechpb.RecognizeResponse, error)
	Close() error
}

// V1 is an asr.Provider backed by Speech-to-Text v1.
//
// v1 has no chirp models, so the model resolved per language is replaced by
// a fixed legacy model.
type V1 struct {
	client v1Client
	model  string
}

var _ asr.Provider = (*V1)(nil)

// NewV1 dials the v1 API. An empty model selects [DefaultLegacyModel].
func NewV1(ctx context.Context, model string, opts ...Option) (*V1, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	client, err := speech.NewClient(ctx, o.build()...)
	if err != nil {
		return nil, fmt.Errorf("google: create v1 client: %w", err)
	}
	return newV1(client, model), nil
}

func newV1(client v1Client, model string) *V1 {
	if model == "" {
		model = DefaultLegacyModel
	}
	return &V1{client: client, model: model}
}

// Recognize implements asr.Provider.
func (p *V1) Recognize(ctx context.Context, req asr.Request) (*asr.Response, error) {
	enc, err := v1Encoding(req.Encoding)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   enc,
			SampleRateHertz:            int32(req.SampleRate),
			AudioChannelCount:          1,
			LanguageCode:               languageTag(req.Language),
			MaxAlternatives:            1,
			EnableWordConfidence:       true,
			EnableAutomaticPunctuation: true,
			EnableSpokenPunctuation:    wrapperspb.Bool(true),
			EnableSpokenEmojis:         wrapperspb.Bool(false),
			Metadata: &speechpb.RecognitionMetadata{
				MicrophoneDistance: speechpb.RecognitionMetadata_NEARFIELD,
			},
			Model: p.model,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: req.Audio},
		},
	})
	if err != nil {
		return nil, classify(err)
	}
	return v1Response(resp), nil
}

// Close implements asr.Provider.
func (p *V1) Close() error { return p.client.Close() }

func v1Encoding(e codec.Encoding) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch e {
	case codec.Linear16:
		return speechpb.RecognitionConfig_LINEAR16, nil
	case codec.SpeexWithHeaderByte:
		return speechpb.RecognitionConfig_SPEEX_WITH_HEADER_BYTE, nil
	}
	return 0, fmt.Errorf("google: v1 with %s: %w", e, asr.ErrUnsupportedEncoding)
}

func v1Response(resp *speechpb.RecognizeResponse) *asr.Response {
	results := resp.GetResults()
	out := &asr.Response{Results: make([]asr.Result, 0, len(results))}
	for _, r := range results {
		alts := make([]asr.Alternative, 0, len(r.GetAlternatives()))
		for _, a := range r.GetAlternatives() {
			alts = append(alts, asr.Alternative{Transcript: a.GetTranscript(), Confidence: a.GetConfidence()})
		}
		out.Results = append(out.Results, asr.Result{Alternatives: alts})
	}
	return out
}
