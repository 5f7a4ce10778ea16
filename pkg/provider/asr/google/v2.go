package google

import (
	"context"
	"errors"
	"fmt"

	speech "cloud.google.com/go/speech/apiv2"
	"cloud.google.com/go/speech/apiv2/speechpb"
	"github.com/googleapis/gax-go/v2"

	"github.com/MrWong99/nmspgate/pkg/codec"
	"github.com/MrWong99/nmspgate/pkg/provider/asr"
)

// v2Client is the subset of the v2 client used by V2.
type v2Client interface {
	Recognize(ctx context.Context, req *speechpb.RecognizeRequest, opts ...gax.CallOption) (*speechpb.RecognizeResponse, error)
	Close() error
}

// V2 is an asr.Provider backed by Speech-to-Text v2.
type V2 struct {
	client     v2Client
	recognizer string
}

var _ asr.Provider = (*V2)(nil)

// NewV2 dials the v2 API for project in region.
func NewV2(ctx context.Context, project, region string, opts ...Option) (*V2, error) {
	if project == "" {
		return nil, errors.New("google: v2 requires a project")
	}
	if region == "" {
		region = DefaultRegion
	}
	o := options{endpoint: regionalEndpoint(region)}
	for _, opt := range opts {
		opt(&o)
	}
	client, err := speech.NewClient(ctx, o.build()...)
	if err != nil {
		return nil, fmt.Errorf("google: create v2 client: %w", err)
	}
	return newV2(client, project, region), nil
}

func newV2(client v2Client, project, region string) *V2 {
	return &V2{
		client:     client,
		recognizer: fmt.Sprintf("projects/%s/locations/%s/recognizers/_", project, region),
	}
}

// Recognize implements asr.Provider.
func (p *V2) Recognize(ctx context.Context, req asr.Request) (*asr.Response, error) {
	if req.Encoding != codec.Linear16 {
		return nil, fmt.Errorf("google: v2 with %s: %w", req.Encoding, asr.ErrUnsupportedEncoding)
	}
	resp, err := p.client.Recognize(ctx, p.buildRequest(req))
	if err != nil {
		return nil, classify(err)
	}
	return v2Response(resp), nil
}

func (p *V2) buildRequest(req asr.Request) *speechpb.RecognizeRequest {
	return &speechpb.RecognizeRequest{
		Recognizer: p.recognizer,
		Config: &speechpb.RecognitionConfig{
			DecodingConfig: &speechpb.RecognitionConfig_ExplicitDecodingConfig{
				ExplicitDecodingConfig: &speechpb.ExplicitDecodingConfig{
					Encoding:          speechpb.ExplicitDecodingConfig_LINEAR16,
					SampleRateHertz:   int32(req.SampleRate),
					AudioChannelCount: 1,
				},
			},
			Model:         req.Model,
			LanguageCodes: []string{languageTag(req.Language)},
			Features: &speechpb.RecognitionFeatures{
				EnableWordConfidence:       true,
				EnableAutomaticPunctuation: true,
				EnableSpokenPunctuation:    true,
				// Firmware fonts lack most emoji.
				EnableSpokenEmojis: false,
				MaxAlternatives:    1,
			},
		},
		AudioSource: &speechpb.RecognizeRequest_Content{Content: req.Audio},
	}
}

// Close implements asr.Provider.
func (p *V2) Close() error { return p.client.Close() }

func v2Response(resp *speechpb.RecognizeResponse) *asr.Response {
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
