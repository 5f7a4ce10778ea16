package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/nmspgate/internal/auth"
	"github.com/MrWong99/nmspgate/internal/observe"
	"github.com/MrWong99/nmspgate/pkg/artifact"
	"github.com/MrWong99/nmspgate/pkg/audio"
	"github.com/MrWong99/nmspgate/pkg/codec"
	"github.com/MrWong99/nmspgate/pkg/nmsp"
	"github.com/MrWong99/nmspgate/pkg/provider/asr"
)

// Stage names used in stage errors. They match the observe stage labels.
const (
	stageAuth      = observe.StageAuth
	stageMetadata  = observe.StageMetadata
	stageAudio     = observe.StageAudio
	stageRecognize = observe.StageRecognize
)

// DefaultMaxBodyBytes bounds one upload. Ten minutes of 16 kHz speex is far
// below it.
const DefaultMaxBodyBytes = 16 << 20

// Authenticator resolves the caller of an upload from its Host header.
type Authenticator interface {
	Authenticate(ctx context.Context, host string) (*auth.Identity, error)
}

// Transcriber turns decoded audio into response words. An empty slice means
// nothing was recognised.
type Transcriber interface {
	Transcribe(ctx context.Context, req asr.Request) ([]nmsp.Word, error)
}

// Config wires a [Handler]. Auth, Decoders and Transcriber are required.
type Config struct {
	Auth        Authenticator
	Decoders    codec.Factory
	Transcriber Transcriber

	// Store receives debug copies of the audio of users in debug mode. Nil
	// disables debug uploads.
	Store artifact.Store

	// StoreName labels debug store metrics. Default: "debug".
	StoreName string

	// Metrics defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics

	// Now defaults to time.Now. It stamps debug artifact keys.
	Now func() time.Time

	// MaxBodyBytes bounds the request body. Default: [DefaultMaxBodyBytes].
	MaxBodyBytes int64
}

// Handler serves the speech upload endpoint.
type Handler struct {
	auth      Authenticator
	decoders  codec.Factory
	asr       Transcriber
	store     artifact.Store
	storeName string
	metrics   *observe.Metrics
	now       func() time.Time
	maxBody   int64
}

var _ http.Handler = (*Handler)(nil)

// New validates cfg and returns a Handler.
func New(cfg Config) (*Handler, error) {
	var errs []error
	if cfg.Auth == nil {
		errs = append(errs, errors.New("gateway: Auth is required"))
	}
	if cfg.Decoders == nil {
		errs = append(errs, errors.New("gateway: Decoders is required"))
	}
	if cfg.Transcriber == nil {
		errs = append(errs, errors.New("gateway: Transcriber is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	h := &Handler{
		auth:      cfg.Auth,
		decoders:  cfg.Decoders,
		asr:       cfg.Transcriber,
		store:     cfg.Store,
		storeName: cfg.StoreName,
		metrics:   cfg.Metrics,
		now:       cfg.Now,
		maxBody:   cfg.MaxBodyBytes,
	}
	if h.storeName == "" {
		h.storeName = "debug"
	}
	if h.metrics == nil {
		h.metrics = observe.DefaultMetrics()
	}
	if h.now == nil {
		h.now = time.Now
	}
	if h.maxBody <= 0 {
		h.maxBody = DefaultMaxBodyBytes
	}
	return h, nil
}

// Register mounts h on mux for POST requests to servletPath.
func (h *Handler) Register(mux *http.ServeMux, servletPath string) {
	mux.Handle("POST "+servletPath, h)
}

// ServeHTTP runs the upload pipeline for one request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, span := observe.StartSpan(r.Context(), "nmsp.upload")
	defer span.End()

	h.metrics.ActiveRequests.Add(ctx, 1)
	defer h.metrics.ActiveRequests.Add(ctx, -1)

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	rc := &requestContext{start: time.Now()}
	body, err := h.process(ctx, rc, r)

	status, outcome := Status(err)
	if err == nil && rc.words == 0 {
		outcome = OutcomeNoResult
	}
	h.metrics.RecordRequest(ctx, outcome)
	rc.log(ctx, status, outcome, err)

	if err != nil {
		http.Error(w, http.StatusText(status), status)
		return
	}
	w.Header().Set("Content-Type", nmsp.ResponseContentType())
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		observe.Logger(ctx).Debug("gateway: write response", "err", err)
	}
}

// process runs every stage and returns the encoded reply.
func (h *Handler) process(ctx context.Context, rc *requestContext, r *http.Request) ([]byte, error) {
	id, err := h.authenticate(ctx, rc, r.Host)
	if err != nil {
		return nil, err
	}
	rc.id = id

	boundary, err := nmsp.ParseBoundary(r.Header.Get("Content-Type"))
	if err != nil {
		return nil, err
	}
	demux := nmsp.NewDemuxer(bodyReader{r.Body}, boundary)

	if err := h.readMetadata(ctx, rc, demux); err != nil {
		return nil, err
	}

	asm, err := h.decodeAudio(ctx, rc, demux)
	if err != nil {
		return nil, err
	}

	key := h.upload(ctx, rc, asm)

	req := asr.Request{
		Audio:      asm.Bytes(),
		Encoding:   asm.Encoding(),
		SampleRate: codec.SampleRate,
		Language:   id.Language.Language,
		Model:      id.Language.Model,
	}
	words, err := h.recognize(ctx, rc, req)
	if err != nil {
		return nil, err
	}
	rc.words = len(words)

	if key != "" {
		h.annotate(ctx, rc, key, words)
	}

	_, end := observe.Stage(ctx, h.metrics, observe.StageEncode)
	out := nmsp.EncodeResult(words)
	rc.timing(observe.StageEncode, end(nil))
	return out, nil
}

func (h *Handler) authenticate(ctx context.Context, rc *requestContext, host string) (*auth.Identity, error) {
	ctx, end := observe.Stage(ctx, h.metrics, observe.StageAuth)
	id, err := h.auth.Authenticate(ctx, host)
	rc.timing(observe.StageAuth, end(err))
	if err != nil {
		return nil, &stageError{stage: stageAuth, err: err}
	}
	return id, nil
}

func (h *Handler) readMetadata(ctx context.Context, rc *requestContext, demux *nmsp.Demuxer) error {
	ctx, end := observe.Stage(ctx, h.metrics, observe.StageMetadata)
	meta, err := demux.Next()
	if errors.Is(err, io.EOF) {
		err = ErrNoMetadata
	}
	rc.timing(observe.StageMetadata, end(err))
	if err != nil {
		return &stageError{stage: stageMetadata, err: err}
	}
	observe.Logger(ctx).Debug("gateway: metadata frame", "bytes", len(meta))
	return nil
}

func (h *Handler) decodeAudio(ctx context.Context, rc *requestContext, demux *nmsp.Demuxer) (*audio.Assembler, error) {
	ctx, end := observe.Stage(ctx, h.metrics, observe.StageAudio)
	asm, err := h.assemble(demux)
	rc.timing(observe.StageAudio, end(err))
	if err != nil {
		return nil, &stageError{stage: stageAudio, err: err}
	}
	rc.frames = asm.Frames()
	rc.pcmBytes = asm.Len()
	if asm.Encoding() == codec.Linear16 {
		rc.audio = audio.Duration(asm.Len(), codec.SampleRate)
	}
	if n := demux.Skipped(); n > 0 {
		observe.Logger(ctx).Debug("gateway: skipped frames without sub-headers", "frames", n)
	}
	h.metrics.RecordAudio(ctx, asm.Len(), asm.Frames())
	return asm, nil
}

func (h *Handler) assemble(demux *nmsp.Demuxer) (*audio.Assembler, error) {
	dec, err := h.decoders()
	if err != nil {
		return nil, fmt.Errorf("gateway: create decoder: %w", err)
	}
	defer func() {
		if cerr := dec.Close(); cerr != nil {
			slog.Debug("gateway: close decoder", "err", cerr)
		}
	}()

	asm := audio.NewAssembler(dec)
	if err := asm.Consume(demux.All()); err != nil {
		return nil, err
	}
	return asm, nil
}

// upload stores a debug copy of the audio and returns its key, or "" when
// nothing was stored.
func (h *Handler) upload(ctx context.Context, rc *requestContext, asm *audio.Assembler) string {
	if h.store == nil || !rc.id.Debug {
		return ""
	}
	ctx, end := observe.Stage(ctx, h.metrics, observe.StageUpload)

	obj := artifact.Object{
		Meta: artifact.Metadata{
			artifact.MetaLanguage: rc.id.Language.Language,
			artifact.MetaModel:    rc.id.Language.Model,
		},
	}
	var err error
	switch asm.Encoding() {
	case codec.Linear16:
		obj.Key = artifact.Key(rc.id.UID, h.now(), ".wav")
		obj.ContentType = "audio/wav"
		obj.Data, err = audio.EncodeWAV(asm.Bytes(), codec.SampleRate)
	default:
		obj.Key = artifact.Key(rc.id.UID, h.now(), ".spx")
		obj.ContentType = "audio/x-speex-with-header-byte"
		obj.Data = asm.Bytes()
	}
	if err == nil {
		err = h.store.Put(ctx, obj)
	}
	rc.timing(observe.StageUpload, end(err))
	h.metrics.RecordDebugStore(ctx, h.storeName, "put", storeStatus(err))

	if err != nil {
		observe.Logger(ctx).Warn("gateway: debug upload failed", "key", obj.Key, "err", err)
		return ""
	}
	return obj.Key
}

func (h *Handler) recognize(ctx context.Context, rc *requestContext, req asr.Request) ([]nmsp.Word, error) {
	ctx, end := observe.Stage(ctx, h.metrics, observe.StageRecognize)
	words, err := h.asr.Transcribe(ctx, req)
	rc.timing(observe.StageRecognize, end(err))
	if err != nil {
		return nil, &stageError{stage: stageRecognize, err: err}
	}
	return words, nil
}

func (h *Handler) annotate(ctx context.Context, rc *requestContext, key string, words []nmsp.Word) {
	ctx, end := observe.Stage(ctx, h.metrics, observe.StageAnnotate)
	err := h.store.Annotate(ctx, key, artifact.Metadata{
		artifact.MetaLanguage:   rc.id.Language.Language,
		artifact.MetaTranscript: transcript(words),
	})
	rc.timing(observe.StageAnnotate, end(err))
	h.metrics.RecordDebugStore(ctx, h.storeName, "annotate", storeStatus(err))
	if err != nil {
		observe.Logger(ctx).Warn("gateway: debug annotate failed", "key", key, "err", err)
	}
}

func transcript(words []nmsp.Word) string {
	var b strings.Builder
	for i, w := range words {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(w.Word)
	}
	return b.String()
}

func storeStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// bodyReader tags read failures so they map to a client error.
type bodyReader struct{ r io.Reader }

func (b bodyReader) Read(p []byte) (int, error) {
	n, err := b.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		err = fmt.Errorf("%w: %w", ErrReadBody, err)
	}
	return n, err
}
