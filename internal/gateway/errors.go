package gateway

import (
	"context"
	"errors"
	"net/http"

	"github.com/MrWong99/nmspgate/internal/auth"
	"github.com/MrWong99/nmspgate/pkg/audio"
	"github.com/MrWong99/nmspgate/pkg/nmsp"
	"github.com/MrWong99/nmspgate/pkg/provider/asr"
)

var (
	// ErrNoMetadata is returned when the body ends before the first frame.
	ErrNoMetadata = errors.New("gateway: missing metadata frame")

	// ErrReadBody marks a failure reading the request body, typically a
	// client that hung up.
	ErrReadBody = errors.New("gateway: read request body")
)

// Request outcomes, used as the metric label and log field.
const (
	OutcomeOK                 = "ok"
	OutcomeNoResult           = "no_result"
	OutcomeBadRequest         = "bad_request"
	OutcomeTooLarge           = "too_large"
	OutcomeUnauthorized       = "unauthorized"
	OutcomePaymentRequired    = "payment_required"
	OutcomeAuthUnavailable    = "auth_unavailable"
	OutcomeDecodeError        = "decode_error"
	OutcomeBackendUnavailable = "backend_unavailable"
	OutcomeBackendTimeout     = "backend_timeout"
	OutcomeBackendError       = "backend_error"
	OutcomeCanceled           = "canceled"
	OutcomeInternal           = "internal"
)

// stageError ties a failure to the pipeline stage that produced it, so
// errors without a known sentinel still map to the right status.
type stageError struct {
	stage string
	err   error
}

func (e *stageError) Error() string { return e.stage + ": " + e.err.Error() }
func (e *stageError) Unwrap() error { return e.err }

// Status maps a pipeline error to its HTTP status and outcome label.
func Status(err error) (int, string) {
	var maxBytes *http.MaxBytesError
	switch {
	case err == nil:
		return http.StatusOK, OutcomeOK
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge, OutcomeTooLarge
	case errors.Is(err, context.Canceled):
		return http.StatusBadRequest, OutcomeCanceled
	case errors.Is(err, nmsp.ErrNoBoundary),
		errors.Is(err, nmsp.ErrShortFrame),
		errors.Is(err, auth.ErrBadHost),
		errors.Is(err, ErrNoMetadata),
		errors.Is(err, ErrReadBody),
		errors.Is(err, audio.ErrBadSubframe):
		return http.StatusBadRequest, OutcomeBadRequest
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized, OutcomeUnauthorized
	case errors.Is(err, auth.ErrPaymentRequired):
		return http.StatusPaymentRequired, OutcomePaymentRequired
	case errors.Is(err, auth.ErrUnavailable):
		return http.StatusBadGateway, OutcomeAuthUnavailable
	case errors.Is(err, asr.ErrUnavailable):
		return http.StatusServiceUnavailable, OutcomeBackendUnavailable
	case errors.Is(err, asr.ErrTimeout):
		return http.StatusGatewayTimeout, OutcomeBackendTimeout
	}

	var se *stageError
	if errors.As(err, &se) {
		switch se.stage {
		case stageAudio:
			return http.StatusInternalServerError, OutcomeDecodeError
		case stageRecognize:
			return http.StatusBadGateway, OutcomeBackendError
		case stageAuth:
			return http.StatusBadGateway, OutcomeAuthUnavailable
		}
	}
	return http.StatusInternalServerError, OutcomeInternal
}
