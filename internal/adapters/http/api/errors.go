package api

import (
	"context"
	"encoding/csv"
	"errors"
	"net/http"

	"github.com/okian/attrition/internal/adapters/dataset"
	"github.com/okian/attrition/internal/adapters/predictor"
	service "github.com/okian/attrition/internal/app"
	"github.com/okian/attrition/internal/domain/encoding"
	"github.com/okian/attrition/internal/domain/model"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest  = errors.New("bad request")
	ErrTooLarge    = errors.New("upload too large")
	ErrUnavailable = errors.New("service unavailable")
)

// OpError tags an error with the handler operation that produced it.
type OpError struct {
	Op   string
	Kind error
	Err  error
}

func (e *OpError) Error() string {
	switch {
	case e.Err == nil:
		return e.Op + ": " + e.Kind.Error()
	case e.Kind == nil:
		return e.Op + ": " + e.Err.Error()
	default:
		return e.Op + ": " + e.Kind.Error() + ": " + e.Err.Error()
	}
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *OpError) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// Wrap tags err with op.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, Err: err}
}

// WrapKind tags err with op and a sentinel kind.
func WrapKind(op string, kind, err error) error {
	return &OpError{Op: op, Kind: kind, Err: err}
}

// NewKind builds an error from op and a sentinel kind alone.
func NewKind(op string, kind error) error {
	return &OpError{Op: op, Kind: kind}
}

// statusFor maps an error to its HTTP status and machine readable code.
func statusFor(err error) (int, string) {
	var maxBytes *http.MaxBytesError
	var reqErr *predictor.PredictionRequestError
	var csvErr *csv.ParseError

	// batch errors wrap row causes, so they are matched first
	switch {
	case errors.Is(err, service.ErrBatchAborted):
		return http.StatusUnprocessableEntity, "batch_aborted"
	case errors.Is(err, service.ErrNoScoredRows):
		return http.StatusUnprocessableEntity, "no_scored_rows"
	case errors.As(err, &maxBytes), errors.Is(err, ErrTooLarge):
		return http.StatusRequestEntityTooLarge, "too_large"
	case errors.Is(err, model.ErrInvalidRecord):
		return http.StatusBadRequest, "invalid_record"
	case errors.Is(err, encoding.ErrUnknownLabel):
		return http.StatusBadRequest, "unknown_label"
	case errors.Is(err, encoding.ErrUnknownSkin):
		return http.StatusNotFound, "unknown_skin"
	case errors.Is(err, service.ErrRunNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, dataset.ErrMissingLabelColumn),
		errors.Is(err, dataset.ErrMissingFeature),
		errors.Is(err, dataset.ErrEmptyDataset),
		errors.As(err, &csvErr):
		return http.StatusBadRequest, "invalid_dataset"
	case errors.Is(err, service.ErrUnknownPolicy), errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.As(err, &reqErr):
		if reqErr.Kind == predictor.KindTimeout {
			return http.StatusGatewayTimeout, "prediction_timeout"
		}
		return http.StatusBadGateway, "prediction_failed"
	case errors.Is(err, service.ErrNotStarted), errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "canceled"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
