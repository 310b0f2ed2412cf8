package site

import (
	"errors"
	"net/http"

	"github.com/okian/attrition/internal/adapters/dataset"
	"github.com/okian/attrition/internal/adapters/predictor"
	service "github.com/okian/attrition/internal/app"
	"github.com/okian/attrition/internal/domain/encoding"
	"github.com/okian/attrition/internal/domain/model"
)

// statusFor picks the response status for a failed page action. The page
// itself always renders with the error message.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, service.ErrBatchAborted), errors.Is(err, service.ErrNoScoredRows):
		return http.StatusUnprocessableEntity
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, model.ErrInvalidRecord),
		errors.Is(err, encoding.ErrUnknownLabel),
		errors.Is(err, dataset.ErrMissingLabelColumn),
		errors.Is(err, dataset.ErrMissingFeature),
		errors.Is(err, dataset.ErrEmptyDataset):
		return http.StatusBadRequest
	case errors.Is(err, predictor.ErrPredictionRequest):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
