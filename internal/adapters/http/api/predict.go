package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/attrition/internal/adapters/dataset"
	"github.com/okian/attrition/internal/domain/encoding"
	"github.com/okian/attrition/internal/domain/model"
)

// PredictHandler handles single record predictions.
type PredictHandler struct {
	deps PredictDependencies
}

// NewPredictHandler creates a new predict handler.
func NewPredictHandler(deps PredictDependencies) *PredictHandler {
	return &PredictHandler{deps: deps}
}

type predictResponse struct {
	model.Assessment
	Record model.EmployeeRecord `json:"record"`
}

// HandlePredict handles POST /api/predict. The body is a JSON object with
// all fifteen features keyed by name.
func (h *PredictHandler) HandlePredict(w http.ResponseWriter, r *http.Request) {
	const op = "api.predict"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var values map[string]float64
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)).Decode(&values); err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	record, err := model.RecordFromMap(values)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}

	a, err := h.deps.Predict(r.Context(), record)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, predictResponse{Assessment: a, Record: record})
}

// failedFields lists the fields named by record, label and header errors.
func failedFields(err error) []string {
	var invalid *model.InvalidRecordError
	var unknown *encoding.UnknownLabelError
	var missing *dataset.MissingFeatureColumnError
	switch {
	case errors.As(err, &invalid):
		return invalid.Fields
	case errors.As(err, &unknown):
		return []string{unknown.Field}
	case errors.As(err, &missing):
		return missing.Columns
	}
	return nil
}
