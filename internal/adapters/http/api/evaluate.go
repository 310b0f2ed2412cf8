package api

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	service "github.com/okian/attrition/internal/app"
	"github.com/okian/attrition/internal/domain/evaluation"
	"github.com/okian/attrition/internal/domain/model"
)

// uploadField is the multipart field carrying the dataset.
const uploadField = "file"

// EvaluateHandler scores an uploaded labelled dataset.
type EvaluateHandler struct {
	deps     EvaluateDependencies
	maxBytes int64
}

// NewEvaluateHandler creates a new evaluate handler.
func NewEvaluateHandler(deps EvaluateDependencies, maxBytes int64) *EvaluateHandler {
	return &EvaluateHandler{deps: deps, maxBytes: maxBytes}
}

// metricsView carries the two decimal strings shown to users.
type metricsView struct {
	Accuracy  string `json:"accuracy"`
	Precision string `json:"precision"`
	Recall    string `json:"recall"`
	F1        string `json:"f1"`
}

type evaluateResponse struct {
	RunID     string               `json:"run_id"`
	Policy    string               `json:"policy"`
	Rows      int                  `json:"rows"`
	Scored    int                  `json:"scored"`
	Skipped   int                  `json:"skipped"`
	Metrics   metricsView          `json:"metrics"`
	Result    evaluation.Result    `json:"result"`
	Failures  []service.RowFailure `json:"failures,omitempty"`
	Predicted []model.Outcome      `json:"predicted"`
	Actual    []model.Outcome      `json:"actual"`
}

// viewMetrics formats a result to two decimals, "n/a" where undefined.
func viewMetrics(r evaluation.Result) metricsView {
	return metricsView{
		Accuracy:  evaluation.Format(r.Accuracy, false),
		Precision: evaluation.Format(r.Precision, r.PrecisionUndefined),
		Recall:    evaluation.Format(r.Recall, r.RecallUndefined),
		F1:        evaluation.Format(r.F1, false),
	}
}

// HandleEvaluate handles POST /api/evaluate. The dataset is either the raw
// request body (text/csv) or the "file" part of a multipart form. An
// optional ?policy=abort|skip overrides the configured failure policy.
func (h *EvaluateHandler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	const op = "api.evaluate"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	opts := []service.EvalOption{service.EvalSource(model.SourceUpload)}
	if p := r.URL.Query().Get("policy"); p != "" {
		policy, err := service.ParseFailurePolicy(p)
		if err != nil {
			writeFailure(w, Wrap(op, err))
			return
		}
		opts = append(opts, service.EvalPolicy(policy))
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	body, closeBody, err := datasetReader(r)
	if err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	defer closeBody()

	rep, err := h.deps.EvaluateCSV(r.Context(), body, opts...)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, evaluateResponse{
		RunID:     rep.RunID,
		Policy:    string(rep.Policy),
		Rows:      rep.Rows,
		Scored:    rep.Scored,
		Skipped:   rep.Skipped,
		Metrics:   viewMetrics(rep.Result),
		Result:    rep.Result,
		Failures:  rep.Failures,
		Predicted: rep.Predicted,
		Actual:    rep.Actual,
	})
}

// datasetReader returns the CSV stream of a raw or multipart upload.
func datasetReader(r *http.Request) (io.Reader, func(), error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if !strings.HasPrefix(mediaType, "multipart/") {
		return r.Body, func() {}, nil
	}
	file, _, err := r.FormFile(uploadField)
	if err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return nil, nil, maxBytes
		}
		return nil, nil, err
	}
	return file, func() { _ = file.Close() }, nil
}
