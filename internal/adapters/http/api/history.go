package api

import (
	"net/http"
	"strconv"
)

// HistoryHandler lists past evaluation runs.
type HistoryHandler struct {
	deps     HistoryDependencies
	maxLimit int
}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler(deps HistoryDependencies, maxLimit int) *HistoryHandler {
	return &HistoryHandler{
		deps:     deps,
		maxLimit: maxLimit,
	}
}

// HandleList handles GET /api/evaluations?limit=N requests. The limit
// defaults to 20.
func (h *HistoryHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_evaluations"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	n := defaultHistoryLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		v, err := strconv.Atoi(limitStr)
		if err != nil || v < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		n = v
	}
	if n > h.maxLimit {
		writeError(w, http.StatusBadRequest, "limit_exceeded", NewKind(op, ErrBadRequest))
		return
	}

	runs, err := h.deps.History(r.Context(), n)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// HandleGet handles GET /api/evaluations/{id} requests.
func (h *HistoryHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_evaluation"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	run, err := h.deps.Evaluation(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, run)
}
