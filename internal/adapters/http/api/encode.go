package api

import (
	"encoding/json"
	"net/http"
)

// EncodeHandler translates category labels into model codes.
type EncodeHandler struct {
	deps EncodeDependencies
}

// NewEncodeHandler creates a new encode handler.
func NewEncodeHandler(deps EncodeDependencies) *EncodeHandler {
	return &EncodeHandler{deps: deps}
}

type encodeRequest struct {
	Skin       string            `json:"skin"`
	Selections map[string]string `json:"selections"`
}

type encodeResponse struct {
	Skin  string         `json:"skin"`
	Codes map[string]int `json:"codes"`
}

// HandleEncode handles POST /api/encode.
func (h *EncodeHandler) HandleEncode(w http.ResponseWriter, r *http.Request) {
	const op = "api.encode"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var req encodeRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if len(req.Selections) == 0 {
		writeFailure(w, NewKind(op, ErrBadRequest))
		return
	}

	codes, err := h.deps.Encode(r.Context(), req.Skin, req.Selections)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, encodeResponse{Skin: req.Skin, Codes: codes})
}
