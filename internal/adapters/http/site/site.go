// Package site serves the server-rendered prediction form and the dataset
// evaluation page. Every skin renders through the same templates.
package site

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	service "github.com/okian/attrition/internal/app"
	"github.com/okian/attrition/internal/domain/encoding"
	"github.com/okian/attrition/internal/domain/evaluation"
	"github.com/okian/attrition/internal/domain/model"
	"github.com/okian/attrition/pkg/logger"
)

// Error constants
var (
	ErrRender  = errors.New("page render failed")
	ErrBadForm = errors.New("invalid form value")
)

const defaultMaxUploadBytes = 32 << 20

// Dependencies required by the pages.
type Dependencies interface {
	Skins() *encoding.Registry
	PredictForm(ctx context.Context, in service.FormInput) (model.Assessment, model.EmployeeRecord, error)
	EvaluateCSV(ctx context.Context, r io.Reader, opts ...service.EvalOption) (service.Report, error)
}

// Handler renders the form and evaluation pages.
type Handler struct {
	deps     Dependencies
	maxBytes int64
	logger   logger.Logger
}

// NewHandler creates the page handler. A non-positive maxUploadBytes falls
// back to 32 MiB.
func NewHandler(deps Dependencies, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &Handler{deps: deps, maxBytes: maxUploadBytes, logger: logger.Get().Named("site")}
}

// Register attaches the page routes to mux. "/" only matches the root
// path so unknown paths stay 404.
func Register(_ context.Context, mux *http.ServeMux, h *Handler) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.HandleFunc("/", h.HandleForm)
	mux.HandleFunc("/evaluate", h.HandleEvaluate)
}

type optionView struct {
	Label    string
	Selected bool
}

type fieldView struct {
	Name        string
	Label       string
	Categorical bool
	Options     []optionView
	Min         float64
	Max         float64
	Value       string
}

type formPage struct {
	Title      string
	Skin       string
	Skins      []string
	Fields     []fieldView
	Assessment *model.Assessment
	Error      string
}

// HandleForm handles GET / (empty form) and POST / (predict and render).
func (h *Handler) HandleForm(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	reg := h.deps.Skins()
	if reg == nil {
		http.Error(w, "service not started", http.StatusServiceUnavailable)
		return
	}

	switch r.Method {
	case http.MethodGet:
		skin, err := reg.Get(r.URL.Query().Get("skin"))
		if err != nil {
			http.NotFound(w, r)
			return
		}
		h.render(w, http.StatusOK, "form.html", newFormPage(reg, skin, nil, nil))
	case http.MethodPost:
		h.submitForm(w, r, reg)
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) submitForm(w http.ResponseWriter, r *http.Request, reg *encoding.Registry) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	skin, err := reg.Get(r.PostFormValue("skin"))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	in := service.FormInput{
		Skin:       skin.Name,
		Numbers:    make(map[string]float64, len(model.Features)),
		Selections: make(map[string]string, len(encoding.CategoricalFields)),
	}
	submitted := make(map[string]string, len(model.Features))
	var badFields []string
	for _, f := range model.Features {
		raw := strings.TrimSpace(r.PostFormValue(f))
		submitted[f] = raw
		if skin.Categorical(f) {
			in.Selections[f] = raw
			continue
		}
		v, perr := strconv.ParseFloat(raw, 64)
		if perr != nil {
			badFields = append(badFields, skin.Label(f))
			continue
		}
		in.Numbers[f] = v
	}

	page := newFormPage(reg, skin, submitted, nil)
	if len(badFields) > 0 {
		page.Error = fmt.Sprintf("%v: %s", ErrBadForm, strings.Join(badFields, ", "))
		h.render(w, http.StatusBadRequest, "form.html", page)
		return
	}

	a, _, err := h.deps.PredictForm(r.Context(), in)
	if err != nil {
		h.logger.Warn(r.Context(), "form prediction failed", logger.Error(err))
		page.Error = err.Error()
		h.render(w, statusFor(err), "form.html", page)
		return
	}
	page.Assessment = &a
	h.render(w, http.StatusOK, "form.html", page)
}

// newFormPage builds the field list for skin. Submitted values, when
// present, are kept so the user sees what was scored.
func newFormPage(reg *encoding.Registry, skin encoding.Skin, submitted map[string]string, a *model.Assessment) formPage {
	def := model.DefaultRecord()
	fields := make([]fieldView, 0, len(model.Features))
	for _, f := range model.Features {
		rng := model.Ranges[f]
		fv := fieldView{Name: f, Label: skin.Label(f), Min: rng.Min, Max: rng.Max}

		current, hasSubmitted := submitted[f]
		if t, ok := skin.Table(f); ok {
			fv.Categorical = true
			if !hasSubmitted {
				dv, _ := def.Get(f)
				current, _ = t.Label(int(dv))
			}
			for _, label := range t.Labels() {
				fv.Options = append(fv.Options, optionView{Label: label, Selected: label == current})
			}
		} else {
			if !hasSubmitted {
				dv, _ := def.Get(f)
				current = strconv.FormatFloat(dv, 'f', -1, 64)
			}
			fv.Value = current
		}
		fields = append(fields, fv)
	}
	return formPage{
		Title:      skin.Title,
		Skin:       skin.Name,
		Skins:      reg.Names(),
		Fields:     fields,
		Assessment: a,
	}
}

type metricView struct {
	Name  string
	Value string
}

type evaluatePage struct {
	Title    string
	Report   *service.Report
	Metrics  []metricView
	Error    string
	MaxBytes int64
}

// HandleEvaluate handles GET /evaluate (upload form) and POST /evaluate
// (multipart CSV upload).
func (h *Handler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	page := evaluatePage{Title: "Evaluate Predictions", MaxBytes: h.maxBytes}

	switch r.Method {
	case http.MethodGet:
		h.render(w, http.StatusOK, "evaluate.html", page)
		return
	case http.MethodPost:
	default:
		http.NotFound(w, r)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	file, _, err := r.FormFile("file")
	if err != nil {
		page.Error = "Please choose a CSV file to upload."
		h.render(w, http.StatusBadRequest, "evaluate.html", page)
		return
	}
	defer func() { _ = file.Close() }()

	rep, err := h.deps.EvaluateCSV(r.Context(), file, service.EvalSource(model.SourceUpload))
	if err != nil {
		h.logger.Warn(r.Context(), "evaluation upload failed", logger.Error(err))
		page.Error = err.Error()
		h.render(w, statusFor(err), "evaluate.html", page)
		return
	}

	page.Report = &rep
	res := rep.Result
	page.Metrics = []metricView{
		{Name: "Accuracy", Value: evaluation.Format(res.Accuracy, false)},
		{Name: "Precision", Value: evaluation.Format(res.Precision, res.PrecisionUndefined)},
		{Name: "Recall", Value: evaluation.Format(res.Recall, res.RecallUndefined)},
		{Name: "F1 Score", Value: evaluation.Format(res.F1, false)},
	}
	h.render(w, http.StatusOK, "evaluate.html", page)
}

// render executes into a buffer first so a template failure never leaves
// a half written page.
func (h *Handler) render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, name, data); err != nil {
		h.logger.Error(context.Background(), "rendering page", logger.String("page", name), logger.Error(err))
		http.Error(w, fmt.Sprintf("%v: %v", ErrRender, err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
