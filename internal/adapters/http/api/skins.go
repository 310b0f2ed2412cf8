package api

import (
	"net/http"

	"github.com/okian/attrition/internal/domain/encoding"
)

// SkinsHandler describes the available form variants.
type SkinsHandler struct {
	deps SkinsDependencies
}

// NewSkinsHandler creates a new skins handler.
func NewSkinsHandler(deps SkinsDependencies) *SkinsHandler {
	return &SkinsHandler{deps: deps}
}

type skinView struct {
	Name    string              `json:"name"`
	Title   string              `json:"title"`
	Default bool                `json:"default"`
	Labels  map[string]string   `json:"labels"`
	Tables  map[string][]string `json:"tables"`
}

// HandleList handles GET /api/skins. Table labels are listed in code order
// starting at 1.
func (h *SkinsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_skins"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	reg := h.deps.Skins()
	if reg == nil {
		writeFailure(w, NewKind(op, ErrUnavailable))
		return
	}

	def := reg.Default().Name
	out := make([]skinView, 0, len(reg.Names()))
	for _, name := range reg.Names() {
		skin, err := reg.Get(name)
		if err != nil {
			writeFailure(w, Wrap(op, err))
			return
		}
		out = append(out, toSkinView(skin, name == def))
	}
	writeJSON(w, http.StatusOK, out)
}

func toSkinView(s encoding.Skin, isDefault bool) skinView {
	v := skinView{
		Name:    s.Name,
		Title:   s.Title,
		Default: isDefault,
		Labels:  s.Labels,
		Tables:  make(map[string][]string, len(s.Tables)),
	}
	for field, t := range s.Tables {
		v.Tables[field] = t.Labels()
	}
	return v
}
