package api

import (
	"net/http"
)

// dashboardHandler serves the operations dashboard.
type dashboardHandler struct{}

func newDashboardHandler() *dashboardHandler {
	return &dashboardHandler{}
}

// HandleDashboard handles GET /dashboard. The page polls /healthz and
// /api/evaluations from the browser and charts prediction traffic and
// the latest evaluation scores.
func (h *dashboardHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	http.ServeFileFS(w, r, dashboardFS, "dashboard.html")
}
