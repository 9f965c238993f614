package api

import "net/http"

// Health reports the aggregate service status. The storage driver is the only
// hard dependency, so a failed ping marks the whole service degraded.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	checks := map[string]string{"storage": "ok"}
	if err := h.Store.Ping(r.Context()); err != nil {
		status = "degraded"
		checks["storage"] = "unreachable"
		h.logger().Warn("storage ping failed", "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   status,
		"services": checks,
	})
}
