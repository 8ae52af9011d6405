package handler

import (
	"net/http"
	"time"
)

// Dashboard returns aggregate statistics
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Dashboard(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

// KeyRate returns the lending rate together with the CBR key rate it is based on
func (h *Handler) KeyRate(w http.ResponseWriter, r *http.Request) {
	rate, err := h.svc.GetKeyRate(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, rate)
}

// Health reports liveness
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HealthDetailed reports liveness together with the store state
func (h *Handler) HealthDetailed(w http.ResponseWriter, r *http.Request) {
	status, code, store := "ok", http.StatusOK, "ok"
	if err := h.svc.Ping(r.Context()); err != nil {
		h.log.Warnf("Store ping failed: %v", err)
		status, code, store = "degraded", http.StatusServiceUnavailable, err.Error()
	}
	h.writeJSON(w, code, map[string]any{
		"status":    status,
		"store":     store,
		"timestamp": time.Now().UTC(),
	})
}
