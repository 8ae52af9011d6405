package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/expiwt/AlphaHack/internal/middleware"
	"github.com/expiwt/AlphaHack/internal/service"
	"github.com/gorilla/mux"
)

// GetClient returns one client record
func (h *Handler) GetClient(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.GetClient(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, rec)
}

// ListClients returns a filtered, sorted page of clients
func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sort := q.Get("sort")
	if sort == "" {
		sort = q.Get("sort_by")
	}
	res, err := h.svc.ListClients(r.Context(), service.ListParams{
		Sort:      sort,
		Order:     q.Get("order"),
		Limit:     q.Get("limit"),
		Offset:    q.Get("offset"),
		RiskLevel: q.Get("risk_level"),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// UploadCSV ingests a multipart CSV file
func (h *Handler) UploadCSV(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "file too large"})
			return
		}
		h.writeError(w, &service.ValidationError{Field: "file", Reason: "multipart field file is required"})
		return
	}
	defer file.Close()

	payload, err := io.ReadAll(file)
	if err != nil {
		h.writeError(w, &service.ValidationError{Field: "file", Reason: "failed to read upload"})
		return
	}

	user, _ := middleware.UserFromContext(r.Context())
	upload, err := h.svc.UploadCSV(r.Context(), header.Filename, user, payload)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, upload)
}

// Seed loads demo clients into an empty store
func (h *Handler) Seed(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Seed(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// ListUploads returns the upload history
func (h *Handler) ListUploads(w http.ResponseWriter, r *http.Request) {
	uploads, err := h.svc.ListUploads(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, uploads)
}

// GetPrediction returns predicted vs actual income of a client
func (h *Handler) GetPrediction(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetPrediction(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, p)
}
