package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/expiwt/AlphaHack/internal/service"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	svc            *service.Service
	log            *logrus.Logger
	maxUploadBytes int64
}

func NewHandler(svc *service.Service, log *logrus.Logger, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 32 << 20
	}
	return &Handler{svc: svc, log: log, maxUploadBytes: maxUploadBytes}
}

// writeJSON encodes v before writing the status so encoding failures become a 500
func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		h.log.Errorf("Failed to encode response: %v", err)
		status = http.StatusInternalServerError
		body = []byte(`{"error":"internal server error"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(body, '\n')); err != nil {
		h.log.Debugf("Failed to write response: %v", err)
	}
}

// writeError maps service errors to HTTP statuses
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, service.ErrKeyRateUnavailable):
		status = http.StatusServiceUnavailable
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		h.log.Errorf("Request failed: %v", err)
		message = "internal server error"
	}
	h.writeJSON(w, status, map[string]string{"error": message})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.writeError(w, &service.ValidationError{Reason: "invalid request body"})
		return false
	}
	return true
}
