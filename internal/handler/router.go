package handler

import (
	"net/http"

	"github.com/expiwt/AlphaHack/internal/config"
	"github.com/expiwt/AlphaHack/internal/middleware"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// NewRouter wires every route under /api/v1
func NewRouter(h *Handler, cfg *config.Config, log *logrus.Logger) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.RequestLogger(log))
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "route not found"})
	})

	api := r.PathPrefix("/api/v1").Subrouter()
	// Public routes
	api.HandleFunc("/auth/register", h.Register).Methods("POST")
	api.HandleFunc("/auth/login", h.Login).Methods("POST")
	api.HandleFunc("/health", h.Health).Methods("GET")
	api.HandleFunc("/health/detailed", h.HealthDetailed).Methods("GET")

	// Protected routes
	authRouter := api.PathPrefix("/").Subrouter()
	authRouter.Use(middleware.AuthMiddleware(cfg))
	authRouter.HandleFunc("/clients", h.ListClients).Methods("GET")
	authRouter.HandleFunc("/clients/upload-csv", h.UploadCSV).Methods("POST")
	authRouter.HandleFunc("/clients/seed/data", h.Seed).Methods("POST")
	authRouter.HandleFunc("/clients/{id}", h.GetClient).Methods("GET")
	authRouter.HandleFunc("/predictions/{id}", h.GetPrediction).Methods("GET")
	authRouter.HandleFunc("/dashboard", h.Dashboard).Methods("GET")
	authRouter.HandleFunc("/uploads", h.ListUploads).Methods("GET")
	authRouter.HandleFunc("/key-rate", h.KeyRate).Methods("GET")

	return r
}
