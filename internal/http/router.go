package http

import (
	"dcspace-backend/internal/handlers"
	"dcspace-backend/internal/middleware"
	"dcspace-backend/internal/models"
	"dcspace-backend/internal/monitoring"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(
	rentHandler *handlers.RentHandler,
	healthHandler *handlers.HealthHandler,
	eventHub *monitoring.EventHub,
	authMiddleware *middleware.AuthMiddleware,
) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.MetricsMiddleware)

	// Health checks (no auth, for Kubernetes probes)
	r.HandleFunc("/health", healthHandler.BasicHealth).Methods("GET")
	r.HandleFunc("/health/ready", healthHandler.ReadinessHealth).Methods("GET")
	r.HandleFunc("/health/detailed", healthHandler.DetailedHealth).Methods("GET")

	// Prometheus scrape endpoint
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.Use(authMiddleware.Authenticate)

	// Rental contracts. Roles and ownership are enforced by the service.
	rents := api.PathPrefix("/rents").Subrouter()
	rents.HandleFunc("", rentHandler.Request).Methods("POST")
	rents.HandleFunc("/{id}", rentHandler.Get).Methods("GET")
	rents.HandleFunc("/{id}/provision", rentHandler.Provision).Methods("POST")
	rents.HandleFunc("/{id}/activate", rentHandler.Activate).Methods("POST")
	rents.HandleFunc("/{id}/contract", rentHandler.ContractURL).Methods("GET")
	rents.HandleFunc("/{id}/invoices/{invoiceId}/pay", rentHandler.Pay).Methods("POST")
	rents.HandleFunc("/{id}/invoices/{invoiceId}/verify", rentHandler.Verify).Methods("POST")
	rents.HandleFunc("/{id}/invoices/{invoiceId}/proof", rentHandler.ProofURL).Methods("GET")
	rents.HandleFunc("/{id}/invoices/{invoiceId}/pdf", rentHandler.InvoicePDF).Methods("GET")

	// Live domain event feed (admin only)
	events := api.PathPrefix("/events").Subrouter()
	events.Use(middleware.RequireRole(models.RoleAdmin))
	events.HandleFunc("/ws", eventHub.ServeWS).Methods("GET")

	return r
}
