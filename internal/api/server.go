// Package api exposes the coordination REST surface. Every response uses
// the {success, data?, message} envelope; domain failures (missing entity,
// full slot, bad input) map to 400 and unexpected failures to 500.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/foodrescue-nyc/coordinator/internal/assistant"
	"github.com/foodrescue-nyc/coordinator/internal/notify"
	"github.com/foodrescue-nyc/coordinator/internal/scheduling"
	"github.com/foodrescue-nyc/coordinator/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

var validate = validator.New()

// Deps carries the wired components the handlers need.
type Deps struct {
	Store    *storage.Store
	Engine   *scheduling.Engine
	Reporter *scheduling.Reporter
	Chat     *assistant.Assistant // optional; nil disables POST /api/chat
	Notifier notify.Sender        // optional; nil disables outreach sends
	Token    string               // optional; empty disables bearer auth
}

// NewHandler builds the full route tree.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(metricsMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		if deps.Token != "" {
			r.Use(BearerAuth(deps.Token))
		}

		r.Get("/volunteers", handleListVolunteers(deps))
		r.Post("/volunteers", handleCreateVolunteer(deps))
		r.Get("/volunteers/stats", handleVolunteerStats(deps))
		r.Put("/volunteers/{email}/phone", handleUpdatePhone(deps))
		r.Get("/volunteers/{id}/schedule", handleVolunteerSchedule(deps))

		r.Get("/organizations", handleListOrganizations(deps))
		r.Post("/organizations", handleCreateOrganization(deps))
		r.Put("/organizations/{id}/status", handleUpdateOrgStatus(deps))
		r.Delete("/organizations/{id}", handleDeactivateOrganization(deps))
		r.Post("/organizations/{id}/outreach", handleOutreach(deps))

		r.Get("/deliveries", handleListDeliveries(deps))
		r.Post("/deliveries", handleCreateDelivery(deps))
		r.Post("/deliveries/recurring", handlePlanRecurring(deps))
		r.Post("/deliveries/{id}/signup", handleSignup(deps))
		r.Put("/deliveries/{id}/cancel", handleCancelSignup(deps))
		r.Put("/deliveries/{id}/reschedule", handleReschedule(deps))
		r.Post("/deliveries/{id}/complete", handleComplete(deps))
		r.Get("/deliveries/{id}/staffing", handleStaffing(deps))
		r.Get("/deliveries/{id}/routes", handleListRoutes(deps))
		r.Post("/deliveries/{id}/routes", handleAssignRoute(deps))

		r.Get("/calendar/upcoming", handleUpcoming(deps))
		r.Get("/calendar/month/{year}/{month}", handleMonth(deps))
		r.Get("/calendar/optimal-dates", handleOptimalDates(deps))
		r.Get("/calendar/workload-analysis", handleWorkload(deps))
		r.Get("/calendar/available", handleAvailableVolunteers(deps))
		r.Get("/calendar/volunteer/{id}/availability/{date}", handleAvailability(deps))

		r.Post("/chat", handleChat(deps))
		r.Get("/db-state", handleDBState(deps))
	})

	return r
}

// writeData writes a success envelope.
func writeData(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data})
}

// writeMessage writes a success envelope with a human-readable message
// alongside the data.
func writeMessage(w http.ResponseWriter, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	resp := map[string]any{"success": true, "message": message}
	if data != nil {
		resp["data"] = data
	}
	json.NewEncoder(w).Encode(resp)
}

// httpError writes a failure envelope.
func httpError(w http.ResponseWriter, code int, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"message": fmt.Sprintf(format, args...),
	})
}

// writeError maps a domain error to the envelope. Known domain failures are
// the caller's fault and return 400; anything else is a 500.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound),
		errors.Is(err, storage.ErrDuplicate),
		errors.Is(err, storage.ErrCapacity),
		errors.Is(err, scheduling.ErrValidation):
		httpError(w, http.StatusBadRequest, "%v", err)
	default:
		httpError(w, http.StatusInternalServerError, "%v", err)
	}
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}

// decodeValid decodes a JSON body into req and runs struct validation.
func decodeValid(w http.ResponseWriter, r *http.Request, req any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return false
	}
	if err := validate.Struct(req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request: %v", err)
		return false
	}
	return true
}
