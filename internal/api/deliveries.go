package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/foodrescue-nyc/coordinator/internal/storage"
)

type createDeliveryRequest struct {
	Date           string `json:"date" validate:"required,datetime=2006-01-02"`
	OrganizationID string `json:"organization_id" validate:"omitempty"`
	Notes          string `json:"notes" validate:"omitempty"`
}

func handleCreateDelivery(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createDeliveryRequest
		if !decodeValid(w, r, &req) {
			return
		}
		d, err := deps.Engine.CreateDelivery(r.Context(), req.Date, req.OrganizationID, req.Notes)
		if err != nil {
			writeError(w, err)
			return
		}
		writeData(w, d)
	}
}

func handleListDeliveries(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deliveries, err := deps.Store.ListDeliveries()
		if err != nil {
			writeError(w, err)
			return
		}
		if deliveries == nil {
			deliveries = []storage.Delivery{}
		}
		writeData(w, deliveries)
	}
}

type planRecurringRequest struct {
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	Count     int    `json:"count" validate:"required,min=1,max=52"`
}

func handlePlanRecurring(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req planRecurringRequest
		if !decodeValid(w, r, &req) {
			return
		}
		start, err := time.Parse(storage.DateLayout, req.StartDate)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid start_date: %v", err)
			return
		}
		created, err := deps.Engine.PlanRecurring(r.Context(), start, req.Count)
		if err != nil {
			writeError(w, err)
			return
		}
		if created == nil {
			created = []storage.Delivery{}
		}
		writeMessage(w, "recurring deliveries planned", created)
	}
}

type signupRequest struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"required,oneof=driver packer"`
}

// handleSignup signs a volunteer up for the delivery. The {id} segment
// accepts either a delivery ID or a YYYY-MM-DD date; a date that has no
// delivery yet creates one.
func handleSignup(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref := chi.URLParam(r, "id")
		var req signupRequest
		if !decodeValid(w, r, &req) {
			return
		}

		date := ref
		if _, err := time.Parse(storage.DateLayout, ref); err != nil {
			d, err := deps.Store.GetDelivery(ref)
			if err != nil {
				writeError(w, err)
				return
			}
			date = d.Date
		}

		res, err := deps.Engine.SignUp(r.Context(), req.Email, date, req.Role)
		if err != nil {
			writeError(w, err)
			return
		}
		writeMessage(w, "signed up", res)
	}
}

type cancelRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func handleCancelSignup(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req cancelRequest
		if !decodeValid(w, r, &req) {
			return
		}
		n, err := deps.Engine.Cancel(r.Context(), req.Email, id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeMessage(w, "cancelled", map[string]int{"cleared": n})
	}
}

type rescheduleRequest struct {
	NewDate string `json:"new_date" validate:"required,datetime=2006-01-02"`
	Reason  string `json:"reason" validate:"required"`
}

func handleReschedule(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req rescheduleRequest
		if !decodeValid(w, r, &req) {
			return
		}
		res, err := deps.Engine.Reschedule(r.Context(), id, req.NewDate, req.Reason)
		if err != nil {
			writeError(w, err)
			return
		}
		writeMessage(w, "rescheduled", res)
	}
}

func handleComplete(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req cancelRequest
		if !decodeValid(w, r, &req) {
			return
		}
		if err := deps.Engine.MarkCompleted(r.Context(), req.Email, id); err != nil {
			writeError(w, err)
			return
		}
		writeMessage(w, "marked completed", nil)
	}
}

func handleStaffing(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sum, err := deps.Reporter.DeliveryStaffing(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeData(w, sum)
	}
}

type assignRouteRequest struct {
	Email          string `json:"email" validate:"required,email"`
	OrganizationID string `json:"organization_id" validate:"required"`
}

func handleAssignRoute(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req assignRouteRequest
		if !decodeValid(w, r, &req) {
			return
		}
		route, err := deps.Engine.AssignRoute(r.Context(), req.Email, id, req.OrganizationID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeMessage(w, "route assigned", route)
	}
}

func handleListRoutes(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		routes, err := deps.Store.ListDeliveryRoutes(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		if routes == nil {
			routes = []storage.RouteDetail{}
		}
		writeData(w, routes)
	}
}
