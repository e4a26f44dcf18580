package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/foodrescue-nyc/coordinator/internal/storage"
)

type createVolunteerRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone" validate:"omitempty"`
	Role  string `json:"role" validate:"required,oneof=driver packer both"`
}

func handleCreateVolunteer(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createVolunteerRequest
		if !decodeValid(w, r, &req) {
			return
		}

		v := storage.Volunteer{
			ID:        uuid.New().String(),
			Name:      req.Name,
			Email:     req.Email,
			Phone:     req.Phone,
			Role:      req.Role,
			CreatedAt: time.Now().UTC(),
		}
		if err := deps.Store.CreateVolunteer(v); err != nil {
			writeError(w, err)
			return
		}
		writeData(w, v)
	}
}

func handleListVolunteers(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		volunteers, err := deps.Store.ListVolunteers()
		if err != nil {
			writeError(w, err)
			return
		}
		if volunteers == nil {
			volunteers = []storage.Volunteer{}
		}
		writeData(w, volunteers)
	}
}

func handleVolunteerStats(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := deps.Reporter.VolunteerStats()
		if err != nil {
			writeError(w, err)
			return
		}
		writeData(w, stats)
	}
}

type updatePhoneRequest struct {
	Phone string `json:"phone" validate:"required"`
}

func handleUpdatePhone(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email := chi.URLParam(r, "email")
		var req updatePhoneRequest
		if !decodeValid(w, r, &req) {
			return
		}
		if err := deps.Store.UpdateVolunteerPhone(email, req.Phone); err != nil {
			writeError(w, err)
			return
		}
		writeMessage(w, "phone updated", map[string]string{"email": email, "phone": req.Phone})
	}
}

func handleVolunteerSchedule(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		days := parseIntParam(r, "days", 30, 365)

		schedule, err := deps.Reporter.VolunteerSchedule(id, days)
		if err != nil {
			writeError(w, err)
			return
		}
		if schedule == nil {
			schedule = []storage.ScheduleRow{}
		}
		writeData(w, schedule)
	}
}

type createOrganizationRequest struct {
	Name          string `json:"name" validate:"required"`
	Address       string `json:"address" validate:"required"`
	ContactPerson string `json:"contact_person" validate:"required"`
	ContactEmail  string `json:"contact_email" validate:"omitempty,email"`
	ContactPhone  string `json:"contact_phone" validate:"omitempty"`
	Category      string `json:"category" validate:"required,oneof=store kitchen"`
	Capacity      int    `json:"capacity" validate:"omitempty,min=0"`
}

func handleCreateOrganization(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createOrganizationRequest
		if !decodeValid(w, r, &req) {
			return
		}

		org := storage.Organization{
			ID:            uuid.New().String(),
			Name:          req.Name,
			Address:       req.Address,
			ContactPerson: req.ContactPerson,
			ContactEmail:  req.ContactEmail,
			ContactPhone:  req.ContactPhone,
			Category:      req.Category,
			Capacity:      req.Capacity,
			Status:        "potential",
			Active:        true,
			CreatedAt:     time.Now().UTC(),
		}
		if err := deps.Store.CreateOrganization(org); err != nil {
			writeError(w, err)
			return
		}
		writeData(w, org)
	}
}

func handleListOrganizations(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgs, err := deps.Store.ListOrganizations(r.URL.Query().Get("category"))
		if err != nil {
			writeError(w, err)
			return
		}
		if orgs == nil {
			orgs = []storage.Organization{}
		}
		writeData(w, orgs)
	}
}

type updateOrgStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=potential partner"`
}

func handleUpdateOrgStatus(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req updateOrgStatusRequest
		if !decodeValid(w, r, &req) {
			return
		}
		if err := deps.Store.UpdateOrganizationStatus(id, req.Status); err != nil {
			writeError(w, err)
			return
		}
		writeMessage(w, "status updated", map[string]string{"id": id, "status": req.Status})
	}
}

func handleDeactivateOrganization(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := deps.Store.DeactivateOrganization(id); err != nil {
			writeError(w, err)
			return
		}
		writeMessage(w, "organization deactivated", nil)
	}
}

// handleOutreach sends the partnership pitch matching the organization's
// category to its contact email.
func handleOutreach(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		org, err := deps.Store.GetOrganization(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		if org.ContactEmail == "" {
			httpError(w, http.StatusBadRequest, "organization %s has no contact email", org.Name)
			return
		}
		if deps.Notifier == nil {
			httpError(w, http.StatusBadRequest, "no email sender configured")
			return
		}

		template := "store_partnership"
		if org.Category == "kitchen" {
			template = "kitchen_partnership"
		}
		fields := map[string]string{
			"organization_name": org.Name,
			"contact_person":    org.ContactPerson,
		}
		if err := deps.Notifier.Send(r.Context(), template, org.ContactEmail, fields); err != nil {
			slog.Warn("outreach send failed", "organization", org.ID, "error", err)
			httpError(w, http.StatusInternalServerError, "sending outreach email: %v", err)
			return
		}
		writeMessage(w, "outreach email sent", map[string]string{"template": template, "to": org.ContactEmail})
	}
}
