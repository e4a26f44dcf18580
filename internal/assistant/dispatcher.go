package assistant

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/foodrescue-nyc/coordinator/internal/scheduling"
	"github.com/foodrescue-nyc/coordinator/internal/storage"
)

// requiredOrgFields are the conversation-state keys a guided organization
// registration must collect before addKitchen() can complete.
var requiredOrgFields = []string{"name", "address", "contact", "phone", "category"}

// dispatch executes one parsed command on behalf of userEmail and returns a
// JSON-serializable result. Commands that omit an email act for the
// requesting user.
func (a *Assistant) dispatch(ctx context.Context, cmd Command, userEmail string) (any, error) {
	switch c := cmd.(type) {
	case AddVolunteer:
		role := storage.RoleBoth
		v := storage.Volunteer{
			ID:        uuid.New().String(),
			Name:      c.Name,
			Email:     orDefault(c.Email, userEmail),
			Phone:     c.Phone,
			Role:      role,
			CreatedAt: time.Now().UTC(),
		}
		if err := a.store.CreateVolunteer(v); err != nil {
			return nil, err
		}
		return v, nil

	case UpdatePhone:
		email := orDefault(c.Email, userEmail)
		if err := a.store.UpdateVolunteerPhone(email, c.Phone); err != nil {
			return nil, err
		}
		return map[string]string{"email": email, "phone": c.Phone}, nil

	case SignUp:
		date, err := a.resolveDate(c.DeliveryRef)
		if err != nil {
			return nil, err
		}
		return a.engine.SignUp(ctx, orDefault(c.Email, userEmail), date, c.Role)

	case CancelSignup:
		email := orDefault(c.Email, userEmail)
		if isDate(c.DeliveryRef) {
			n, err := a.engine.CancelByDate(ctx, email, c.DeliveryRef)
			if err != nil {
				return nil, err
			}
			return map[string]int{"cancelled": n}, nil
		}
		n, err := a.engine.Cancel(ctx, email, c.DeliveryRef)
		if err != nil {
			return nil, err
		}
		return map[string]int{"cancelled": n}, nil

	case AssignRoute:
		return a.engine.AssignRoute(ctx, orDefault(c.Email, userEmail), c.DeliveryID, c.OrganizationID)

	case ListDeliveries:
		return a.reporter.UpcomingAppointments(60)

	case ListVolunteersFor:
		return a.store.ListDeliveryVolunteers(c.DeliveryID)

	case ListRoutesFor:
		return a.store.ListDeliveryRoutes(c.DeliveryID)

	case ListOrganizations:
		return a.store.ListOrganizations("")

	case AddOrganization:
		return a.addOrganization(ctx, c, userEmail)

	case SaveState:
		cs := storage.ConversationState{
			UserEmail:     orDefault(c.Email, userEmail),
			ProcessType:   c.ProcessType,
			CurrentStep:   c.Step,
			CollectedData: c.Data,
			UpdatedAt:     time.Now().UTC(),
		}
		if err := a.store.SaveConversationState(cs); err != nil {
			return nil, err
		}
		return cs, nil

	case ClearState:
		email := orDefault(c.Email, userEmail)
		if err := a.store.ClearConversationState(email); err != nil {
			return nil, err
		}
		return map[string]string{"cleared": email}, nil
	}

	return nil, fmt.Errorf("unhandled command %T", cmd)
}

func (a *Assistant) addOrganization(ctx context.Context, c AddOrganization, userEmail string) (any, error) {
	if c.FromState {
		cs, err := a.store.GetConversationState(userEmail)
		if err != nil {
			return nil, fmt.Errorf("addKitchen() needs a saved registration in progress: %w", err)
		}
		for _, field := range requiredOrgFields {
			if cs.CollectedData[field] == "" {
				return nil, fmt.Errorf("%w: organization registration is missing %q", scheduling.ErrValidation, field)
			}
		}
		c.Name = cs.CollectedData["name"]
		c.Address = cs.CollectedData["address"]
		c.ContactPerson = cs.CollectedData["contact"]
		c.Phone = cs.CollectedData["phone"]
		c.Email = cs.CollectedData["email"]
		c.Category = cs.CollectedData["category"]
	}

	if c.Category != "store" && c.Category != "kitchen" {
		return nil, fmt.Errorf("%w: category must be \"store\" or \"kitchen\", got %q", scheduling.ErrValidation, c.Category)
	}

	org := storage.Organization{
		ID:            uuid.New().String(),
		Name:          c.Name,
		Address:       c.Address,
		ContactPerson: c.ContactPerson,
		ContactPhone:  c.Phone,
		ContactEmail:  c.Email,
		Category:      c.Category,
		Status:        "potential",
		Active:        true,
		CreatedAt:     time.Now().UTC(),
	}
	if err := a.store.CreateOrganization(org); err != nil {
		return nil, err
	}
	return org, nil
}

// resolveDate maps a delivery reference from the model to a delivery date:
// dates pass through, IDs are looked up.
func (a *Assistant) resolveDate(ref string) (string, error) {
	if isDate(ref) {
		return ref, nil
	}
	d, err := a.store.GetDelivery(ref)
	if err != nil {
		return "", fmt.Errorf("resolving delivery %q: %w", ref, err)
	}
	return d.Date, nil
}

func isDate(s string) bool {
	_, err := time.Parse(storage.DateLayout, s)
	return err == nil
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
