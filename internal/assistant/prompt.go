package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/foodrescue-nyc/coordinator/internal/storage"
)

// Snapshot is the full coordination context handed to the model: everyone
// registered, every delivery with staffing, current routes, partner
// organizations, and the caller's in-progress conversation, if any.
type Snapshot struct {
	Volunteers    []storage.Volunteer        `json:"volunteers"`
	Deliveries    []storage.CalendarRow      `json:"deliveries"`
	Routes        []storage.RouteDetail      `json:"routes"`
	Organizations []storage.Organization     `json:"organizations"`
	Conversation  *storage.ConversationState `json:"conversation_state,omitempty"`
}

// loadSnapshot gathers the four entity listings concurrently. The caller's
// conversation state is optional; its absence is not an error.
func loadSnapshot(ctx context.Context, store *storage.Store, userEmail string) (Snapshot, error) {
	var snap Snapshot
	g, _ := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		snap.Volunteers, err = store.ListVolunteers()
		return err
	})
	g.Go(func() error {
		var err error
		snap.Deliveries, err = store.DeliveriesInRange("0000-01-01", "9999-12-31")
		return err
	})
	g.Go(func() error {
		var err error
		snap.Routes, err = store.ListDeliveryRoutes("")
		return err
	})
	g.Go(func() error {
		var err error
		snap.Organizations, err = store.ListOrganizations("")
		return err
	})
	g.Go(func() error {
		cs, err := store.GetConversationState(userEmail)
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		snap.Conversation = &cs
		return nil
	})

	if err := g.Wait(); err != nil {
		return Snapshot{}, fmt.Errorf("loading snapshot: %w", err)
	}
	return snap, nil
}

// buildPrompt renders the system prompt for one chat turn.
func buildPrompt(snap Snapshot, userEmail, message string) string {
	volunteers, _ := json.Marshal(snap.Volunteers)
	deliveries, _ := json.Marshal(snap.Deliveries)
	routes, _ := json.Marshal(snap.Routes)
	orgs, _ := json.Marshal(snap.Organizations)

	conversation := "No active conversation process"
	if snap.Conversation != nil {
		data, _ := json.Marshal(snap.Conversation.CollectedData)
		conversation = fmt.Sprintf("User is in process %q at step %q with data %s",
			snap.Conversation.ProcessType, snap.Conversation.CurrentStep, data)
	}

	var b strings.Builder
	b.WriteString("You are the coordinator assistant for a volunteer food rescue program. ")
	b.WriteString("Volunteers pick up surplus groceries from partner stores and deliver them to community kitchens on bi-weekly Saturdays.\n\n")

	fmt.Fprintf(&b, "VOLUNTEERS: %s\n", volunteers)
	fmt.Fprintf(&b, "DELIVERIES: %s\n", deliveries)
	fmt.Fprintf(&b, "ROUTES: %s\n", routes)
	fmt.Fprintf(&b, "ORGANIZATIONS: %s\n\n", orgs)
	fmt.Fprintf(&b, "CONVERSATION STATE: %s\n\n", conversation)

	b.WriteString(`AVAILABLE ACTIONS:
1. Register new volunteer: addVolunteer(name, email, phone)
2. Update volunteer phone: updateVolunteerPhone(email, phone)
3. Sign up volunteer for a delivery: signupForEvent(email, deliveryIdOrDate, role)
4. Cancel volunteer from a delivery: cancelVolunteerFromEvent(email, deliveryIdOrDate)
5. Assign driver route: assignDriverRoute(email, deliveryId, organizationId)
6. Show deliveries: getEvents()
7. Show a delivery's volunteers: getEventVolunteers(deliveryId)
8. Show a delivery's routes: getEventRoutes(deliveryId)
9. Show organizations: getKitchens()
10. Add organization: addKitchen(name, address, contactPerson, phone, email, category)
11. Save conversation state: saveConversationState(email, processType, step, dataJSON)
12. Clear conversation state: clearConversationState(email)

`)

	fmt.Fprintf(&b, "USER MESSAGE: %q\nUSER EMAIL: %q\n\n", message, userEmail)

	b.WriteString(`RULES:
- Check CONVERSATION STATE first; continue an in-progress process from where it left off.
- If the user's email is already in the volunteer list, never ask them to register again.
- If the email is not registered, ask for their name and register them with addVolunteer first.
- Roles for signups are "driver" or "packer". Dates are YYYY-MM-DD.
- For organization registration, collect name, address, contact, phone and category step by step, saving progress with saveConversationState after every step; when everything is collected call addKitchen() and then clearConversationState().
- Use the information the user already gave you; never re-ask for it.
- Reply to the user naturally, about their request only.
- To perform exactly one action, put it on its own line formatted as: FUNCTION_CALL: functionName(arg1, arg2)
- Quote string arguments, write null for a missing optional argument.`)

	return b.String()
}
