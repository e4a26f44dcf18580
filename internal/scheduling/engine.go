package scheduling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/teambition/rrule-go"

	"github.com/foodrescue-nyc/coordinator/internal/storage"
)

// Role capacities per delivery. Two vans, three packing stations.
const (
	DriverCapacity = 2
	PackerCapacity = 3
)

// ErrValidation marks caller input errors (bad date format, unknown role,
// out-of-range month). Wrapped with a descriptive message via %w.
var ErrValidation = errors.New("validation failed")

// Notifier is the outbound email sink. Sends are best-effort: the engine
// logs failures and never lets them abort the data mutation they accompany.
type Notifier interface {
	Send(ctx context.Context, template, to string, fields map[string]string) error
}

// Engine mutates deliveries, assignments, and routes while preserving the
// capacity and uniqueness invariants.
type Engine struct {
	store    *storage.Store
	notifier Notifier // optional
}

func NewEngine(store *storage.Store, notifier Notifier) *Engine {
	return &Engine{store: store, notifier: notifier}
}

// SignUpResult reports a successful signup: the delivery (possibly freshly
// created for the date), the assignment row, and the 1-based slot ordinal
// within the role.
type SignUpResult struct {
	Delivery        storage.Delivery   `json:"delivery"`
	Assignment      storage.Assignment `json:"assignment"`
	Slot            int                `json:"slot"`
	CreatedDelivery bool               `json:"created_delivery"`
}

// SignUp assigns the volunteer with the given email to the first open slot
// for role on the delivery scheduled for date, creating the delivery when
// none exists yet. Returns storage.ErrNotFound for an unknown volunteer,
// storage.ErrCapacity when all slots for the role are taken (no row is
// written), and storage.ErrDuplicate when the volunteer already holds an
// active assignment on the delivery.
func (e *Engine) SignUp(ctx context.Context, volunteerEmail, date, role string) (SignUpResult, error) {
	if err := validateDate(date); err != nil {
		return SignUpResult{}, err
	}
	if role != storage.RoleDriver && role != storage.RolePacker {
		return SignUpResult{}, fmt.Errorf("%w: role must be %q or %q, got %q", ErrValidation, storage.RoleDriver, storage.RolePacker, role)
	}

	v, err := e.store.GetVolunteerByEmail(volunteerEmail)
	if err != nil {
		return SignUpResult{}, fmt.Errorf("looking up volunteer %s: %w", volunteerEmail, err)
	}

	d, created, err := e.store.FindOrCreateDeliveryByDate(date)
	if err != nil {
		return SignUpResult{}, fmt.Errorf("resolving delivery for %s: %w", date, err)
	}

	a := storage.Assignment{
		ID:          uuid.New().String(),
		DeliveryID:  d.ID,
		VolunteerID: v.ID,
		Role:        role,
		Status:      storage.AssignmentScheduled,
		CreatedAt:   time.Now().UTC(),
	}
	slot, err := e.store.CreateAssignment(a, capacityFor(role))
	if err != nil {
		return SignUpResult{}, err
	}

	e.notify(ctx, "volunteer_confirmation", v.Email, map[string]string{
		"volunteer_name": v.Name,
		"delivery_date":  date,
		"volunteer_role": role,
	})

	slog.Info("volunteer signed up",
		"volunteer_id", v.ID, "delivery_id", d.ID, "role", role, "slot", slot)

	return SignUpResult{Delivery: d, Assignment: a, Slot: slot, CreatedDelivery: created}, nil
}

// Cancel clears any scheduled assignment the volunteer holds on the delivery
// and returns the number of slots cleared. Holding no slot is a no-op, not
// an error. Unknown volunteer email returns storage.ErrNotFound.
func (e *Engine) Cancel(ctx context.Context, volunteerEmail, deliveryID string) (int, error) {
	v, err := e.store.GetVolunteerByEmail(volunteerEmail)
	if err != nil {
		return 0, fmt.Errorf("looking up volunteer %s: %w", volunteerEmail, err)
	}

	n, err := e.store.CancelAssignments(deliveryID, v.ID)
	if err != nil {
		return 0, fmt.Errorf("cancelling assignments: %w", err)
	}
	if n > 0 {
		slog.Info("assignment cancelled", "volunteer_id", v.ID, "delivery_id", deliveryID, "cleared", n)
	}
	return n, nil
}

// CancelByDate is the date-keyed cancel variant: it resolves the delivery on
// date (no-op when none exists) and clears the volunteer's slot there.
func (e *Engine) CancelByDate(ctx context.Context, volunteerEmail, date string) (int, error) {
	if err := validateDate(date); err != nil {
		return 0, err
	}
	v, err := e.store.GetVolunteerByEmail(volunteerEmail)
	if err != nil {
		return 0, fmt.Errorf("looking up volunteer %s: %w", volunteerEmail, err)
	}

	deliveries, err := e.store.DeliveriesInRange(date, date)
	if err != nil {
		return 0, fmt.Errorf("resolving deliveries for %s: %w", date, err)
	}

	total := 0
	for _, d := range deliveries {
		n, err := e.store.CancelAssignments(d.DeliveryID, v.ID)
		if err != nil {
			return total, fmt.Errorf("cancelling assignments: %w", err)
		}
		total += n
	}
	return total, nil
}

// RescheduleResult reports a completed reschedule.
type RescheduleResult struct {
	DeliveryID string `json:"delivery_id"`
	OldDate    string `json:"old_date"`
	NewDate    string `json:"new_date"`
}

// Reschedule moves the delivery to newDate and appends the reason to its
// notes. Existing assignments stay attached to the delivery record; they are
// not re-validated against the new date.
func (e *Engine) Reschedule(ctx context.Context, deliveryID, newDate, reason string) (RescheduleResult, error) {
	if err := validateDate(newDate); err != nil {
		return RescheduleResult{}, err
	}

	d, err := e.store.GetDelivery(deliveryID)
	if err != nil {
		return RescheduleResult{}, fmt.Errorf("looking up delivery %s: %w", deliveryID, err)
	}

	notes := strings.TrimSpace(d.Notes + "\nRescheduled: " + reason)
	if err := e.store.RescheduleDelivery(deliveryID, newDate, notes); err != nil {
		return RescheduleResult{}, fmt.Errorf("rescheduling delivery: %w", err)
	}

	// Best-effort notice to everyone still assigned.
	assigned, err := e.store.ListDeliveryVolunteers(deliveryID)
	if err != nil {
		slog.Warn("listing volunteers for reschedule notice", "delivery_id", deliveryID, "error", err)
	}
	for _, av := range assigned {
		e.notify(ctx, "delivery_rescheduled", av.Email, map[string]string{
			"volunteer_name": av.Name,
			"old_date":       d.Date,
			"new_date":       newDate,
			"reason":         reason,
		})
	}

	slog.Info("delivery rescheduled", "delivery_id", deliveryID, "old_date", d.Date, "new_date", newDate)
	return RescheduleResult{DeliveryID: deliveryID, OldDate: d.Date, NewDate: newDate}, nil
}

// AssignRoute records a driver-to-destination route for the delivery.
// A driver may hold multiple routes on one delivery; deduplication is the
// caller's responsibility.
func (e *Engine) AssignRoute(ctx context.Context, volunteerEmail, deliveryID, organizationID string) (storage.Route, error) {
	v, err := e.store.GetVolunteerByEmail(volunteerEmail)
	if err != nil {
		return storage.Route{}, fmt.Errorf("looking up volunteer %s: %w", volunteerEmail, err)
	}
	if _, err := e.store.GetDelivery(deliveryID); err != nil {
		return storage.Route{}, fmt.Errorf("looking up delivery %s: %w", deliveryID, err)
	}
	if _, err := e.store.GetOrganization(organizationID); err != nil {
		return storage.Route{}, fmt.Errorf("looking up organization %s: %w", organizationID, err)
	}

	r := storage.Route{
		ID:                uuid.New().String(),
		DeliveryID:        deliveryID,
		DriverVolunteerID: v.ID,
		OrganizationID:    organizationID,
		Status:            "assigned",
		CreatedAt:         time.Now().UTC(),
	}
	if err := e.store.CreateRoute(r); err != nil {
		return storage.Route{}, fmt.Errorf("creating route: %w", err)
	}
	return r, nil
}

// CreateDelivery schedules a new distribution on date, optionally linked to
// a source store or destination kitchen.
func (e *Engine) CreateDelivery(ctx context.Context, date, organizationID, notes string) (storage.Delivery, error) {
	if err := validateDate(date); err != nil {
		return storage.Delivery{}, err
	}
	if organizationID != "" {
		if _, err := e.store.GetOrganization(organizationID); err != nil {
			return storage.Delivery{}, fmt.Errorf("looking up organization %s: %w", organizationID, err)
		}
	}

	d := storage.Delivery{
		ID:             uuid.New().String(),
		Date:           date,
		Status:         storage.DeliveryPlanned,
		Notes:          notes,
		OrganizationID: organizationID,
		CreatedAt:      time.Now().UTC(),
	}
	if err := e.store.CreateDelivery(d); err != nil {
		return storage.Delivery{}, fmt.Errorf("creating delivery: %w", err)
	}
	return d, nil
}

// MarkCompleted transitions the volunteer's scheduled assignment on the
// delivery to completed.
func (e *Engine) MarkCompleted(ctx context.Context, volunteerEmail, deliveryID string) error {
	v, err := e.store.GetVolunteerByEmail(volunteerEmail)
	if err != nil {
		return fmt.Errorf("looking up volunteer %s: %w", volunteerEmail, err)
	}
	return e.store.CompleteAssignment(deliveryID, v.ID)
}

// PlanRecurring creates the organization's standard bi-weekly Saturday
// delivery series: count occurrences starting from the first Saturday on or
// after start. Dates that already carry a non-cancelled delivery are skipped.
func (e *Engine) PlanRecurring(ctx context.Context, start time.Time, count int) ([]storage.Delivery, error) {
	if count <= 0 || count > 52 {
		return nil, fmt.Errorf("%w: count must be between 1 and 52, got %d", ErrValidation, count)
	}

	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Interval:  2,
		Byweekday: []rrule.Weekday{rrule.SA},
		Dtstart:   start.UTC().Truncate(24 * time.Hour),
		Count:     count,
	})
	if err != nil {
		return nil, fmt.Errorf("building recurrence rule: %w", err)
	}

	var created []storage.Delivery
	for _, occ := range rule.All() {
		date := occ.Format(storage.DateLayout)
		d, wasNew, err := e.store.FindOrCreateDeliveryByDate(date)
		if err != nil {
			return created, fmt.Errorf("planning delivery for %s: %w", date, err)
		}
		if wasNew {
			created = append(created, d)
		}
	}
	slog.Info("recurring deliveries planned", "requested", count, "created", len(created))
	return created, nil
}

func capacityFor(role string) int {
	if role == storage.RoleDriver {
		return DriverCapacity
	}
	return PackerCapacity
}

func validateDate(date string) error {
	if _, err := time.Parse(storage.DateLayout, date); err != nil {
		return fmt.Errorf("%w: invalid date %q, want YYYY-MM-DD", ErrValidation, date)
	}
	return nil
}

// notify fires a best-effort email. Failures are logged and never propagate
// into the surrounding mutation.
func (e *Engine) notify(ctx context.Context, template, to string, fields map[string]string) {
	if e.notifier == nil || to == "" {
		return
	}
	if err := e.notifier.Send(ctx, template, to, fields); err != nil {
		slog.Warn("notification send failed", "template", template, "to", to, "error", err)
	}
}
