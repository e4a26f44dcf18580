package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert would violate a uniqueness
// constraint (duplicate email, second active assignment for the same
// delivery/volunteer pair).
var ErrDuplicate = errors.New("duplicate")

// ErrCapacity is returned when a signup would exceed the role capacity
// for a delivery.
var ErrCapacity = errors.New("capacity exceeded")

// Volunteer roles. "both" means the volunteer is willing to drive or pack;
// individual assignments always carry a concrete role.
const (
	RoleDriver = "driver"
	RolePacker = "packer"
	RoleBoth   = "both"
)

// Assignment statuses. Scheduled is the only non-terminal state.
const (
	AssignmentScheduled = "scheduled"
	AssignmentCancelled = "cancelled"
	AssignmentCompleted = "completed"
)

// Delivery statuses.
const (
	DeliveryPlanned   = "planned"
	DeliveryScheduled = "scheduled"
	DeliveryCompleted = "completed"
	DeliveryCancelled = "cancelled"
)

// DateLayout is the canonical format for delivery dates.
const DateLayout = "2006-01-02"

type Volunteer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type Organization struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Address       string    `json:"address"`
	ContactPerson string    `json:"contact_person"`
	ContactEmail  string    `json:"contact_email"`
	ContactPhone  string    `json:"contact_phone"`
	Category      string    `json:"category"` // "store" or "kitchen"
	Capacity      int       `json:"capacity"`
	Status        string    `json:"status"` // "potential" or "partner"
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
}

type Delivery struct {
	ID             string    `json:"id"`
	Date           string    `json:"delivery_date"` // YYYY-MM-DD
	Status         string    `json:"status"`
	Notes          string    `json:"notes"`
	OrganizationID string    `json:"organization_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type Assignment struct {
	ID          string    `json:"id"`
	DeliveryID  string    `json:"delivery_id"`
	VolunteerID string    `json:"volunteer_id"`
	Role        string    `json:"role"`
	Status      string    `json:"status"`
	Notes       string    `json:"notes"`
	CreatedAt   time.Time `json:"created_at"`
}

type Route struct {
	ID                string    `json:"id"`
	DeliveryID        string    `json:"delivery_id"`
	DriverVolunteerID string    `json:"driver_volunteer_id"`
	OrganizationID    string    `json:"organization_id"`
	Status            string    `json:"status"`
	Notes             string    `json:"notes"`
	CreatedAt         time.Time `json:"created_at"`
}

// ConversationState is a per-user checkpoint for a multi-turn guided flow
// (e.g. kitchen registration). Exactly one live row per user email.
type ConversationState struct {
	UserEmail     string            `json:"user_email"`
	ProcessType   string            `json:"process_type"`
	CurrentStep   string            `json:"current_step"`
	CollectedData map[string]string `json:"collected_data"`
	UpdatedAt     time.Time         `json:"updated_at"`
}
