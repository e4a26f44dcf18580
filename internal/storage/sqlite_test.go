package storage

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustCreateVolunteer(t *testing.T, s *Store, name, email, role string) Volunteer {
	t.Helper()
	v := Volunteer{
		ID:        uuid.New().String(),
		Name:      name,
		Email:     email,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.CreateVolunteer(v); err != nil {
		t.Fatalf("CreateVolunteer(%s) failed: %v", email, err)
	}
	return v
}

func mustCreateDelivery(t *testing.T, s *Store, date string) Delivery {
	t.Helper()
	d := Delivery{
		ID:        uuid.New().String(),
		Date:      date,
		Status:    DeliveryPlanned,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.CreateDelivery(d); err != nil {
		t.Fatalf("CreateDelivery(%s) failed: %v", date, err)
	}
	return d
}

// TestMigrationsIdempotent runs Open twice on the same database and verifies
// the schema_version count stays correct (migration not re-applied).
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}

	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}

	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

// TestIndexesExist verifies the partial unique index guarding the
// one-active-assignment invariant is created by the migration.
func TestIndexesExist(t *testing.T) {
	s := openTestStore(t)

	indexes := []string{"idx_assignments_active", "idx_assignments_delivery", "idx_deliveries_date", "idx_routes_delivery"}
	for _, idx := range indexes {
		var count int
		err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name=?", idx).Scan(&count)
		if err != nil {
			t.Fatalf("querying sqlite_master for %q: %v", idx, err)
		}
		if count != 1 {
			t.Errorf("index %q not found in sqlite_master", idx)
		}
	}
}

func TestCreateVolunteer_DuplicateEmail(t *testing.T) {
	s := openTestStore(t)

	mustCreateVolunteer(t, s, "Ada", "ada@x.org", RoleDriver)

	dup := Volunteer{
		ID:        uuid.New().String(),
		Name:      "Ada Again",
		Email:     "ada@x.org",
		Role:      RolePacker,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.CreateVolunteer(dup); !errors.Is(err, ErrDuplicate) {
		t.Errorf("CreateVolunteer duplicate email = %v, want ErrDuplicate", err)
	}
}

func TestGetVolunteerByEmail(t *testing.T) {
	s := openTestStore(t)

	want := mustCreateVolunteer(t, s, "Ada", "ada@x.org", RoleBoth)

	got, err := s.GetVolunteerByEmail("ada@x.org")
	if err != nil {
		t.Fatalf("GetVolunteerByEmail: %v", err)
	}
	if got.ID != want.ID || got.Name != "Ada" || got.Role != RoleBoth {
		t.Errorf("got %+v, want id=%s name=Ada role=both", got, want.ID)
	}

	if _, err := s.GetVolunteerByEmail("nobody@x.org"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing volunteer = %v, want ErrNotFound", err)
	}
}

func TestUpdateVolunteerPhone(t *testing.T) {
	s := openTestStore(t)

	mustCreateVolunteer(t, s, "Ada", "ada@x.org", RoleDriver)

	if err := s.UpdateVolunteerPhone("ada@x.org", "555-0101"); err != nil {
		t.Fatalf("UpdateVolunteerPhone: %v", err)
	}
	v, err := s.GetVolunteerByEmail("ada@x.org")
	if err != nil {
		t.Fatalf("GetVolunteerByEmail: %v", err)
	}
	if v.Phone != "555-0101" {
		t.Errorf("phone = %q, want %q", v.Phone, "555-0101")
	}

	if err := s.UpdateVolunteerPhone("nobody@x.org", "1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("update missing volunteer = %v, want ErrNotFound", err)
	}
}

func TestCreateAssignment_CapacityEnforced(t *testing.T) {
	s := openTestStore(t)
	d := mustCreateDelivery(t, s, "2024-06-15")

	for i := 0; i < 2; i++ {
		v := mustCreateVolunteer(t, s, fmt.Sprintf("Driver %d", i), fmt.Sprintf("d%d@x.org", i), RoleDriver)
		slot, err := s.CreateAssignment(Assignment{
			ID: uuid.New().String(), DeliveryID: d.ID, VolunteerID: v.ID,
			Role: RoleDriver, CreatedAt: time.Now().UTC(),
		}, 2)
		if err != nil {
			t.Fatalf("CreateAssignment driver %d: %v", i, err)
		}
		if slot != i+1 {
			t.Errorf("slot = %d, want %d", slot, i+1)
		}
	}

	third := mustCreateVolunteer(t, s, "Driver 2", "d2@x.org", RoleDriver)
	_, err := s.CreateAssignment(Assignment{
		ID: uuid.New().String(), DeliveryID: d.ID, VolunteerID: third.ID,
		Role: RoleDriver, CreatedAt: time.Now().UTC(),
	}, 2)
	if !errors.Is(err, ErrCapacity) {
		t.Fatalf("third driver signup = %v, want ErrCapacity", err)
	}

	// No row written on the failed signup.
	drivers, _, err := s.CountRoleAssignments(d.ID)
	if err != nil {
		t.Fatalf("CountRoleAssignments: %v", err)
	}
	if drivers != 2 {
		t.Errorf("drivers = %d, want 2", drivers)
	}
}

func TestCreateAssignment_DuplicateActivePair(t *testing.T) {
	s := openTestStore(t)
	d := mustCreateDelivery(t, s, "2024-06-15")
	v := mustCreateVolunteer(t, s, "Ada", "ada@x.org", RoleBoth)

	a := Assignment{ID: uuid.New().String(), DeliveryID: d.ID, VolunteerID: v.ID,
		Role: RoleDriver, CreatedAt: time.Now().UTC()}
	if _, err := s.CreateAssignment(a, 2); err != nil {
		t.Fatalf("first CreateAssignment: %v", err)
	}

	// A second active assignment for the same pair is rejected even in a
	// different role.
	b := Assignment{ID: uuid.New().String(), DeliveryID: d.ID, VolunteerID: v.ID,
		Role: RolePacker, CreatedAt: time.Now().UTC()}
	if _, err := s.CreateAssignment(b, 3); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("second CreateAssignment = %v, want ErrDuplicate", err)
	}

	// After cancelling, re-signup is allowed again.
	n, err := s.CancelAssignments(d.ID, v.ID)
	if err != nil {
		t.Fatalf("CancelAssignments: %v", err)
	}
	if n != 1 {
		t.Errorf("cancelled = %d, want 1", n)
	}
	if _, err := s.CreateAssignment(b, 3); err != nil {
		t.Errorf("re-signup after cancel = %v, want nil", err)
	}
}

func TestCancelAssignments_NoopWhenNoneHeld(t *testing.T) {
	s := openTestStore(t)
	d := mustCreateDelivery(t, s, "2024-06-15")
	v := mustCreateVolunteer(t, s, "Ada", "ada@x.org", RoleDriver)

	n, err := s.CancelAssignments(d.ID, v.ID)
	if err != nil {
		t.Fatalf("CancelAssignments: %v", err)
	}
	if n != 0 {
		t.Errorf("cancelled = %d, want 0", n)
	}

	// Cancelling an already-cancelled assignment is also a no-op.
	if _, err := s.CreateAssignment(Assignment{
		ID: uuid.New().String(), DeliveryID: d.ID, VolunteerID: v.ID,
		Role: RoleDriver, CreatedAt: time.Now().UTC(),
	}, 2); err != nil {
		t.Fatalf("CreateAssignment: %v", err)
	}
	if _, err := s.CancelAssignments(d.ID, v.ID); err != nil {
		t.Fatalf("first cancel: %v", err)
	}
	n, err = s.CancelAssignments(d.ID, v.ID)
	if err != nil {
		t.Fatalf("second cancel: %v", err)
	}
	if n != 0 {
		t.Errorf("second cancel affected %d rows, want 0", n)
	}
}

func TestCompleteAssignment_Terminal(t *testing.T) {
	s := openTestStore(t)
	d := mustCreateDelivery(t, s, "2024-06-15")
	v := mustCreateVolunteer(t, s, "Ada", "ada@x.org", RoleDriver)

	if _, err := s.CreateAssignment(Assignment{
		ID: uuid.New().String(), DeliveryID: d.ID, VolunteerID: v.ID,
		Role: RoleDriver, CreatedAt: time.Now().UTC(),
	}, 2); err != nil {
		t.Fatalf("CreateAssignment: %v", err)
	}

	if err := s.CompleteAssignment(d.ID, v.ID); err != nil {
		t.Fatalf("CompleteAssignment: %v", err)
	}
	// Completed is terminal: no transition back, and cancel does not touch it.
	if err := s.CompleteAssignment(d.ID, v.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second complete = %v, want ErrNotFound", err)
	}
	n, err := s.CancelAssignments(d.ID, v.ID)
	if err != nil {
		t.Fatalf("CancelAssignments: %v", err)
	}
	if n != 0 {
		t.Errorf("cancel after complete affected %d rows, want 0", n)
	}
}

func TestFindOrCreateDeliveryByDate(t *testing.T) {
	s := openTestStore(t)

	d1, created, err := s.FindOrCreateDeliveryByDate("2024-06-15")
	if err != nil {
		t.Fatalf("FindOrCreateDeliveryByDate: %v", err)
	}
	if !created {
		t.Error("expected first call to create the delivery")
	}

	d2, created, err := s.FindOrCreateDeliveryByDate("2024-06-15")
	if err != nil {
		t.Fatalf("second FindOrCreateDeliveryByDate: %v", err)
	}
	if created {
		t.Error("expected second call to reuse the delivery")
	}
	if d1.ID != d2.ID {
		t.Errorf("delivery ids differ: %s vs %s", d1.ID, d2.ID)
	}
}

func TestConversationState_RoundTrip(t *testing.T) {
	s := openTestStore(t)

	want := ConversationState{
		UserEmail:     "frank@x.org",
		ProcessType:   "kitchen_registration",
		CurrentStep:   "waiting_for_address",
		CollectedData: map[string]string{"name": "X"},
	}
	if err := s.SaveConversationState(want); err != nil {
		t.Fatalf("SaveConversationState: %v", err)
	}

	got, err := s.GetConversationState("frank@x.org")
	if err != nil {
		t.Fatalf("GetConversationState: %v", err)
	}
	if got.CurrentStep != "waiting_for_address" {
		t.Errorf("step = %q, want %q", got.CurrentStep, "waiting_for_address")
	}
	if got.CollectedData["name"] != "X" {
		t.Errorf("collected data = %v, want name=X", got.CollectedData)
	}

	// Replace-on-write: a second save overwrites the single live row.
	want.CurrentStep = "waiting_for_contact"
	want.CollectedData["address"] = "123 Main St"
	if err := s.SaveConversationState(want); err != nil {
		t.Fatalf("second SaveConversationState: %v", err)
	}
	got, err = s.GetConversationState("frank@x.org")
	if err != nil {
		t.Fatalf("GetConversationState after overwrite: %v", err)
	}
	if got.CurrentStep != "waiting_for_contact" || got.CollectedData["address"] != "123 Main St" {
		t.Errorf("overwrite not applied: %+v", got)
	}

	if err := s.ClearConversationState("frank@x.org"); err != nil {
		t.Fatalf("ClearConversationState: %v", err)
	}
	if _, err := s.GetConversationState("frank@x.org"); !errors.Is(err, ErrNotFound) {
		t.Errorf("after clear = %v, want ErrNotFound", err)
	}
}

func TestDeliveryCountsByDate_ExcludesCancelled(t *testing.T) {
	s := openTestStore(t)

	mustCreateDelivery(t, s, "2024-06-15")
	mustCreateDelivery(t, s, "2024-06-15")
	cancelled := mustCreateDelivery(t, s, "2024-06-16")
	if err := s.UpdateDeliveryStatus(cancelled.ID, DeliveryCancelled); err != nil {
		t.Fatalf("UpdateDeliveryStatus: %v", err)
	}

	counts, err := s.DeliveryCountsByDate("2024-06-01", "2024-06-30")
	if err != nil {
		t.Fatalf("DeliveryCountsByDate: %v", err)
	}
	if counts["2024-06-15"] != 2 {
		t.Errorf("counts[2024-06-15] = %d, want 2", counts["2024-06-15"])
	}
	if counts["2024-06-16"] != 0 {
		t.Errorf("counts[2024-06-16] = %d, want 0 (cancelled excluded)", counts["2024-06-16"])
	}
}
