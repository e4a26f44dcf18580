package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// CreateAssignment inserts a scheduled assignment, enforcing the role
// capacity and the one-active-assignment-per-pair invariant inside a single
// transaction so concurrent signups cannot double-book the last open slot.
// On success it returns the 1-based slot ordinal the volunteer now occupies
// for that role.
func (s *Store) CreateAssignment(a Assignment, roleCapacity int) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning signup transaction: %w", err)
	}
	defer tx.Rollback()

	var occupied int
	err = tx.QueryRow(`
		SELECT COUNT(*) FROM assignments
		WHERE delivery_id = ? AND role = ? AND status != 'cancelled'`,
		a.DeliveryID, a.Role,
	).Scan(&occupied)
	if err != nil {
		return 0, fmt.Errorf("counting active assignments: %w", err)
	}
	if occupied >= roleCapacity {
		return 0, ErrCapacity
	}

	_, err = tx.Exec(`
		INSERT INTO assignments (id, delivery_id, volunteer_id, role, status, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.DeliveryID, a.VolunteerID, a.Role, AssignmentScheduled, a.Notes,
		a.CreatedAt.UTC().Format(time.RFC3339),
	)
	if isUniqueViolation(err) {
		return 0, ErrDuplicate
	}
	if err != nil {
		return 0, fmt.Errorf("inserting assignment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing signup: %w", err)
	}
	return occupied + 1, nil
}

// CancelAssignments marks every scheduled assignment the volunteer holds on
// the delivery as cancelled and returns the number of rows affected. Zero is
// not an error: cancelling a volunteer who holds no slot is a no-op.
func (s *Store) CancelAssignments(deliveryID, volunteerID string) (int, error) {
	res, err := s.db.Exec(`
		UPDATE assignments SET status = 'cancelled'
		WHERE delivery_id = ? AND volunteer_id = ? AND status = 'scheduled'`,
		deliveryID, volunteerID,
	)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// CompleteAssignment transitions a scheduled assignment to completed.
// Completed and cancelled are terminal; rows already in either state are
// left untouched and reported as ErrNotFound.
func (s *Store) CompleteAssignment(deliveryID, volunteerID string) error {
	res, err := s.db.Exec(`
		UPDATE assignments SET status = 'completed'
		WHERE delivery_id = ? AND volunteer_id = ? AND status = 'scheduled'`,
		deliveryID, volunteerID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// AssignedVolunteer is an assignment joined with its volunteer row.
type AssignedVolunteer struct {
	Volunteer
	AssignmentRole   string `json:"assignment_role"`
	AssignmentStatus string `json:"assignment_status"`
	AssignmentNotes  string `json:"assignment_notes,omitempty"`
}

// ListDeliveryVolunteers returns the volunteers with a non-cancelled
// assignment on the delivery, ordered by role then name.
func (s *Store) ListDeliveryVolunteers(deliveryID string) ([]AssignedVolunteer, error) {
	rows, err := s.db.Query(`
		SELECT v.id, v.name, v.email, v.phone, v.role, v.created_at,
		       a.role, a.status, a.notes
		FROM assignments a
		JOIN volunteers v ON a.volunteer_id = v.id
		WHERE a.delivery_id = ? AND a.status != 'cancelled'
		ORDER BY a.role ASC, v.name ASC`, deliveryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []AssignedVolunteer
	for rows.Next() {
		var av AssignedVolunteer
		var phone sql.NullString
		var createdAt string
		if err := rows.Scan(&av.ID, &av.Name, &av.Email, &phone, &av.Role, &createdAt,
			&av.AssignmentRole, &av.AssignmentStatus, &av.AssignmentNotes); err != nil {
			return nil, err
		}
		av.Phone = phone.String
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		av.CreatedAt = t
		results = append(results, av)
	}
	return results, rows.Err()
}

// CountRoleAssignments returns the number of non-cancelled assignments per
// role on a delivery.
func (s *Store) CountRoleAssignments(deliveryID string) (drivers, packers int, err error) {
	err = s.db.QueryRow(`
		SELECT
			COALESCE(SUM(CASE WHEN role = 'driver' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN role = 'packer' THEN 1 ELSE 0 END), 0)
		FROM assignments
		WHERE delivery_id = ? AND status != 'cancelled'`, deliveryID,
	).Scan(&drivers, &packers)
	return drivers, packers, err
}

// CountConflicts returns the volunteer's assignments on the exact date that
// are neither cancelled nor completed.
func (s *Store) CountConflicts(volunteerID, date string) (int, error) {
	var n int
	err := s.db.QueryRow(`
		SELECT COUNT(*)
		FROM assignments a
		JOIN deliveries d ON a.delivery_id = d.id
		WHERE a.volunteer_id = ? AND d.delivery_date = ?
		AND a.status NOT IN ('cancelled', 'completed')`,
		volunteerID, date,
	).Scan(&n)
	return n, err
}
