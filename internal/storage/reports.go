package storage

import (
	"database/sql"
)

// CalendarRow is one delivery with aggregated staffing counts, used by the
// monthly calendar and upcoming-appointments views.
type CalendarRow struct {
	DeliveryID    string `json:"delivery_id"`
	Date          string `json:"delivery_date"`
	Status        string `json:"status"`
	Notes         string `json:"notes,omitempty"`
	OrgName       string `json:"organization_name,omitempty"`
	OrgAddress    string `json:"organization_address,omitempty"`
	Volunteers    int    `json:"volunteers_assigned"`
	Drivers       int    `json:"drivers"`
	Packers       int    `json:"packers"`
	VolunteerList string `json:"volunteer_list,omitempty"` // "Name (role), ..."
}

const calendarRowSelect = `
	SELECT d.id, d.delivery_date, d.status, d.notes,
	       COALESCE(o.name, ''), COALESCE(o.address, ''),
	       COUNT(a.id),
	       COALESCE(SUM(CASE WHEN a.role = 'driver' THEN 1 ELSE 0 END), 0),
	       COALESCE(SUM(CASE WHEN a.role = 'packer' THEN 1 ELSE 0 END), 0),
	       COALESCE(GROUP_CONCAT(v.name || ' (' || a.role || ')', ', '), '')
	FROM deliveries d
	LEFT JOIN organizations o ON d.organization_id = o.id
	LEFT JOIN assignments a ON d.id = a.delivery_id AND a.status != 'cancelled'
	LEFT JOIN volunteers v ON a.volunteer_id = v.id`

// DeliveriesInRange returns non-cancelled deliveries with aggregated counts
// for delivery_date in [from, to] inclusive, ordered by date.
func (s *Store) DeliveriesInRange(from, to string) ([]CalendarRow, error) {
	rows, err := s.db.Query(calendarRowSelect+`
		WHERE d.delivery_date >= ? AND d.delivery_date <= ? AND d.status != 'cancelled'
		GROUP BY d.id
		ORDER BY d.delivery_date ASC`, from, to)
	if err != nil {
		return nil, err
	}
	return collectCalendarRows(rows)
}

// DeliveryStaffing returns the aggregated row for a single delivery,
// regardless of its status. ErrNotFound when the delivery does not exist.
func (s *Store) DeliveryStaffing(deliveryID string) (CalendarRow, error) {
	row := s.db.QueryRow(calendarRowSelect+`
		WHERE d.id = ?
		GROUP BY d.id`, deliveryID)

	var cr CalendarRow
	err := row.Scan(&cr.DeliveryID, &cr.Date, &cr.Status, &cr.Notes, &cr.OrgName,
		&cr.OrgAddress, &cr.Volunteers, &cr.Drivers, &cr.Packers, &cr.VolunteerList)
	if err == sql.ErrNoRows {
		return CalendarRow{}, ErrNotFound
	}
	return cr, err
}

func collectCalendarRows(rows *sql.Rows) ([]CalendarRow, error) {
	defer rows.Close()
	var results []CalendarRow
	for rows.Next() {
		var cr CalendarRow
		if err := rows.Scan(&cr.DeliveryID, &cr.Date, &cr.Status, &cr.Notes, &cr.OrgName,
			&cr.OrgAddress, &cr.Volunteers, &cr.Drivers, &cr.Packers, &cr.VolunteerList); err != nil {
			return nil, err
		}
		results = append(results, cr)
	}
	return results, rows.Err()
}

// WorkloadRow is one volunteer with assignment counts over a timeframe.
type WorkloadRow struct {
	VolunteerID string `json:"volunteer_id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	Total       int    `json:"assignments_count"`
	Upcoming    int    `json:"upcoming_assignments"`
	Completed   int    `json:"completed_assignments"`
}

// VolunteerWorkloads counts each volunteer's non-cancelled assignments:
// total, upcoming within [today, horizon], and completed. Volunteers with no
// assignments appear with zero counts.
func (s *Store) VolunteerWorkloads(today, horizon string) ([]WorkloadRow, error) {
	rows, err := s.db.Query(`
		SELECT v.id, v.name, v.email, v.role,
		       COUNT(a.id),
		       COALESCE(SUM(CASE WHEN d.delivery_date >= ? AND d.delivery_date <= ?
		              AND a.status = 'scheduled' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN a.status = 'completed' THEN 1 ELSE 0 END), 0)
		FROM volunteers v
		LEFT JOIN assignments a ON v.id = a.volunteer_id AND a.status != 'cancelled'
		LEFT JOIN deliveries d ON a.delivery_id = d.id
		GROUP BY v.id
		ORDER BY COUNT(a.id) DESC, v.name ASC`, today, horizon)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []WorkloadRow
	for rows.Next() {
		var wr WorkloadRow
		if err := rows.Scan(&wr.VolunteerID, &wr.Name, &wr.Email, &wr.Role,
			&wr.Total, &wr.Upcoming, &wr.Completed); err != nil {
			return nil, err
		}
		results = append(results, wr)
	}
	return results, rows.Err()
}

// ScheduleRow is one upcoming assignment on a volunteer's personal schedule.
type ScheduleRow struct {
	DeliveryID       string `json:"delivery_id"`
	Date             string `json:"delivery_date"`
	DeliveryStatus   string `json:"delivery_status"`
	AssignmentRole   string `json:"assignment_role"`
	AssignmentStatus string `json:"assignment_status"`
	OrgName          string `json:"organization_name,omitempty"`
	OrgAddress       string `json:"organization_address,omitempty"`
}

// VolunteerSchedule lists the volunteer's non-cancelled assignments with
// delivery_date in [from, to], ordered by date.
func (s *Store) VolunteerSchedule(volunteerID, from, to string) ([]ScheduleRow, error) {
	rows, err := s.db.Query(`
		SELECT d.id, d.delivery_date, d.status, a.role, a.status,
		       COALESCE(o.name, ''), COALESCE(o.address, '')
		FROM assignments a
		JOIN deliveries d ON a.delivery_id = d.id
		LEFT JOIN organizations o ON d.organization_id = o.id
		WHERE a.volunteer_id = ? AND a.status != 'cancelled'
		AND d.delivery_date >= ? AND d.delivery_date <= ?
		ORDER BY d.delivery_date ASC`, volunteerID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []ScheduleRow
	for rows.Next() {
		var sr ScheduleRow
		if err := rows.Scan(&sr.DeliveryID, &sr.Date, &sr.DeliveryStatus,
			&sr.AssignmentRole, &sr.AssignmentStatus, &sr.OrgName, &sr.OrgAddress); err != nil {
			return nil, err
		}
		results = append(results, sr)
	}
	return results, rows.Err()
}

// AvailableVolunteers returns volunteers with no non-cancelled assignment on
// the date, optionally filtered by preferred role.
func (s *Store) AvailableVolunteers(date, role string) ([]Volunteer, error) {
	query := `
		SELECT v.id, v.name, v.email, v.phone, v.role, v.created_at
		FROM volunteers v
		WHERE v.id NOT IN (
			SELECT a.volunteer_id
			FROM assignments a
			JOIN deliveries d ON a.delivery_id = d.id
			WHERE d.delivery_date = ? AND a.status != 'cancelled'
		)`
	args := []any{date}
	if role != "" {
		query += " AND (v.role = ? OR v.role = 'both')"
		args = append(args, role)
	}
	query += " ORDER BY v.created_at ASC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Volunteer
	for rows.Next() {
		v, err := scanVolunteerRow(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, v)
	}
	return results, rows.Err()
}

// VolunteerStats summarizes the registry.
type VolunteerStats struct {
	Total   int `json:"total_volunteers"`
	Drivers int `json:"drivers"`
	Packers int `json:"packers"`
	Both    int `json:"both"`
	Active  int `json:"active_volunteers"` // volunteers with at least one non-cancelled assignment
}

func (s *Store) GetVolunteerStats() (VolunteerStats, error) {
	var st VolunteerStats
	err := s.db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN role = 'driver' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN role = 'packer' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN role = 'both' THEN 1 ELSE 0 END), 0),
		       (SELECT COUNT(DISTINCT volunteer_id) FROM assignments WHERE status != 'cancelled')
		FROM volunteers`,
	).Scan(&st.Total, &st.Drivers, &st.Packers, &st.Both, &st.Active)
	return st, err
}
