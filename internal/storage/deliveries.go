package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

func (s *Store) CreateDelivery(d Delivery) error {
	var orgID any
	if d.OrganizationID != "" {
		orgID = d.OrganizationID
	}
	_, err := s.db.Exec(`
		INSERT INTO deliveries (id, delivery_date, status, notes, organization_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		d.ID, d.Date, d.Status, d.Notes, orgID, d.CreatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) GetDelivery(id string) (Delivery, error) {
	row := s.db.QueryRow(`
		SELECT id, delivery_date, status, notes, organization_id, created_at
		FROM deliveries WHERE id = ?`, id)
	d, err := scanDelivery(row.Scan)
	if err == sql.ErrNoRows {
		return Delivery{}, ErrNotFound
	}
	return d, err
}

// FindOrCreateDeliveryByDate returns the first non-cancelled delivery on the
// given date, creating a planned one when none exists. Used by the date-keyed
// signup path.
func (s *Store) FindOrCreateDeliveryByDate(date string) (Delivery, bool, error) {
	row := s.db.QueryRow(`
		SELECT id, delivery_date, status, notes, organization_id, created_at
		FROM deliveries
		WHERE delivery_date = ? AND status != 'cancelled'
		ORDER BY created_at ASC LIMIT 1`, date)
	d, err := scanDelivery(row.Scan)
	if err == nil {
		return d, false, nil
	}
	if err != sql.ErrNoRows {
		return Delivery{}, false, err
	}

	d = Delivery{
		ID:        uuid.New().String(),
		Date:      date,
		Status:    DeliveryPlanned,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.CreateDelivery(d); err != nil {
		return Delivery{}, false, err
	}
	return d, true, nil
}

func (s *Store) ListDeliveries() ([]Delivery, error) {
	rows, err := s.db.Query(`
		SELECT id, delivery_date, status, notes, organization_id, created_at
		FROM deliveries ORDER BY delivery_date ASC, created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Delivery
	for rows.Next() {
		d, err := scanDelivery(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, d)
	}
	return results, rows.Err()
}

// RescheduleDelivery moves a delivery to a new date and replaces its notes.
// The caller composes the new notes text; assignments stay attached to the
// delivery row, not the date.
func (s *Store) RescheduleDelivery(id, newDate, notes string) error {
	res, err := s.db.Exec(`UPDATE deliveries SET delivery_date = ?, notes = ? WHERE id = ?`, newDate, notes, id)
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

func (s *Store) UpdateDeliveryStatus(id, status string) error {
	res, err := s.db.Exec(`UPDATE deliveries SET status = ? WHERE id = ?`, status, id)
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

// DeliveryCountsByDate returns the number of non-cancelled deliveries per
// date within [from, to] inclusive.
func (s *Store) DeliveryCountsByDate(from, to string) (map[string]int, error) {
	rows, err := s.db.Query(`
		SELECT delivery_date, COUNT(*)
		FROM deliveries
		WHERE status != 'cancelled' AND delivery_date >= ? AND delivery_date <= ?
		GROUP BY delivery_date`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var date string
		var n int
		if err := rows.Scan(&date, &n); err != nil {
			return nil, err
		}
		counts[date] = n
	}
	return counts, rows.Err()
}

func scanDelivery(scan func(...any) error) (Delivery, error) {
	var d Delivery
	var orgID sql.NullString
	var createdAt string
	if err := scan(&d.ID, &d.Date, &d.Status, &d.Notes, &orgID, &createdAt); err != nil {
		return Delivery{}, err
	}
	d.OrganizationID = orgID.String
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return Delivery{}, fmt.Errorf("parsing created_at: %w", err)
	}
	d.CreatedAt = t
	return d, nil
}
