package storage

import (
	"database/sql"
	"fmt"
	"time"
)

func (s *Store) CreateOrganization(o Organization) error {
	active := 0
	if o.Active {
		active = 1
	}
	_, err := s.db.Exec(`
		INSERT INTO organizations (id, name, address, contact_person, contact_email, contact_phone, category, capacity, status, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.Name, o.Address, o.ContactPerson, o.ContactEmail, o.ContactPhone,
		o.Category, o.Capacity, o.Status, active, o.CreatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) GetOrganization(id string) (Organization, error) {
	row := s.db.QueryRow(`
		SELECT id, name, address, contact_person, contact_email, contact_phone, category, capacity, status, active, created_at
		FROM organizations WHERE id = ?`, id)

	o, err := scanOrganization(row.Scan)
	if err == sql.ErrNoRows {
		return Organization{}, ErrNotFound
	}
	return o, err
}

// ListOrganizations returns active organizations, optionally filtered by
// category ("store" or "kitchen"); empty category returns all.
func (s *Store) ListOrganizations(category string) ([]Organization, error) {
	query := `
		SELECT id, name, address, contact_person, contact_email, contact_phone, category, capacity, status, active, created_at
		FROM organizations WHERE active = 1`
	args := []any{}
	if category != "" {
		query += " AND category = ?"
		args = append(args, category)
	}
	query += " ORDER BY name ASC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Organization
	for rows.Next() {
		o, err := scanOrganization(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, o)
	}
	return results, rows.Err()
}

// UpdateOrganizationStatus transitions the partnership status
// (potential -> partner). Returns ErrNotFound for an unknown id.
func (s *Store) UpdateOrganizationStatus(id, status string) error {
	res, err := s.db.Exec(`UPDATE organizations SET status = ? WHERE id = ?`, status, id)
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

// DeactivateOrganization soft-deletes an organization. Referenced deliveries
// keep pointing at the row.
func (s *Store) DeactivateOrganization(id string) error {
	res, err := s.db.Exec(`UPDATE organizations SET active = 0 WHERE id = ?`, id)
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

func scanOrganization(scan func(...any) error) (Organization, error) {
	var o Organization
	var active int
	var createdAt string
	err := scan(&o.ID, &o.Name, &o.Address, &o.ContactPerson, &o.ContactEmail,
		&o.ContactPhone, &o.Category, &o.Capacity, &o.Status, &active, &createdAt)
	if err != nil {
		return Organization{}, err
	}
	o.Active = active == 1
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return Organization{}, fmt.Errorf("parsing created_at: %w", err)
	}
	o.CreatedAt = t
	return o, nil
}
