package storage

import (
	"database/sql"
	"fmt"
	"time"
)

func (s *Store) CreateVolunteer(v Volunteer) error {
	_, err := s.db.Exec(`
		INSERT INTO volunteers (id, name, email, phone, role, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		v.ID, v.Name, v.Email, v.Phone, v.Role, v.CreatedAt.UTC().Format(time.RFC3339),
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (s *Store) GetVolunteer(id string) (Volunteer, error) {
	return s.scanVolunteer(s.db.QueryRow(`
		SELECT id, name, email, phone, role, created_at
		FROM volunteers WHERE id = ?`, id))
}

func (s *Store) GetVolunteerByEmail(email string) (Volunteer, error) {
	return s.scanVolunteer(s.db.QueryRow(`
		SELECT id, name, email, phone, role, created_at
		FROM volunteers WHERE email = ?`, email))
}

func (s *Store) scanVolunteer(row *sql.Row) (Volunteer, error) {
	var v Volunteer
	var phone sql.NullString
	var createdAt string
	err := row.Scan(&v.ID, &v.Name, &v.Email, &phone, &v.Role, &createdAt)
	if err == sql.ErrNoRows {
		return Volunteer{}, ErrNotFound
	}
	if err != nil {
		return Volunteer{}, err
	}
	v.Phone = phone.String
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return Volunteer{}, fmt.Errorf("parsing created_at: %w", err)
	}
	v.CreatedAt = t
	return v, nil
}

func (s *Store) ListVolunteers() ([]Volunteer, error) {
	rows, err := s.db.Query(`
		SELECT id, name, email, phone, role, created_at
		FROM volunteers ORDER BY name ASC`)
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

func scanVolunteerRow(rows *sql.Rows) (Volunteer, error) {
	var v Volunteer
	var phone sql.NullString
	var createdAt string
	if err := rows.Scan(&v.ID, &v.Name, &v.Email, &phone, &v.Role, &createdAt); err != nil {
		return Volunteer{}, err
	}
	v.Phone = phone.String
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return Volunteer{}, fmt.Errorf("parsing created_at: %w", err)
	}
	v.CreatedAt = t
	return v, nil
}

// UpdateVolunteerPhone sets the phone number for the volunteer with the
// given email. Returns ErrNotFound if no such volunteer exists.
func (s *Store) UpdateVolunteerPhone(email, phone string) error {
	res, err := s.db.Exec(`UPDATE volunteers SET phone = ? WHERE email = ?`, phone, email)
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
