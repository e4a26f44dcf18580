package storage

import (
	"fmt"
	"time"
)

func (s *Store) CreateRoute(r Route) error {
	_, err := s.db.Exec(`
		INSERT INTO routes (id, delivery_id, driver_volunteer_id, organization_id, status, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.DeliveryID, r.DriverVolunteerID, r.OrganizationID, r.Status, r.Notes,
		r.CreatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

// RouteDetail is a route joined with driver and destination names for display.
type RouteDetail struct {
	ID           string `json:"id"`
	DeliveryID   string `json:"delivery_id"`
	DeliveryDate string `json:"delivery_date"`
	DriverName   string `json:"driver_name"`
	Destination  string `json:"destination"`
	Address      string `json:"address"`
	Status       string `json:"status"`
	Notes        string `json:"notes,omitempty"`
}

// ListDeliveryRoutes returns the routes for one delivery. Pass an empty
// deliveryID to list routes for all deliveries from today onward.
func (s *Store) ListDeliveryRoutes(deliveryID string) ([]RouteDetail, error) {
	query := `
		SELECT r.id, r.delivery_id, d.delivery_date, v.name, o.name, o.address, r.status, r.notes
		FROM routes r
		JOIN deliveries d ON r.delivery_id = d.id
		JOIN volunteers v ON r.driver_volunteer_id = v.id
		JOIN organizations o ON r.organization_id = o.id`
	args := []any{}
	if deliveryID != "" {
		query += " WHERE r.delivery_id = ?"
		args = append(args, deliveryID)
	} else {
		query += " WHERE d.delivery_date >= ?"
		args = append(args, time.Now().UTC().Format(DateLayout))
	}
	query += " ORDER BY d.delivery_date ASC, v.name ASC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []RouteDetail
	for rows.Next() {
		var rd RouteDetail
		if err := rows.Scan(&rd.ID, &rd.DeliveryID, &rd.DeliveryDate, &rd.DriverName,
			&rd.Destination, &rd.Address, &rd.Status, &rd.Notes); err != nil {
			return nil, fmt.Errorf("scanning route: %w", err)
		}
		results = append(results, rd)
	}
	return results, rows.Err()
}
