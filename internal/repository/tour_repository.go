package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jengzang/tour-geocompare/internal/database"
	"github.com/jengzang/tour-geocompare/internal/models"
	"github.com/jengzang/tour-geocompare/internal/spatial"
)

// TourRepository handles database operations for tours and their samples
type TourRepository struct {
	db *sql.DB
}

// NewTourRepository creates a new tour repository
func NewTourRepository(db *sql.DB) *TourRepository {
	return &TourRepository{db: db}
}

// GetTour retrieves a tour header without samples
func (r *TourRepository) GetTour(ctx context.Context, id int64) (*models.Tour, error) {
	query := `SELECT id, title, start_time, person_id, tour_type_id, created_at
		FROM tours WHERE id = ?`

	var t models.Tour
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&t.ID, &t.Title, &t.StartTime, &t.PersonID, &t.TourTypeID, &t.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tour: %w", err)
	}

	return &t, nil
}

// LoadTour retrieves a tour with all samples ordered by index
func (r *TourRepository) LoadTour(ctx context.Context, id int64) (*models.Tour, error) {
	tour, err := r.GetTour(ctx, id)
	if err != nil || tour == nil {
		return tour, err
	}

	query := `SELECT time_offset, latitude, longitude, altitude, distance, pulse
		FROM tour_samples WHERE tour_id = ? ORDER BY idx`

	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query tour samples: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s models.TourSample
		if err := rows.Scan(&s.TimeOffset, &s.Latitude, &s.Longitude, &s.Altitude, &s.Distance, &s.Pulse); err != nil {
			return nil, fmt.Errorf("failed to scan tour sample: %w", err)
		}
		tour.Samples = append(tour.Samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read tour samples: %w", err)
	}

	return tour, nil
}

// SaveTour inserts a tour with its samples and geo parts and sets tour.ID.
// Missing cumulative distances are computed from the positions.
func (r *TourRepository) SaveTour(ctx context.Context, tour *models.Tour) error {
	FillDistances(tour.Samples)
	cells := spatial.GridCellsFor(tour.Samples, 0, len(tour.Samples)-1)

	return database.Transaction(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO tours (title, start_time, person_id, tour_type_id) VALUES (?, ?, ?, ?)`,
			tour.Title, tour.StartTime, tour.PersonID, tour.TourTypeID)
		if err != nil {
			return fmt.Errorf("failed to insert tour: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get tour id: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `INSERT INTO tour_samples
			(tour_id, idx, time_offset, latitude, longitude, altitude, distance, pulse)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for i, s := range tour.Samples {
			if _, err := stmt.ExecContext(ctx, id, i, s.TimeOffset, s.Latitude, s.Longitude, s.Altitude, s.Distance, s.Pulse); err != nil {
				return fmt.Errorf("failed to insert sample %d: %w", i, err)
			}
		}

		if err := insertGeoParts(ctx, tx, id, cells); err != nil {
			return err
		}

		tour.ID = id
		return nil
	})
}

// DeleteTour removes a tour, its samples and geo parts
func (r *TourRepository) DeleteTour(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tours WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete tour: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete tour: %w", err)
	}
	return n > 0, nil
}

// FillDistances computes cumulative distances when the series has none
func FillDistances(samples []models.TourSample) {
	if len(samples) < 2 {
		return
	}
	for _, s := range samples[1:] {
		if s.Distance > 0 {
			return
		}
	}

	var total float64
	prev := -1
	for i := range samples {
		s := &samples[i]
		if s.HasPosition() {
			if prev >= 0 {
				p := samples[prev]
				total += spatial.HaversineDistance(p.Latitude, p.Longitude, s.Latitude, s.Longitude)
			}
			prev = i
		}
		s.Distance = total
	}
}
