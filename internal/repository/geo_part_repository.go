package repository

import (
	"cmp"
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"
)

// maxCellsPerQuery keeps the IN list below sqlite's variable limit
const maxCellsPerQuery = 500

// AppFilter restricts candidate tours when the app filter is switched on
type AppFilter struct {
	PersonID    int64   // 0 matches all people
	TourTypeIDs []int64 // Empty matches all tour types
}

// GeoPartRepository handles the geo grid index of tours
type GeoPartRepository struct {
	db        *sql.DB
	appFilter AppFilter
}

// NewGeoPartRepository creates a new geo part repository
func NewGeoPartRepository(db *sql.DB, appFilter AppFilter) *GeoPartRepository {
	return &GeoPartRepository{db: db, appFilter: appFilter}
}

// ResolveCandidates returns the tours which touch any of the grid cells,
// ordered by tour start time
func (r *GeoPartRepository) ResolveCandidates(ctx context.Context, cellIDs []int64, useAppFilter bool) ([]int64, error) {
	if len(cellIDs) == 0 {
		return nil, nil
	}

	type candidate struct {
		id        int64
		startTime int64
	}
	found := make(map[int64]candidate)

	for chunk := range slices.Chunk(cellIDs, maxCellsPerQuery) {
		query, args := r.candidateQuery(chunk, useAppFilter)

		rows, err := r.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to query candidate tours: %w", err)
		}

		for rows.Next() {
			var c candidate
			if err := rows.Scan(&c.id, &c.startTime); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan candidate tour: %w", err)
			}
			found[c.id] = c
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read candidate tours: %w", err)
		}
	}

	candidates := make([]candidate, 0, len(found))
	for _, c := range found {
		candidates = append(candidates, c)
	}
	slices.SortFunc(candidates, func(a, b candidate) int {
		if c := cmp.Compare(a.startTime, b.startTime); c != 0 {
			return c
		}
		return cmp.Compare(a.id, b.id)
	})

	tourIDs := make([]int64, len(candidates))
	for i, c := range candidates {
		tourIDs[i] = c.id
	}
	return tourIDs, nil
}

func (r *GeoPartRepository) candidateQuery(cellIDs []int64, useAppFilter bool) (string, []interface{}) {
	query := `SELECT DISTINCT t.id, t.start_time
		FROM tour_geo_parts gp
		JOIN tours t ON t.id = gp.tour_id`

	var conditions []string
	var args []interface{}

	conditions = append(conditions, "gp.geo_part IN ("+placeholders(len(cellIDs))+")")
	for _, id := range cellIDs {
		args = append(args, id)
	}

	if useAppFilter {
		if r.appFilter.PersonID > 0 {
			conditions = append(conditions, "t.person_id = ?")
			args = append(args, r.appFilter.PersonID)
		}
		if len(r.appFilter.TourTypeIDs) > 0 {
			conditions = append(conditions, "t.tour_type_id IN ("+placeholders(len(r.appFilter.TourTypeIDs))+")")
			for _, id := range r.appFilter.TourTypeIDs {
				args = append(args, id)
			}
		}
	}

	query += " WHERE " + strings.Join(conditions, " AND ")
	return query, args
}

// GetGeoParts returns the grid cells of a tour
func (r *GeoPartRepository) GetGeoParts(ctx context.Context, tourID int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT geo_part FROM tour_geo_parts WHERE tour_id = ? ORDER BY geo_part`, tourID)
	if err != nil {
		return nil, fmt.Errorf("failed to query geo parts: %w", err)
	}
	defer rows.Close()

	var cells []int64
	for rows.Next() {
		var c int64
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("failed to scan geo part: %w", err)
		}
		cells = append(cells, c)
	}
	return cells, rows.Err()
}

func insertGeoParts(ctx context.Context, tx *sql.Tx, tourID int64, cellIDs []int64) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO tour_geo_parts (tour_id, geo_part) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, cell := range cellIDs {
		if _, err := stmt.ExecContext(ctx, tourID, cell); err != nil {
			return fmt.Errorf("failed to insert geo part %d: %w", cell, err)
		}
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
