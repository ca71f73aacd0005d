package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/scocto/scoctoloc/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// PicksBetween returns the archived picks with start <= time <= end.
// Results are ordered by arrival time, then ID (binary collation).
//
// Returns an empty slice (not nil) if no picks fall in the span.
func (s *Store) PicksBetween(ctx context.Context, start, end time.Time) ([]model.Pick, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, network, station, location, channel, phase_hint, time_us, creation_time_us, author, agency_id
		FROM picks
		WHERE time_us >= ? AND time_us <= ?
		ORDER BY time_us ASC, id COLLATE BINARY ASC
	`, toMicros(start), toMicros(end))
	if err != nil {
		return nil, fmt.Errorf("query picks: %w", err)
	}
	defer rows.Close()

	picks := []model.Pick{}
	for rows.Next() {
		var p model.Pick
		var at, created int64
		if err := rows.Scan(
			&p.ID,
			&p.Stream.Network,
			&p.Stream.Station,
			&p.Stream.Location,
			&p.Stream.Channel,
			&p.PhaseHint,
			&at,
			&created,
			&p.Author,
			&p.AgencyID,
		); err != nil {
			return nil, fmt.Errorf("scan pick: %w", err)
		}
		p.Time = fromMicros(at)
		p.CreationTime = fromMicros(created)
		picks = append(picks, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate picks: %w", err)
	}
	return picks, nil
}

// CountPicks returns the number of archived picks.
func (s *Store) CountPicks(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM picks").Scan(&n); err != nil {
		return 0, fmt.Errorf("count picks: %w", err)
	}
	return n, nil
}

// Origins returns every archived origin in publication order.
func (s *Store) Origins(ctx context.Context) ([]model.Origin, error) {
	return s.readOrigins(ctx, "", nil)
}

// Origin returns one archived origin by ID, or ErrNotFound.
func (s *Store) Origin(ctx context.Context, id string) (model.Origin, error) {
	origins, err := s.readOrigins(ctx, "WHERE o.id = ?", []any{id})
	if err != nil {
		return model.Origin{}, err
	}
	if len(origins) == 0 {
		return model.Origin{}, fmt.Errorf("origin %s: %w", id, ErrNotFound)
	}
	return origins[0], nil
}

// OriginsForPick returns the archived origins with an arrival referencing
// the pick, in publication order.
func (s *Store) OriginsForPick(ctx context.Context, pickID string) ([]model.Origin, error) {
	return s.readOrigins(ctx,
		"WHERE o.id IN (SELECT origin_id FROM arrivals WHERE pick_id = ?)",
		[]any{pickID})
}

// readOrigins loads origins matching where (a clause over alias o) and
// attaches their arrivals. The origin rows are fully consumed before the
// arrivals are queried since the pool holds a single connection.
func (s *Store) readOrigins(ctx context.Context, where string, args []any) ([]model.Origin, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT o.id, o.method, o.method_id, o.time_us,
		       o.latitude, o.latitude_uncertainty, o.longitude, o.longitude_uncertainty,
		       o.depth, o.depth_uncertainty, o.depth_fixed,
		       o.evaluation_mode, o.evaluation_status, o.quality,
		       o.agency_id, o.author, o.creation_time_us
		FROM origins o
		`+where+`
		ORDER BY o.seq ASC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("query origins: %w", err)
	}

	origins := []model.Origin{}
	index := make(map[string]int)
	for rows.Next() {
		o, err := scanOrigin(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		index[o.ID] = len(origins)
		origins = append(origins, o)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate origins: %w", err)
	}
	rows.Close()

	if len(origins) == 0 {
		return origins, nil
	}
	if err := s.attachArrivals(ctx, where, args, origins, index); err != nil {
		return nil, err
	}
	return origins, nil
}

func (s *Store) attachArrivals(ctx context.Context, where string, args []any, origins []model.Origin, index map[string]int) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.origin_id, a.pick_id, a.phase, a.time_residual, a.distance, a.azimuth, a.used, a.weight
		FROM arrivals a
		JOIN origins o ON o.id = a.origin_id
		`+where+`
		ORDER BY o.seq ASC, a.position ASC
	`, args...)
	if err != nil {
		return fmt.Errorf("query arrivals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var originID string
		var a model.Arrival
		var used int
		if err := rows.Scan(&originID, &a.PickID, &a.Phase, &a.TimeResidual, &a.Distance, &a.Azimuth, &used, &a.Weight); err != nil {
			return fmt.Errorf("scan arrival: %w", err)
		}
		a.Used = used != 0
		i, ok := index[originID]
		if !ok {
			continue
		}
		origins[i].Arrivals = append(origins[i].Arrivals, a)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate arrivals: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrigin(row rowScanner) (model.Origin, error) {
	var o model.Origin
	var method string
	var at, created int64
	var depthFixed int
	var quality sql.NullString
	if err := row.Scan(
		&o.ID, &method, &o.MethodID, &at,
		&o.Latitude.Value, &o.Latitude.Uncertainty,
		&o.Longitude.Value, &o.Longitude.Uncertainty,
		&o.Depth.Value, &o.Depth.Uncertainty, &depthFixed,
		&o.EvaluationMode, &o.EvaluationStatus, &quality,
		&o.CreationInfo.AgencyID, &o.CreationInfo.Author, &created,
	); err != nil {
		return model.Origin{}, fmt.Errorf("scan origin: %w", err)
	}

	m, err := model.ParseMethod(method)
	if err != nil {
		return model.Origin{}, fmt.Errorf("origin %s: %w", o.ID, err)
	}
	o.Method = m
	o.Time = fromMicros(at)
	o.CreationInfo.CreationTime = fromMicros(created)
	o.DepthFixed = depthFixed != 0
	if quality.Valid {
		q, err := unmarshalQuality(&quality.String)
		if err != nil {
			return model.Origin{}, fmt.Errorf("origin %s: %w", o.ID, err)
		}
		o.Quality = q
	}
	return o, nil
}
