package store

import (
	"context"
	"fmt"

	"github.com/scocto/scoctoloc/internal/model"
)

// StorePicks inserts picks into the pick archive in one transaction.
// Picks are immutable: a pick whose ID is already archived is left
// unchanged.
func (s *Store) StorePicks(ctx context.Context, picks []model.Pick) error {
	if len(picks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store picks: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO picks
		(id, network, station, location, channel, phase_hint, time_us, creation_time_us, author, agency_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("store picks: prepare: %w", err)
	}
	defer stmt.Close()

	for _, p := range picks {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("store picks: %w", err)
		}
		_, err := stmt.ExecContext(ctx,
			p.ID,
			p.Stream.Network,
			p.Stream.Station,
			p.Stream.Location,
			p.Stream.Channel,
			p.PhaseHint,
			toMicros(p.Time),
			toMicros(p.CreationTime),
			p.Author,
			p.AgencyID,
		)
		if err != nil {
			return fmt.Errorf("store pick %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store picks: commit: %w", err)
	}
	return nil
}

// ArchiveOrigins appends published origins and their arrivals to the
// origin archive in one transaction. It implements engine.Archive.
//
// Uses ON CONFLICT(id) DO NOTHING for idempotency: an origin ID that is
// already archived keeps its original content and sequence number.
func (s *Store) ArchiveOrigins(ctx context.Context, origins []model.Origin) error {
	if len(origins) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("archive origins: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	for i := range origins {
		o := &origins[i]
		if o.ID == "" {
			return fmt.Errorf("archive origins: origin without id")
		}
		digest, err := model.OriginDigest(o)
		if err != nil {
			return fmt.Errorf("archive origin %s: %w", o.ID, err)
		}
		quality, err := marshalQuality(o.Quality)
		if err != nil {
			return fmt.Errorf("archive origin %s: %w", o.ID, err)
		}

		result, err := tx.ExecContext(ctx, `
			INSERT INTO origins
			(id, method, method_id, time_us,
			 latitude, latitude_uncertainty, longitude, longitude_uncertainty,
			 depth, depth_uncertainty, depth_fixed,
			 evaluation_mode, evaluation_status, quality,
			 agency_id, author, creation_time_us, digest)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING
		`,
			o.ID,
			o.Method.String(),
			o.MethodID,
			toMicros(o.Time),
			o.Latitude.Value, o.Latitude.Uncertainty,
			o.Longitude.Value, o.Longitude.Uncertainty,
			o.Depth.Value, o.Depth.Uncertainty,
			boolToInt(o.DepthFixed),
			o.EvaluationMode,
			o.EvaluationStatus,
			quality,
			o.CreationInfo.AgencyID,
			o.CreationInfo.Author,
			toMicros(o.CreationInfo.CreationTime),
			digest,
		)
		if err != nil {
			return fmt.Errorf("archive origin %s: %w", o.ID, err)
		}
		inserted, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("archive origin %s: rows affected: %w", o.ID, err)
		}
		if inserted == 0 {
			continue
		}

		for pos, a := range o.Arrivals {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO arrivals
				(origin_id, position, pick_id, phase, time_residual, distance, azimuth, used, weight)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			`,
				o.ID, pos, a.PickID, a.Phase, a.TimeResidual, a.Distance, a.Azimuth, boolToInt(a.Used), a.Weight,
			)
			if err != nil {
				return fmt.Errorf("archive arrival %s/%d: %w", o.ID, pos, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("archive origins: commit: %w", err)
	}
	return nil
}
