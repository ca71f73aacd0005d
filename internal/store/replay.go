package store

import (
	"context"
	"fmt"

	"github.com/scocto/scoctoloc/internal/model"
)

// DigestMismatch describes an archived origin whose content no longer
// hashes to the digest recorded when it was archived.
type DigestMismatch struct {
	OriginID string
	Stored   string
	Computed string
}

// SequenceDigest returns the digest of the archived origin sequence and
// its length. Two runs that published the same origins in the same order
// have equal digests.
func (s *Store) SequenceDigest(ctx context.Context) (string, int, error) {
	origins, err := s.Origins(ctx)
	if err != nil {
		return "", 0, err
	}
	digest, err := model.SequenceDigest(origins)
	if err != nil {
		return "", 0, err
	}
	return digest, len(origins), nil
}

// Verify recomputes the digest of every archived origin and reports those
// that differ from the stored digest.
//
// Returns an empty slice (not nil) when the archive is consistent.
func (s *Store) Verify(ctx context.Context) ([]DigestMismatch, error) {
	stored, err := s.storedDigests(ctx)
	if err != nil {
		return nil, err
	}
	origins, err := s.Origins(ctx)
	if err != nil {
		return nil, err
	}

	mismatches := []DigestMismatch{}
	for i := range origins {
		o := &origins[i]
		computed, err := model.OriginDigest(o)
		if err != nil {
			return nil, fmt.Errorf("verify origin %s: %w", o.ID, err)
		}
		if computed != stored[o.ID] {
			mismatches = append(mismatches, DigestMismatch{
				OriginID: o.ID,
				Stored:   stored[o.ID],
				Computed: computed,
			})
		}
	}
	return mismatches, nil
}

func (s *Store) storedDigests(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, digest FROM origins")
	if err != nil {
		return nil, fmt.Errorf("query digests: %w", err)
	}
	defer rows.Close()

	digests := make(map[string]string)
	for rows.Next() {
		var id, digest string
		if err := rows.Scan(&id, &digest); err != nil {
			return nil, fmt.Errorf("scan digest: %w", err)
		}
		digests[id] = digest
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate digests: %w", err)
	}
	return digests, nil
}
