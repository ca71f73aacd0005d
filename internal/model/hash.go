package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
)

// Domain prefixes for digests. The version suffix allows the encoding to
// change without colliding with old digests.
const (
	DomainOrigin   = "scoctoloc/origin/v1"
	DomainSequence = "scoctoloc/sequence/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// fixed formats a measurement with a fixed number of decimals.
func fixed(v float64, decimals int) string {
	return strconv.FormatFloat(v, 'f', decimals, 64)
}

// CanonicalMap converts the origin to the map form hashed by OriginDigest.
// Measurements are rounded to the precision the engines report.
func (o *Origin) CanonicalMap() map[string]any {
	arrivals := make([]any, len(o.Arrivals))
	for i, a := range o.Arrivals {
		arrivals[i] = map[string]any{
			"pick_id":  a.PickID,
			"phase":    a.Phase,
			"residual": fixed(a.TimeResidual, 3),
			"distance": fixed(a.Distance, 4),
			"azimuth":  fixed(a.Azimuth, 1),
			"used":     a.Used,
			"weight":   fixed(a.Weight, 2),
		}
	}
	m := map[string]any{
		"id":                o.ID,
		"method":            o.Method.String(),
		"method_id":         o.MethodID,
		"time":              CanonicalTime(o.Time),
		"latitude":          fixed(o.Latitude.Value, 4),
		"longitude":         fixed(o.Longitude.Value, 4),
		"depth":             fixed(o.Depth.Value, 3),
		"depth_fixed":       o.DepthFixed,
		"evaluation_mode":   o.EvaluationMode,
		"evaluation_status": o.EvaluationStatus,
		"agency_id":         o.CreationInfo.AgencyID,
		"author":            o.CreationInfo.Author,
		"creation_time":     CanonicalTime(o.CreationInfo.CreationTime),
		"arrivals":          arrivals,
	}
	if o.Quality != nil {
		m["quality"] = map[string]any{
			"standard_error":         fixed(o.Quality.StandardError, 3),
			"used_phase_count":       o.Quality.UsedPhaseCount,
			"associated_phase_count": o.Quality.AssociatedPhaseCount,
			"azimuthal_gap":          fixed(o.Quality.AzimuthalGap, 1),
		}
	}
	return m
}

// OriginDigest returns the content digest of a single origin.
func OriginDigest(o *Origin) (string, error) {
	data, err := MarshalCanonical(o.CanonicalMap())
	if err != nil {
		return "", fmt.Errorf("OriginDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainOrigin, data), nil
}

// SequenceDigest returns the digest of an ordered origin sequence. Two
// playback runs are identical exactly when their sequence digests match.
func SequenceDigest(origins []Origin) (string, error) {
	items := make([]any, len(origins))
	for i := range origins {
		items[i] = origins[i].CanonicalMap()
	}
	data, err := MarshalCanonical(items)
	if err != nil {
		return "", fmt.Errorf("SequenceDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSequence, data), nil
}
