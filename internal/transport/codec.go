package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/scocto/scoctoloc/internal/model"
)

// OriginBatch is the payload of an origin message.
type OriginBatch struct {
	Origins []model.Origin `json:"origins"`
}

// DecodePicks parses a pick message: a single pick object or an array of
// picks. An array element that does not decode is logged and skipped; the
// rest of the batch is kept. Decoded picks are not validated here, the
// pipeline's stream filter rejects incomplete ones.
func DecodePicks(payload []byte) ([]model.Pick, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return nil, fmt.Errorf("empty pick message")
	}

	if payload[0] != '[' {
		var p model.Pick
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("invalid pick: %w", err)
		}
		return []model.Pick{p}, nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("invalid pick array: %w", err)
	}
	picks := make([]model.Pick, 0, len(raw))
	for i, elem := range raw {
		var p model.Pick
		if err := json.Unmarshal(elem, &p); err != nil {
			slog.Warn("skipping undecodable pick", "index", i, "error", err)
			continue
		}
		picks = append(picks, p)
	}
	return picks, nil
}

// EncodeOrigins renders an origin batch.
func EncodeOrigins(origins []model.Origin) ([]byte, error) {
	data, err := json.Marshal(OriginBatch{Origins: origins})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal origins: %w", err)
	}
	return data, nil
}
