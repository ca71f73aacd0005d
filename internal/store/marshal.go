package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/scocto/scoctoloc/internal/model"
)

// toMicros converts a time to stored microseconds. The zero time is
// stored as 0.
func toMicros(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro()
}

// fromMicros is the inverse of toMicros. Times come back in UTC.
func fromMicros(us int64) time.Time {
	if us == 0 {
		return time.Time{}
	}
	return time.UnixMicro(us).UTC()
}

// marshalQuality converts origin quality to JSON TEXT. A missing quality
// is stored as NULL.
func marshalQuality(q *model.Quality) (any, error) {
	if q == nil {
		return nil, nil
	}
	data, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("marshal quality: %w", err)
	}
	return string(data), nil
}

// unmarshalQuality parses JSON TEXT written by marshalQuality.
func unmarshalQuality(data *string) (*model.Quality, error) {
	if data == nil || *data == "" {
		return nil, nil
	}
	var q model.Quality
	if err := json.Unmarshal([]byte(*data), &q); err != nil {
		return nil, fmt.Errorf("unmarshal quality: %w", err)
	}
	return &q, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
