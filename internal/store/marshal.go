package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/roach88/stimline/internal/timeline"
)

// marshalTimeline converts a timeline to canonical JSON TEXT for storage.
func marshalTimeline(tl timeline.Timeline) (string, error) {
	data, err := timeline.MarshalCanonical(tl)
	if err != nil {
		return "", fmt.Errorf("marshal timeline: %w", err)
	}
	return string(data), nil
}

// unmarshalTimeline parses stored timeline TEXT.
func unmarshalTimeline(data string) (timeline.Timeline, error) {
	var tl timeline.Timeline
	if err := json.Unmarshal([]byte(data), &tl); err != nil {
		return timeline.Timeline{}, fmt.Errorf("unmarshal timeline: %w", err)
	}
	if tl.Steps == nil {
		tl.Steps = []timeline.AuthoredStep{}
	}
	return tl, nil
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

func parseTimePtr(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatSeed(seed uint64) string {
	return strconv.FormatUint(seed, 10)
}

func parseSeed(s string) (uint64, error) {
	seed, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse seed %q: %w", s, err)
	}
	return seed, nil
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}

func boolPtr(nb sql.NullBool) *bool {
	if !nb.Valid {
		return nil
	}
	return timeline.Bool(nb.Bool)
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	v := nf.Float64
	return &v
}

func nullMillis(m *timeline.Millis) sql.NullFloat64 {
	if m == nil || !m.Valid() {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: float64(*m), Valid: true}
}

func millisPtr(nf sql.NullFloat64) *timeline.Millis {
	if !nf.Valid {
		return nil
	}
	return timeline.Millis(nf.Float64).Ptr()
}
