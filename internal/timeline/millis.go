package timeline

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultTimerDelay is applied to timer triggers whose delay is missing or invalid.
const DefaultTimerDelay Millis = 1000

// Millis is a duration in milliseconds as written by the authoring tool.
//
// Authored documents carry delays as numbers or numeric strings. Values that
// cannot be parsed decode to NaN rather than failing the whole document;
// ResolveDelay replaces them before execution.
type Millis float64

// Duration converts the value to a time.Duration.
func (m Millis) Duration() time.Duration {
	return time.Duration(float64(m) * float64(time.Millisecond))
}

// Valid reports whether m is a finite, non-negative number.
func (m Millis) Valid() bool {
	f := float64(m)
	return !math.IsNaN(f) && !math.IsInf(f, 0) && f >= 0
}

// Ptr returns a pointer to a copy of m.
func (m Millis) Ptr() *Millis {
	return &m
}

// ResolveDelay returns d when it is a valid delay and DefaultTimerDelay otherwise.
func ResolveDelay(d *Millis) Millis {
	if d == nil || !d.Valid() {
		return DefaultTimerDelay
	}
	return *d
}

// parseMillis converts a raw scalar into Millis. Unparseable input yields NaN.
func parseMillis(raw string) Millis {
	raw = strings.TrimSpace(strings.Trim(strings.TrimSpace(raw), `"`))
	if raw == "" {
		return Millis(math.NaN())
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return Millis(math.NaN())
	}
	return Millis(f)
}

// UnmarshalJSON accepts numbers and numeric strings.
func (m *Millis) UnmarshalJSON(b []byte) error {
	*m = parseMillis(string(b))
	return nil
}

// MarshalJSON writes invalid values as null so compiled documents stay encodable.
func (m Millis) MarshalJSON() ([]byte, error) {
	f := float64(m)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(f)
}

// UnmarshalYAML accepts numbers and numeric strings.
func (m *Millis) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: delay must be a scalar", node.Line)
	}
	*m = parseMillis(node.Value)
	return nil
}
