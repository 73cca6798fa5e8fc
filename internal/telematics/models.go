package telematics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Row is a single untyped row as returned by the remote store.
type Row map[string]any

// Query describes one read against the remote telematics table.
type Query struct {
	Table      string
	OrderBy    string
	Descending bool
	// Limit caps the number of rows returned; 0 fetches all rows.
	Limit int
}

// CacheKey returns a stable key identifying this query for snapshot caching.
func (q Query) CacheKey() string {
	dir := "asc"
	if q.Descending {
		dir = "desc"
	}
	return fmt.Sprintf("%s|%s.%s|%d", q.Table, q.OrderBy, dir, q.Limit)
}

// RowStore defines the interface for reading raw rows from the remote store
type RowStore interface {
	// QueryRows fetches untyped rows for the given query
	QueryRows(ctx context.Context, q Query) ([]Row, error)
	// Close closes the store connection
	Close() error
}

// Float is a numeric field value with an explicit missing marker.
// The zero value is missing.
type Float struct {
	Value float64
	Valid bool
}

// FloatFrom returns a valid Float holding v.
func FloatFrom(v float64) Float {
	return Float{Value: v, Valid: true}
}

// Missing reports whether the value was absent or failed coercion.
func (f Float) Missing() bool {
	return !f.Valid
}

// MarshalJSON encodes missing values as null, never as zero.
func (f Float) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

// UnmarshalJSON decodes null as missing.
func (f *Float) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = Float{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = Float{Value: v, Valid: true}
	return nil
}

// Bool is a boolean field value with an explicit missing marker.
type Bool struct {
	Value bool
	Valid bool
}

// BoolFrom returns a valid Bool holding v.
func BoolFrom(v bool) Bool {
	return Bool{Value: v, Valid: true}
}

// Missing reports whether the value was absent or failed coercion.
func (b Bool) Missing() bool {
	return !b.Valid
}

// MarshalJSON encodes missing values as null.
func (b Bool) MarshalJSON() ([]byte, error) {
	if !b.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(b.Value)
}

// UnmarshalJSON decodes null as missing.
func (b *Bool) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*b = Bool{}
		return nil
	}
	var v bool
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*b = Bool{Value: v, Valid: true}
	return nil
}

// TelemetryRecord represents a single sampled vehicle/driver state
type TelemetryRecord struct {
	Timestamp   time.Time `json:"timestamp"`
	VehicleID   string    `json:"vehicle_id,omitempty"`
	TripID      string    `json:"trip_id,omitempty"`
	VehicleType string    `json:"vehicle_type,omitempty"`
	Latitude    Float     `json:"latitude"`
	Longitude   Float     `json:"longitude"`
	Speed       Float     `json:"speed"`
	FuelLevel   Float     `json:"fuel_level"`
	EngineTemp  Float     `json:"engine_temp"`
	AccelX      Float     `json:"accelerometer_x"`
	AccelY      Float     `json:"accelerometer_y"`
	AccelZ      Float     `json:"accelerometer_z"`
	// Driver monitoring fields
	DriverState       string `json:"driver_state,omitempty"`
	VehicleHealth     string `json:"vehicle_health,omitempty"`
	EyeClosedDuration Float  `json:"eye_closed_duration"`
	HeadDirection     Float  `json:"head_direction"`
	HeadTilt          Float  `json:"head_tilt"`
	FatigueScore      Float  `json:"fatigue_score"`
	// SpeedingFlag is the upstream-reported flag; Flags.Speeding falls back
	// to a threshold check when it is missing
	SpeedingFlag Bool `json:"speeding_flag"`
	// Flags holds the derived event booleans, never fetched from upstream
	Flags EventFlags `json:"events"`
}

// EventFlags represents the derived event booleans for one record
type EventFlags struct {
	Speeding       bool `json:"speeding"`
	HarshBraking   bool `json:"harsh_braking"`
	EngineOverheat bool `json:"engine_overheat"`
	DriverDrowsy   bool `json:"driver_drowsy"`
	EyesClosed     bool `json:"eyes_closed"`
}
