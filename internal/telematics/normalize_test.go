package telematics

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoerceFloat(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected Float
	}{
		{name: "float64", input: 42.5, expected: FloatFrom(42.5)},
		{name: "int", input: 7, expected: FloatFrom(7)},
		{name: "uint", input: uint(9), expected: FloatFrom(9)},
		{name: "uint64", input: uint64(11), expected: FloatFrom(11)},
		{name: "json number", input: json.Number("3.25"), expected: FloatFrom(3.25)},
		{name: "numeric string", input: "55.5", expected: FloatFrom(55.5)},
		{name: "padded numeric string", input: "  12.5  ", expected: FloatFrom(12.5)},
		{name: "negative string", input: "-3.0", expected: FloatFrom(-3)},
		{name: "empty string", input: "", expected: Float{}},
		{name: "non-numeric string", input: "n/a", expected: Float{}},
		{name: "nan string", input: "NaN", expected: Float{}},
		{name: "nil", input: nil, expected: Float{}},
		{name: "bool", input: true, expected: Float{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, coerceFloat(tt.input))
		})
	}
}

func TestCoerceBool(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected Bool
	}{
		{name: "bool true", input: true, expected: BoolFrom(true)},
		{name: "bool false", input: false, expected: BoolFrom(false)},
		{name: "string true", input: "true", expected: BoolFrom(true)},
		{name: "string mixed case", input: "False", expected: BoolFrom(false)},
		{name: "numeric one", input: 1.0, expected: BoolFrom(true)},
		{name: "numeric zero", input: 0.0, expected: BoolFrom(false)},
		{name: "unrecognized string", input: "maybe", expected: Bool{}},
		{name: "nil", input: nil, expected: Bool{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, coerceBool(tt.input))
		})
	}
}

func TestCoerceCategory(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{name: "lowercases", input: "Drowsy", expected: "drowsy"},
		{name: "trims whitespace", input: "  Alert  ", expected: "alert"},
		{name: "already normalized", input: "truck", expected: "truck"},
		{name: "nil is missing", input: nil, expected: ""},
		{name: "non-string stringified", input: 5, expected: "5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, coerceCategory(tt.input))
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected time.Time
	}{
		{
			name:     "rfc3339 utc",
			input:    "2024-01-15T09:30:00Z",
			expected: time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC),
		},
		{
			name:     "rfc3339 with fraction",
			input:    "2024-01-15T09:30:00.123Z",
			expected: time.Date(2024, 1, 15, 9, 30, 0, 123000000, time.UTC),
		},
		{
			name:     "bare iso form reads as utc",
			input:    "2024-01-15T09:30:00",
			expected: time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC),
		},
		{
			name:     "space separated form",
			input:    "2024-01-15 09:30:00",
			expected: time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC),
		},
		{
			name:     "date only",
			input:    "2024-01-15",
			expected: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		},
		{name: "garbage", input: "not-a-time", expected: time.Time{}},
		{name: "us date rejected", input: "01/15/2024 09:30:00", expected: time.Time{}},
		{name: "empty string", input: "", expected: time.Time{}},
		{name: "nil", input: nil, expected: time.Time{}},
		{name: "numeric rejected", input: 1705310400.0, expected: time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseTimestamp(tt.input)
			assert.True(t, tt.expected.Equal(got), "expected %v, got %v", tt.expected, got)
		})
	}

	t.Run("should pass native time through", func(t *testing.T) {
		now := time.Now()
		assert.Equal(t, now, parseTimestamp(now))
	})
}

func TestNormalize_RequiredFieldFilter(t *testing.T) {
	rows := []Row{
		{"timestamp": "2024-01-15T09:30:00Z", "latitude": 12.9, "longitude": 77.5, "vehicle_id": "keep"},
		{"timestamp": "2024-01-15T09:31:00Z", "longitude": 77.5, "vehicle_id": "no-lat", "speed": 80.0},
		{"timestamp": "2024-01-15T09:32:00Z", "latitude": 12.9, "vehicle_id": "no-lon"},
		{"latitude": 12.9, "longitude": 77.5, "vehicle_id": "no-ts"},
		{"timestamp": "garbage", "latitude": 12.9, "longitude": 77.5, "vehicle_id": "bad-ts"},
		{"timestamp": "2024-01-15T09:33:00Z", "latitude": "not-a-number", "longitude": 77.5, "vehicle_id": "bad-lat"},
	}

	records := Normalize(rows)

	require.Len(t, records, 1)
	assert.Equal(t, "keep", records[0].VehicleID)
	for _, r := range records {
		assert.False(t, r.Timestamp.IsZero())
		assert.False(t, r.Latitude.Missing())
		assert.False(t, r.Longitude.Missing())
	}
}

func TestNormalize_RetainsMissingMeasurements(t *testing.T) {
	// Coercion failures outside the required fields degrade to missing, the
	// row itself survives
	rows := []Row{
		{
			"timestamp":  "2024-01-15T09:30:00Z",
			"latitude":   12.9,
			"longitude":  77.5,
			"speed":      "not-a-number",
			"fuel_level": nil,
		},
	}

	records := Normalize(rows)

	require.Len(t, records, 1)
	assert.True(t, records[0].Speed.Missing())
	assert.True(t, records[0].FuelLevel.Missing())
	assert.True(t, records[0].EngineTemp.Missing())
}

func TestNormalize_SortsAscending(t *testing.T) {
	// Rows arrive newest first, as the store returns them
	rows := []Row{
		{"timestamp": "2024-01-15T09:32:00Z", "latitude": 1.0, "longitude": 1.0, "vehicle_id": "c"},
		{"timestamp": "2024-01-15T09:31:00Z", "latitude": 1.0, "longitude": 1.0, "vehicle_id": "b"},
		{"timestamp": "2024-01-15T09:30:00Z", "latitude": 1.0, "longitude": 1.0, "vehicle_id": "a"},
	}

	records := Normalize(rows)

	require.Len(t, records, 3)
	assert.Equal(t, "a", records[0].VehicleID)
	assert.Equal(t, "b", records[1].VehicleID)
	assert.Equal(t, "c", records[2].VehicleID)
	for i := 1; i < len(records); i++ {
		assert.False(t, records[i].Timestamp.Before(records[i-1].Timestamp))
	}
}

func TestNormalize_StableTieOrder(t *testing.T) {
	// Equal timestamps keep their input order
	rows := []Row{
		{"timestamp": "2024-01-15T09:31:00Z", "latitude": 1.0, "longitude": 1.0, "vehicle_id": "late"},
		{"timestamp": "2024-01-15T09:30:00Z", "latitude": 1.0, "longitude": 1.0, "vehicle_id": "tie-1"},
		{"timestamp": "2024-01-15T09:30:00Z", "latitude": 1.0, "longitude": 1.0, "vehicle_id": "tie-2"},
		{"timestamp": "2024-01-15T09:30:00Z", "latitude": 1.0, "longitude": 1.0, "vehicle_id": "tie-3"},
	}

	records := Normalize(rows)

	require.Len(t, records, 4)
	assert.Equal(t, "tie-1", records[0].VehicleID)
	assert.Equal(t, "tie-2", records[1].VehicleID)
	assert.Equal(t, "tie-3", records[2].VehicleID)
	assert.Equal(t, "late", records[3].VehicleID)
}

func TestNormalize_LowercasesCategoricals(t *testing.T) {
	rows := []Row{
		{
			"timestamp":      "2024-01-15T09:30:00Z",
			"latitude":       1.0,
			"longitude":      1.0,
			"vehicle_type":   "Truck",
			"driver_state":   "DROWSY",
			"vehicle_health": " Good ",
		},
	}

	records := Normalize(rows)

	require.Len(t, records, 1)
	assert.Equal(t, "truck", records[0].VehicleType)
	assert.Equal(t, "drowsy", records[0].DriverState)
	assert.Equal(t, "good", records[0].VehicleHealth)
}

// rowFromRecord builds the wire form of a normalized record, as the store
// would return it on a subsequent fetch.
func rowFromRecord(rec TelemetryRecord) Row {
	row := Row{
		"timestamp":      rec.Timestamp.Format(time.RFC3339Nano),
		"vehicle_id":     rec.VehicleID,
		"trip_id":        rec.TripID,
		"vehicle_type":   rec.VehicleType,
		"driver_state":   rec.DriverState,
		"vehicle_health": rec.VehicleHealth,
	}

	floats := map[string]Float{
		"latitude":            rec.Latitude,
		"longitude":           rec.Longitude,
		"speed":               rec.Speed,
		"fuel_level":          rec.FuelLevel,
		"engine_temp":         rec.EngineTemp,
		"accelerometer_x":     rec.AccelX,
		"accelerometer_y":     rec.AccelY,
		"accelerometer_z":     rec.AccelZ,
		"eye_closed_duration": rec.EyeClosedDuration,
		"head_direction":      rec.HeadDirection,
		"head_tilt":           rec.HeadTilt,
		"fatigue_score":       rec.FatigueScore,
	}
	for name, f := range floats {
		if !f.Missing() {
			row[name] = f.Value
		}
	}
	if !rec.SpeedingFlag.Missing() {
		row["speeding_flag"] = rec.SpeedingFlag.Value
	}

	return row
}

func TestNormalize_Idempotent(t *testing.T) {
	rows := []Row{
		{
			"timestamp":    "2024-01-15T09:32:00Z",
			"latitude":     12.9716,
			"longitude":    77.5946,
			"vehicle_id":   "veh-2",
			"vehicle_type": "Truck",
			"speed":        "82.5",
			"engine_temp":  95.0,
		},
		{
			"timestamp":     "2024-01-15T09:30:00Z",
			"latitude":      13.0827,
			"longitude":     80.2707,
			"vehicle_id":    "veh-1",
			"vehicle_type":  "car",
			"driver_state":  "Drowsy",
			"speed":         nil,
			"speeding_flag": true,
		},
	}

	first := DeriveAll(Normalize(rows), DefaultThresholds())

	wireRows := make([]Row, 0, len(first))
	for _, rec := range first {
		wireRows = append(wireRows, rowFromRecord(rec))
	}
	second := DeriveAll(Normalize(wireRows), DefaultThresholds())

	assert.Equal(t, first, second)
}
