package telematics

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// timestampLayouts are the accepted ISO-8601-compatible formats, tried in
// order. Layouts without a zone parse as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Normalize converts raw rows into clean records: per-field coercion,
// timestamp parsing, required-field filtering and a stable ascending sort.
// Each step produces a new slice; rows are never mutated in place.
func Normalize(rows []Row) []TelemetryRecord {
	records := make([]TelemetryRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, recordFromRow(row))
	}

	records = dropIncomplete(records)
	return sortByTimestamp(records)
}

// recordFromRow coerces a single untyped row. Fields that fail coercion
// become missing; nothing here drops the row.
func recordFromRow(row Row) TelemetryRecord {
	return TelemetryRecord{
		Timestamp:         parseTimestamp(row["timestamp"]),
		VehicleID:         coerceID(row["vehicle_id"]),
		TripID:            coerceID(row["trip_id"]),
		VehicleType:       coerceCategory(row["vehicle_type"]),
		Latitude:          coerceFloat(row["latitude"]),
		Longitude:         coerceFloat(row["longitude"]),
		Speed:             coerceFloat(row["speed"]),
		FuelLevel:         coerceFloat(row["fuel_level"]),
		EngineTemp:        coerceFloat(row["engine_temp"]),
		AccelX:            coerceFloat(row["accelerometer_x"]),
		AccelY:            coerceFloat(row["accelerometer_y"]),
		AccelZ:            coerceFloat(row["accelerometer_z"]),
		DriverState:       coerceCategory(row["driver_state"]),
		VehicleHealth:     coerceCategory(row["vehicle_health"]),
		EyeClosedDuration: coerceFloat(row["eye_closed_duration"]),
		HeadDirection:     coerceFloat(row["head_direction"]),
		HeadTilt:          coerceFloat(row["head_tilt"]),
		FatigueScore:      coerceFloat(row["fatigue_score"]),
		SpeedingFlag:      coerceBool(row["speeding_flag"]),
	}
}

// dropIncomplete removes rows missing timestamp, latitude or longitude.
// This is the only row-dropping step in the pipeline.
func dropIncomplete(records []TelemetryRecord) []TelemetryRecord {
	result := make([]TelemetryRecord, 0, len(records))
	for _, r := range records {
		if r.Timestamp.IsZero() || r.Latitude.Missing() || r.Longitude.Missing() {
			continue
		}
		result = append(result, r)
	}
	return result
}

// sortByTimestamp returns a copy sorted ascending by timestamp. Equal
// timestamps keep their input order.
func sortByTimestamp(records []TelemetryRecord) []TelemetryRecord {
	result := make([]TelemetryRecord, len(records))
	copy(result, records)

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})

	return result
}

// parseTimestamp parses a timestamp value from the store. Unparseable or
// absent values return the zero time, which marks the row for removal.
func parseTimestamp(v any) time.Time {
	switch val := v.(type) {
	case time.Time:
		return val
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return time.Time{}
		}
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t
			}
		}
		return time.Time{}
	default:
		return time.Time{}
	}
}

// coerceFloat parses a numeric field to a Float. Non-numeric, non-finite or
// absent values coerce to missing, never to a silent zero.
func coerceFloat(v any) Float {
	switch val := v.(type) {
	case nil:
		return Float{}
	case float64:
		return finiteFloat(val)
	case float32:
		return finiteFloat(float64(val))
	case int:
		return FloatFrom(float64(val))
	case int32:
		return FloatFrom(float64(val))
	case int64:
		return FloatFrom(float64(val))
	case uint:
		return FloatFrom(float64(val))
	case uint32:
		return FloatFrom(float64(val))
	case uint64:
		return FloatFrom(float64(val))
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return Float{}
		}
		return finiteFloat(f)
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return Float{}
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Float{}
		}
		return finiteFloat(f)
	default:
		return Float{}
	}
}

func finiteFloat(f float64) Float {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Float{}
	}
	return FloatFrom(f)
}

// coerceBool parses an upstream boolean flag. Numeric values follow the
// common 0/1 export convention; anything unrecognized is missing.
func coerceBool(v any) Bool {
	switch val := v.(type) {
	case nil:
		return Bool{}
	case bool:
		return BoolFrom(val)
	case float64:
		return BoolFrom(val != 0)
	case int:
		return BoolFrom(val != 0)
	case int64:
		return BoolFrom(val != 0)
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return Bool{}
		}
		return BoolFrom(f != 0)
	case string:
		b, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(val)))
		if err != nil {
			return Bool{}
		}
		return BoolFrom(b)
	default:
		return Bool{}
	}
}

// coerceCategory coerces a categorical field to a trimmed lowercase string.
// The empty string is the missing marker.
func coerceCategory(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.ToLower(strings.TrimSpace(val))
	default:
		return strings.ToLower(strings.TrimSpace(fmt.Sprint(val)))
	}
}

// coerceID coerces an identifier field. IDs keep their case; they group
// rows, they are not categories.
func coerceID(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}
