package telematics

import "math"

// Thresholds holds the configured limits for event derivation. A single
// threshold set applies to a whole pipeline invocation; per-deployment
// values come from configuration, never from constants scattered in code.
type Thresholds struct {
	// EngineOverheatC is the engine temperature limit in degrees Celsius.
	EngineOverheatC float64
	// HarshAccelG is the per-axis acceleration magnitude limit.
	HarshAccelG float64
	// EyeClosedSec is the eye-closure duration limit in seconds.
	EyeClosedSec float64
	// DefaultSpeedLimitKmh applies when a vehicle type has no entry in
	// SpeedLimitsKmh.
	DefaultSpeedLimitKmh float64
	// SpeedLimitsKmh maps a lowercase vehicle type to its speed limit.
	SpeedLimitsKmh map[string]float64
}

// DefaultThresholds returns the stock threshold set.
func DefaultThresholds() Thresholds {
	return Thresholds{
		EngineOverheatC:      120,
		HarshAccelG:          2.5,
		EyeClosedSec:         2.5,
		DefaultSpeedLimitKmh: 100,
	}
}

// SpeedLimitFor returns the speed limit for a vehicle type, falling back to
// the default limit for unknown types.
func (t Thresholds) SpeedLimitFor(vehicleType string) float64 {
	if limit, ok := t.SpeedLimitsKmh[vehicleType]; ok {
		return limit
	}
	return t.DefaultSpeedLimitKmh
}

// DeriveFlags computes the event flags for a single record. It is a pure
// function: missing inputs derive false, no row is ever dropped here.
func DeriveFlags(rec TelemetryRecord, t Thresholds) EventFlags {
	return EventFlags{
		Speeding:       deriveSpeeding(rec, t),
		HarshBraking:   deriveHarshBraking(rec, t),
		EngineOverheat: !rec.EngineTemp.Missing() && rec.EngineTemp.Value > t.EngineOverheatC,
		DriverDrowsy:   rec.DriverState == "drowsy",
		EyesClosed:     !rec.EyeClosedDuration.Missing() && rec.EyeClosedDuration.Value > t.EyeClosedSec,
	}
}

// deriveSpeeding uses the upstream flag when present, otherwise compares
// speed against the configured limit for the vehicle type.
func deriveSpeeding(rec TelemetryRecord, t Thresholds) bool {
	if !rec.SpeedingFlag.Missing() {
		return rec.SpeedingFlag.Value
	}
	if rec.Speed.Missing() {
		return false
	}
	return rec.Speed.Value > t.SpeedLimitFor(rec.VehicleType)
}

// deriveHarshBraking flags any axis exceeding the acceleration limit in
// magnitude.
func deriveHarshBraking(rec TelemetryRecord, t Thresholds) bool {
	for _, axis := range []Float{rec.AccelX, rec.AccelY, rec.AccelZ} {
		if !axis.Missing() && math.Abs(axis.Value) > t.HarshAccelG {
			return true
		}
	}
	return false
}

// DeriveAll returns a copy of records with event flags populated.
func DeriveAll(records []TelemetryRecord, t Thresholds) []TelemetryRecord {
	result := make([]TelemetryRecord, len(records))
	for i, rec := range records {
		rec.Flags = DeriveFlags(rec, t)
		result[i] = rec
	}
	return result
}
