package summary

import (
	"sort"
	"strings"

	"github.com/rish742/telematics-Dashboard/internal/telematics"
)

// Filter narrows a snapshot to selected vehicle types and trips. Empty
// fields match everything; populated fields combine with AND.
type Filter struct {
	VehicleTypes []string
	TripIDs      []string
}

// Empty reports whether the filter matches all records.
func (f Filter) Empty() bool {
	return len(f.VehicleTypes) == 0 && len(f.TripIDs) == 0
}

// Apply returns the records matching the filter. Vehicle types compare
// case-insensitively; trip ids compare exactly.
func (f Filter) Apply(records []telematics.TelemetryRecord) []telematics.TelemetryRecord {
	if f.Empty() {
		return records
	}

	types := toSet(f.VehicleTypes, strings.ToLower)
	trips := toSet(f.TripIDs, nil)

	filtered := make([]telematics.TelemetryRecord, 0, len(records))
	for _, rec := range records {
		if len(types) > 0 {
			if _, ok := types[strings.ToLower(rec.VehicleType)]; !ok {
				continue
			}
		}
		if len(trips) > 0 {
			if _, ok := trips[rec.TripID]; !ok {
				continue
			}
		}
		filtered = append(filtered, rec)
	}

	return filtered
}

func toSet(values []string, normalize func(string) string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if normalize != nil {
			v = normalize(v)
		}
		set[v] = struct{}{}
	}
	return set
}

// Overview represents the aggregate view of one snapshot
type Overview struct {
	TotalRecords int `json:"total_records"`
	TotalTrips   int `json:"total_trips"`
	// Averages skip missing values and are themselves missing when no
	// record carries the field
	AvgSpeedKmh     telematics.Float `json:"avg_speed_kmh"`
	AvgFatigueScore telematics.Float `json:"avg_fatigue_score"`

	SpeedingEvents       int `json:"speeding_events"`
	HarshBrakingEvents   int `json:"harsh_braking_events"`
	EngineOverheatEvents int `json:"engine_overheat_events"`
	DriverDrowsyEvents   int `json:"driver_drowsy_events"`
	EyesClosedEvents     int `json:"eyes_closed_events"`

	DriverStateCounts   map[string]int `json:"driver_state_counts"`
	VehicleHealthCounts map[string]int `json:"vehicle_health_counts"`

	VehicleTypes []string `json:"vehicle_types"`
	TripIDs      []string `json:"trip_ids"`
}

// Summarize aggregates a snapshot into dashboard-level statistics.
func Summarize(records []telematics.TelemetryRecord) Overview {
	overview := Overview{
		TotalRecords:        len(records),
		DriverStateCounts:   make(map[string]int),
		VehicleHealthCounts: make(map[string]int),
		VehicleTypes:        make([]string, 0),
		TripIDs:             make([]string, 0),
	}

	var speed, fatigue meanAccumulator
	types := make(map[string]struct{})
	trips := make(map[string]struct{})

	for _, rec := range records {
		speed.add(rec.Speed)
		fatigue.add(rec.FatigueScore)

		if rec.Flags.Speeding {
			overview.SpeedingEvents++
		}
		if rec.Flags.HarshBraking {
			overview.HarshBrakingEvents++
		}
		if rec.Flags.EngineOverheat {
			overview.EngineOverheatEvents++
		}
		if rec.Flags.DriverDrowsy {
			overview.DriverDrowsyEvents++
		}
		if rec.Flags.EyesClosed {
			overview.EyesClosedEvents++
		}

		if rec.DriverState != "" {
			overview.DriverStateCounts[rec.DriverState]++
		}
		if rec.VehicleHealth != "" {
			overview.VehicleHealthCounts[rec.VehicleHealth]++
		}
		if rec.VehicleType != "" {
			types[rec.VehicleType] = struct{}{}
		}
		if rec.TripID != "" {
			trips[rec.TripID] = struct{}{}
		}
	}

	overview.AvgSpeedKmh = speed.mean()
	overview.AvgFatigueScore = fatigue.mean()
	overview.VehicleTypes = sortedKeys(types)
	overview.TripIDs = sortedKeys(trips)
	overview.TotalTrips = len(trips)

	return overview
}

// meanAccumulator averages the present values of an optional field.
type meanAccumulator struct {
	sum   float64
	count int
}

func (m *meanAccumulator) add(f telematics.Float) {
	if f.Missing() {
		return
	}
	m.sum += f.Value
	m.count++
}

func (m *meanAccumulator) mean() telematics.Float {
	if m.count == 0 {
		return telematics.Float{}
	}
	return telematics.FloatFrom(m.sum / float64(m.count))
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
