package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rish742/telematics-Dashboard/internal/telematics"
)

// MemoryStore is an in-memory implementation of RowStore, used by tests and
// as the demo backend for local development.
// It's safe for concurrent use by multiple goroutines
type MemoryStore struct {
	mu   sync.RWMutex
	rows []telematics.Row
}

// NewMemoryStore creates a new in-memory store instance
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rows: make([]telematics.Row, 0),
	}
}

// Add appends raw rows to the store
func (m *MemoryStore) Add(rows ...telematics.Row) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rows = append(m.rows, rows...)
}

// QueryRows implements RowStore.QueryRows with the same ordering and limit
// semantics as the remote backends: order first, then cap at the limit, so
// a descending query with a limit returns the most recent rows.
func (m *MemoryStore) QueryRows(ctx context.Context, q telematics.Query) ([]telematics.Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]telematics.Row, len(m.rows))
	copy(result, m.rows)

	if q.OrderBy != "" {
		sort.SliceStable(result, func(i, j int) bool {
			if q.Descending {
				return lessValue(result[j][q.OrderBy], result[i][q.OrderBy])
			}
			return lessValue(result[i][q.OrderBy], result[j][q.OrderBy])
		})
	}

	if q.Limit > 0 && len(result) > q.Limit {
		result = result[:q.Limit]
	}

	return result, nil
}

// Close cleans up the store resources
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rows = nil
	return nil
}

// lessValue orders raw column values: instants chronologically, numbers
// numerically, anything else lexically.
func lessValue(a, b any) bool {
	if at, aok := timeValue(a); aok {
		if bt, bok := timeValue(b); bok {
			return at.Before(bt)
		}
	}
	if af, aok := a.(float64); aok {
		if bf, bok := b.(float64); bok {
			return af < bf
		}
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
}

func timeValue(v any) (time.Time, bool) {
	switch val := v.(type) {
	case time.Time:
		return val, true
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
			if t, err := time.Parse(layout, val); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// SampleRows generates n deterministic demo rows ending at end, one per
// minute, newest last. A slice of the values cycles through the interesting
// cases: overheating engines, harsh acceleration, drowsy drivers.
func SampleRows(n int, end time.Time) []telematics.Row {
	vehicleTypes := []string{"car", "truck", "bus"}
	driverStates := []string{"alert", "alert", "alert", "drowsy"}
	healthStates := []string{"good", "good", "fair", "poor"}

	rows := make([]telematics.Row, 0, n)
	for i := 0; i < n; i++ {
		ts := end.Add(-time.Duration(n-1-i) * time.Minute)
		accelX := 0.5
		if i%13 == 0 {
			accelX = 3.2
		}
		rows = append(rows, telematics.Row{
			"timestamp":           ts.UTC().Format(time.RFC3339),
			"vehicle_id":          fmt.Sprintf("veh-%d", i%5+1),
			"trip_id":             fmt.Sprintf("trip-%d", i%8+1),
			"vehicle_type":        vehicleTypes[i%len(vehicleTypes)],
			"latitude":            12.90 + float64(i%10)*0.01,
			"longitude":           77.50 + float64(i%10)*0.01,
			"speed":               40.0 + float64(i%70),
			"fuel_level":          90.0 - float64(i%80),
			"engine_temp":         85.0 + float64(i%45),
			"accelerometer_x":     accelX,
			"accelerometer_y":     0.1,
			"accelerometer_z":     9.8,
			"driver_state":        driverStates[i%len(driverStates)],
			"vehicle_health":      healthStates[i%len(healthStates)],
			"eye_closed_duration": float64(i%4) * 1.1,
			"head_direction":      float64(i%90) - 45,
			"head_tilt":           float64(i%30) - 15,
			"fatigue_score":       float64(i%100) / 100,
		})
	}

	return rows
}

// Ensure MemoryStore implements RowStore
var _ telematics.RowStore = (*MemoryStore)(nil)
