package store

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rish742/telematics-Dashboard/internal/telematics"
)

func newRESTStore(t *testing.T, url string, maxRetries int) *RESTStore {
	t.Helper()

	s, err := NewRESTStore(zerolog.Nop(), RESTConfig{
		URL:          url,
		APIKey:       "test-key",
		Timeout:      2 * time.Second,
		MaxRetries:   maxRetries,
		RetryBackoff: time.Millisecond,
	})
	require.NoError(t, err)
	return s
}

func telematicsQuery() telematics.Query {
	return telematics.Query{Table: "telematics", OrderBy: "timestamp", Descending: true, Limit: 500}
}

func TestNewRESTStore_Validation(t *testing.T) {
	t.Run("should require a URL", func(t *testing.T) {
		_, err := NewRESTStore(zerolog.Nop(), RESTConfig{APIKey: "k"})
		assert.Error(t, err)
	})

	t.Run("should require an API key", func(t *testing.T) {
		_, err := NewRESTStore(zerolog.Nop(), RESTConfig{URL: "http://localhost"})
		assert.Error(t, err)
	})
}

func TestRESTStore_QueryRows(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/telematics", r.URL.Path)
		assert.Equal(t, "*", r.URL.Query().Get("select"))
		assert.Equal(t, "timestamp.desc", r.URL.Query().Get("order"))
		assert.Equal(t, "500", r.URL.Query().Get("limit"))
		assert.Equal(t, "test-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"timestamp": "2024-01-15T09:31:00Z", "latitude": 12.9, "longitude": 77.5, "vehicle_id": "veh-2", "speed": 82.5},
			{"timestamp": "2024-01-15T09:30:00Z", "latitude": 13.0, "longitude": 80.2, "vehicle_id": "veh-1", "speed": null}
		]`))
	}))
	defer server.Close()

	s := newRESTStore(t, server.URL, 0)
	defer s.Close()

	rows, err := s.QueryRows(context.Background(), telematicsQuery())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "veh-2", rows[0]["vehicle_id"])
	assert.Equal(t, 82.5, rows[0]["speed"])
	assert.Nil(t, rows[1]["speed"])
}

func TestRESTStore_EmptyTable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	s := newRESTStore(t, server.URL, 0)
	defer s.Close()

	rows, err := s.QueryRows(context.Background(), telematicsQuery())
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestRESTStore_ErrorClassification(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		checker func(error) bool
		kind    ErrorKind
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{"message":"invalid key"}`, checker: IsAuth, kind: KindAuth},
		{name: "forbidden", status: http.StatusForbidden, body: `{}`, checker: IsAuth, kind: KindAuth},
		{name: "unknown table", status: http.StatusNotFound, body: `{"message":"not found"}`, checker: IsSchema, kind: KindSchema},
		{name: "unknown column", status: http.StatusBadRequest, body: `{"code":"42703"}`, checker: IsSchema, kind: KindSchema},
		{name: "server error", status: http.StatusInternalServerError, body: `{}`, checker: IsConnection, kind: KindConnection},
		{name: "non-array body", status: http.StatusOK, body: `{"rows": []}`, checker: IsSchema, kind: KindSchema},
		{name: "missing required column", status: http.StatusOK, body: `[{"timestamp": "2024-01-15T09:30:00Z", "longitude": 77.5}]`, checker: IsSchema, kind: KindSchema},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			s := newRESTStore(t, server.URL, 0)
			defer s.Close()

			rows, err := s.QueryRows(context.Background(), telematicsQuery())
			require.Error(t, err)
			assert.Nil(t, rows)
			assert.True(t, tt.checker(err), "expected kind %s, got %v", tt.kind, err)
		})
	}
}

func TestRESTStore_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // Nothing is listening any more

	s := newRESTStore(t, server.URL, 0)
	defer s.Close()

	rows, err := s.QueryRows(context.Background(), telematicsQuery())
	require.Error(t, err)
	assert.Nil(t, rows)
	assert.True(t, IsConnection(err))
}

func TestRESTStore_RetriesConnectionFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`[{"timestamp": "2024-01-15T09:30:00Z", "latitude": 1.0, "longitude": 1.0}]`))
	}))
	defer server.Close()

	s := newRESTStore(t, server.URL, 3)
	defer s.Close()

	rows, err := s.QueryRows(context.Background(), telematicsQuery())
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRESTStore_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	s := newRESTStore(t, server.URL, 2)
	defer s.Close()

	_, err := s.QueryRows(context.Background(), telematicsQuery())
	require.Error(t, err)
	assert.True(t, IsConnection(err))
	assert.Equal(t, int32(3), calls.Load()) // initial attempt plus two retries
}

func TestRESTStore_NegativeMaxRetriesStillFetches(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	s := newRESTStore(t, server.URL, -1)
	defer s.Close()

	rows, err := s.QueryRows(context.Background(), telematicsQuery())
	require.Error(t, err, "a failed fetch must never report success")
	assert.True(t, IsConnection(err))
	assert.Nil(t, rows)
	assert.Equal(t, int32(1), calls.Load()) // one attempt, no retries
}

func TestRESTStore_NoRetryOnAuthFailure(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	s := newRESTStore(t, server.URL, 3)
	defer s.Close()

	_, err := s.QueryRows(context.Background(), telematicsQuery())
	require.Error(t, err)
	assert.True(t, IsAuth(err))
	assert.Equal(t, int32(1), calls.Load())
}
