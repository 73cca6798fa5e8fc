package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rish742/telematics-Dashboard/internal/store"
	"github.com/rish742/telematics-Dashboard/internal/summary"
	"github.com/rish742/telematics-Dashboard/internal/telematics"
)

// RecordsResponse represents one filtered view over a snapshot
type RecordsResponse struct {
	SnapshotID string                       `json:"snapshot_id"`
	FetchedAt  time.Time                    `json:"fetched_at"`
	Cached     bool                         `json:"cached"`
	Count      int                          `json:"count"`
	Records    []telematics.TelemetryRecord `json:"records"`
}

// SummaryResponse represents the aggregate view over a snapshot
type SummaryResponse struct {
	SnapshotID string           `json:"snapshot_id"`
	FetchedAt  time.Time        `json:"fetched_at"`
	Cached     bool             `json:"cached"`
	Summary    summary.Overview `json:"summary"`
}

// RefreshResponse reports the snapshot built by a forced refresh
type RefreshResponse struct {
	SnapshotID string    `json:"snapshot_id"`
	FetchedAt  time.Time `json:"fetched_at"`
	Count      int       `json:"count"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// filterFromQuery builds the record filter from the repeatable vehicle_type
// and trip_id query parameters
func filterFromQuery(c *gin.Context) summary.Filter {
	return summary.Filter{
		VehicleTypes: c.QueryArray("vehicle_type"),
		TripIDs:      c.QueryArray("trip_id"),
	}
}

// getRecords handles GET /records
func (s *Server) getRecords(c *gin.Context) {
	snap, cached, err := s.snapshots.FetchAndNormalize(c.Request.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to fetch records")
		sendStoreError(c, err)
		return
	}

	records := filterFromQuery(c).Apply(snap.Records)
	if records == nil {
		records = []telematics.TelemetryRecord{}
	}

	c.JSON(http.StatusOK, RecordsResponse{
		SnapshotID: snap.ID,
		FetchedAt:  snap.FetchedAt,
		Cached:     cached,
		Count:      len(records),
		Records:    records,
	})
}

// getSummary handles GET /summary
func (s *Server) getSummary(c *gin.Context) {
	snap, cached, err := s.snapshots.FetchAndNormalize(c.Request.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to fetch summary")
		sendStoreError(c, err)
		return
	}

	records := filterFromQuery(c).Apply(snap.Records)

	c.JSON(http.StatusOK, SummaryResponse{
		SnapshotID: snap.ID,
		FetchedAt:  snap.FetchedAt,
		Cached:     cached,
		Summary:    summary.Summarize(records),
	})
}

// postRefresh handles POST /refresh
func (s *Server) postRefresh(c *gin.Context) {
	snap, err := s.snapshots.Refresh(c.Request.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to refresh snapshot")
		sendStoreError(c, err)
		return
	}

	c.JSON(http.StatusOK, RefreshResponse{
		SnapshotID: snap.ID,
		FetchedAt:  snap.FetchedAt,
		Count:      len(snap.Records),
	})
}

// sendStoreError maps a store failure to 502 with its kind in the details
func sendStoreError(c *gin.Context, err error) {
	details := err.Error()
	if kind := store.KindOf(err); kind != "" {
		details = fmt.Sprintf("%s: %s", kind, details)
	}
	sendError(c, http.StatusBadGateway, "Upstream store request failed", details)
}

// sendError sends an error response
func sendError(c *gin.Context, code int, message string, details ...string) {
	err := ErrorResponse{
		Code:    code,
		Message: message,
	}

	if len(details) > 0 {
		err.Details = details[0]
	}

	c.JSON(code, err)
}
