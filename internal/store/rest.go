package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/rish742/telematics-Dashboard/internal/telematics"
)

// requiredColumns must be present in returned rows for the response to be
// considered well-formed.
var requiredColumns = []string{"timestamp", "latitude", "longitude"}

// RESTConfig holds connection configuration for a PostgREST-style store
// (Supabase exposes one per project). URL and APIKey are always supplied
// externally, never baked into defaults.
type RESTConfig struct {
	URL          string
	APIKey       string
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

// RESTStore reads rows over the PostgREST HTTP dialect
type RESTStore struct {
	baseURL      string
	apiKey       string
	client       *http.Client
	maxRetries   int
	retryBackoff time.Duration
	logger       zerolog.Logger
}

// NewRESTStore creates a new REST store client. Connection failures only
// surface on the first query; construction just validates configuration.
func NewRESTStore(logger zerolog.Logger, cfg RESTConfig) (*RESTStore, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("store URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("store API key is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		// The initial attempt is made regardless of the retry count
		retries = 0
	}

	return &RESTStore{
		baseURL:      cfg.URL,
		apiKey:       cfg.APIKey,
		client:       &http.Client{Timeout: timeout},
		maxRetries:   retries,
		retryBackoff: backoff,
		logger:       logger.With().Str("component", "rest_store").Logger(),
	}, nil
}

// QueryRows fetches untyped rows for the given query. Connection failures
// are retried with exponential backoff up to the configured limit; auth and
// schema failures fail immediately.
func (s *RESTStore) QueryRows(ctx context.Context, q telematics.Query) ([]telematics.Row, error) {
	endpoint, err := s.buildURL(q)
	if err != nil {
		return nil, schemaError("failed to build query URL", err)
	}

	backoff := s.retryBackoff
	var lastErr error

	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			s.logger.Warn().
				Err(lastErr).
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Msg("Retrying fetch after connection failure")

			select {
			case <-ctx.Done():
				return nil, connectionError("fetch cancelled", ctx.Err())
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		start := time.Now()
		rows, err := s.fetch(ctx, endpoint)
		if err == nil {
			s.logger.Debug().
				Int("rows", len(rows)).
				Dur("latency", time.Since(start)).
				Str("table", q.Table).
				Msg("Fetched rows from store")
			return rows, nil
		}

		lastErr = err
		if !IsConnection(err) {
			// Auth and schema failures will not heal on retry
			return nil, err
		}
	}

	return nil, lastErr
}

// fetch performs a single request attempt.
func (s *RESTStore) fetch(ctx context.Context, endpoint string) ([]telematics.Row, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, connectionError("failed to build request", err)
	}
	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, connectionError("failed to reach store", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, connectionError("failed to read response body", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, authError(fmt.Sprintf("store rejected credential (status %d)", resp.StatusCode), nil)
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusBadRequest:
		// Unknown table or unknown column in the query
		return nil, schemaError(fmt.Sprintf("store rejected query (status %d): %s", resp.StatusCode, truncate(body, 200)), nil)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, connectionError(fmt.Sprintf("store request failed (status %d)", resp.StatusCode), nil)
	}

	var rows []telematics.Row
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, schemaError("response is not a row array", err)
	}

	if len(rows) > 0 {
		for _, col := range requiredColumns {
			if _, ok := rows[0][col]; !ok {
				return nil, schemaError(fmt.Sprintf("required column %q absent from response", col), nil)
			}
		}
	}

	return rows, nil
}

// buildURL renders the PostgREST query URL for q.
func (s *RESTStore) buildURL(q telematics.Query) (string, error) {
	endpoint, err := url.JoinPath(s.baseURL, "rest", "v1", q.Table)
	if err != nil {
		return "", err
	}

	params := url.Values{}
	params.Set("select", "*")
	if q.OrderBy != "" {
		dir := "asc"
		if q.Descending {
			dir = "desc"
		}
		params.Set("order", q.OrderBy+"."+dir)
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	return endpoint + "?" + params.Encode(), nil
}

// Close implements RowStore.Close
func (s *RESTStore) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// Ensure RESTStore implements RowStore
var _ telematics.RowStore = (*RESTStore)(nil)
