package history

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/ecopulse/ecopulse/internal/report"
	"github.com/ecopulse/ecopulse/internal/sensor"
	"github.com/ecopulse/ecopulse/internal/upstream"
)

// maxResponseBytes bounds a remote archive response.
const maxResponseBytes = 64 << 20

// RemoteSourceConfig holds configuration for a RemoteSource.
type RemoteSourceConfig struct {
	// BaseURL is the archive API root; readings are fetched from {BaseURL}/readings.
	BaseURL string

	// APIKey is sent as X-API-Key when set.
	APIKey string

	Client *upstream.Client
	Logger zerolog.Logger
}

// RemoteSource fetches historical readings from an HTTP archive API.
type RemoteSource struct {
	baseURL string
	apiKey  string
	client  *upstream.Client
	logger  zerolog.Logger
}

type readingsResponse struct {
	Readings []sensor.RawReading `json:"readings"`
}

// NewRemoteSource creates a RemoteSource.
func NewRemoteSource(cfg RemoteSourceConfig) *RemoteSource {
	client := cfg.Client
	if client == nil {
		client = upstream.NewClient(upstream.DefaultClientConfig("history-remote"))
	}
	return &RemoteSource{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  client,
		logger:  cfg.Logger,
	}
}

// Name returns the upstream client name.
func (s *RemoteSource) Name() string {
	return s.client.Name()
}

// FetchReadings requests the readings within r. Readings that fail
// validation are skipped and logged.
func (s *RemoteSource) FetchReadings(ctx context.Context, r report.DateRange) ([]sensor.SensorReading, error) {
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base url: %v", report.ErrSourceRejected, err)
	}
	u = u.JoinPath("readings")
	q := u.Query()
	q.Set("start", r.Start.UTC().Format(time.RFC3339))
	q.Set("end", r.End.UTC().Format(time.RFC3339))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.apiKey != "" {
		req.Header.Set("X-API-Key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, &upstream.ServerError{StatusCode: resp.StatusCode}
	case resp.StatusCode >= http.StatusBadRequest:
		return nil, fmt.Errorf("%w: status %d", report.ErrSourceRejected, resp.StatusCode)
	}

	var body readingsResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode readings: %w", err)
	}

	readings := make([]sensor.SensorReading, 0, len(body.Readings))
	skipped := 0
	for i := range body.Readings {
		reading, err := sensor.Validate(&body.Readings[i])
		if err != nil {
			skipped++
			continue
		}
		readings = append(readings, *reading)
	}
	if skipped > 0 {
		s.logger.Warn().
			Int("skipped", skipped).
			Int("accepted", len(readings)).
			Msg("skipped invalid archived readings")
	}

	return readings, nil
}
