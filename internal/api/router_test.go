package api_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecopulse/ecopulse/internal/analytics"
	"github.com/ecopulse/ecopulse/internal/api"
	"github.com/ecopulse/ecopulse/internal/api/models"
	"github.com/ecopulse/ecopulse/internal/report"
	"github.com/ecopulse/ecopulse/internal/sensor"
	"github.com/ecopulse/ecopulse/internal/upstream"
	"github.com/ecopulse/ecopulse/internal/worker"
)

var windowStart = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

type fakeSource struct {
	readings []sensor.SensorReading
	err      error
	calls    atomic.Int32
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) FetchReadings(context.Context, report.DateRange) ([]sensor.SensorReading, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.readings, nil
}

func historical(aqis ...float64) []sensor.SensorReading {
	out := make([]sensor.SensorReading, 0, len(aqis))
	for i, aqi := range aqis {
		out = append(out, sensor.SensorReading{
			SensorID: "s1",
			Location: sensor.Location{Latitude: 52.37, Longitude: 4.90},
			Readings: sensor.Measurements{AQI: aqi, Timestamp: windowStart.Add(time.Duration(i+1) * time.Hour)},
		})
	}
	return out
}

type fakeRetention struct {
	stats worker.SweepStats
}

func (f fakeRetention) Stats() worker.SweepStats { return f.stats }

type testServer struct {
	handler   http.Handler
	analytics *analytics.Service
	source    *fakeSource
	registry  *upstream.Registry
}

func newTestServer(t *testing.T, source *fakeSource) *testServer {
	t.Helper()
	logger := zerolog.New(io.Discard)

	svc := analytics.NewService(analytics.ServiceConfig{Logger: logger})
	engine := report.NewEngine(report.EngineConfig{Source: source, Logger: logger})
	registry := upstream.NewRegistry()

	return &testServer{
		handler: api.NewRouter(api.RouterConfig{
			Version:     "test",
			BuildTime:   "2026-01-01T00:00:00Z",
			Logger:      logger,
			Analytics:   svc,
			Reports:     engine,
			ReportRetry: upstream.RetryPolicy{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond},
			Registry:    registry,
			RateLimits:  api.RateLimits{Standard: 1000, Ingest: 1000, Reports: 1000},
			Retention:   fakeRetention{stats: worker.SweepStats{Runs: 3, SensorsRemoved: 2, EntriesPruned: 7}},
		}),
		analytics: svc,
		source:    source,
		registry:  registry,
	}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func readingJSON(sensorID string, lat, lon, aqi float64, ts time.Time) string {
	var buf bytes.Buffer
	_ = json.NewEncoder(&buf).Encode(map[string]interface{}{
		"sensorId": sensorID,
		"location": map[string]float64{"latitude": lat, "longitude": lon},
		"readings": map[string]interface{}{"aqi": aqi, "pm25": 12.5, "timestamp": ts.Format(time.RFC3339)},
		"deviceInfo": map[string]interface{}{"status": "active", "batteryLevel": 80},
	})
	return buf.String()
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestOpsEndpoints(t *testing.T) {
	s := newTestServer(t, &fakeSource{})

	w := s.do(t, http.MethodGet, "/v1/ops/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	w = s.do(t, http.MethodGet, "/v1/ops/ready", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/v1/ops/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	status := decode[map[string]interface{}](t, w)
	assert.Equal(t, "OK", status["status"])
	assert.Len(t, status["caches"], 2)
	assert.Equal(t, "fake", status["reports"].(map[string]interface{})["source"])

	retention, ok := status["retention"].(map[string]interface{})
	require.True(t, ok, "retention counters are reported")
	assert.Equal(t, 3.0, retention["runs"])
	assert.Equal(t, 2.0, retention["sensorsRemoved"])
	assert.Equal(t, 7.0, retention["entriesPruned"])
}

func TestIngestAndQuery(t *testing.T) {
	s := newTestServer(t, &fakeSource{})
	ts := time.Now().UTC().Truncate(time.Minute)

	w := s.do(t, http.MethodPost, "/v1/readings", readingJSON("s1", 52.3676, 4.9041, 40, ts))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "/v1/sensors/s1", w.Header().Get("Location"))
	created := decode[models.IngestResponse](t, w)
	assert.True(t, created.Success)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.Duplicate)
	assert.Equal(t, 40, created.Analytics.Stats.AverageAQI)

	w = s.do(t, http.MethodPost, "/v1/readings", readingJSON("s1", 52.3676, 4.9041, 40, ts.Add(20*time.Second)))
	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, decode[models.IngestResponse](t, w).Duplicate, "same sensor within the same minute")

	w = s.do(t, http.MethodPost, "/v1/readings", readingJSON("s2", 52.0907, 5.1214, 120, ts))
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.do(t, http.MethodGet, "/v1/sensors", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, decode[models.SensorList](t, w).Count)

	w = s.do(t, http.MethodGet, "/v1/sensors/s1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[analytics.SensorAnalytics](t, w).Stats.ReadingsCount)

	w = s.do(t, http.MethodGet, "/v1/sensors/s1/history", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[models.SensorHistory](t, w).History, 1)

	w = s.do(t, http.MethodGet, "/v1/sensors/unknown", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))

	// Amsterdam to Utrecht is roughly 35 km.
	w = s.do(t, http.MethodGet, "/v1/areas?lat=52.3676&lon=4.9041&radiusKm=10", "")
	require.Equal(t, http.StatusOK, w.Code)
	area := decode[models.AreaResponse](t, w)
	require.Equal(t, 1, area.Count)
	assert.Equal(t, "s1", area.Sensors[0].SensorID)

	w = s.do(t, http.MethodGet, "/v1/areas?lat=52.3676&lon=4.9041&radiusKm=50", "")
	assert.Equal(t, 2, decode[models.AreaResponse](t, w).Count)
}

func TestIngest_ValidationFailure(t *testing.T) {
	s := newTestServer(t, &fakeSource{})

	w := s.do(t, http.MethodPost, "/v1/readings",
		`{"sensorId":"s1","location":{"latitude":95,"longitude":4.9},"readings":{"aqi":600,"timestamp":"2026-03-01T12:00:00Z"}}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	problem := decode[models.Problem](t, w)
	fields := make([]string, 0, len(problem.Errors))
	for _, f := range problem.Errors {
		fields = append(fields, f.Field)
	}
	assert.ElementsMatch(t, []string{"location.latitude", "readings.aqi"}, fields)
	assert.Empty(t, s.analytics.Sensors(), "rejected readings leave no trace")

	w = s.do(t, http.MethodPost, "/v1/readings", `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/v1/readings", strings.NewReader("aqi=40"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestAreaQuery_Invalid(t *testing.T) {
	s := newTestServer(t, &fakeSource{})

	for _, query := range []string{
		"lat=52&lon=4",
		"lat=abc&lon=4&radiusKm=5",
		"lat=91&lon=4&radiusKm=5",
		"lat=52&lon=4&radiusKm=-1",
	} {
		w := s.do(t, http.MethodGet, "/v1/areas?"+query, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, query)
	}
}

func reportBody(metrics ...string) string {
	cfg := map[string]interface{}{
		"type":    "custom",
		"metrics": metrics,
		"dateRange": map[string]string{
			"start": windowStart.Format(time.RFC3339),
			"end":   windowStart.Add(24 * time.Hour).Format(time.RFC3339),
		},
	}
	data, _ := json.Marshal(cfg)
	return string(data)
}

func TestGenerateReport(t *testing.T) {
	s := newTestServer(t, &fakeSource{readings: historical(40, 60, 150, 250)})

	w := s.do(t, http.MethodPost, "/v1/reports", reportBody("aqi"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	first := decode[models.ReportResponse](t, w)
	assert.True(t, first.Success)
	assert.False(t, first.Cached)
	assert.NotEmpty(t, first.CacheKey)
	assert.Equal(t, 4, first.Result.Summary.TotalReadings)

	w = s.do(t, http.MethodPost, "/v1/reports", reportBody("aqi"))
	require.Equal(t, http.StatusOK, w.Code)
	second := decode[models.ReportResponse](t, w)
	assert.True(t, second.Cached)
	assert.Equal(t, first.CacheKey, second.CacheKey)
	assert.Equal(t, int32(1), s.source.calls.Load(), "second request served from cache")
}

func TestGenerateReport_InvalidConfig(t *testing.T) {
	s := newTestServer(t, &fakeSource{})

	w := s.do(t, http.MethodPost, "/v1/reports", reportBody())
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.NotEmpty(t, decode[models.Problem](t, w).Errors)
	assert.Zero(t, s.source.calls.Load())
}

func TestGenerateReport_UpstreamFailure(t *testing.T) {
	s := newTestServer(t, &fakeSource{err: errors.New("connection refused")})

	w := s.do(t, http.MethodPost, "/v1/reports", reportBody("aqi"))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "30", w.Header().Get("Retry-After"))
	assert.Equal(t, int32(3), s.source.calls.Load(), "first attempt plus two retries")
}

func TestGenerateReport_RejectedNotRetried(t *testing.T) {
	s := newTestServer(t, &fakeSource{err: report.ErrSourceRejected})

	w := s.do(t, http.MethodPost, "/v1/reports", reportBody("aqi"))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, int32(1), s.source.calls.Load())
}

func exportBody(format string) string {
	return `{"config":` + reportBody("aqi", "pm25") + `,"format":"` + format + `"}`
}

func TestExportReport(t *testing.T) {
	s := newTestServer(t, &fakeSource{readings: historical(40, 60, 150, 250)})

	w := s.do(t, http.MethodPost, "/v1/reports:export", exportBody("csv"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "metric,average"))
	assert.NotEmpty(t, w.Header().Get("X-Report-Cache-Key"))

	w = s.do(t, http.MethodPost, "/v1/reports:export", exportBody("json"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), `"summary"`)

	for _, format := range []string{"pdf", "xlsx"} {
		w = s.do(t, http.MethodPost, "/v1/reports:export", exportBody(format))
		require.Equal(t, http.StatusNotImplemented, w.Code)
		assert.Equal(t, strings.ToUpper(format)+" export not implemented", decode[models.Problem](t, w).Detail)
	}

	w = s.do(t, http.MethodPost, "/v1/reports:export", exportBody("docx"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/v1/reports:export", `{"format":"csv"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCleanup(t *testing.T) {
	s := newTestServer(t, &fakeSource{})

	w := s.do(t, http.MethodPost, "/v1/readings", readingJSON("s1", 52.3676, 4.9041, 40, time.Now().UTC()))
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.do(t, http.MethodPost, "/v1/ops/cleanup", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[models.CleanupResponse](t, w)
	assert.True(t, body.Success)
	assert.Zero(t, body.Result.SensorsRemoved, "fresh sensors survive the default retention")
	assert.Len(t, s.analytics.Sensors(), 1)
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t, &fakeSource{})
	w := s.do(t, http.MethodGet, "/v1/unknown", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
