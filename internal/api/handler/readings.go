// Package handler implements the HTTP handlers of the EcoPulse API.
package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/ecopulse/ecopulse/internal/analytics"
	"github.com/ecopulse/ecopulse/internal/api/models"
	"github.com/ecopulse/ecopulse/internal/api/response"
	"github.com/ecopulse/ecopulse/internal/sensor"
)

// MaxBodyBytes bounds request bodies.
const MaxBodyBytes = 1 << 20

// SensorHandler serves reading ingestion and sensor queries.
type SensorHandler struct {
	analytics *analytics.Service
}

// NewSensorHandler creates a SensorHandler.
func NewSensorHandler(svc *analytics.Service) *SensorHandler {
	return &SensorHandler{analytics: svc}
}

// IngestReading handles POST /v1/readings.
func (h *SensorHandler) IngestReading(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		response.BadRequest(w, r, "request body too large or unreadable", []models.FieldError{
			{Field: "body", Message: err.Error()},
		})
		return
	}

	result, err := h.analytics.SubmitJSON(r.Context(), body)
	switch {
	case err == nil:
	case errors.Is(err, sensor.ErrInvalidReading):
		response.ValidationFailed(w, r, err)
		return
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		response.ServiceUnavailable(w, r, "ingestion queue did not accept the reading in time", 1)
		return
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("reading ingestion failed")
		response.InternalError(w, r, "failed to process reading")
		return
	}

	response.Created(w, r, "/v1/sensors/"+result.SensorID, models.IngestResponse{
		Success:   true,
		ID:        result.ID,
		Analytics: result.Analytics,
		Duplicate: result.Duplicate,
	})
}

// ListSensors handles GET /v1/sensors.
func (h *SensorHandler) ListSensors(w http.ResponseWriter, r *http.Request) {
	sensors := h.analytics.Sensors()
	response.JSON(w, r, http.StatusOK, models.SensorList{Sensors: sensors, Count: len(sensors)})
}

// GetSensor handles GET /v1/sensors/{sensorId}.
func (h *SensorHandler) GetSensor(w http.ResponseWriter, r *http.Request) {
	sensorID := chi.URLParam(r, "sensorId")
	got, err := h.analytics.Sensor(sensorID)
	if errors.Is(err, analytics.ErrSensorNotFound) {
		response.NotFound(w, r, "sensor "+sensorID+" not found")
		return
	}
	response.JSON(w, r, http.StatusOK, got)
}

// GetSensorHistory handles GET /v1/sensors/{sensorId}/history.
func (h *SensorHandler) GetSensorHistory(w http.ResponseWriter, r *http.Request) {
	sensorID := chi.URLParam(r, "sensorId")
	history, err := h.analytics.History(sensorID)
	if errors.Is(err, analytics.ErrSensorNotFound) {
		response.NotFound(w, r, "sensor "+sensorID+" not found")
		return
	}
	response.JSON(w, r, http.StatusOK, models.SensorHistory{SensorID: sensorID, History: history})
}

// QueryArea handles GET /v1/areas?lat=&lon=&radiusKm=.
func (h *SensorHandler) QueryArea(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var fieldErrs []models.FieldError
	parse := func(name string) float64 {
		raw := q.Get(name)
		if raw == "" {
			fieldErrs = append(fieldErrs, models.FieldError{Field: name, Message: "is required", Code: "required"})
			return 0
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			fieldErrs = append(fieldErrs, models.FieldError{Field: name, Message: "must be a number", Code: "number"})
		}
		return v
	}
	lat, lon, radius := parse("lat"), parse("lon"), parse("radiusKm")
	if len(fieldErrs) > 0 {
		response.BadRequest(w, r, "invalid area query", fieldErrs)
		return
	}

	sensors, err := h.analytics.QueryArea(lat, lon, radius)
	if err != nil {
		response.BadRequest(w, r, err.Error(), nil)
		return
	}

	response.JSON(w, r, http.StatusOK, models.AreaResponse{
		Center:   models.AreaCenter{Lat: lat, Lon: lon},
		RadiusKm: radius,
		Sensors:  sensors,
		Count:    len(sensors),
	})
}
