package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/ecopulse/ecopulse/internal/api/models"
	"github.com/ecopulse/ecopulse/internal/api/response"
	"github.com/ecopulse/ecopulse/internal/report"
	"github.com/ecopulse/ecopulse/internal/upstream"
)

// ReportHandler serves report generation and export.
type ReportHandler struct {
	engine *report.Engine
	retry  upstream.RetryPolicy
}

// NewReportHandler creates a ReportHandler. Retryable upstream failures are
// retried under policy before the request fails with 503.
func NewReportHandler(engine *report.Engine, policy upstream.RetryPolicy) *ReportHandler {
	return &ReportHandler{engine: engine, retry: policy}
}

// GenerateReport handles POST /v1/reports.
func (h *ReportHandler) GenerateReport(w http.ResponseWriter, r *http.Request) {
	var cfg report.Config
	if !decodeBody(w, r, &cfg) {
		return
	}

	rep, ok := h.generate(w, r, &cfg)
	if !ok {
		return
	}

	response.JSON(w, r, http.StatusOK, models.ReportResponse{
		Success:  true,
		Result:   rep.Result,
		CacheKey: rep.CacheKey,
		Cached:   rep.Cached,
	})
}

// ExportReport handles POST /v1/reports:export. JSON and CSV are returned
// as text with their content type; PDF and XLSX answer 501 with the
// placeholder text.
func (h *ReportHandler) ExportReport(w http.ResponseWriter, r *http.Request) {
	var req models.ExportRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var fieldErrs []models.FieldError
	if req.Config == nil {
		fieldErrs = append(fieldErrs, models.FieldError{Field: "config", Message: "is required", Code: "required"})
	}
	switch req.Format {
	case report.FormatJSON, report.FormatCSV, report.FormatPDF, report.FormatXLSX:
	default:
		fieldErrs = append(fieldErrs, models.FieldError{
			Field: "format", Message: "must be one of: pdf, csv, json, xlsx", Code: "oneof",
		})
	}
	if len(fieldErrs) > 0 {
		response.BadRequest(w, r, "invalid export request", fieldErrs)
		return
	}

	rep, ok := h.generate(w, r, req.Config)
	if !ok {
		return
	}

	payload, err := report.Export(rep.Result, req.Format)
	if errors.Is(err, report.ErrUnsupportedFormat) {
		response.NotImplemented(w, r, payload)
		return
	}
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("report export failed")
		response.InternalError(w, r, "failed to export report")
		return
	}

	w.Header().Set("X-Report-Cache-Key", rep.CacheKey)
	response.Text(w, r, http.StatusOK, report.ContentType(req.Format), payload)
}

// generate runs the engine with retries and writes the error response on failure.
func (h *ReportHandler) generate(w http.ResponseWriter, r *http.Request, cfg *report.Config) (*report.Report, bool) {
	logger := zerolog.Ctx(r.Context())

	var rep *report.Report
	attempts := 0
	err := upstream.Retry(r.Context(), h.retry, retryableUpstream, func() error {
		attempts++
		var err error
		rep, err = h.engine.Generate(r.Context(), cfg)
		return err
	})
	if err == nil {
		return rep, true
	}

	var upErr *report.UpstreamError
	var compErr *report.ComputationError
	switch {
	case errors.Is(err, report.ErrInvalidConfig):
		response.ValidationFailed(w, r, err)
	case errors.As(err, &upErr):
		logger.Warn().Err(err).Int("attempts", attempts).Msg("report data source unavailable")
		response.ServiceUnavailable(w, r, "historical data source "+upErr.Source+" unavailable", 30)
	case errors.As(err, &compErr):
		logger.Error().Err(err).Msg("report computation failed")
		response.InternalError(w, r, "failed to compute report")
	default:
		logger.Error().Err(err).Msg("report generation failed")
		response.InternalError(w, r, "failed to generate report")
	}
	return nil, false
}

func retryableUpstream(err error) bool {
	var upErr *report.UpstreamError
	return errors.As(err, &upErr) && upErr.Retryable()
}

// decodeBody decodes a JSON request body into v, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err == nil {
		err = json.Unmarshal(body, v)
	}
	if err != nil {
		response.BadRequest(w, r, "request body is not valid JSON", []models.FieldError{
			{Field: "body", Message: err.Error(), Code: "json"},
		})
		return false
	}
	return true
}
