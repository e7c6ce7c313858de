// Package response writes JSON bodies and RFC 7807 problems for handlers.
package response

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/ecopulse/ecopulse/internal/api/middleware"
	"github.com/ecopulse/ecopulse/internal/api/models"
	"github.com/ecopulse/ecopulse/internal/validation"
)

func setRequestID(w http.ResponseWriter, r *http.Request) string {
	requestID := middleware.GetRequestID(r.Context())
	if requestID != "" {
		w.Header().Set(middleware.RequestIDHeader, requestID)
	}
	return requestID
}

// JSON writes data as a JSON response with the given status code.
func JSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	setRequestID(w, r)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// Created writes a 201 JSON response with an optional Location header.
func Created(w http.ResponseWriter, r *http.Request, location string, data interface{}) {
	if location != "" {
		w.Header().Set("Location", location)
	}
	JSON(w, r, http.StatusCreated, data)
}

// Text writes a non-JSON payload, such as an exported report.
func Text(w http.ResponseWriter, r *http.Request, status int, contentType, body string) {
	setRequestID(w, r)
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// Error writes a problem for the current request.
func Error(w http.ResponseWriter, r *http.Request, problem *models.Problem) {
	problem.Instance = r.URL.Path
	problem.Write(w)
}

// BadRequest writes a 400 problem.
func BadRequest(w http.ResponseWriter, r *http.Request, detail string, errors []models.FieldError) {
	Error(w, r, models.NewBadRequest(middleware.GetRequestID(r.Context()), detail, errors))
}

// ValidationFailed writes a 400 problem listing every failing field of err.
// Errors that carry no field list are reported under "body".
func ValidationFailed(w http.ResponseWriter, r *http.Request, err error) {
	var verr *validation.Error
	if errors.As(err, &verr) && len(verr.Fields) > 0 {
		BadRequest(w, r, errors.Unwrap(verr).Error(), verr.Fields)
		return
	}
	BadRequest(w, r, err.Error(), []models.FieldError{{Field: "body", Message: err.Error()}})
}

// NotFound writes a 404 problem.
func NotFound(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewNotFound(middleware.GetRequestID(r.Context()), detail))
}

// InternalError writes a 500 problem.
func InternalError(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewInternalError(middleware.GetRequestID(r.Context()), detail))
}

// NotImplemented writes a 501 problem.
func NotImplemented(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewNotImplemented(middleware.GetRequestID(r.Context()), detail))
}

// ServiceUnavailable writes a 503 problem, with Retry-After when retryAfter > 0.
func ServiceUnavailable(w http.ResponseWriter, r *http.Request, detail string, retryAfterSeconds int) {
	if retryAfterSeconds > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	}
	Error(w, r, models.NewServiceUnavailable(middleware.GetRequestID(r.Context()), detail))
}
