// Package report computes analytics reports over historical sensor readings,
// caches them by request signature, and exports them as JSON or CSV.
package report

import (
	"errors"
	"fmt"
	"time"

	"github.com/ecopulse/ecopulse/internal/sensor"
	"github.com/ecopulse/ecopulse/internal/validation"
	"github.com/ecopulse/ecopulse/pkg/geo"
)

// ErrInvalidConfig is the sentinel wrapped by every report config validation failure.
var ErrInvalidConfig = errors.New("invalid report config")

// MaxRangeSpan is the longest date range a report may cover.
const MaxRangeSpan = 366 * 24 * time.Hour

// Type is the reporting period a report covers.
type Type string

const (
	TypeDaily     Type = "daily"
	TypeWeekly    Type = "weekly"
	TypeMonthly   Type = "monthly"
	TypeQuarterly Type = "quarterly"
	TypeCustom    Type = "custom"
)

// Format is an export format.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

// DateRange is an inclusive time window.
type DateRange struct {
	Start time.Time `json:"start" validate:"required"`
	End   time.Time `json:"end" validate:"required,gtfield=Start"`
}

// Contains reports whether t falls within the range, bounds included.
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// AreaFilter selects readings within RadiusKm of Center.
type AreaFilter struct {
	Center   geo.Point `json:"center"`
	RadiusKm float64   `json:"radiusKm" validate:"gte=0"`
}

// Filters narrows the readings a report covers. Empty lists do not filter.
type Filters struct {
	SensorIDs   []string               `json:"sensorIds,omitempty"`
	Areas       []AreaFilter           `json:"areas,omitempty" validate:"dive"`
	DataQuality []sensor.QualityBucket `json:"dataQuality,omitempty" validate:"dive,oneof=excellent good fair poor"`
}

// Config describes a report request. ID and Name are cosmetic and do not
// affect caching.
type Config struct {
	ID                     string          `json:"id,omitempty"`
	Name                   string          `json:"name,omitempty"`
	Type                   Type            `json:"type" validate:"required,oneof=daily weekly monthly quarterly custom"`
	Format                 Format          `json:"format,omitempty" validate:"omitempty,oneof=pdf csv json xlsx"`
	Metrics                []sensor.Metric `json:"metrics" validate:"required,min=1,dive,oneof=aqi pm25 pm10 ozone no2 so2 co temperature humidity pressure"`
	DateRange              DateRange       `json:"dateRange" validate:"required"`
	Filters                Filters         `json:"filters"`
	IncludeCharts          bool            `json:"includeCharts"`
	IncludePredictions     bool            `json:"includePredictions"`
	IncludeRecommendations bool            `json:"includeRecommendations"`
}

// Validate checks the config, returning a *validation.Error wrapping
// ErrInvalidConfig that lists every failing field.
func (c *Config) Validate() error {
	if err := validation.Struct(ErrInvalidConfig, c); err != nil {
		return err
	}

	var fields []validation.FieldError
	if c.DateRange.End.Sub(c.DateRange.Start) > MaxRangeSpan {
		fields = append(fields, validation.FieldError{
			Field:   "dateRange",
			Message: "must not span more than 366 days",
			Code:    "max",
		})
	}
	for i, area := range c.Filters.Areas {
		if area.Center.Lat < -90 || area.Center.Lat > 90 || area.Center.Lon < -180 || area.Center.Lon > 180 {
			fields = append(fields, validation.FieldError{
				Field:   fmt.Sprintf("filters.areas[%d].center", i),
				Message: "coordinates out of range",
				Code:    "range",
			})
		}
	}
	if len(fields) > 0 {
		return validation.NewError(ErrInvalidConfig, fields...)
	}
	return nil
}
