package report

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/ecopulse/ecopulse/internal/sensor"
)

// ErrUnsupportedFormat is returned for export formats that are not implemented.
var ErrUnsupportedFormat = errors.New("unsupported export format")

var csvHeader = []string{
	"metric", "average", "max", "min", "trend", "change_rate",
	"p25", "p50", "p75", "p95", "p99",
}

// Export serializes a result. PDF and XLSX are not implemented: they return a
// placeholder text together with ErrUnsupportedFormat.
func Export(result *Result, format Format) (string, error) {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encoding report: %w", err)
		}
		return string(data), nil
	case FormatCSV:
		return exportCSV(result)
	case FormatPDF, FormatXLSX:
		return Placeholder(format), fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// Placeholder is the text returned in place of an unimplemented export.
func Placeholder(format Format) string {
	return strings.ToUpper(string(format)) + " export not implemented"
}

// ContentType returns the media type of an exported format.
func ContentType(format Format) string {
	switch format {
	case FormatJSON:
		return "application/json"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}

// exportCSV writes one row per metric, in canonical metric order.
func exportCSV(result *Result) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return "", err
	}
	for _, m := range sensor.Metrics {
		stats, ok := result.Metrics[m]
		if !ok {
			continue
		}
		row := []string{
			string(m),
			formatFloat(stats.Average),
			formatFloat(stats.Max),
			formatFloat(stats.Min),
			string(stats.Trend),
			formatFloat(stats.ChangeRate),
			formatFloat(stats.Percentiles.P25),
			formatFloat(stats.Percentiles.P50),
			formatFloat(stats.Percentiles.P75),
			formatFloat(stats.Percentiles.P95),
			formatFloat(stats.Percentiles.P99),
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
