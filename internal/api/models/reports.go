package models

import "github.com/ecopulse/ecopulse/internal/report"

// ReportResponse is the body of a successful POST /v1/reports.
type ReportResponse struct {
	Success  bool           `json:"success"`
	Result   *report.Result `json:"result"`
	CacheKey string         `json:"cacheKey"`
	Cached   bool           `json:"cached"`
}

// ExportRequest is the body of POST /v1/reports:export.
type ExportRequest struct {
	Config *report.Config `json:"config"`
	Format report.Format  `json:"format"`
}
