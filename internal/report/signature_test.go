package report_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecopulse/ecopulse/internal/report"
	"github.com/ecopulse/ecopulse/internal/sensor"
	"github.com/ecopulse/ecopulse/pkg/geo"
)

func TestSignature(t *testing.T) {
	base := baseConfig()
	base.Filters = report.Filters{
		SensorIDs:   []string{"b", "a"},
		DataQuality: []sensor.QualityBucket{sensor.QualityGood, sensor.QualityExcellent},
		Areas: []report.AreaFilter{
			{Center: geo.Point{Lat: 2, Lon: 2}, RadiusKm: 5},
			{Center: geo.Point{Lat: 1, Lon: 1}, RadiusKm: 5},
		},
	}
	want, err := report.Signature(base)
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*report.Config)
		same   bool
	}{
		{"cosmetic fields", func(c *report.Config) { c.ID, c.Name = "x", "y" }, true},
		{"filter order", func(c *report.Config) {
			c.Filters.SensorIDs = []string{"a", "b"}
			c.Filters.Areas[0], c.Filters.Areas[1] = c.Filters.Areas[1], c.Filters.Areas[0]
		}, true},
		{"same instant other zone", func(c *report.Config) {
			c.DateRange.Start = c.DateRange.Start.In(time.FixedZone("CET", 3600))
		}, true},
		{"type", func(c *report.Config) { c.Type = report.TypeDaily }, false},
		{"range", func(c *report.Config) { c.DateRange.End = c.DateRange.End.Add(time.Hour) }, false},
		{"sensor filter", func(c *report.Config) { c.Filters.SensorIDs = []string{"a"} }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			cfg.Filters = report.Filters{
				SensorIDs:   append([]string(nil), base.Filters.SensorIDs...),
				DataQuality: append([]sensor.QualityBucket(nil), base.Filters.DataQuality...),
				Areas:       append([]report.AreaFilter(nil), base.Filters.Areas...),
			}
			tt.mutate(cfg)

			got, err := report.Signature(cfg)
			require.NoError(t, err)
			if tt.same {
				assert.Equal(t, want, got)
			} else {
				assert.NotEqual(t, want, got)
			}
		})
	}
}
