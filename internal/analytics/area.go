package analytics

import (
	"sort"

	"github.com/ecopulse/ecopulse/pkg/geo"
)

// FilterByArea keeps the sensors within radiusKm of center, nearest first.
// A sensor exactly on the boundary is included.
func FilterByArea(sensors []SensorAnalytics, center geo.Point, radiusKm float64) []SensorAnalytics {
	type hit struct {
		analytics SensorAnalytics
		distance  float64
	}

	hits := make([]hit, 0, len(sensors))
	for _, s := range sensors {
		d := geo.Distance(center, s.Location.Point())
		if d <= radiusKm {
			hits = append(hits, hit{analytics: s, distance: d})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].distance != hits[j].distance {
			return hits[i].distance < hits[j].distance
		}
		return hits[i].analytics.SensorID < hits[j].analytics.SensorID
	})

	out := make([]SensorAnalytics, len(hits))
	for i, h := range hits {
		out[i] = h.analytics
	}
	return out
}
