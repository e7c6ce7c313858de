package analytics

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/ecopulse/ecopulse/internal/sensor"
)

// DefaultHistorySize is how many snapshots are kept per sensor.
const DefaultHistorySize = 50

// AggregatorConfig holds configuration for the Aggregator.
type AggregatorConfig struct {
	// HistorySize bounds the per-sensor snapshot history (default: 50).
	HistorySize int
}

// Aggregator owns the per-sensor running statistics.
// Update must only be called from a single writer; reads may run concurrently.
type Aggregator struct {
	historySize int

	mu      sync.RWMutex
	sensors map[string]*SensorAnalytics
	history map[string][]Snapshot
}

// NewAggregator creates an empty Aggregator.
func NewAggregator(cfg AggregatorConfig) *Aggregator {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = DefaultHistorySize
	}
	return &Aggregator{
		historySize: cfg.HistorySize,
		sensors:     make(map[string]*SensorAnalytics),
		history:     make(map[string][]Snapshot),
	}
}

// Update folds a reading into its sensor's statistics and returns a copy of
// the result. The average is rounded to an integer at every step, so it can
// drift from the exact mean over many readings.
func (a *Aggregator) Update(reading *sensor.SensorReading, quality sensor.QualityBucket) SensorAnalytics {
	a.mu.Lock()
	defer a.mu.Unlock()

	aqi := reading.Readings.AQI
	rounded := int(math.Round(aqi))

	current, ok := a.sensors[reading.SensorID]
	if !ok {
		current = &SensorAnalytics{
			SensorID: reading.SensorID,
			Stats: Stats{
				AverageAQI: rounded,
				MaxAQI:     rounded,
				MinAQI:     rounded,
			},
		}
		a.sensors[reading.SensorID] = current
	} else {
		n := float64(current.Stats.ReadingsCount)
		current.Stats.AverageAQI = int(math.Round((float64(current.Stats.AverageAQI)*n + aqi) / (n + 1)))
		if rounded > current.Stats.MaxAQI {
			current.Stats.MaxAQI = rounded
		}
		if rounded < current.Stats.MinAQI {
			current.Stats.MinAQI = rounded
		}
	}

	current.Location = reading.Location
	current.Stats.ReadingsCount++
	current.Stats.LastUpdate = reading.Readings.Timestamp
	current.Stats.DataQuality = quality

	hist := append(a.history[reading.SensorID], Snapshot{
		AverageAQI: current.Stats.AverageAQI,
		AQI:        aqi,
		Timestamp:  reading.Readings.Timestamp,
	})
	if len(hist) > a.historySize {
		hist = append([]Snapshot(nil), hist[len(hist)-a.historySize:]...)
	}
	a.history[reading.SensorID] = hist

	current.Trends = CalculateTrends(hist)

	return copyAnalytics(current)
}

// Get returns a copy of a sensor's analytics.
func (a *Aggregator) Get(sensorID string) (SensorAnalytics, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	current, ok := a.sensors[sensorID]
	if !ok {
		return SensorAnalytics{}, false
	}
	return copyAnalytics(current), true
}

// All returns copies of every sensor's analytics, ordered by sensor id.
func (a *Aggregator) All() []SensorAnalytics {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]SensorAnalytics, 0, len(a.sensors))
	for _, s := range a.sensors {
		out = append(out, copyAnalytics(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SensorID < out[j].SensorID })
	return out
}

// History returns a copy of a sensor's snapshot history, oldest first.
func (a *Aggregator) History(sensorID string) []Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]Snapshot(nil), a.history[sensorID]...)
}

// Len returns the number of tracked sensors.
func (a *Aggregator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.sensors)
}

// Cleanup evicts sensors whose last update is older than maxAge relative to now.
func (a *Aggregator) Cleanup(now time.Time, maxAge time.Duration) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	cutoff := now.Add(-maxAge)
	removed := 0
	for id, s := range a.sensors {
		if s.Stats.LastUpdate.Before(cutoff) {
			delete(a.sensors, id)
			delete(a.history, id)
			removed++
		}
	}
	return removed
}

func copyAnalytics(s *SensorAnalytics) SensorAnalytics {
	out := *s
	if s.Trends.PredictedNext != nil {
		p := *s.Trends.PredictedNext
		out.Trends.PredictedNext = &p
	}
	return out
}
