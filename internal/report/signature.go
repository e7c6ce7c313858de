package report

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"time"

	"github.com/goccy/go-json"

	"github.com/ecopulse/ecopulse/internal/sensor"
)

// Signature returns the cache identity of a report request: a SHA-256 over
// the report type, the date range and the filters. Filter lists are sorted
// first so that their order does not matter.
func Signature(cfg *Config) (string, error) {
	filters, err := json.Marshal(canonicalFilters(cfg.Filters))
	if err != nil {
		return "", err
	}

	h := sha256.New()
	h.Write([]byte(cfg.Type))
	h.Write([]byte{0})
	h.Write([]byte(cfg.DateRange.Start.UTC().Format(time.RFC3339Nano)))
	h.Write([]byte{0})
	h.Write([]byte(cfg.DateRange.End.UTC().Format(time.RFC3339Nano)))
	h.Write([]byte{0})
	h.Write(filters)
	return hex.EncodeToString(h.Sum(nil)), nil
}

func canonicalFilters(f Filters) Filters {
	out := Filters{
		SensorIDs:   append([]string(nil), f.SensorIDs...),
		Areas:       append([]AreaFilter(nil), f.Areas...),
		DataQuality: append([]sensor.QualityBucket(nil), f.DataQuality...),
	}
	sort.Strings(out.SensorIDs)
	sort.Slice(out.DataQuality, func(i, j int) bool { return out.DataQuality[i] < out.DataQuality[j] })
	sort.Slice(out.Areas, func(i, j int) bool {
		a, b := out.Areas[i], out.Areas[j]
		if a.Center.Lat != b.Center.Lat {
			return a.Center.Lat < b.Center.Lat
		}
		if a.Center.Lon != b.Center.Lon {
			return a.Center.Lon < b.Center.Lon
		}
		return a.RadiusKm < b.RadiusKm
	})
	return out
}
