package sensor

// Quality scoring penalties and bucket thresholds.
const (
	perfectScore = 100

	missingPollutantPenalty = 10
	errorStatusPenalty      = 50
	maintenancePenalty      = 20
	lowBatteryPenalty       = 15

	lowBatteryThreshold = 20

	excellentThreshold = 90
	goodThreshold      = 70
	fairThreshold      = 50
)

// QualityScore returns the 0-100 completeness and health score of a reading.
// It may go below zero when penalties compound; Score clamps it into a bucket.
func QualityScore(r *SensorReading) int {
	score := perfectScore

	for _, v := range []*float64{r.Readings.PM25, r.Readings.PM10, r.Readings.Ozone, r.Readings.NO2} {
		if v == nil {
			score -= missingPollutantPenalty
		}
	}

	if r.DeviceInfo != nil {
		switch r.DeviceInfo.Status {
		case StatusError:
			score -= errorStatusPenalty
		case StatusMaintenance:
			score -= maintenancePenalty
		}
		if r.DeviceInfo.BatteryLevel != nil && *r.DeviceInfo.BatteryLevel < lowBatteryThreshold {
			score -= lowBatteryPenalty
		}
	}

	return score
}

// Score classifies a reading into a quality bucket.
func Score(r *SensorReading) QualityBucket {
	return BucketFor(QualityScore(r))
}

// BucketFor maps a numeric quality score to its bucket.
func BucketFor(score int) QualityBucket {
	switch {
	case score >= excellentThreshold:
		return QualityExcellent
	case score >= goodThreshold:
		return QualityGood
	case score >= fairThreshold:
		return QualityFair
	default:
		return QualityPoor
	}
}
