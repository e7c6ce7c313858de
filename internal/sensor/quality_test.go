package sensor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ecopulse/ecopulse/internal/sensor"
)

func completeReading(status sensor.DeviceStatus, battery float64) *sensor.SensorReading {
	return &sensor.SensorReading{
		SensorID: "s1",
		Readings: sensor.Measurements{
			AQI:   50,
			PM25:  f(1),
			PM10:  f(2),
			Ozone: f(3),
			NO2:   f(4),
		},
		DeviceInfo: &sensor.DeviceInfo{Status: status, BatteryLevel: f(battery)},
	}
}

func TestScore_Excellent(t *testing.T) {
	r := completeReading(sensor.StatusActive, 20)
	assert.Equal(t, 100, sensor.QualityScore(r))
	assert.Equal(t, sensor.QualityExcellent, sensor.Score(r))
}

func TestScore_NoDeviceInfo(t *testing.T) {
	r := completeReading(sensor.StatusActive, 90)
	r.DeviceInfo = nil
	assert.Equal(t, sensor.QualityExcellent, sensor.Score(r))
}

func TestScore_Deductions(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *sensor.SensorReading)
		score   int
		quality sensor.QualityBucket
	}{
		{"one missing pollutant", func(r *sensor.SensorReading) { r.Readings.PM25 = nil }, 90, sensor.QualityExcellent},
		{"two missing pollutants", func(r *sensor.SensorReading) { r.Readings.PM25, r.Readings.NO2 = nil, nil }, 80, sensor.QualityGood},
		{"all pollutants missing", func(r *sensor.SensorReading) {
			r.Readings.PM25, r.Readings.PM10, r.Readings.Ozone, r.Readings.NO2 = nil, nil, nil, nil
		}, 60, sensor.QualityFair},
		{"maintenance", func(r *sensor.SensorReading) { r.DeviceInfo.Status = sensor.StatusMaintenance }, 80, sensor.QualityGood},
		{"low battery", func(r *sensor.SensorReading) { r.DeviceInfo.BatteryLevel = f(19.9) }, 85, sensor.QualityGood},
		{"maintenance and low battery", func(r *sensor.SensorReading) {
			r.DeviceInfo.Status = sensor.StatusMaintenance
			r.DeviceInfo.BatteryLevel = f(5)
		}, 65, sensor.QualityFair},
		{"inactive has no penalty", func(r *sensor.SensorReading) { r.DeviceInfo.Status = sensor.StatusInactive }, 100, sensor.QualityExcellent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := completeReading(sensor.StatusActive, 80)
			tt.mutate(r)
			assert.Equal(t, tt.score, sensor.QualityScore(r))
			assert.Equal(t, tt.quality, sensor.Score(r))
		})
	}
}

func TestScore_ErrorStatusCapsAtFair(t *testing.T) {
	pollutantSets := [][4]bool{
		{true, true, true, true},
		{false, true, true, true},
		{false, false, true, true},
		{false, false, false, false},
	}

	for _, present := range pollutantSets {
		for _, battery := range []float64{100, 10} {
			r := completeReading(sensor.StatusError, battery)
			if !present[0] {
				r.Readings.PM25 = nil
			}
			if !present[1] {
				r.Readings.PM10 = nil
			}
			if !present[2] {
				r.Readings.Ozone = nil
			}
			if !present[3] {
				r.Readings.NO2 = nil
			}

			score := sensor.QualityScore(r)
			q := sensor.Score(r)
			assert.LessOrEqual(t, score, 50)
			assert.Contains(t, []sensor.QualityBucket{sensor.QualityFair, sensor.QualityPoor}, q)
			assert.Equal(t, sensor.BucketFor(score), q)
		}
	}

	// exactly 50 stays fair, anything lower is poor
	assert.Equal(t, sensor.QualityFair, sensor.Score(completeReading(sensor.StatusError, 100)))
	assert.Equal(t, sensor.QualityPoor, sensor.Score(completeReading(sensor.StatusError, 10)))
}

func TestBucketFor_Thresholds(t *testing.T) {
	assert.Equal(t, sensor.QualityExcellent, sensor.BucketFor(90))
	assert.Equal(t, sensor.QualityGood, sensor.BucketFor(89))
	assert.Equal(t, sensor.QualityGood, sensor.BucketFor(70))
	assert.Equal(t, sensor.QualityFair, sensor.BucketFor(69))
	assert.Equal(t, sensor.QualityFair, sensor.BucketFor(50))
	assert.Equal(t, sensor.QualityPoor, sensor.BucketFor(49))
	assert.Equal(t, sensor.QualityPoor, sensor.BucketFor(-35))
}
