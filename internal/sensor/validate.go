package sensor

import (
	"errors"
	"time"

	"github.com/goccy/go-json"

	"github.com/ecopulse/ecopulse/internal/validation"
)

// ErrInvalidReading is the sentinel wrapped by every reading validation failure.
var ErrInvalidReading = errors.New("invalid sensor reading")

// RawReading is an unvalidated reading as received from a producer.
// Pointers distinguish missing fields from zero values.
type RawReading struct {
	SensorID   string           `json:"sensorId" validate:"required"`
	Location   *RawLocation     `json:"location" validate:"required"`
	Readings   *RawMeasurements `json:"readings" validate:"required"`
	DeviceInfo *RawDeviceInfo   `json:"deviceInfo,omitempty" validate:"omitempty"`
}

// RawLocation is the unvalidated location block.
type RawLocation struct {
	Latitude  *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
	Address   string   `json:"address,omitempty"`
}

// RawMeasurements is the unvalidated readings block.
type RawMeasurements struct {
	AQI         *float64  `json:"aqi" validate:"required,gte=0,lte=500"`
	PM25        *float64  `json:"pm25,omitempty" validate:"omitempty,gte=0"`
	PM10        *float64  `json:"pm10,omitempty" validate:"omitempty,gte=0"`
	Ozone       *float64  `json:"o3,omitempty" validate:"omitempty,gte=0"`
	NO2         *float64  `json:"no2,omitempty" validate:"omitempty,gte=0"`
	SO2         *float64  `json:"so2,omitempty" validate:"omitempty,gte=0"`
	CO          *float64  `json:"co,omitempty" validate:"omitempty,gte=0"`
	Temperature *float64  `json:"temperature,omitempty"`
	Humidity    *float64  `json:"humidity,omitempty" validate:"omitempty,gte=0,lte=100"`
	Pressure    *float64  `json:"pressure,omitempty" validate:"omitempty,gt=0"`
	Timestamp   time.Time `json:"timestamp" validate:"required"`
}

// RawDeviceInfo is the unvalidated device block.
type RawDeviceInfo struct {
	BatteryLevel    *float64   `json:"batteryLevel,omitempty" validate:"omitempty,gte=0,lte=100"`
	Status          string     `json:"status" validate:"required,oneof=active inactive maintenance error"`
	LastMaintenance *time.Time `json:"lastMaintenance,omitempty"`
}

// Validate checks a raw reading and converts it into a SensorReading.
// Any failing field rejects the whole reading with a *validation.Error
// listing every failing field.
func Validate(raw *RawReading) (*SensorReading, error) {
	if raw == nil {
		return nil, validation.NewError(ErrInvalidReading, validation.FieldError{
			Field: "body", Message: "is required", Code: "required",
		})
	}
	if err := validation.Struct(ErrInvalidReading, raw); err != nil {
		return nil, err
	}

	reading := &SensorReading{
		SensorID: raw.SensorID,
		Location: Location{
			Latitude:  *raw.Location.Latitude,
			Longitude: *raw.Location.Longitude,
			Address:   raw.Location.Address,
		},
		Readings: Measurements{
			AQI:         *raw.Readings.AQI,
			PM25:        copyFloat(raw.Readings.PM25),
			PM10:        copyFloat(raw.Readings.PM10),
			Ozone:       copyFloat(raw.Readings.Ozone),
			NO2:         copyFloat(raw.Readings.NO2),
			SO2:         copyFloat(raw.Readings.SO2),
			CO:          copyFloat(raw.Readings.CO),
			Temperature: copyFloat(raw.Readings.Temperature),
			Humidity:    copyFloat(raw.Readings.Humidity),
			Pressure:    copyFloat(raw.Readings.Pressure),
			Timestamp:   raw.Readings.Timestamp.UTC(),
		},
	}

	if raw.DeviceInfo != nil {
		info := &DeviceInfo{
			BatteryLevel: copyFloat(raw.DeviceInfo.BatteryLevel),
			Status:       DeviceStatus(raw.DeviceInfo.Status),
		}
		if raw.DeviceInfo.LastMaintenance != nil {
			t := raw.DeviceInfo.LastMaintenance.UTC()
			info.LastMaintenance = &t
		}
		reading.DeviceInfo = info
	}

	return reading, nil
}

// ParseReading decodes a JSON reading and validates it.
// Malformed JSON is reported as a validation failure on "body".
func ParseReading(data []byte) (*SensorReading, error) {
	var raw RawReading
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, validation.NewError(ErrInvalidReading, validation.FieldError{
			Field: "body", Message: "is not valid JSON: " + err.Error(), Code: "json",
		})
	}
	return Validate(&raw)
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
