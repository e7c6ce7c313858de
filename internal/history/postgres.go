// Package history stores processed readings and serves them back to the
// report engine, from PostgreSQL or a remote HTTP archive.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ecopulse/ecopulse/internal/report"
	"github.com/ecopulse/ecopulse/internal/sensor"
)

// Schema creates the readings archive table.
const Schema = `
CREATE TABLE IF NOT EXISTS sensor_readings (
	sensor_id        TEXT             NOT NULL,
	recorded_at      TIMESTAMPTZ      NOT NULL,
	latitude         DOUBLE PRECISION NOT NULL,
	longitude        DOUBLE PRECISION NOT NULL,
	address          TEXT             NOT NULL DEFAULT '',
	aqi              DOUBLE PRECISION NOT NULL,
	pm25             DOUBLE PRECISION,
	pm10             DOUBLE PRECISION,
	o3               DOUBLE PRECISION,
	no2              DOUBLE PRECISION,
	so2              DOUBLE PRECISION,
	co               DOUBLE PRECISION,
	temperature      DOUBLE PRECISION,
	humidity         DOUBLE PRECISION,
	pressure         DOUBLE PRECISION,
	battery_level    DOUBLE PRECISION,
	device_status    TEXT,
	last_maintenance TIMESTAMPTZ,
	quality          TEXT             NOT NULL,
	PRIMARY KEY (sensor_id, recorded_at)
);
CREATE INDEX IF NOT EXISTS sensor_readings_recorded_at_idx ON sensor_readings (recorded_at);
`

// EnsureSchema creates the archive table if it does not exist.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("create readings schema: %w", err)
	}
	return nil
}

// PostgresArchiver writes processed readings to the archive table.
type PostgresArchiver struct {
	pool *pgxpool.Pool
}

// NewPostgresArchiver creates a PostgresArchiver.
func NewPostgresArchiver(pool *pgxpool.Pool) *PostgresArchiver {
	return &PostgresArchiver{pool: pool}
}

// Archive upserts a reading keyed by sensor and timestamp.
func (a *PostgresArchiver) Archive(ctx context.Context, r *sensor.SensorReading, quality sensor.QualityBucket) error {
	query := `
		INSERT INTO sensor_readings (
			sensor_id, recorded_at, latitude, longitude, address,
			aqi, pm25, pm10, o3, no2, so2, co,
			temperature, humidity, pressure,
			battery_level, device_status, last_maintenance, quality
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (sensor_id, recorded_at) DO UPDATE SET
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			address = EXCLUDED.address,
			aqi = EXCLUDED.aqi,
			pm25 = EXCLUDED.pm25,
			pm10 = EXCLUDED.pm10,
			o3 = EXCLUDED.o3,
			no2 = EXCLUDED.no2,
			so2 = EXCLUDED.so2,
			co = EXCLUDED.co,
			temperature = EXCLUDED.temperature,
			humidity = EXCLUDED.humidity,
			pressure = EXCLUDED.pressure,
			battery_level = EXCLUDED.battery_level,
			device_status = EXCLUDED.device_status,
			last_maintenance = EXCLUDED.last_maintenance,
			quality = EXCLUDED.quality
	`

	var battery *float64
	var status *string
	var lastMaintenance interface{}
	if r.DeviceInfo != nil {
		battery = r.DeviceInfo.BatteryLevel
		s := string(r.DeviceInfo.Status)
		status = &s
		if r.DeviceInfo.LastMaintenance != nil {
			lastMaintenance = *r.DeviceInfo.LastMaintenance
		}
	}

	m := r.Readings
	_, err := a.pool.Exec(ctx, query,
		r.SensorID, m.Timestamp, r.Location.Latitude, r.Location.Longitude, r.Location.Address,
		m.AQI, m.PM25, m.PM10, m.Ozone, m.NO2, m.SO2, m.CO,
		m.Temperature, m.Humidity, m.Pressure,
		battery, status, lastMaintenance, string(quality),
	)
	if err != nil {
		return fmt.Errorf("archive reading for sensor %s: %w", r.SensorID, err)
	}
	return nil
}

// PostgresSource reads archived readings for reports.
type PostgresSource struct {
	pool *pgxpool.Pool
}

// NewPostgresSource creates a PostgresSource.
func NewPostgresSource(pool *pgxpool.Pool) *PostgresSource {
	return &PostgresSource{pool: pool}
}

// Name returns the source name.
func (s *PostgresSource) Name() string {
	return "postgres"
}

// FetchReadings returns the archived readings within r, oldest first.
func (s *PostgresSource) FetchReadings(ctx context.Context, r report.DateRange) ([]sensor.SensorReading, error) {
	query := `
		SELECT
			sensor_id, recorded_at, latitude, longitude, address,
			aqi, pm25, pm10, o3, no2, so2, co,
			temperature, humidity, pressure,
			battery_level, device_status, last_maintenance
		FROM sensor_readings
		WHERE recorded_at >= $1 AND recorded_at <= $2
		ORDER BY recorded_at, sensor_id
	`

	rows, err := s.pool.Query(ctx, query, r.Start, r.End)
	if err != nil {
		return nil, fmt.Errorf("query readings: %w", err)
	}

	readings, err := pgx.CollectRows(rows, scanReading)
	if err != nil {
		return nil, fmt.Errorf("scan readings: %w", err)
	}
	return readings, nil
}

func scanReading(row pgx.CollectableRow) (sensor.SensorReading, error) {
	var (
		r               sensor.SensorReading
		battery         *float64
		status          *string
		lastMaintenance *time.Time
	)

	err := row.Scan(
		&r.SensorID,
		&r.Readings.Timestamp,
		&r.Location.Latitude,
		&r.Location.Longitude,
		&r.Location.Address,
		&r.Readings.AQI,
		&r.Readings.PM25,
		&r.Readings.PM10,
		&r.Readings.Ozone,
		&r.Readings.NO2,
		&r.Readings.SO2,
		&r.Readings.CO,
		&r.Readings.Temperature,
		&r.Readings.Humidity,
		&r.Readings.Pressure,
		&battery,
		&status,
		&lastMaintenance,
	)
	if err != nil {
		return sensor.SensorReading{}, err
	}

	r.Readings.Timestamp = r.Readings.Timestamp.UTC()
	if status != nil {
		r.DeviceInfo = &sensor.DeviceInfo{
			BatteryLevel:    battery,
			Status:          sensor.DeviceStatus(*status),
			LastMaintenance: lastMaintenance,
		}
	}
	return r, nil
}
