package worker

import (
	"fmt"
	"strings"

	"github.com/ecopulse/ecopulse/pkg/geo"
)

// Site is a named cluster of simulated sensors.
type Site struct {
	Name string

	// Points are the sensor positions within the site.
	Points []geo.Point

	// Priority orders sites; lower publishes first.
	Priority int
}

// SensorID returns the id of the sensor at point index i of the site.
func (s Site) SensorID(i int) string {
	slug := strings.ToLower(strings.ReplaceAll(s.Name, " ", "-"))
	return fmt.Sprintf("%s-%02d", slug, i+1)
}

// DefaultSites returns sensor sites across the Randstad and the larger Dutch cities.
func DefaultSites() []Site {
	return []Site{
		{
			Name:     "Amsterdam",
			Priority: 1,
			Points: []geo.Point{
				{Lat: 52.3676, Lon: 4.9041}, // Centraal
				{Lat: 52.3386, Lon: 4.8919}, // Zuid
				{Lat: 52.3114, Lon: 4.9469}, // Zuidoost
				{Lat: 52.3894, Lon: 4.9006}, // Noord
			},
		},
		{
			Name:     "Rotterdam",
			Priority: 1,
			Points: []geo.Point{
				{Lat: 51.9244, Lon: 4.4777}, // Centraal
				{Lat: 51.9062, Lon: 4.4874}, // Zuid
				{Lat: 51.9161, Lon: 4.3895}, // West
			},
		},
		{
			Name:     "Den Haag",
			Priority: 1,
			Points: []geo.Point{
				{Lat: 52.0705, Lon: 4.3007}, // Centraal
				{Lat: 52.0887, Lon: 4.3234}, // HS
				{Lat: 52.1024, Lon: 4.2828}, // Scheveningen
			},
		},
		{
			Name:     "Utrecht",
			Priority: 1,
			Points: []geo.Point{
				{Lat: 52.0894, Lon: 5.1102}, // Centraal
				{Lat: 52.0627, Lon: 5.1179}, // Science Park
			},
		},
		{
			Name:     "Eindhoven",
			Priority: 2,
			Points: []geo.Point{
				{Lat: 51.4416, Lon: 5.4697}, // Centraal
				{Lat: 51.4548, Lon: 5.4553}, // High Tech Campus
			},
		},
		{
			Name:     "Schiphol",
			Priority: 2,
			Points:   []geo.Point{{Lat: 52.3105, Lon: 4.7683}},
		},
		{
			Name:     "Leiden",
			Priority: 3,
			Points:   []geo.Point{{Lat: 52.1664, Lon: 4.4819}},
		},
		{
			Name:     "Haarlem",
			Priority: 3,
			Points:   []geo.Point{{Lat: 52.3874, Lon: 4.6462}},
		},
		{
			Name:     "Delft",
			Priority: 3,
			Points:   []geo.Point{{Lat: 52.0116, Lon: 4.3571}},
		},
	}
}

// CountSensors returns the number of sensors across sites.
func CountSensors(sites []Site) int {
	total := 0
	for _, s := range sites {
		total += len(s.Points)
	}
	return total
}
