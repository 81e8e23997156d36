// Package geo holds the location math used when rendering seller offers.
package geo

import (
	"fmt"
	"math"
)

// EarthRadiusKm is the mean Earth radius used by Distance.
const EarthRadiusKm = 6371.0

// Point is a latitude/longitude pair in decimal degrees.
type Point struct {
	Lat float64 `json:"latitude"`
	Lon float64 `json:"longitude"`
}

// Valid reports whether p lies inside the lat/lon ranges.
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180 &&
		!math.IsNaN(p.Lat) && !math.IsNaN(p.Lon)
}

// Distance returns the great-circle distance between a and b in kilometres.
func Distance(a, b Point) float64 {
	dLat := toRad(b.Lat - a.Lat)
	dLon := toRad(b.Lon - a.Lon)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return EarthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// FormatKm renders a distance rounded to one decimal, e.g. "3.4 km".
func FormatKm(km float64) string {
	return fmt.Sprintf("%.1f km", math.Round(km*10)/10)
}

// MapLink returns a Google Maps link pinned at p.
func MapLink(p Point) string {
	return fmt.Sprintf("https://www.google.com/maps?q=%g,%g", p.Lat, p.Lon)
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
