package geo

import (
	"math"
	"testing"
)

func TestDistance(t *testing.T) {
	chennai := Point{Lat: 13.0827, Lon: 80.2707}
	madurai := Point{Lat: 9.9252, Lon: 78.1198}

	d := Distance(chennai, madurai)
	if math.Abs(d-422) > 5 {
		t.Fatalf("Chennai-Madurai distance = %.1f, want ~422 km", d)
	}
	if back := Distance(madurai, chennai); math.Abs(back-d) > 1e-9 {
		t.Fatalf("distance not symmetric: %f vs %f", d, back)
	}
	if z := Distance(chennai, chennai); z != 0 {
		t.Fatalf("distance to self = %f", z)
	}
}

func TestFormatKm(t *testing.T) {
	if got := FormatKm(3.456); got != "3.5 km" {
		t.Fatalf("FormatKm = %q", got)
	}
	if got := FormatKm(0); got != "0.0 km" {
		t.Fatalf("FormatKm(0) = %q", got)
	}
}

func TestMapLink(t *testing.T) {
	got := MapLink(Point{Lat: 13.08, Lon: 80.27})
	if got != "https://www.google.com/maps?q=13.08,80.27" {
		t.Fatalf("MapLink = %q", got)
	}
}

func TestPointValid(t *testing.T) {
	if !(Point{Lat: 10, Lon: 20}).Valid() {
		t.Fatal("expected valid point")
	}
	if (Point{Lat: 91, Lon: 0}).Valid() {
		t.Fatal("latitude 91 should be invalid")
	}
}
