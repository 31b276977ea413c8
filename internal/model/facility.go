// Package model defines the shared types of the harvest pipeline.
package model

import (
	"strings"

	"github.com/twpayne/go-geom"
	"golang.org/x/text/unicode/norm"
)

// Facility is one listed facility as extracted from a catalog page. String
// fields default to "" when the source omits them; Location is nil when the
// listing carries no coordinates.
type Facility struct {
	Name    string
	Company string
	Address string
	Postal  string
	City    string
	State   string
	Country string
	// Location stores the source's GeoJSON-style [longitude, latitude] pair
	// in XY layout, untouched.
	Location *geom.Point
}

// HasLocation reports whether the facility carries coordinates.
func (f Facility) HasLocation() bool {
	return f.Location != nil
}

// Longitude returns the X coordinate. Callers must check HasLocation first.
func (f Facility) Longitude() float64 {
	return f.Location.X()
}

// Latitude returns the Y coordinate. Callers must check HasLocation first.
func (f Facility) Latitude() float64 {
	return f.Location.Y()
}

// Key returns the facility's deduplication identity, built from its name and
// street address. Comparison is whitespace- and case-insensitive so cosmetic
// variations across city pages collapse onto one record.
func (f Facility) Key() string {
	return normalizeKeyPart(f.Name) + "\x1f" + normalizeKeyPart(f.Address)
}

func normalizeKeyPart(s string) string {
	s = norm.NFC.String(s)
	s = strings.ToLower(s)
	return strings.Join(strings.Fields(s), " ")
}

// EnrichedFacility is the flat output row written to CSV/XLSX exports and
// served over the API. All columns are strings; coordinate and watershed
// columns stay empty when the underlying data is absent.
type EnrichedFacility struct {
	Name      string `csv:"name" json:"name"`
	Company   string `csv:"company" json:"company"`
	Address   string `csv:"address" json:"address"`
	Postal    string `csv:"postal" json:"postal"`
	City      string `csv:"city" json:"city"`
	State     string `csv:"state" json:"state"`
	Country   string `csv:"country" json:"country"`
	Latitude  string `csv:"latitude" json:"latitude"`
	Longitude string `csv:"longitude" json:"longitude"`
	HUC12     string `csv:"huc12" json:"huc12"`
	HUC12Name string `csv:"huc12_name" json:"huc12_name"`
}
