package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/twpayne/go-geom"
)

func TestFacility_Key_NormalizesCaseAndWhitespace(t *testing.T) {
	a := Facility{Name: "DFW1", Address: "100 Main St"}
	b := Facility{Name: "dfw1", Address: "  100   main st "}
	c := Facility{Name: "DFW1", Address: "200 Elm St"}

	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), c.Key())
}

func TestFacility_Key_UnicodeNormalization(t *testing.T) {
	// "é" composed vs decomposed must collapse to one key.
	a := Facility{Name: "Facilité", Address: "1 Rue"}
	b := Facility{Name: "Facilité", Address: "1 Rue"}
	assert.Equal(t, a.Key(), b.Key())
}

func TestFacility_Key_SeparatesNameAndAddress(t *testing.T) {
	// The boundary between name and address must be unambiguous.
	a := Facility{Name: "alpha b", Address: "c"}
	b := Facility{Name: "alpha", Address: "b c"}
	assert.NotEqual(t, a.Key(), b.Key())
}

func TestFacility_Location(t *testing.T) {
	f := Facility{Location: geom.NewPointFlat(geom.XY, []float64{-96.5, 32.4})}
	assert.True(t, f.HasLocation())
	assert.InDelta(t, -96.5, f.Longitude(), 1e-9)
	assert.InDelta(t, 32.4, f.Latitude(), 1e-9)

	assert.False(t, Facility{}.HasLocation())
}
