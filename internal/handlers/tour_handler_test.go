package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	assert.Equal(t, "the-forest-hiker", slugify("The Forest Hiker"))
	assert.Equal(t, "tour-2-go", slugify("  Tour 2 Go!  "))
	assert.Equal(t, "a-b-c", slugify("a---b___c"))
	assert.Equal(t, "", slugify("???"))
}

func TestParseFormValue(t *testing.T) {
	assert.Equal(t, int64(5), parseFormValue("5"))
	assert.Equal(t, 9.5, parseFormValue("9.5"))
	assert.Equal(t, "easy", parseFormValue("easy"))
}

func TestParseLatLng(t *testing.T) {
	lat, lng, err := parseLatLng("34.111745,-118.113491")
	require.NoError(t, err)
	assert.InDelta(t, 34.111745, lat, 1e-9)
	assert.InDelta(t, -118.113491, lng, 1e-9)

	_, _, err = parseLatLng("34.111745")
	assert.Error(t, err)

	_, _, err = parseLatLng("lat,lng")
	assert.Error(t, err)
}
