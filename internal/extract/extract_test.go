package extract

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pageWithData(data string) []byte {
	return []byte(fmt.Sprintf(
		`<html><head></head><body><div id="__next">map</div><script id="__NEXT_DATA__" type="application/json">%s</script></body></html>`,
		data,
	))
}

const twoListings = `{
	"props": {
		"pageProps": {
			"mapdata": {
				"dcs": [
					{
						"properties": {
							"name": "DFW1",
							"companyname": "Example Hosting",
							"address": "100 Main St",
							"postal": "75201",
							"city": "Dallas",
							"state": "TX",
							"country": "USA"
						},
						"geometry": {"type": "Point", "coordinates": [-96.5, 32.4]}
					},
					{
						"properties": {"name": "DFW2"},
						"geometry": {}
					}
				]
			}
		}
	}
}`

func TestRecords_ExtractsListings(t *testing.T) {
	facilities, err := Records(pageWithData(twoListings))
	require.NoError(t, err)
	require.Len(t, facilities, 2)

	f := facilities[0]
	assert.Equal(t, "DFW1", f.Name)
	assert.Equal(t, "Example Hosting", f.Company)
	assert.Equal(t, "100 Main St", f.Address)
	assert.Equal(t, "75201", f.Postal)
	assert.Equal(t, "Dallas", f.City)
	assert.Equal(t, "TX", f.State)
	assert.Equal(t, "USA", f.Country)

	// Source order is [lon, lat].
	require.True(t, f.HasLocation())
	assert.InDelta(t, -96.5, f.Longitude(), 1e-9)
	assert.InDelta(t, 32.4, f.Latitude(), 1e-9)
}

func TestRecords_MissingFieldsDefaultEmpty(t *testing.T) {
	facilities, err := Records(pageWithData(twoListings))
	require.NoError(t, err)
	require.Len(t, facilities, 2)

	f := facilities[1]
	assert.Equal(t, "DFW2", f.Name)
	assert.Empty(t, f.Company)
	assert.Empty(t, f.Address)
	assert.False(t, f.HasLocation())
}

func TestRecords_NoDataBlock(t *testing.T) {
	facilities, err := Records([]byte("<html><body><p>plain page</p></body></html>"))
	require.NoError(t, err)
	assert.Nil(t, facilities)
}

func TestRecords_EmptyDataBlock(t *testing.T) {
	facilities, err := Records(pageWithData("  "))
	require.NoError(t, err)
	assert.Nil(t, facilities)
}

func TestRecords_NoListings(t *testing.T) {
	facilities, err := Records(pageWithData(`{"props":{"pageProps":{"mapdata":{"dcs":[]}}}}`))
	require.NoError(t, err)
	assert.Nil(t, facilities)
}

func TestRecords_MalformedJSON(t *testing.T) {
	_, err := Records(pageWithData(`{"props": {`))
	assert.Error(t, err)
}
