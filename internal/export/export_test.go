package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/dcatlas/dcharvest/internal/model"
)

func sampleRows() []model.EnrichedFacility {
	return []model.EnrichedFacility{
		{
			Name: "DFW1", Company: "Example Hosting", Address: "100 Main St",
			Postal: "75201", City: "Dallas", State: "TX", Country: "USA",
			Latitude: "32.4", Longitude: "-96.5",
			HUC12: "120301040304", HUC12Name: "Turtle Creek-Trinity River",
		},
		{Name: "CMH1", City: "Columbus", State: "OH", Country: "USA"},
	}
}

func TestWriteCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "facilities.csv")
	require.NoError(t, WriteCSV(path, sampleRows()))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, strings.Join(columns, ","), lines[0])
	assert.Equal(t, "DFW1,Example Hosting,100 Main St,75201,Dallas,TX,USA,32.4,-96.5,120301040304,Turtle Creek-Trinity River", lines[1])
	// Absent coordinates and watershed fields stay as empty columns.
	assert.Equal(t, "CMH1,,,,Columbus,OH,USA,,,,", lines[2])
}

func TestWriteCSV_EmptyInputStillWritesHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facilities.csv")
	require.NoError(t, WriteCSV(path, nil))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strings.Join(columns, ",")+"\n", string(raw))
}

func TestWriteXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facilities.xlsx")
	require.NoError(t, WriteXLSX(path, sampleRows()))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 1)

	sheet := f.Sheets[0]
	assert.Equal(t, "facilities", sheet.Name)
	require.Len(t, sheet.Rows, 3)
	assert.Equal(t, "name", sheet.Rows[0].Cells[0].String())
	assert.Equal(t, "DFW1", sheet.Rows[1].Cells[0].String())
	assert.Equal(t, "120301040304", sheet.Rows[1].Cells[9].String())
	assert.Equal(t, "CMH1", sheet.Rows[2].Cells[0].String())
}

func TestWrite_DispatchesOnFormat(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, Write(filepath.Join(dir, "a.csv"), "csv", sampleRows()))
	require.NoError(t, Write(filepath.Join(dir, "b.csv"), "", sampleRows()))
	require.NoError(t, Write(filepath.Join(dir, "c.xlsx"), "xlsx", sampleRows()))

	err := Write(filepath.Join(dir, "d.out"), "parquet", sampleRows())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
}
