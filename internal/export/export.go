// Package export serializes enriched facility rows to tabular files.
package export

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/dcatlas/dcharvest/internal/model"
)

// columns is the fixed output header, matching the csv tags on
// model.EnrichedFacility.
var columns = []string{
	"name", "company", "address", "postal", "city", "state", "country",
	"latitude", "longitude", "huc12", "huc12_name",
}

// Write serializes rows to path in the given format ("csv" or "xlsx").
func Write(path, format string, rows []model.EnrichedFacility) error {
	switch strings.ToLower(format) {
	case "", "csv":
		return WriteCSV(path, rows)
	case "xlsx":
		return WriteXLSX(path, rows)
	default:
		return eris.Errorf("export: unknown format %q", format)
	}
}

// WriteCSV writes rows as CSV with a header line. An empty input still
// produces the header.
func WriteCSV(path string, rows []model.EnrichedFacility) error {
	data, err := csvutil.Marshal(rows)
	if err != nil {
		return eris.Wrap(err, "export: marshal csv")
	}
	if len(rows) == 0 {
		data = []byte(strings.Join(columns, ",") + "\n")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "export: create dir for %s", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "export: write %s", path)
	}
	return nil
}

// WriteXLSX writes rows as a single-sheet workbook.
func WriteXLSX(path string, rows []model.EnrichedFacility) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("facilities")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, col := range columns {
		header.AddCell().SetString(col)
	}

	for _, r := range rows {
		row := sheet.AddRow()
		for _, v := range []string{
			r.Name, r.Company, r.Address, r.Postal, r.City, r.State, r.Country,
			r.Latitude, r.Longitude, r.HUC12, r.HUC12Name,
		} {
			row.AddCell().SetString(v)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "export: create dir for %s", path)
	}
	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}
