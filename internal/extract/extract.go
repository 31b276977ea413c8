// Package extract pulls facility records out of a fetched city page.
//
// The source inlines its listing data as a JSON document in a
// <script id="__NEXT_DATA__"> block. Extraction navigates a fixed path
// through that document; the page's rendered markup is never scraped.
package extract

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/dcatlas/dcharvest/internal/model"
)

const dataScriptID = "__NEXT_DATA__"

// nextData is the narrow slice of the embedded document the extractor reads:
// props.pageProps.mapdata.dcs[]. Everything else in the payload is ignored.
type nextData struct {
	Props struct {
		PageProps struct {
			MapData struct {
				DCs []listing `json:"dcs"`
			} `json:"mapdata"`
		} `json:"pageProps"`
	} `json:"props"`
}

type listing struct {
	Properties struct {
		Name        string `json:"name"`
		CompanyName string `json:"companyname"`
		Address     string `json:"address"`
		Postal      string `json:"postal"`
		City        string `json:"city"`
		State       string `json:"state"`
		Country     string `json:"country"`
	} `json:"properties"`
	Geometry struct {
		// Coordinates is a GeoJSON-style pair: [longitude, latitude].
		Coordinates []float64 `json:"coordinates"`
	} `json:"geometry"`
}

// Records extracts every facility listing embedded in a page.
//
// A page without the data block yields (nil, nil): plenty of valid pages list
// no facilities. A page whose block cannot be decoded yields (nil, err) so the
// caller can log it and move on; one anomalous page must never abort a
// multi-thousand-page corpus. The returned slice is freshly allocated per
// call, so iterating it repeatedly is safe.
func Records(html []byte) ([]model.Facility, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, eris.Wrap(err, "extract: parse page")
	}

	sel := doc.Find("script#" + dataScriptID)
	if sel.Length() == 0 {
		return nil, nil
	}

	raw := strings.TrimSpace(sel.First().Text())
	if raw == "" {
		return nil, nil
	}

	var data nextData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, eris.Wrap(err, "extract: decode embedded data")
	}

	entries := data.Props.PageProps.MapData.DCs
	if len(entries) == 0 {
		return nil, nil
	}

	facilities := make([]model.Facility, 0, len(entries))
	for _, entry := range entries {
		f := model.Facility{
			Name:    entry.Properties.Name,
			Company: entry.Properties.CompanyName,
			Address: entry.Properties.Address,
			Postal:  entry.Properties.Postal,
			City:    entry.Properties.City,
			State:   entry.Properties.State,
			Country: entry.Properties.Country,
		}
		if coords := entry.Geometry.Coordinates; len(coords) >= 2 {
			// Source order is [lon, lat]; XY layout keeps it that way.
			f.Location = geom.NewPointFlat(geom.XY, []float64{coords[0], coords[1]})
		}
		facilities = append(facilities, f)
	}
	return facilities, nil
}
