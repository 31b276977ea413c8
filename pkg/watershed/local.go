package watershed

import (
	"context"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// LocalIndex resolves watersheds against a WBD HUC12 shapefile on disk,
// avoiding the remote service entirely. Useful when enriching a large corpus
// that would otherwise spend hours inside the API's rate limits.
type LocalIndex struct {
	regions []localRegion
}

type localRegion struct {
	huc12   string
	name    string
	bounds  *geom.Bounds
	polygon *geom.Polygon
}

// OpenLocalIndex loads every HUC12 polygon from a shapefile into memory.
// Records without geometry or without a huc12 attribute are skipped.
func OpenLocalIndex(shpPath string) (*LocalIndex, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "watershed: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	// Field name → index, case-insensitive; WBD releases vary in casing.
	fields := reader.Fields()
	fieldIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(name)] = i
	}
	hucIdx, ok := fieldIdx["huc12"]
	if !ok {
		return nil, eris.Errorf("watershed: shapefile %s has no huc12 field", shpPath)
	}
	nameIdx, hasName := fieldIdx["name"]

	idx := &LocalIndex{}
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()
		poly, ok := shape.(*shp.Polygon)
		if poly == nil || !ok {
			skipped++
			continue
		}

		huc12 := strings.TrimSpace(strings.TrimRight(reader.Attribute(hucIdx), "\x00"))
		if huc12 == "" {
			skipped++
			continue
		}
		var name string
		if hasName {
			name = strings.TrimSpace(strings.TrimRight(reader.Attribute(nameIdx), "\x00"))
		}

		g := polygonToGeom(poly)
		if g == nil {
			skipped++
			continue
		}

		idx.regions = append(idx.regions, localRegion{
			huc12:   huc12,
			name:    name,
			bounds:  g.Bounds(),
			polygon: g,
		})
	}

	if skipped > 0 {
		zap.L().Debug("watershed: skipped shapefile records", zap.Int("skipped", skipped))
	}
	if len(idx.regions) == 0 {
		return nil, eris.Errorf("watershed: shapefile %s yielded no usable polygons", shpPath)
	}

	zap.L().Info("watershed: loaded local index",
		zap.String("path", shpPath),
		zap.Int("regions", len(idx.regions)),
	)
	return idx, nil
}

// Resolve finds the first region whose polygon contains the point. Bounds are
// checked before the full containment test. No match returns (nil, nil).
func (l *LocalIndex) Resolve(_ context.Context, lon, lat float64) (*Region, error) {
	point := geom.Coord{lon, lat}
	for i := range l.regions {
		r := &l.regions[i]
		if !r.bounds.OverlapsPoint(geom.XY, point) {
			continue
		}
		if polygonContains(r.polygon, lon, lat) {
			return &Region{HUC12: r.huc12, Name: r.name}, nil
		}
	}
	return nil, nil
}

// polygonToGeom converts a shapefile polygon (flat point list with ring part
// offsets) to a geom.Polygon in XY layout.
func polygonToGeom(p *shp.Polygon) *geom.Polygon {
	if p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	flat := make([]float64, 0, len(p.Points)*2)
	ends := make([]int, 0, p.NumParts)
	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		for _, pt := range p.Points[start:end] {
			flat = append(flat, pt.X, pt.Y)
		}
		ends = append(ends, len(flat))
	}
	return geom.NewPolygonFlat(geom.XY, flat, ends)
}

// polygonContains applies the even-odd rule across every ring of the polygon,
// so holes are excluded naturally.
func polygonContains(p *geom.Polygon, lon, lat float64) bool {
	inside := false
	for ring := 0; ring < p.NumLinearRings(); ring++ {
		coords := p.LinearRing(ring).FlatCoords()
		n := len(coords) / 2
		for i, j := 0, n-1; i < n; j, i = i, i+1 {
			xi, yi := coords[2*i], coords[2*i+1]
			xj, yj := coords[2*j], coords[2*j+1]
			if (yi > lat) != (yj > lat) &&
				lon < (xj-xi)*(lat-yi)/(yj-yi)+xi {
				inside = !inside
			}
		}
	}
	return inside
}
