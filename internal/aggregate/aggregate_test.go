package aggregate

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/dcatlas/dcharvest/internal/model"
	"github.com/dcatlas/dcharvest/internal/store"
	"github.com/dcatlas/dcharvest/pkg/watershed"
)

const testMarker = "Page View Limit Reached"

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "agg.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func listingPage(names ...string) string {
	var entries []string
	for _, n := range names {
		entries = append(entries, fmt.Sprintf(
			`{"properties":{"name":%q,"address":"1 %s Way"},"geometry":{"coordinates":[-96.5,32.4]}}`, n, n))
	}
	return `<html><body><script id="__NEXT_DATA__" type="application/json">` +
		`{"props":{"pageProps":{"mapdata":{"dcs":[` + strings.Join(entries, ",") + `]}}}}` +
		`</script></body></html>`
}

func addPage(t *testing.T, st store.Store, path, body string) {
	t.Helper()
	require.NoError(t, st.UpsertPage(context.Background(), &model.PageFetch{
		Path:      path,
		URL:       "https://example.com/usa/" + path + "/",
		Body:      body,
		Status:    model.StatusSuccess,
		HTTPCode:  200,
		FetchedAt: time.Now().UTC(),
	}))
}

// --- Collect ---

func TestCollect_PathOrder(t *testing.T) {
	st := newTestStore(t)

	// Inserted out of path order; collection must follow path order anyway.
	addPage(t, st, "texas/dallas", listingPage("DAL1"))
	addPage(t, st, "ohio/columbus", listingPage("CMH1", "CMH2"))

	records, err := Collect(context.Background(), st, nil)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "CMH1", records[0].Name)
	assert.Equal(t, "CMH2", records[1].Name)
	assert.Equal(t, "DAL1", records[2].Name)
}

func TestCollect_SkipsMarkerPayloads(t *testing.T) {
	st := newTestStore(t)

	addPage(t, st, "ohio/columbus", listingPage("CMH1"))
	addPage(t, st, "texas/dallas", "<html>"+testMarker+"</html>")

	isRateLimited := func(body []byte) bool { return strings.Contains(string(body), testMarker) }
	records, err := Collect(context.Background(), st, isRateLimited)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "CMH1", records[0].Name)
}

func TestCollect_IsolatesExtractionFaults(t *testing.T) {
	st := newTestStore(t)

	addPage(t, st, "ohio/columbus", listingPage("CMH1"))
	addPage(t, st, "texas/dallas",
		`<html><script id="__NEXT_DATA__" type="application/json">{"props":{</script></html>`)
	addPage(t, st, "utah/provo", listingPage("PVU1"))

	records, err := Collect(context.Background(), st, nil)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "CMH1", records[0].Name)
	assert.Equal(t, "PVU1", records[1].Name)
}

// --- Dedup ---

func TestDedup_FirstWins(t *testing.T) {
	records := []model.Facility{
		{Name: "DFW1", Address: "100 Main St", City: "Dallas"},
		{Name: "DFW1", Address: "100 Main St", City: "Fort Worth"},
		{Name: "DFW2", Address: "200 Elm St"},
	}

	unique := Dedup(records)
	require.Len(t, unique, 2)
	assert.Equal(t, "Dallas", unique[0].City)
	assert.Equal(t, "DFW2", unique[1].Name)
}

func TestDedup_KeyIgnoresCaseAndWhitespace(t *testing.T) {
	records := []model.Facility{
		{Name: "DFW1", Address: "100  Main St"},
		{Name: "dfw1", Address: " 100 main st "},
	}
	assert.Len(t, Dedup(records), 1)
}

func TestDedup_SameNameDifferentAddress(t *testing.T) {
	records := []model.Facility{
		{Name: "DFW1", Address: "100 Main St"},
		{Name: "DFW1", Address: "200 Elm St"},
	}
	assert.Len(t, Dedup(records), 2)
}

// --- Enrich ---

type fakeResolver struct {
	region *watershed.Region
	err    error
	calls  int
}

func (f *fakeResolver) Resolve(_ context.Context, lon, lat float64) (*watershed.Region, error) {
	f.calls++
	return f.region, f.err
}

func located(name string) model.Facility {
	return model.Facility{
		Name:     name,
		Address:  "1 " + name + " Way",
		Location: geom.NewPointFlat(geom.XY, []float64{-96.5, 32.4}),
	}
}

func TestEnrich_FillsRegionFields(t *testing.T) {
	r := &fakeResolver{region: &watershed.Region{HUC12: "120301040304", Name: "Turtle Creek-Trinity River"}}

	rows := Enrich(context.Background(), []model.Facility{located("DFW1")}, r)
	require.Len(t, rows, 1)
	assert.Equal(t, "120301040304", rows[0].HUC12)
	assert.Equal(t, "Turtle Creek-Trinity River", rows[0].HUC12Name)
	assert.Equal(t, "-96.5", rows[0].Longitude)
	assert.Equal(t, "32.4", rows[0].Latitude)
}

func TestEnrich_SkipsRecordsWithoutLocation(t *testing.T) {
	r := &fakeResolver{region: &watershed.Region{HUC12: "x"}}

	rows := Enrich(context.Background(), []model.Facility{{Name: "NOLOC"}}, r)
	require.Len(t, rows, 1)
	assert.Equal(t, 0, r.calls)
	assert.Empty(t, rows[0].HUC12)
	assert.Empty(t, rows[0].Latitude)
}

func TestEnrich_LookupFailureLeavesFieldsEmpty(t *testing.T) {
	r := &fakeResolver{err: eris.New("service down")}

	rows := Enrich(context.Background(), []model.Facility{located("DFW1"), located("DFW2")}, r)
	require.Len(t, rows, 2)
	assert.Equal(t, 2, r.calls)
	assert.Empty(t, rows[0].HUC12)
	assert.Empty(t, rows[1].HUC12)
}

func TestEnrich_NoMatchLeavesFieldsEmpty(t *testing.T) {
	r := &fakeResolver{}

	rows := Enrich(context.Background(), []model.Facility{located("DFW1")}, r)
	require.Len(t, rows, 1)
	assert.Empty(t, rows[0].HUC12)
	assert.Empty(t, rows[0].HUC12Name)
}

func TestEnrich_NilResolver(t *testing.T) {
	rows := Enrich(context.Background(), []model.Facility{located("DFW1")}, nil)
	require.Len(t, rows, 1)
	assert.Equal(t, "-96.5", rows[0].Longitude)
}

// --- Flatten ---

func TestFlatten_NoLocation(t *testing.T) {
	row := Flatten(model.Facility{Name: "DFW1", City: "Dallas"})
	assert.Equal(t, "DFW1", row.Name)
	assert.Equal(t, "Dallas", row.City)
	assert.Empty(t, row.Latitude)
	assert.Empty(t, row.Longitude)
}

func TestFlatten_FormatsCoordinatesCompactly(t *testing.T) {
	f := model.Facility{
		Name:     "DFW1",
		Location: geom.NewPointFlat(geom.XY, []float64{-96.80667, 32.78306}),
	}
	row := Flatten(f)
	assert.Equal(t, "-96.80667", row.Longitude)
	assert.Equal(t, "32.78306", row.Latitude)
}
