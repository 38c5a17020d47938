package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/growthops/sheetpulse/pkg/sheets"
	"github.com/growthops/sheetpulse/pkg/storage"
)

func seedSite(ts *testServer, name string) *storage.SiteConfig {
	cfg := &storage.SiteConfig{
		Site: storage.Site{
			ID:       10,
			Name:     name,
			SheetURL: "https://docs.google.com/spreadsheets/d/abc123/edit",
			Squad:    "growth",
			Status:   storage.StatusActive,
			Columns:  storage.MetricColumns{Investment: 1, Revenue: 2, ROAS: 3, Margin: 4},
		},
		WebhookURL: "https://hooks.slack.com/services/T/B/x",
	}
	ts.store.sites[name] = cfg
	ts.store.sitesByID[cfg.Site.ID] = &cfg.Site
	return cfg
}

func TestListSites(t *testing.T) {
	ts := newTestServer()
	seedSite(ts, "acme")

	rec, envelope := ts.request(t, "GET", "/api/sites?name=ac&squad=growth", viewerToken, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	data := dataMap(t, envelope)
	assert.Equal(t, float64(1), data["total"])
}

func TestCreateSite(t *testing.T) {
	ts := newTestServer()

	rec, envelope := ts.request(t, "POST", "/api/sites", adminToken, map[string]interface{}{
		"name":           "acme",
		"sheet_url":      "https://docs.google.com/spreadsheets/d/abc123/edit",
		"investment_idx": 1,
		"revenue_idx":    2,
		"roas_idx":       3,
		"margin_idx":     4,
		"squad_name":     "growth",
	})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Site saved", envelope.Message)
	require.NotNil(t, ts.store.upserted)
	assert.Equal(t, "acme", ts.store.upserted.Name)
	assert.Equal(t, "growth", ts.store.upserted.Squad)
	assert.Equal(t, 3, ts.store.upserted.Columns.ROAS)
}

func TestCreateSiteMissingColumns(t *testing.T) {
	ts := newTestServer()

	rec, _ := ts.request(t, "POST", "/api/sites", adminToken, map[string]interface{}{
		"name":      "acme",
		"sheet_url": "https://docs.google.com/spreadsheets/d/abc123/edit",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetSiteByName(t *testing.T) {
	ts := newTestServer()
	seedSite(ts, "acme")

	rec, envelope := ts.request(t, "GET", "/api/sites/acme", viewerToken, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	data := dataMap(t, envelope)
	assert.Equal(t, "acme", data["name"])
	assert.Equal(t, true, data["has_webhook"])
}

func TestGetSiteByNameNotFound(t *testing.T) {
	ts := newTestServer()

	rec, _ := ts.request(t, "GET", "/api/sites/ghost", viewerToken, nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetSiteByID(t *testing.T) {
	ts := newTestServer()
	seedSite(ts, "acme")

	rec, envelope := ts.request(t, "GET", "/api/sites/10", viewerToken, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "acme", dataMap(t, envelope)["name"])
}

func TestUpdateSitePatchesColumns(t *testing.T) {
	ts := newTestServer()
	seedSite(ts, "acme")
	ts.store.updateResult = storage.UpdateApplied

	rec, _ := ts.request(t, "PUT", "/api/sites/10", adminToken, map[string]interface{}{
		"roas_idx": 7,
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, ts.store.updatePatch)
	require.NotNil(t, ts.store.updatePatch.Columns)
	assert.Equal(t, 7, ts.store.updatePatch.Columns.ROAS)
	// Untouched indices keep their stored values.
	assert.Equal(t, 1, ts.store.updatePatch.Columns.Investment)
}

func TestUpdateSiteNotFound(t *testing.T) {
	ts := newTestServer()
	ts.store.updateResult = storage.UpdateNotFound

	rec, _ := ts.request(t, "PUT", "/api/sites/99", adminToken, map[string]interface{}{
		"status": "inactive",
	})

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteSiteByNameNotFound(t *testing.T) {
	ts := newTestServer()
	ts.store.deleteErr = storage.ErrSiteNotFound

	rec, _ := ts.request(t, "DELETE", "/api/sites/ghost", adminToken, nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteSiteByID(t *testing.T) {
	ts := newTestServer()

	rec, envelope := ts.request(t, "DELETE", "/api/sites/10", adminToken, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Site deleted", envelope.Message)
}

func TestTestMappingDryRun(t *testing.T) {
	ts := newTestServer()
	seedSite(ts, "acme")
	ts.sheets.worksheets = []sheets.Worksheet{{ID: 0, Name: "June"}, {ID: 1, Name: "July"}}
	ts.sheets.rows = [][]string{
		{"Data", "Investimento", "Receita", "ROAS", "MC"},
		{"2025-06-01", "100", "300", "3.0", "150"},
		{"2025-06-02", "120", "420", "3.5", "210"},
	}

	rec, envelope := ts.request(t, "GET", "/api/sites/test/acme?sheet=1", viewerToken, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	data := dataMap(t, envelope)
	assert.Equal(t, "acme", data["site"])
	assert.Equal(t, "July", data["sheet"])
	assert.Equal(t, float64(2), data["total_rows"])

	results, ok := data["results"].([]interface{})
	require.True(t, ok)
	require.Len(t, results, 4)
	first := results[0].(map[string]interface{})
	assert.Equal(t, "Investment", first["metric"])
	assert.Equal(t, "Investimento", first["column_name"])
	assert.Equal(t, "120", first["value"])
}

func TestTestMappingUnknownSite(t *testing.T) {
	ts := newTestServer()

	rec, _ := ts.request(t, "GET", "/api/sites/test/ghost", viewerToken, nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTestMappingEmptySheet(t *testing.T) {
	ts := newTestServer()
	seedSite(ts, "acme")
	ts.sheets.worksheets = []sheets.Worksheet{{ID: 0, Name: "June"}}
	ts.sheets.rows = [][]string{{"Data", "ROAS"}}

	rec, _ := ts.request(t, "GET", "/api/sites/test/acme", viewerToken, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
