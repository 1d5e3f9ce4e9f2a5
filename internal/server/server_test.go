package server_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/uidpulse/internal/ai"
	"github.com/KaramelBytes/uidpulse/internal/analytics"
	"github.com/KaramelBytes/uidpulse/internal/dataset"
	"github.com/KaramelBytes/uidpulse/internal/ingest"
	"github.com/KaramelBytes/uidpulse/internal/logging"
	"github.com/KaramelBytes/uidpulse/internal/metrics"
	"github.com/KaramelBytes/uidpulse/internal/narrative"
	"github.com/KaramelBytes/uidpulse/internal/pipeline"
	"github.com/KaramelBytes/uidpulse/internal/server"
)

func source() ingest.MemorySource {
	return ingest.MemorySource{
		dataset.Enrolment: {
			Columns: []string{"date", "state", "district", "age_0_5", "age_5_17", "age_18_plus"},
			Rows: []dataset.RawRow{
				{"date": "15-01-2024", "state": "goa", "district": "north goa", "age_0_5": "100", "age_5_17": "50", "age_18_plus": "10"},
				{"date": "15-02-2024", "state": "goa", "district": "north goa", "age_0_5": "120", "age_5_17": "60", "age_18_plus": "15"},
				{"date": "15-03-2024", "state": "goa", "district": "north goa", "age_0_5": "140", "age_5_17": "70", "age_18_plus": "20"},
				{"date": "10-01-2024", "state": "kerala", "district": "idukki", "age_0_5": "1500"},
			},
		},
		dataset.BiometricUpdate: {
			Columns: []string{"date", "state", "district", "bio_age_5_17", "bio_age_18_plus"},
			Rows: []dataset.RawRow{
				{"date": "20-01-2024", "state": "kerala", "district": "idukki", "bio_age_5_17": "600"},
			},
		},
	}
}

type echoRuntime struct{}

func (echoRuntime) Generate(_ context.Context, req ai.GenerateRequest) (*ai.GenerateResponse, error) {
	return &ai.GenerateResponse{Choices: []ai.Choice{{Message: ai.Message{Content: "note for " + req.Model}}}}, nil
}

func newServer(t *testing.T, narrator *narrative.Narrator) (*server.Server, *metrics.Metrics) {
	t.Helper()
	m := metrics.New()
	svc := pipeline.NewService(source(), analytics.New(analytics.DefaultConfig()), pipeline.Options{Logger: logging.Discard(), Metrics: m})
	require.NoError(t, svc.Reload(context.Background()))
	return server.New(svc, narrator, server.Options{Logger: logging.Discard(), Metrics: m}), m
}

func get(t *testing.T, h http.Handler, url string, out any) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
	if out != nil {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec
}

func TestHealthAndKPIs(t *testing.T) {
	s, _ := newServer(t, nil)

	var health map[string]any
	rec := get(t, s, "/api/health", &health)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", health["status"])
	assert.EqualValues(t, 5, health["records"])
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	var k analytics.KPIs
	get(t, s, "/api/kpis?region=GOA", &k)
	assert.Equal(t, int64(585), k.TotalEnrolments)
	get(t, s, "/api/kpis", &k)
	assert.Equal(t, int64(2085), k.TotalEnrolments)
}

func TestKindEndpoints(t *testing.T) {
	s, _ := newServer(t, nil)

	var sum analytics.RegionSummary
	get(t, s, "/api/summary/enrolment?level=district", &sum)
	require.Len(t, sum.Rows, 2)
	assert.Equal(t, analytics.LevelDistrict, sum.Level)

	var tr analytics.Trend
	get(t, s, "/api/trend/enrolment?region=goa&freq=QE", &tr)
	require.Len(t, tr.Points, 1)
	assert.Equal(t, int64(585), tr.Points[0].Total)

	var fc analytics.Forecast
	get(t, s, "/api/forecast/enrolment?region=goa&periods=2", &fc)
	assert.Equal(t, analytics.StatusOK, fc.Status)
	assert.Len(t, fc.Projected(), 2)

	var out analytics.OutlierReport
	get(t, s, "/api/outliers/bio", &out)
	assert.Equal(t, dataset.BiometricUpdate, out.Kind)

	var recs []analytics.Recommendation
	get(t, s, "/api/recommendations", &recs)
	require.Len(t, recs, 2)
	assert.Equal(t, analytics.ActionMobileEnrolment, recs[0].Action)
	assert.Equal(t, "Idukki", recs[0].District)

	var ratios []analytics.RegionRatio
	get(t, s, "/api/ratios", &ratios)
	assert.Len(t, ratios, 2)
}

func TestEmptyListsAreArrays(t *testing.T) {
	s, _ := newServer(t, nil)
	rec := get(t, s, "/api/recommendations?region=Atlantis", nil)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestBadParametersReturnJSONErrors(t *testing.T) {
	s, _ := newServer(t, nil)
	for _, url := range []string{
		"/api/summary/census",
		"/api/summary/enrolment?level=village",
		"/api/trend/enrolment?freq=M",
		"/api/forecast/bio?periods=-1",
		"/api/narrative/weather",
	} {
		t.Run(url, func(t *testing.T) {
			var apiErr server.APIError
			rec := get(t, s, url, &apiErr)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, 400, apiErr.StatusCode)
			assert.Equal(t, "INVALID_PARAMETER", apiErr.ErrorCode)
			assert.NotEmpty(t, apiErr.Message)
		})
	}

	var apiErr server.APIError
	rec := get(t, s, "/api/nothing", &apiErr)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", apiErr.ErrorCode)
}

func TestNarrativeEndpoints(t *testing.T) {
	s, _ := newServer(t, nil)
	var note narrative.Note
	get(t, s, "/api/narrative/kpis", &note)
	assert.Equal(t, narrative.Unavailable, note.Text)

	n := narrative.New(echoRuntime{}, narrative.Options{Model: "m1", Logger: logging.Discard()})
	s, _ = newServer(t, n)
	get(t, s, "/api/narrative/trends?region=Goa&kind=enrolment", &note)
	assert.Equal(t, "note for m1", note.Text)
	assert.Equal(t, "Goa", note.Region)

	get(t, s, "/api/narrative/policy?region=Goa", &note)
	assert.Equal(t, narrative.StatusGreen, note.Text)
}

func TestBundleReloadAndMetrics(t *testing.T) {
	s, _ := newServer(t, nil)
	var b analytics.Bundle
	get(t, s, "/api/bundle?region=kerala", &b)
	assert.Equal(t, "Kerala", b.Region)
	assert.Len(t, b.Forecasts, 2)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/reload", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = get(t, s, "/metrics", nil)
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), "uidpulse_cache_requests_total")
	assert.Contains(t, string(body), "uidpulse_rows_ingested_total")
}
