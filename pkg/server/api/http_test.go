package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palontologist/price-oracles/pkg/logging"
	"github.com/palontologist/price-oracles/pkg/server/chain"
	"github.com/palontologist/price-oracles/pkg/server/sources"
	"github.com/palontologist/price-oracles/pkg/server/sources/static"
	"github.com/palontologist/price-oracles/pkg/store"
)

// scriptedSource returns canned quotes filtered to the requested subset and
// records the mock flag of every call.
type scriptedSource struct {
	name   string
	quotes []sources.RawQuote
	mocks  []bool
}

func (s *scriptedSource) FetchQuotes(_ context.Context, commodities []sources.Commodity, useMock bool) ([]sources.RawQuote, error) {
	s.mocks = append(s.mocks, useMock)

	out := make([]sources.RawQuote, 0, len(s.quotes))
	for _, q := range s.quotes {
		for _, c := range commodities {
			if q.Commodity == c {
				out = append(out, q)
				break
			}
		}
	}
	return out, nil
}

func (s *scriptedSource) Name() string                      { return s.name }
func (s *scriptedSource) Type() sources.SourceType          { return sources.SourceTypeScrape }
func (s *scriptedSource) Serves(p sources.ProductType) bool { return p == sources.ProductGrain }

// newTestServer builds a server over a two-tier chain: a scripted scraper
// quoting WHEAT at 55 KES/KG and the static fallback behind it.
func newTestServer(t *testing.T, st *store.Store) (*Server, *scriptedSource) {
	t.Helper()

	scraper := &scriptedSource{name: "AMIS", quotes: []sources.RawQuote{{
		Commodity:   sources.CommodityWheat,
		Price:       decimal.RequireFromString("55"),
		Currency:    sources.CurrencyKES,
		Unit:        "KG",
		Market:      "Nairobi",
		ProductType: sources.ProductGrain,
	}}}

	fallback, err := static.NewFallbackSourceFromConfig(map[string]interface{}{})
	require.NoError(t, err)

	tiers := []chain.Tier{
		{Key: "amis", Source: scraper, Classes: []sources.ProductType{sources.ProductGrain}},
		{Key: "fallback", Source: fallback,
			Classes: []sources.ProductType{sources.ProductFlour, sources.ProductGrain}},
	}
	ch := chain.New(tiers, sources.NewConverter(150, 90, 2), logging.NewNoopLogger())

	return NewServer(":0", ch, st, logging.NewNoopLogger()), scraper
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "quotes.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	srv.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status  string   `json:"status"`
		Version string   `json:"version"`
		Tiers   []string `json:"tiers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.NotEmpty(t, body.Version)
	assert.Equal(t, []string{"AMIS", "Fallback"}, body.Tiers)
}

func TestHandleQuotes_Envelope(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	srv.handleQuotes(rec, httptest.NewRequest(http.MethodGet, "/v1/quotes?commodities=WHEAT", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body quotesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)
	require.Len(t, body.Quotes, 1)
	assert.False(t, body.Degraded)

	q := body.Quotes[0]
	assert.Equal(t, sources.CommodityWheat, q.Commodity)
	assert.Equal(t, "AMIS", q.Source)
	assert.True(t, q.Price.Equal(decimal.RequireFromString("366.67")), "got %s", q.Price)

	_, err := time.Parse(time.RFC3339, body.Timestamp)
	assert.NoError(t, err)
}

func TestHandleQuotes_FallbackFillsGaps(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	srv.handleQuotes(rec, httptest.NewRequest(http.MethodGet, "/v1/quotes?commodities=WHEAT,CORN", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body quotesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 2, body.Count)

	assert.Equal(t, sources.CommodityWheat, body.Quotes[0].Commodity)
	assert.Equal(t, "AMIS", body.Quotes[0].Source)
	assert.Equal(t, sources.CommodityMaize, body.Quotes[1].Commodity)
	assert.Equal(t, "Fallback", body.Quotes[1].Source)
	assert.True(t, body.Quotes[1].Price.Equal(decimal.RequireFromString("220")), "got %s", body.Quotes[1].Price)
}

func TestHandleQuotes_FlourExpandsDefaultSet(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	srv.handleQuotes(rec, httptest.NewRequest(http.MethodGet, "/v1/quotes?flour=true", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body quotesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 4, body.Count)
}

func TestHandleQuotes_UnknownCommodity(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	srv.handleQuotes(rec, httptest.NewRequest(http.MethodGet, "/v1/quotes?commodities=RICE", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["error"], "RICE")
}

func TestHandleQuotes_MockFlagRouting(t *testing.T) {
	srv, scraper := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	srv.handleQuotes(rec, httptest.NewRequest(http.MethodGet, "/v1/quotes?commodities=WHEAT&mock=AMIS", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, scraper.mocks, 1)
	assert.True(t, scraper.mocks[0], "mock flag is matched case-insensitively against the tier key")
}

func TestHandleQuotes_DegradedEnvelope(t *testing.T) {
	srv, scraper := newTestServer(t, nil)
	for i := range scraper.quotes {
		scraper.quotes[i].Degraded = true
	}

	rec := httptest.NewRecorder()
	srv.handleQuotes(rec, httptest.NewRequest(http.MethodGet, "/v1/quotes?commodities=WHEAT", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body quotesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Degraded)
	require.Len(t, body.Quotes, 1)
	assert.True(t, body.Quotes[0].Degraded)
}

func TestHandleLatest_BareArray(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	srv.handleQuotes(rec, httptest.NewRequest(http.MethodGet, "/latest?commodities=WHEAT", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var quotes []sources.NormalizedQuote
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &quotes))
	require.Len(t, quotes, 1)
	assert.Equal(t, sources.CommodityWheat, quotes[0].Commodity)
}

func TestHandleQuotes_PersistsToStore(t *testing.T) {
	st := openTestStore(t)
	srv, _ := newTestServer(t, st)

	rec := httptest.NewRecorder()
	srv.handleQuotes(rec, httptest.NewRequest(http.MethodGet, "/v1/quotes?commodities=WHEAT", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	latest, err := st.Latest(context.Background())
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, sources.CommodityWheat, latest[0].Commodity)
	assert.Equal(t, "AMIS", latest[0].Source)
}

func TestHandleHistory(t *testing.T) {
	st := openTestStore(t)
	srv, _ := newTestServer(t, st)

	// Seed through the quotes endpoint.
	rec := httptest.NewRecorder()
	srv.handleQuotes(rec, httptest.NewRequest(http.MethodGet, "/v1/quotes?commodities=WHEAT", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.handleHistory(rec, httptest.NewRequest(http.MethodGet, "/v1/history?commodity=WHEAT&limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Commodity string                    `json:"commodity"`
		Quotes    []sources.NormalizedQuote `json:"quotes"`
		Count     int                       `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "WHEAT", body.Commodity)
	assert.Equal(t, 1, body.Count)
	require.Len(t, body.Quotes, 1)
	assert.Equal(t, "AMIS", body.Quotes[0].Source)
}

func TestHandleHistory_DisabledStore(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	srv.handleHistory(rec, httptest.NewRequest(http.MethodGet, "/v1/history?commodity=WHEAT", nil))

	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestHandleHistory_Validation(t *testing.T) {
	st := openTestStore(t)
	srv, _ := newTestServer(t, st)

	rec := httptest.NewRecorder()
	srv.handleHistory(rec, httptest.NewRequest(http.MethodGet, "/v1/history?commodity=RICE", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unknown commodity")

	rec = httptest.NewRecorder()
	srv.handleHistory(rec, httptest.NewRequest(http.MethodGet, "/v1/history?commodity=WHEAT&limit=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code, "non-numeric limit")
}

func TestHandleHistory_LatestSnapshot(t *testing.T) {
	st := openTestStore(t)
	srv, _ := newTestServer(t, st)

	rec := httptest.NewRecorder()
	srv.handleQuotes(rec, httptest.NewRequest(http.MethodGet, "/v1/quotes?commodities=WHEAT,MAIZE", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.handleHistory(rec, httptest.NewRequest(http.MethodGet, "/v1/history", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Quotes []sources.NormalizedQuote `json:"quotes"`
		Count  int                       `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)

	seen := map[sources.Commodity]bool{}
	for _, q := range body.Quotes {
		seen[q.Commodity] = true
	}
	assert.True(t, seen[sources.CommodityWheat])
	assert.True(t, seen[sources.CommodityMaize])
}
