package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"merchant-docs-platform/internal/database"
	"merchant-docs-platform/models"
	"merchant-docs-platform/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSearchRouter(t *testing.T) (*gin.Engine, *database.MemoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := database.NewMemoryStore()
	cache := services.NewSearchCache(time.Minute, 100)
	t.Cleanup(cache.Close)

	manager := services.NewSearchManager(
		nil, services.NewDatabaseSearchBackend(store), nil, store, cache, nil)

	router := gin.New()
	SetupSearchRoutes(router, manager)
	return router, store
}

func seedSearchDoc(t *testing.T, store *database.MemoryStore) {
	t.Helper()
	require.NoError(t, store.Create(context.Background(), &models.Document{
		ID:      "rates-guide",
		Name:    "Processing Rates Guide",
		Content: strings.Repeat("Processing rates for qualified merchants start at 2.5%. ", 10),
	}))
}

func TestSearchGetEndpoint(t *testing.T) {
	router, store := newSearchRouter(t)
	seedSearchDoc(t, store)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/search?q=processing+rates", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Query   string                `json:"query"`
		Results []models.SearchResult `json:"results"`
		Count   int                   `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "processing rates", body.Query)
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "rates-guide", body.Results[0].ID)
}

func TestSearchGetRequiresQuery(t *testing.T) {
	router, _ := newSearchRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/search", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSearchPostEndpoint(t *testing.T) {
	router, store := newSearchRouter(t)
	seedSearchDoc(t, store)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/search",
		strings.NewReader(`{"query":"processing rates","limit":5}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "rates-guide")
}

func TestSearchPostRejectsMissingQuery(t *testing.T) {
	router, _ := newSearchRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(`{"limit":5}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSearchHealthEndpoint(t *testing.T) {
	router, _ := newSearchRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/search/health", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "database_enhanced")
}

func TestCacheStatsEndpoint(t *testing.T) {
	router, store := newSearchRouter(t)
	seedSearchDoc(t, store)

	// Same query twice: one miss, one hit
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/search?q=processing+rates", nil)
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/search/cache/stats", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var stats services.CacheStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, stats.Entries)
}

func TestNormalizeSearchParams(t *testing.T) {
	limit, threshold := normalizeSearchParams(0, 0)
	assert.Equal(t, defaultSearchLimit, limit)
	assert.Equal(t, defaultSearchThreshold, threshold)

	limit, threshold = normalizeSearchParams(500, 1.5)
	assert.Equal(t, maxSearchLimit, limit)
	assert.Equal(t, defaultSearchThreshold, threshold)

	limit, threshold = normalizeSearchParams(5, 0.4)
	assert.Equal(t, 5, limit)
	assert.Equal(t, 0.4, threshold)
}
