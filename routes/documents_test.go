package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"merchant-docs-platform/internal/ai"
	"merchant-docs-platform/internal/config"
	"merchant-docs-platform/internal/database"
	"merchant-docs-platform/models"
	"merchant-docs-platform/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDocumentsRouter(t *testing.T) (*gin.Engine, *database.MemoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		MinExtractedChars:     100,
		ProcessingConcurrency: 3,
		VectorNamespaces:      []string{"default"},
		ScannedMinWords:       50,
		ScannedMinAvgWordLen:  2.0,
		MaxFileSize:           1 << 20,
		AllowedTypes:          []string{"text/plain"},
	}

	store := database.NewMemoryStore()
	cache := services.NewSearchCache(time.Minute, 100)
	t.Cleanup(cache.Close)

	search := services.NewSearchManager(
		nil, services.NewDatabaseSearchBackend(store), nil, store, cache, nil)
	extractor := services.NewTextExtractor(cfg, nil, store)
	previews := services.NewPreviewService(store, extractor)
	processor := services.NewDocumentProcessor(cfg, store, store, extractor,
		services.NewChunker(), ai.NewHashEmbedder(32), nil, search, nil)

	router := gin.New()
	SetupDocumentRoutes(router, cfg, store, processor, previews, search, nil)
	return router, store
}

func seedDocument(t *testing.T, store *database.MemoryStore) {
	t.Helper()
	require.NoError(t, store.Create(context.Background(), &models.Document{
		ID: "doc-1", Name: "guide.txt", OriginalName: "Rate Guide.txt",
		MimeType: "text/plain", Category: "rates",
		Content: "Processing rates for qualified merchants start at 2.5% per transaction.",
	}))
}

func TestListDocuments(t *testing.T) {
	router, store := newDocumentsRouter(t)
	seedDocument(t, store)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Documents []models.Document `json:"documents"`
		Count     int               `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, "doc-1", body.Documents[0].ID)
}

func TestListDocumentsCategoryFilter(t *testing.T) {
	router, store := newDocumentsRouter(t)
	seedDocument(t, store)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/documents?category=equipment", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":0`)
}

func TestGetDocumentIncrementsViews(t *testing.T) {
	router, store := newDocumentsRouter(t)
	seedDocument(t, store)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/documents/doc-1", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	doc, err := store.GetByID(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Views)
}

func TestGetDocumentNotFound(t *testing.T) {
	router, _ := newDocumentsRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/documents/missing", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateDocument(t *testing.T) {
	router, store := newDocumentsRouter(t)
	seedDocument(t, store)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/api/documents/doc-1",
		strings.NewReader(`{"description":"updated description"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	doc, err := store.GetByID(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "updated description", doc.Description)
}

func TestDeleteDocument(t *testing.T) {
	router, store := newDocumentsRouter(t)
	seedDocument(t, store)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/documents/doc-1", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	_, err := store.GetByID(context.Background(), "doc-1")
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestPreviewEndpoint(t *testing.T) {
	router, store := newDocumentsRouter(t)
	seedDocument(t, store)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/documents/doc-1/preview?query=rates", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var preview services.DocumentPreview
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &preview))
	assert.NotEmpty(t, preview.TextPreview)
	assert.NotEmpty(t, preview.Highlights)
}

func TestInsightsEndpoint(t *testing.T) {
	router, store := newDocumentsRouter(t)
	seedDocument(t, store)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/documents/doc-1/insights?query=rates", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Rate Guide.txt")
}
