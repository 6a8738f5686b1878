package routes

import (
	"net/http"
	"strconv"

	"merchant-docs-platform/services"
	"merchant-docs-platform/utils"

	"github.com/gin-gonic/gin"
)

const (
	defaultSearchLimit     = 10
	maxSearchLimit         = 50
	defaultSearchThreshold = 0.7
)

// SearchRequest is the POST body for document search
type SearchRequest struct {
	Query     string  `json:"query" binding:"required"`
	Limit     int     `json:"limit"`
	Threshold float64 `json:"threshold"`
}

// SetupSearchRoutes registers the search endpoints
func SetupSearchRoutes(router *gin.Engine, search *services.SearchManager) {
	group := router.Group("/api/search")
	{
		group.POST("", handleSearch(search))
		group.GET("", handleSearchGet(search))
		group.GET("/health", handleSearchHealth(search))
		group.GET("/cache/stats", handleCacheStats(search))
	}
}

func handleSearch(search *services.SearchManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SearchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid search request", gin.H{"error": err.Error()})
			return
		}

		limit, threshold := normalizeSearchParams(req.Limit, req.Threshold)
		results := search.Search(c.Request.Context(), req.Query, limit, threshold)

		c.JSON(http.StatusOK, gin.H{
			"query":   req.Query,
			"results": results,
			"count":   len(results),
		})
	}
}

func handleSearchGet(search *services.SearchManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		query := c.Query("q")
		if query == "" {
			utils.RespondWithBadRequest(c, "Query parameter 'q' is required", nil)
			return
		}

		limit := parseIntQuery(c, "limit", defaultSearchLimit, maxSearchLimit)
		threshold := parseFloatQuery(c, "threshold", defaultSearchThreshold)
		limit, threshold = normalizeSearchParams(limit, threshold)

		results := search.Search(c.Request.Context(), query, limit, threshold)

		c.JSON(http.StatusOK, gin.H{
			"query":   query,
			"results": results,
			"count":   len(results),
		})
	}
}

func handleSearchHealth(search *services.SearchManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		health := search.HealthCheck(c.Request.Context())
		status := http.StatusOK
		if health.Status != "ok" {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, health)
	}
}

func handleCacheStats(search *services.SearchManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, search.CacheStats())
	}
}

func parseFloatQuery(c *gin.Context, name string, fallback float64) float64 {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return v
}

func normalizeSearchParams(limit int, threshold float64) (int, float64) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	if threshold <= 0 || threshold > 1 {
		threshold = defaultSearchThreshold
	}
	return limit, threshold
}
