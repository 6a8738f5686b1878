package services

import (
	"context"
	"strings"
	"time"

	"merchant-docs-platform/internal/database"
	"merchant-docs-platform/internal/logger"
	"merchant-docs-platform/internal/telemetry"
	"merchant-docs-platform/models"

	"github.com/sony/gobreaker"
)

// HealthStatus reports which search backend is currently authoritative
type HealthStatus struct {
	Status  string      `json:"status"`
	Backend string      `json:"backend"`
	Stats   *IndexStats `json:"stats,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// SearchManager is the search façade. Per query: cache check, then the
// vector backend behind a circuit breaker, then the enhanced database
// backend, then a basic substring scan. It never returns an error to the
// caller; every failure degrades to the next tier.
type SearchManager struct {
	vector   SearchBackend // may be nil when no embedding provider is configured
	fallback SearchBackend
	index    VectorIndex // for health stats; nil when vector is nil
	docs     database.DocumentStore
	cache    *SearchCache
	breaker  *gobreaker.CircuitBreaker
	metrics  *telemetry.Metrics
}

func NewSearchManager(
	vector SearchBackend,
	fallback SearchBackend,
	index VectorIndex,
	docs database.DocumentStore,
	cache *SearchCache,
	metrics *telemetry.Metrics,
) *SearchManager {
	m := &SearchManager{
		vector:   vector,
		fallback: fallback,
		index:    index,
		docs:     docs,
		cache:    cache,
		metrics:  metrics,
	}

	m.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "vector-search",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state change", "name", name,
				"from", from.String(), "to", to.String())
			if metrics != nil {
				metrics.RecordCircuitBreakerState(name, to.String())
			}
		},
	})
	return m
}

// Search runs the tiered search. The returned slice may be empty but the
// error is always nil by contract; callers treat empty as "no matches".
func (m *SearchManager) Search(ctx context.Context, query string, limit int, threshold float64) []models.SearchResult {
	query = strings.TrimSpace(query)
	if query == "" || limit <= 0 {
		return nil
	}

	key := CacheKey(query, limit, threshold)
	if cached := m.cache.Get(key); cached != nil {
		m.recordCacheEvent("hit")
		return cached
	}
	m.recordCacheEvent("miss")

	start := time.Now()

	if m.vector != nil {
		results, err := m.breaker.Execute(func() (any, error) {
			return m.vector.Search(ctx, query, limit, threshold)
		})
		if err == nil {
			if hits, ok := results.([]models.SearchResult); ok && len(hits) > 0 {
				m.recordSearch(m.vector.Name(), start, len(hits))
				m.cache.Set(key, hits)
				return hits
			}
		} else {
			logger.Warn("Vector search unavailable, falling back",
				"query", query, "error", err)
		}
	}

	hits, err := m.fallback.Search(ctx, query, limit, threshold)
	if err == nil {
		m.recordSearch(m.fallback.Name(), start, len(hits))
		m.cache.Set(key, hits)
		return hits
	}
	logger.Error("Enhanced database search failed", "query", query, "error", err)

	hits = m.basicSearch(ctx, query, limit)
	m.recordSearch("basic", start, len(hits))
	return hits
}

// basicSearch is the last-resort tier: substring scan over document
// names and content, scored by match count.
func (m *SearchManager) basicSearch(ctx context.Context, query string, limit int) []models.SearchResult {
	terms := strings.Fields(strings.ToLower(query))
	docs, err := m.docs.SearchCandidates(ctx, terms, candidateLimit)
	if err != nil {
		logger.Error("Basic search failed", "query", query, "error", err)
		return nil
	}

	results := make([]models.SearchResult, 0, len(docs))
	for _, doc := range docs {
		haystack := strings.ToLower(doc.Name + " " + doc.Content)
		matches := 0
		for _, term := range terms {
			matches += strings.Count(haystack, term)
		}
		if matches == 0 {
			continue
		}

		results = append(results, models.SearchResult{
			ID:         doc.ID,
			Score:      float64(matches) / float64(matches+5), // asymptotic to 1
			DocumentID: doc.ID,
			Content:    snippet(doc.Content, snippetLength),
			Metadata: models.SearchResultMetadata{
				DocumentName:  doc.Name,
				MimeType:      doc.MimeType,
				SemanticMatch: false,
			},
		})
	}

	sortResultsByScore(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// DocumentChanged invalidates cached searches after any document
// mutation (add, update, delete)
func (m *SearchManager) DocumentChanged(documentID string) {
	removed := m.cache.InvalidatePrefix("search:")
	m.recordCacheEvent("invalidate")
	logger.Debug("Search cache invalidated",
		"document_id", documentID, "entries_removed", removed)
}

// CacheStats exposes cache counters for the operations endpoint
func (m *SearchManager) CacheStats() CacheStats {
	return m.cache.Stats()
}

// HealthCheck reports which backend would answer queries right now
func (m *SearchManager) HealthCheck(ctx context.Context) HealthStatus {
	if m.vector != nil && m.index != nil && m.breaker.State() != gobreaker.StateOpen {
		stats, err := m.index.Stats(ctx)
		if err == nil {
			return HealthStatus{Status: "ok", Backend: m.vector.Name(), Stats: stats}
		}
		logger.Warn("Vector index health check failed", "error", err)
	}

	// Probe the fallback path with a cheap query
	if _, err := m.docs.List(ctx, database.DocumentListFilter{Limit: 1}); err != nil {
		return HealthStatus{Status: "error", Error: err.Error()}
	}
	return HealthStatus{Status: "ok", Backend: m.fallback.Name()}
}

func (m *SearchManager) recordSearch(tier string, start time.Time, results int) {
	if m.metrics != nil {
		m.metrics.RecordSearch(tier, time.Since(start).Seconds(), results)
	}
}

func (m *SearchManager) recordCacheEvent(event string) {
	if m.metrics != nil {
		m.metrics.RecordCacheEvent(event)
	}
}
