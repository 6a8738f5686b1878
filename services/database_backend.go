package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"merchant-docs-platform/internal/database"
	"merchant-docs-platform/models"
)

// Sub-search thresholds and weights for the enhanced database search
const (
	titleThreshold   = 0.3
	titleWeight      = 0.4
	contentThreshold = 0.2
	contentWeight    = 0.4
	keywordThreshold = 0.1
	keywordWeight    = 0.2

	candidateLimit = 200
	snippetLength  = 300
)

// DatabaseSearchBackend is the fallback when the vector index is
// unavailable: vocabulary-expanded multi-stage search over document
// titles, content and metadata with recency/popularity boosts.
type DatabaseSearchBackend struct {
	docs database.DocumentStore
}

func NewDatabaseSearchBackend(docs database.DocumentStore) *DatabaseSearchBackend {
	return &DatabaseSearchBackend{docs: docs}
}

var _ SearchBackend = (*DatabaseSearchBackend)(nil)

func (b *DatabaseSearchBackend) Name() string {
	return "database_enhanced"
}

func (b *DatabaseSearchBackend) Search(ctx context.Context, query string, limit int, _ float64) ([]models.SearchResult, error) {
	terms := ExpandQuery(query)
	if len(terms) == 0 {
		return nil, nil
	}

	candidates, err := b.docs.SearchCandidates(ctx, terms, candidateLimit)
	if err != nil {
		return nil, fmt.Errorf("candidate search failed: %w", err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	queryTerms := strings.Fields(strings.ToLower(query))

	// The three sub-searches are independent; run them in parallel and
	// merge by document id.
	var (
		wg                                        sync.WaitGroup
		titleScores, contentScores, keywordScores map[string]float64
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		titleScores = scoreTitles(candidates, queryTerms, terms)
	}()
	go func() {
		defer wg.Done()
		contentScores = scoreContents(candidates, terms)
	}()
	go func() {
		defer wg.Done()
		keywordScores = scoreKeywords(candidates, terms)
	}()
	wg.Wait()

	queryBoostsCategory := IsRelevantCategory(query)
	now := time.Now()

	results := make([]models.SearchResult, 0, len(candidates))
	for _, doc := range candidates {
		relevance := 0.0
		if s := titleScores[doc.ID]; s >= titleThreshold {
			relevance += s * titleWeight
		}
		if s := contentScores[doc.ID]; s >= contentThreshold {
			relevance += s * contentWeight
		}
		if s := keywordScores[doc.ID]; s >= keywordThreshold {
			relevance += s * keywordWeight
		}
		if relevance == 0 {
			continue
		}

		boost := 1.0
		if now.Sub(doc.CreatedAt) < 30*24*time.Hour {
			boost *= 1.2
		}
		if doc.Views > 10 {
			boost *= 1.1
		}
		if IsRelevantCategory(doc.Category) || queryBoostsCategory {
			boost *= 1.3
		}

		results = append(results, models.SearchResult{
			ID:         doc.ID,
			Score:      relevance * boost,
			DocumentID: doc.ID,
			Content:    snippet(doc.Content, snippetLength),
			Metadata: models.SearchResultMetadata{
				DocumentName:   doc.Name,
				RelevanceScore: relevance,
				MimeType:       doc.MimeType,
				KeywordMatches: matchedTerms(doc, queryTerms),
				SemanticMatch:  false,
				ContextualInfo: doc.Description,
			},
		})
	}

	sortResultsByScore(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// scoreTitles measures token overlap between the document name and the
// query, boosting multiple exact hits
func scoreTitles(docs []*models.Document, queryTerms, expandedTerms []string) map[string]float64 {
	scores := make(map[string]float64, len(docs))
	for _, doc := range docs {
		title := strings.ToLower(doc.Name)
		titleTokens := strings.Fields(title)

		exact := 0
		for _, term := range queryTerms {
			for _, token := range titleTokens {
				if strings.Trim(token, ".,;:!?-_") == term {
					exact++
					break
				}
			}
		}

		substring := 0
		for _, term := range expandedTerms {
			if strings.Contains(title, term) {
				substring++
			}
		}

		score := 0.0
		if len(queryTerms) > 0 {
			score = float64(exact) / float64(len(queryTerms))
		}
		if exact >= 2 {
			score *= 1.5
		}
		if substring > exact {
			score += 0.1 * float64(substring-exact)
		}
		scores[doc.ID] = clamp01(score)
	}
	return scores
}

// scoreContents measures term-frequency density normalized by length
func scoreContents(docs []*models.Document, terms []string) map[string]float64 {
	scores := make(map[string]float64, len(docs))
	for _, doc := range docs {
		content := strings.ToLower(doc.Content)
		if content == "" {
			scores[doc.ID] = 0
			continue
		}

		hits := 0
		for _, term := range terms {
			hits += strings.Count(content, term)
		}

		words := len(strings.Fields(content))
		if words == 0 {
			scores[doc.ID] = 0
			continue
		}
		// Density per 100 words, capped
		scores[doc.ID] = clamp01(float64(hits) / float64(words) * 100 / 10)
	}
	return scores
}

// scoreKeywords matches category, tags and description
func scoreKeywords(docs []*models.Document, terms []string) map[string]float64 {
	scores := make(map[string]float64, len(docs))
	for _, doc := range docs {
		haystack := strings.ToLower(doc.Category + " " + strings.Join(doc.Tags, " ") + " " + doc.Description)
		if strings.TrimSpace(haystack) == "" {
			scores[doc.ID] = 0
			continue
		}

		hits := 0
		for _, term := range terms {
			if strings.Contains(haystack, term) {
				hits++
			}
		}
		scores[doc.ID] = clamp01(float64(hits) / float64(len(terms)) * 3)
	}
	return scores
}

func matchedTerms(doc *models.Document, queryTerms []string) []string {
	haystack := strings.ToLower(doc.Name + " " + doc.Content)
	var matched []string
	for _, term := range queryTerms {
		if strings.Contains(haystack, term) {
			matched = append(matched, term)
		}
	}
	return matched
}

func snippet(content string, length int) string {
	content = strings.TrimSpace(content)
	if len(content) <= length {
		return content
	}
	cut := content[:length]
	if i := strings.LastIndex(cut, " "); i > length/2 {
		cut = cut[:i]
	}
	return cut + "..."
}

func clamp01(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}
