package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"merchant-docs-platform/internal/database"
	"merchant-docs-platform/internal/logger"
)

const (
	highlightWindow = 50
	maxHighlights   = 3
	maxKeyFindings  = 3
	previewLength   = 500
)

var (
	currencyRegex = regexp.MustCompile(`\$\s?\d[\d,]*(\.\d{2})?`)
	percentRegex  = regexp.MustCompile(`\d+(\.\d+)?\s?%`)
	phoneRegex    = regexp.MustCompile(`\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`)
	emailRegex    = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
)

// DocumentPreview is the UI-facing summary of a document
type DocumentPreview struct {
	TextPreview string   `json:"text_preview"`
	WordCount   int      `json:"word_count"`
	PageCount   int      `json:"page_count,omitempty"`
	Highlights  []string `json:"highlights"`
	Description string   `json:"description"`
}

// DocumentInsights explains a document's relevance to a query
type DocumentInsights struct {
	RelevanceExplanation string   `json:"relevance_explanation"`
	KeyFindings          []string `json:"key_findings"`
	SuggestedActions     []string `json:"suggested_actions"`
}

// PreviewService derives previews, highlights and insights from extracted
// text. Every failure degrades to placeholder strings; this service never
// returns an error to its caller.
type PreviewService struct {
	docs      database.DocumentStore
	extractor *TextExtractor
}

func NewPreviewService(docs database.DocumentStore, extractor *TextExtractor) *PreviewService {
	return &PreviewService{docs: docs, extractor: extractor}
}

// Preview builds a text preview with optional query highlights
func (s *PreviewService) Preview(ctx context.Context, documentID, query string) *DocumentPreview {
	doc, err := s.docs.GetByID(ctx, documentID)
	if err != nil {
		logger.Warn("Preview for unknown document", "document_id", documentID, "error", err)
		return &DocumentPreview{
			TextPreview: "Preview unavailable",
			Description: "Click to view document details",
		}
	}

	text := s.extractor.Extract(ctx, doc)
	if strings.TrimSpace(text) == "" {
		return &DocumentPreview{
			TextPreview: fmt.Sprintf("No preview available for %s", doc.OriginalName),
			Description: "Click to view document details",
		}
	}

	preview := &DocumentPreview{
		TextPreview: snippet(text, previewLength),
		WordCount:   len(strings.Fields(text)),
		Description: describeContent(text),
	}
	if doc.MimeType == "application/pdf" {
		preview.PageCount = estimatePageCount(text)
	}
	if query != "" {
		preview.Highlights = extractHighlights(text, query)
	}
	return preview
}

// Insights derives findings and suggested actions for a query
func (s *PreviewService) Insights(ctx context.Context, documentID, query string) *DocumentInsights {
	doc, err := s.docs.GetByID(ctx, documentID)
	if err != nil {
		return &DocumentInsights{
			RelevanceExplanation: "Document details unavailable",
		}
	}

	text := s.extractor.Extract(ctx, doc)
	if strings.TrimSpace(text) == "" {
		return &DocumentInsights{
			RelevanceExplanation: fmt.Sprintf("%s may be relevant to your question", doc.OriginalName),
		}
	}

	matched := 0
	queryTerms := strings.Fields(strings.ToLower(query))
	lowerText := strings.ToLower(text)
	for _, term := range queryTerms {
		if strings.Contains(lowerText, term) {
			matched++
		}
	}

	explanation := fmt.Sprintf("%s matches %d of %d query terms",
		doc.OriginalName, matched, len(queryTerms))
	if matched == 0 {
		explanation = fmt.Sprintf("%s may contain related background information", doc.OriginalName)
	}

	return &DocumentInsights{
		RelevanceExplanation: explanation,
		KeyFindings:          extractKeyFindings(text, query),
		SuggestedActions:     suggestActions(text, query),
	}
}

// extractHighlights returns up to 3 windows around query term occurrences
// with the term wrapped in emphasis markup
func extractHighlights(text, query string) []string {
	lowerText := strings.ToLower(text)
	var highlights []string

	for _, term := range strings.Fields(strings.ToLower(query)) {
		if len(highlights) >= maxHighlights {
			break
		}
		term = strings.Trim(term, ".,;:!?")
		if len(term) < 3 {
			continue
		}

		idx := strings.Index(lowerText, term)
		if idx < 0 {
			continue
		}

		start := idx - highlightWindow
		if start < 0 {
			start = 0
		}
		end := idx + len(term) + highlightWindow
		if end > len(text) {
			end = len(text)
		}

		window := text[start:idx] + "**" + text[idx:idx+len(term)] + "**" + text[idx+len(term):end]
		highlights = append(highlights, "..."+strings.TrimSpace(window)+"...")
	}
	return highlights
}

// describeContent pattern-matches the opening text for domain cues
func describeContent(text string) string {
	sample := strings.ToLower(text)
	if len(sample) > 200 {
		sample = sample[:200]
	}

	switch {
	case strings.Contains(sample, "pricing") || strings.Contains(sample, "rates") || strings.Contains(sample, "fee"):
		return "Contains pricing and rate information"
	case strings.Contains(sample, "contact") || strings.Contains(sample, "support") || strings.Contains(sample, "phone"):
		return "Contains contact and support details"
	case strings.Contains(sample, "equipment") || strings.Contains(sample, "terminal") || strings.Contains(sample, "pos"):
		return "Covers equipment and terminal options"
	case strings.Contains(sample, "integration") || strings.Contains(sample, "api") || strings.Contains(sample, "gateway"):
		return "Describes integration and API capabilities"
	default:
		return "Click to view document details"
	}
}

// extractKeyFindings pulls concrete figures and contacts matching the
// query topic, capped at 3
func extractKeyFindings(text, query string) []string {
	lowerQuery := strings.ToLower(query)
	var findings []string

	add := func(prefix string, matches []string) {
		for _, m := range matches {
			if len(findings) >= maxKeyFindings {
				return
			}
			findings = append(findings, prefix+m)
		}
	}

	if strings.Contains(lowerQuery, "rate") || strings.Contains(lowerQuery, "price") ||
		strings.Contains(lowerQuery, "fee") || strings.Contains(lowerQuery, "cost") {
		add("Amount: ", currencyRegex.FindAllString(text, maxKeyFindings))
		add("Rate: ", percentRegex.FindAllString(text, maxKeyFindings))
	}
	if strings.Contains(lowerQuery, "contact") || strings.Contains(lowerQuery, "support") ||
		strings.Contains(lowerQuery, "phone") || strings.Contains(lowerQuery, "email") {
		add("Phone: ", phoneRegex.FindAllString(text, maxKeyFindings))
		add("Email: ", emailRegex.FindAllString(text, maxKeyFindings))
	}
	return findings
}

func suggestActions(text, query string) []string {
	var actions []string
	lowerQuery := strings.ToLower(query)
	lowerText := strings.ToLower(text)

	if strings.Contains(lowerQuery, "rate") || strings.Contains(lowerQuery, "compare") {
		actions = append(actions, "Review the rate tables in this document")
	}
	if phoneRegex.MatchString(text) || emailRegex.MatchString(text) {
		actions = append(actions, "Reach out using the contact details listed")
	}
	if strings.Contains(lowerText, "application") || strings.Contains(lowerText, "signup") {
		actions = append(actions, "Start an application to get exact pricing")
	}
	if len(actions) == 0 {
		actions = append(actions, "Open the document for full details")
	}
	return actions
}

// estimatePageCount guesses pages from text length
func estimatePageCount(text string) int {
	chars := len(text)
	if chars < 3000 {
		return 1
	}
	return chars / 3000
}
