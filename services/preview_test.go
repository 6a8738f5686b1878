package services

import (
	"context"
	"strings"
	"testing"

	"merchant-docs-platform/internal/database"
	"merchant-docs-platform/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedPreviewDoc(t *testing.T, store *database.MemoryStore, content string) {
	t.Helper()
	require.NoError(t, store.Create(context.Background(), &models.Document{
		ID: "doc-1", Name: "guide.pdf", OriginalName: "Rate Guide.pdf",
		MimeType: "application/pdf", Content: content,
	}))
}

func TestPreviewUnknownDocument(t *testing.T) {
	svc := NewPreviewService(database.NewMemoryStore(), NewTextExtractor(testConfig(), nil, nil))

	preview := svc.Preview(context.Background(), "missing", "")
	require.NotNil(t, preview)
	assert.Equal(t, "Preview unavailable", preview.TextPreview)
	assert.Equal(t, "Click to view document details", preview.Description)
}

func TestPreviewWithHighlights(t *testing.T) {
	store := database.NewMemoryStore()
	content := "Our pricing starts at 2.9% per transaction. Qualified merchants get better rates. " +
		strings.Repeat("Additional terms and conditions apply to every merchant account. ", 10)
	seedPreviewDoc(t, store, content)

	svc := NewPreviewService(store, NewTextExtractor(testConfig(), nil, store))
	preview := svc.Preview(context.Background(), "doc-1", "qualified merchant rates")

	assert.NotEmpty(t, preview.TextPreview)
	assert.LessOrEqual(t, len(preview.TextPreview), previewLength+5)
	assert.Greater(t, preview.WordCount, 0)
	assert.Greater(t, preview.PageCount, 0)
	assert.Equal(t, "Contains pricing and rate information", preview.Description)

	require.NotEmpty(t, preview.Highlights)
	assert.LessOrEqual(t, len(preview.Highlights), maxHighlights)
	for _, h := range preview.Highlights {
		assert.Contains(t, h, "**")
		assert.True(t, strings.HasPrefix(h, "..."))
	}
}

func TestPreviewEmptyContent(t *testing.T) {
	store := database.NewMemoryStore()
	require.NoError(t, store.Create(context.Background(), &models.Document{
		ID: "doc-1", Name: "empty.txt", OriginalName: "empty.txt",
		MimeType: "text/plain", Path: "/nonexistent",
	}))

	svc := NewPreviewService(store, NewTextExtractor(testConfig(), nil, store))
	preview := svc.Preview(context.Background(), "doc-1", "")

	assert.Contains(t, preview.TextPreview, "No preview available")
}

func TestInsightsMatchesQueryTerms(t *testing.T) {
	store := database.NewMemoryStore()
	seedPreviewDoc(t, store, "Processing rates for restaurants are 2.4% plus $0.10. Call (555) 123-4567 for details.")

	svc := NewPreviewService(store, NewTextExtractor(testConfig(), nil, store))
	insights := svc.Insights(context.Background(), "doc-1", "restaurant rates")

	assert.Contains(t, insights.RelevanceExplanation, "Rate Guide.pdf")
	assert.Contains(t, insights.RelevanceExplanation, "2 of 2")
	assert.NotEmpty(t, insights.SuggestedActions)
}

func TestInsightsKeyFindings(t *testing.T) {
	store := database.NewMemoryStore()
	seedPreviewDoc(t, store, "Monthly fee is $25.00 and the qualified rate is 2.9% for most merchants.")

	svc := NewPreviewService(store, NewTextExtractor(testConfig(), nil, store))
	insights := svc.Insights(context.Background(), "doc-1", "what are the fees")

	require.NotEmpty(t, insights.KeyFindings)
	assert.LessOrEqual(t, len(insights.KeyFindings), maxKeyFindings)

	joined := strings.Join(insights.KeyFindings, " ")
	assert.Contains(t, joined, "$25")
}

func TestInsightsContactFindings(t *testing.T) {
	store := database.NewMemoryStore()
	seedPreviewDoc(t, store, "Reach support at help@example.com or (555) 123-4567 during business hours.")

	svc := NewPreviewService(store, NewTextExtractor(testConfig(), nil, store))
	insights := svc.Insights(context.Background(), "doc-1", "support contact")

	joined := strings.Join(insights.KeyFindings, " ")
	assert.Contains(t, joined, "555")
	assert.Contains(t, joined, "help@example.com")
}

func TestDescribeContent(t *testing.T) {
	assert.Equal(t, "Contains pricing and rate information", describeContent("Our pricing and rates..."))
	assert.Equal(t, "Contains contact and support details", describeContent("Contact our support team"))
	assert.Equal(t, "Covers equipment and terminal options", describeContent("Terminal equipment list"))
	assert.Equal(t, "Describes integration and API capabilities", describeContent("API gateway integration guide"))
	assert.Equal(t, "Click to view document details", describeContent("unrelated musings"))
}

func TestEstimatePageCount(t *testing.T) {
	assert.Equal(t, 1, estimatePageCount("short"))
	assert.Equal(t, 2, estimatePageCount(strings.Repeat("a", 6500)))
}
