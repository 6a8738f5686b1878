package services

import (
	"fmt"
	"strings"
	"testing"

	"merchant-docs-platform/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDoc() *models.Document {
	return &models.Document{
		ID:           "doc-1",
		Name:         "rates.pdf",
		OriginalName: "Processing Rates.pdf",
		MimeType:     "application/pdf",
	}
}

func TestSelectStrategy(t *testing.T) {
	c := NewChunker()

	assert.Equal(t, StrategySemantic, c.SelectStrategy(DocumentShape{
		HasStructure: true, HasDomainTerms: true, WordCount: 1500, ParagraphCount: 20,
	}))

	// Structure without domain terms falls through
	assert.Equal(t, StrategyParagraph, c.SelectStrategy(DocumentShape{
		HasStructure: true, WordCount: 1500, ParagraphCount: 20,
	}))

	assert.Equal(t, StrategyParagraph, c.SelectStrategy(DocumentShape{
		WordCount: 600, ParagraphCount: 6,
	}))

	assert.Equal(t, StrategySentence, c.SelectStrategy(DocumentShape{
		WordCount: 100, ParagraphCount: 2,
	}))
}

func TestChunkIndicesAreContiguous(t *testing.T) {
	c := NewChunker()

	var sb strings.Builder
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&sb, "Sentence number %d talks about merchant processing fees and rates in detail. ", i)
	}

	chunks := c.Chunk(sb.String(), testDoc())
	require.NotEmpty(t, chunks)

	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.ChunkIndex)
		assert.Equal(t, models.ChunkID("doc-1", i), chunk.ID)
		assert.Equal(t, "doc-1", chunk.DocumentID)
		assert.NotEmpty(t, chunk.Content)
	}
}

func TestChunkIsDeterministic(t *testing.T) {
	c := NewChunker()

	var sb strings.Builder
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&sb, "Merchant statement line %d shows the interchange fee breakdown. ", i)
	}
	text := sb.String()

	first := c.Chunk(text, testDoc())
	second := c.Chunk(text, testDoc())

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, first[i].Content, second[i].Content)
		assert.Equal(t, first[i].SemanticScore, second[i].SemanticScore)
		assert.Equal(t, first[i].KeyTerms, second[i].KeyTerms)
	}
}

func TestChunkCoversSourceText(t *testing.T) {
	c := NewChunker()

	var sb strings.Builder
	for i := 0; i < 50; i++ {
		fmt.Fprintf(&sb, "Paragraph %d covers payment gateway settlement and chargeback handling for merchants.\n\n", i)
	}
	text := strings.TrimSpace(sb.String())

	chunks := c.Chunk(text, testDoc())
	require.NotEmpty(t, chunks)

	total := 0
	for _, chunk := range chunks {
		total += len(chunk.Content)
	}
	// Overlap means total can exceed the source; coverage below 90%
	// means text was dropped
	assert.GreaterOrEqual(t, float64(total), 0.9*float64(len(text)))
}

func TestChunkEmptyText(t *testing.T) {
	c := NewChunker()
	assert.Nil(t, c.Chunk("", testDoc()))
	assert.Nil(t, c.Chunk("   \n\t  ", testDoc()))
}

func TestChunkRespectsSizeLimits(t *testing.T) {
	c := NewChunker()

	var sb strings.Builder
	for i := 0; i < 100; i++ {
		fmt.Fprintf(&sb, "Short sentence %d here. ", i)
	}

	chunks := c.Chunk(sb.String(), testDoc())
	require.NotEmpty(t, chunks)
	for _, chunk := range chunks {
		// Sentence strategy plus overlap carry
		assert.LessOrEqual(t, len(chunk.Content), sentenceMaxSize+sentenceOverlap+50)
	}
}

func TestExtractKeyTerms(t *testing.T) {
	text := "Merchant merchant merchant processing fees apply. The gateway handles settlement."
	terms := extractKeyTerms(text, 5)

	require.NotEmpty(t, terms)
	assert.LessOrEqual(t, len(terms), 5)
	// Highest frequency domain term wins
	assert.Equal(t, "merchant", terms[0])
}

func TestScoreChunk(t *testing.T) {
	// Short chunk, no domain terms: base minus the brevity penalty
	score := scoreChunk("tiny text", nil)
	assert.InDelta(t, 0.3, score, 0.001)

	// Domain terms and numeric patterns push the score up
	rich := strings.Repeat("merchant processing rates at 2.9% with fees of $25 per terminal. ", 3)
	terms := extractKeyTerms(rich, 5)
	score = scoreChunk(rich, terms)
	assert.Greater(t, score, 0.9)
	assert.LessOrEqual(t, score, 1.0)
}

func TestQualityTier(t *testing.T) {
	high := strings.Repeat("merchant processing rates interchange settlement words here padding content ", 8)
	assert.Equal(t, models.QualityHigh, qualityTier(high))

	medium := "the merchant had a question"
	assert.Equal(t, models.QualityMedium, qualityTier(medium))

	low := "short note"
	assert.Equal(t, models.QualityLow, qualityTier(low))
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, estimateTokens(""))
	assert.Equal(t, 25, estimateTokens(strings.Repeat("a", 100)))
}
