package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyDocumentShape(t *testing.T) {
	structured := "# Processing Rates\n\nOur merchant rates are listed below.\n\n- Qualified: 1.5%\n- Mid-qualified: 2.1%"
	shape := ClassifyDocumentShape(structured)
	assert.True(t, shape.HasStructure)
	assert.True(t, shape.HasDomainTerms)
	assert.Equal(t, 3, shape.ParagraphCount)

	plain := "Hello there. This is a simple note about nothing in particular."
	shape = ClassifyDocumentShape(plain)
	assert.False(t, shape.HasStructure)
	assert.False(t, shape.HasDomainTerms)
	assert.Equal(t, 1, shape.ParagraphCount)
	assert.Equal(t, 11, shape.WordCount)
}

func TestCountDomainTerms(t *testing.T) {
	assert.Equal(t, 0, CountDomainTerms("the quick brown fox"))
	assert.Equal(t, 2, CountDomainTerms("merchant processing is our business"))
	// Repeated terms count once
	assert.Equal(t, 1, CountDomainTerms("fees, fees, and more fees!"))
	// Punctuation is stripped before matching
	assert.Equal(t, 1, CountDomainTerms("what about the interchange?"))
}

func TestHasNumericPatterns(t *testing.T) {
	assert.True(t, HasNumericPatterns("the rate is 2.9% plus $0.30"))
	assert.True(t, HasNumericPatterns("fee of $25"))
	assert.True(t, HasNumericPatterns("total 10.99 per month"))
	assert.False(t, HasNumericPatterns("no numbers here"))
	assert.False(t, HasNumericPatterns("version 2 of the guide"))
}

func TestLooksScanned(t *testing.T) {
	thresholds := ScannedThresholds{MinWords: 10, MinAvgWordLen: 2.0, SampleChars: 200}

	assert.True(t, LooksScanned("one two three", thresholds), "too few words")

	short := strings.Repeat("a b ", 50)
	assert.True(t, LooksScanned(short, thresholds), "implausibly short words")

	noisy := strings.Repeat("ab\x01\x02\x03 ", 40)
	assert.True(t, LooksScanned(noisy, thresholds), "heavy non-word noise")

	clean := strings.Repeat("merchant processing rates apply to every transaction. ", 5)
	assert.False(t, LooksScanned(clean, thresholds))
}

func TestExpandQuery(t *testing.T) {
	expanded := ExpandQuery("restaurant rates")

	// Original terms come first
	assert.Equal(t, "restaurant", expanded[0])
	assert.Equal(t, "rates", expanded[1])

	// Synonyms follow
	assert.Contains(t, expanded, "dining")
	assert.Contains(t, expanded, "interchange")

	// No duplicates
	seen := make(map[string]int)
	for _, term := range expanded {
		seen[term]++
	}
	for term, count := range seen {
		assert.Equal(t, 1, count, "duplicate term %q", term)
	}
}

func TestExpandQueryUnknownTerms(t *testing.T) {
	expanded := ExpandQuery("zebra telescope")
	assert.Equal(t, []string{"zebra", "telescope"}, expanded)
}

func TestIsRelevantCategory(t *testing.T) {
	assert.True(t, IsRelevantCategory("rates"))
	assert.True(t, IsRelevantCategory("Processing Guides"))
	assert.True(t, IsRelevantCategory("compare processing rates"))
	assert.False(t, IsRelevantCategory("recipes"))
	assert.False(t, IsRelevantCategory(""))
}
