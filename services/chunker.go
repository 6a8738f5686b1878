package services

import (
	"sort"
	"strings"
	"time"

	"merchant-docs-platform/models"
)

// Chunking strategies and their size limits
const (
	StrategySemantic  = "semantic"
	StrategyParagraph = "paragraph"
	StrategySentence  = "sentence"

	semanticMaxSize  = 800
	semanticOverlap  = 100
	paragraphMaxSize = 600
	paragraphOverlap = 50
	sentenceMaxSize  = 400
	sentenceOverlap  = 30

	maxKeyTerms = 5
)

// Chunker splits cleaned document text into scored chunks. Strategy
// selection is deterministic: the same text always produces the same
// chunks, which keeps reprocessing idempotent.
type Chunker struct{}

func NewChunker() *Chunker {
	return &Chunker{}
}

// SelectStrategy picks a chunking strategy from the document's shape
func (c *Chunker) SelectStrategy(shape DocumentShape) string {
	if shape.HasStructure && shape.HasDomainTerms && shape.WordCount > 1000 {
		return StrategySemantic
	}
	if shape.ParagraphCount > 5 && shape.WordCount > 500 {
		return StrategyParagraph
	}
	return StrategySentence
}

// span is an intermediate chunk with char offsets into the source text
type span struct {
	text  string
	start int
	end   int
}

// Chunk splits text and attaches scoring metadata. Chunk indices are
// assigned in document order starting at 0 with no gaps.
func (c *Chunker) Chunk(text string, doc *models.Document) []*models.DocumentChunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	shape := ClassifyDocumentShape(text)
	strategy := c.SelectStrategy(shape)

	var spans []span
	switch strategy {
	case StrategySemantic:
		spans = c.splitStructural(text, semanticMaxSize, semanticOverlap)
	case StrategyParagraph:
		spans = c.splitParagraphs(text, paragraphMaxSize, paragraphOverlap)
	default:
		spans = c.splitSentences(text, 0, sentenceMaxSize, sentenceOverlap)
	}

	now := time.Now()
	chunks := make([]*models.DocumentChunk, 0, len(spans))
	for _, s := range spans {
		content := strings.TrimSpace(s.text)
		if content == "" {
			continue
		}

		index := len(chunks)
		keyTerms := extractKeyTerms(content, maxKeyTerms)

		chunks = append(chunks, &models.DocumentChunk{
			ID:            models.ChunkID(doc.ID, index),
			DocumentID:    doc.ID,
			Content:       content,
			ChunkIndex:    index,
			Tokens:        estimateTokens(content),
			SemanticScore: scoreChunk(content, keyTerms),
			KeyTerms:      keyTerms,
			Metadata: models.ChunkMetadata{
				DocumentName: doc.Name,
				OriginalName: doc.OriginalName,
				MimeType:     doc.MimeType,
				StartChar:    s.start,
				EndChar:      s.end,
				Quality:      qualityTier(content),
				ProcessedAt:  now,
			},
		})
	}
	return chunks
}

// splitStructural breaks on heading/list boundaries, recursing into
// sentence splitting for oversized sections
func (c *Chunker) splitStructural(text string, maxSize, overlap int) []span {
	lines := strings.Split(text, "\n")

	var sections []span
	sectionStart := 0
	var buf strings.Builder
	pos := 0

	flush := func(end int) {
		if strings.TrimSpace(buf.String()) != "" {
			sections = append(sections, span{text: buf.String(), start: sectionStart, end: end})
		}
		buf.Reset()
	}

	for _, line := range lines {
		lineEnd := pos + len(line)
		if structureRegex.MatchString(line) && buf.Len() > 0 {
			flush(pos)
			sectionStart = pos
		}
		if buf.Len() > 0 {
			buf.WriteString("\n")
		}
		buf.WriteString(line)
		pos = lineEnd + 1 // account for the split newline
	}
	flush(len(text))

	return c.bound(sections, maxSize, overlap)
}

// splitParagraphs breaks on blank lines, recursing into sentence
// splitting for oversized paragraphs
func (c *Chunker) splitParagraphs(text string, maxSize, overlap int) []span {
	var paragraphs []span
	prev := 0
	for _, loc := range paragraphRegex.FindAllStringIndex(text, -1) {
		if loc[0] > prev {
			paragraphs = append(paragraphs, span{text: text[prev:loc[0]], start: prev, end: loc[0]})
		}
		prev = loc[1]
	}
	if prev < len(text) {
		paragraphs = append(paragraphs, span{text: text[prev:], start: prev, end: len(text)})
	}

	return c.bound(paragraphs, maxSize, overlap)
}

// bound merges small sections up to maxSize and recurses into sentence
// splitting for sections that alone exceed it
func (c *Chunker) bound(sections []span, maxSize, overlap int) []span {
	var out []span
	var current *span

	flush := func() {
		if current != nil && strings.TrimSpace(current.text) != "" {
			out = append(out, *current)
		}
		current = nil
	}

	for _, section := range sections {
		if len(section.text) > maxSize {
			flush()
			out = append(out, c.splitSentences(section.text, section.start, maxSize, overlap)...)
			continue
		}

		if current == nil {
			s := section
			current = &s
			continue
		}
		if len(current.text)+len(section.text)+2 > maxSize {
			flush()
			s := section
			current = &s
			continue
		}
		current.text += "\n\n" + section.text
		current.end = section.end
	}
	flush()
	return out
}

// splitSentences greedily accumulates sentences until the next one would
// exceed maxSize. base offsets the spans when splitting a sub-section.
func (c *Chunker) splitSentences(text string, base, maxSize, overlap int) []span {
	var units []span
	prev := 0
	for _, loc := range sentenceRegex.FindAllStringIndex(text, -1) {
		units = append(units, span{text: text[prev:loc[1]], start: prev, end: loc[1]})
		prev = loc[1]
	}
	if prev < len(text) {
		units = append(units, span{text: text[prev:], start: prev, end: len(text)})
	}

	var out []span
	var current *span
	for _, unit := range units {
		if current == nil {
			u := unit
			current = &u
			continue
		}
		if len(current.text)+len(unit.text) > maxSize {
			out = append(out, *current)

			// Carry overlap from the end of the previous chunk
			carry := current.text
			if len(carry) > overlap {
				carry = carry[len(carry)-overlap:]
			}
			u := unit
			u.text = carry + u.text
			u.start = unit.start - len(carry)
			current = &u
			continue
		}
		current.text += unit.text
		current.end = unit.end
	}
	if current != nil {
		out = append(out, *current)
	}

	for i := range out {
		out[i].start += base
		out[i].end += base
		if out[i].start < base {
			out[i].start = base
		}
	}
	return out
}

// extractKeyTerms returns the top terms by frequency, biased toward
// domain vocabulary and longer words
func extractKeyTerms(text string, limit int) []string {
	freq := make(map[string]int)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,;:!?()[]{}\"'")
		if len(word) <= 2 {
			continue
		}
		freq[word]++
	}

	type scored struct {
		term  string
		score int
	}
	terms := make([]scored, 0, len(freq))
	for term, count := range freq {
		score := count
		if merchantTerms[term] {
			score += 3
		}
		if len(term) > 4 {
			score++
		}
		terms = append(terms, scored{term: term, score: score})
	}

	sort.Slice(terms, func(i, j int) bool {
		if terms[i].score != terms[j].score {
			return terms[i].score > terms[j].score
		}
		return terms[i].term < terms[j].term
	})

	if len(terms) > limit {
		terms = terms[:limit]
	}
	out := make([]string, len(terms))
	for i, t := range terms {
		out[i] = t.term
	}
	return out
}

// scoreChunk computes the semantic score in [0,1]
func scoreChunk(content string, keyTerms []string) float64 {
	score := 0.5

	domainHits := CountDomainTerms(content)
	if domainHits > len(keyTerms) {
		domainHits = len(keyTerms)
	}
	score += 0.1 * float64(domainHits)

	if HasNumericPatterns(content) {
		score += 0.2
	}
	if len(content) < 100 {
		score -= 0.2
	}

	if score > 1.0 {
		score = 1.0
	}
	if score < 0.0 {
		score = 0.0
	}
	return score
}

// qualityTier assigns high, medium or low quality
func qualityTier(content string) string {
	domainHits := CountDomainTerms(content)
	words := len(strings.Fields(content))

	switch {
	case domainHits >= 2 && words >= 50:
		return models.QualityHigh
	case domainHits >= 1 || words >= 30:
		return models.QualityMedium
	default:
		return models.QualityLow
	}
}

// estimateTokens approximates token count as chars/4
func estimateTokens(text string) int {
	return len(text) / 4
}
