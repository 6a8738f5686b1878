package services

import (
	"regexp"
	"strings"
)

// merchantTerms is the recognized domain vocabulary. Chunk scoring and
// strategy selection both key off this set.
var merchantTerms = map[string]bool{
	"merchant":     true,
	"payment":      true,
	"processing":   true,
	"processor":    true,
	"rates":        true,
	"rate":         true,
	"interchange":  true,
	"terminal":     true,
	"pos":          true,
	"credit":       true,
	"debit":        true,
	"card":         true,
	"transaction":  true,
	"fees":         true,
	"fee":          true,
	"gateway":      true,
	"acquirer":     true,
	"settlement":   true,
	"chargeback":   true,
	"pci":          true,
	"emv":          true,
	"contactless":  true,
	"pricing":      true,
	"statement":    true,
	"underwriting": true,
}

// queryVocabulary expands common merchant-services queries with synonyms
// for the database fallback search
var queryVocabulary = map[string]string{
	"rates":      "processing rates interchange rates qualified rates pricing",
	"processor":  "payment processor credit card processing merchant services",
	"pos":        "point of sale terminal payment system",
	"restaurant": "restaurant food service dining hospitality",
	"retail":     "retail store shop merchant business",
	"ecommerce":  "ecommerce online store internet payment gateway",
	"fees":       "fees costs charges pricing rates interchange",
	"compare":    "comparison versus rates differences best",
	"setup":      "setup installation onboarding application approval",
	"support":    "customer support help service technical assistance",
}

// relevantCategories get a ranking boost when matched by a document's
// category or mentioned in the query
var relevantCategories = map[string]bool{
	"rates":      true,
	"processing": true,
	"comparison": true,
	"setup":      true,
}

var (
	structureRegex = regexp.MustCompile(`(?m)^\s*(\d+[.)]\s+|[-*•]\s+|#{1,6}\s+|[A-Z][A-Z\s]{4,}$)`)
	numericRegex   = regexp.MustCompile(`\$\s?\d|\d+(\.\d+)?\s?%|\d+\.\d{2}`)
	sentenceRegex  = regexp.MustCompile(`[.!?]+\s+`)
	paragraphRegex = regexp.MustCompile(`\n\s*\n+`)
	nonWordRegex   = regexp.MustCompile(`[^a-zA-Z0-9\s.,;:!?'"()\-$%&/@#]`)
)

// DocumentShape summarizes the structural signals the chunker's strategy
// selector needs
type DocumentShape struct {
	HasStructure   bool
	HasDomainTerms bool
	WordCount      int
	ParagraphCount int
}

// ClassifyDocumentShape inspects cleaned text once per document. Pure
// function so each heuristic is testable without the pipeline.
func ClassifyDocumentShape(text string) DocumentShape {
	words := strings.Fields(text)
	paragraphs := paragraphRegex.Split(text, -1)
	count := 0
	for _, p := range paragraphs {
		if strings.TrimSpace(p) != "" {
			count++
		}
	}

	return DocumentShape{
		HasStructure:   structureRegex.MatchString(text),
		HasDomainTerms: CountDomainTerms(text) > 0,
		WordCount:      len(words),
		ParagraphCount: count,
	}
}

// CountDomainTerms counts distinct recognized domain terms in the text
func CountDomainTerms(text string) int {
	seen := make(map[string]bool)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,;:!?()[]{}\"'")
		if merchantTerms[word] {
			seen[word] = true
		}
	}
	return len(seen)
}

// HasNumericPatterns reports whether the text contains currency,
// percentage or decimal-amount patterns
func HasNumericPatterns(text string) bool {
	return numericRegex.MatchString(text)
}

// ScannedThresholds are the tunable limits for detecting scanned PDFs.
// The values are empirical and come from configuration, not contracts.
type ScannedThresholds struct {
	MinWords      int
	MinAvgWordLen float64
	SampleChars   int
}

// LooksScanned reports whether parsed PDF text is likely the artifact of
// a scanned document: too few words, implausibly short words, or heavy
// non-word noise at the start.
func LooksScanned(text string, t ScannedThresholds) bool {
	words := strings.Fields(text)
	if len(words) < t.MinWords {
		return true
	}

	totalLen := 0
	for _, w := range words {
		totalLen += len(w)
	}
	if float64(totalLen)/float64(len(words)) < t.MinAvgWordLen {
		return true
	}

	sample := text
	if t.SampleChars > 0 && len(sample) > t.SampleChars {
		sample = sample[:t.SampleChars]
	}
	noise := len(nonWordRegex.FindAllString(sample, -1))
	return len(sample) > 0 && float64(noise)/float64(len(sample)) > 0.3
}

// ExpandQuery appends synonym expansions for recognized query terms.
// The original query terms always come first.
func ExpandQuery(query string) []string {
	terms := strings.Fields(strings.ToLower(query))
	expanded := make([]string, 0, len(terms)*2)
	seen := make(map[string]bool)

	add := func(term string) {
		if term != "" && !seen[term] {
			seen[term] = true
			expanded = append(expanded, term)
		}
	}

	for _, term := range terms {
		add(strings.Trim(term, ".,;:!?"))
	}
	for _, term := range terms {
		if synonyms, ok := queryVocabulary[strings.Trim(term, ".,;:!?")]; ok {
			for _, syn := range strings.Fields(synonyms) {
				add(syn)
			}
		}
	}
	return expanded
}

// IsRelevantCategory reports whether a category or query mentions one of
// the boosted categories
func IsRelevantCategory(s string) bool {
	lower := strings.ToLower(s)
	for category := range relevantCategories {
		if strings.Contains(lower, category) {
			return true
		}
	}
	return false
}
