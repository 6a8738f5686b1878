package services

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"unicode"

	"merchant-docs-platform/internal/config"
	"merchant-docs-platform/internal/database"
	"merchant-docs-platform/internal/logger"
	"merchant-docs-platform/models"

	"github.com/ledongthuc/pdf"
)

const mimeDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

var (
	blankLinesRegex = regexp.MustCompile(`\n{3,}`)
	spaceRunsRegex  = regexp.MustCompile(`[ \t]{2,}`)
	unsafeRegex     = regexp.MustCompile(`[^\p{L}\p{N}\s.,;:!?'"()\[\]\-_$%&/@#+*=<>]`)
)

// TextExtractor converts stored files into cleaned text. Every branch
// recovers locally: callers see empty text, never an error, and must
// treat empty output as insufficient content.
type TextExtractor struct {
	cfg  *config.Config
	ocr  *OCRClient
	docs database.DocumentStore
}

func NewTextExtractor(cfg *config.Config, ocr *OCRClient, docs database.DocumentStore) *TextExtractor {
	return &TextExtractor{cfg: cfg, ocr: ocr, docs: docs}
}

// Extract returns the document's text, extracting from the stored file
// on first call and caching the result back onto the document row.
func (e *TextExtractor) Extract(ctx context.Context, doc *models.Document) string {
	if strings.TrimSpace(doc.Content) != "" {
		return doc.Content
	}

	var text string
	switch {
	case doc.MimeType == "application/pdf":
		text = e.extractPDF(ctx, doc)
	case doc.MimeType == mimeDocx:
		text = e.extractDocx(doc.Path)
	case strings.HasPrefix(doc.MimeType, "text/"):
		text = e.readPlainText(doc.Path)
	default:
		text = e.extractUnknown(doc)
	}

	text = CleanExtractedText(text)

	if text != "" && e.docs != nil {
		// Cache-on-read; a failed write only means re-extraction next time
		if _, err := e.docs.Update(ctx, doc.ID, &models.DocumentPatch{Content: &text}); err != nil {
			logger.Warn("Failed to cache extracted content", "document_id", doc.ID, "error", err)
		}
	}
	return text
}

// extractPDF parses the PDF digitally and falls back to OCR when the
// result is too sparse or looks like a scan
func (e *TextExtractor) extractPDF(ctx context.Context, doc *models.Document) string {
	text, err := e.parsePDF(doc.Path)
	if err != nil {
		logger.Warn("PDF parse failed", "document_id", doc.ID, "error", err)
		text = ""
	}

	thresholds := ScannedThresholds{
		MinWords:      e.cfg.ScannedMinWords,
		MinAvgWordLen: e.cfg.ScannedMinAvgWordLen,
		SampleChars:   e.cfg.MinExtractedChars,
	}

	if len(text) >= e.cfg.MinExtractedChars && !LooksScanned(text, thresholds) {
		return text
	}

	if e.ocr == nil || !e.cfg.OCRServiceEnabled {
		return text
	}

	logger.Info("Parsed text too sparse, trying OCR",
		"document_id", doc.ID, "parsed_chars", len(text))

	ocrText, err := e.ocr.ExtractTextFromFile(ctx, doc.Path, doc.OriginalName)
	if err != nil {
		logger.Warn("OCR extraction failed", "document_id", doc.ID, "error", err)
		return text
	}
	if len(ocrText) > len(text) {
		return ocrText
	}
	return text
}

func (e *TextExtractor) parsePDF(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read PDF file: %w", err)
	}

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("failed to create PDF reader: %w", err)
	}

	var textBuilder strings.Builder
	pages := reader.NumPage()

	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		fonts := make(map[string]*pdf.Font)
		text, err := page.GetPlainText(fonts)
		if err != nil {
			logger.Debug("Failed to extract page text", "page", i, "error", err)
			continue
		}
		if textBuilder.Len() > 0 {
			textBuilder.WriteString("\n\n")
		}
		textBuilder.WriteString(text)
	}

	return textBuilder.String(), nil
}

// extractDocx pulls text out of word/document.xml inside the zip container
func (e *TextExtractor) extractDocx(path string) string {
	content, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("Failed to read docx file", "path", path, "error", err)
		return ""
	}

	reader, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		logger.Warn("Failed to open docx archive", "path", path, "error", err)
		return ""
	}

	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return ""
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return ""
		}
		return parseDocumentXML(raw)
	}
	return ""
}

type documentXML struct {
	Body struct {
		Paragraphs []struct {
			Runs []struct {
				Text []struct {
					Content string `xml:",chardata"`
				} `xml:"t"`
			} `xml:"r"`
		} `xml:"p"`
	} `xml:"body"`
}

func parseDocumentXML(content []byte) string {
	var doc documentXML
	if err := xml.Unmarshal(content, &doc); err != nil {
		return ""
	}

	var result strings.Builder
	for i, para := range doc.Body.Paragraphs {
		if i > 0 {
			result.WriteString("\n")
		}
		for _, run := range para.Runs {
			for _, text := range run.Text {
				result.WriteString(text.Content)
			}
		}
	}
	return result.String()
}

func (e *TextExtractor) readPlainText(path string) string {
	content, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("Failed to read text file", "path", path, "error", err)
		return ""
	}
	return string(content)
}

// extractUnknown attempts a raw read; binary-looking content degrades to
// a placeholder naming the file
func (e *TextExtractor) extractUnknown(doc *models.Document) string {
	content, err := os.ReadFile(doc.Path)
	if err != nil {
		return extractionPlaceholder(doc)
	}

	text := string(content)
	if mostlyPrintable(text) {
		return text
	}
	return extractionPlaceholder(doc)
}

func extractionPlaceholder(doc *models.Document) string {
	return fmt.Sprintf("Document: %s (%s). Content could not be extracted automatically.",
		doc.OriginalName, doc.MimeType)
}

func mostlyPrintable(text string) bool {
	if text == "" {
		return false
	}
	sample := text
	if len(sample) > 4096 {
		sample = sample[:4096]
	}

	printable := 0
	total := 0
	for _, r := range sample {
		total++
		if unicode.IsPrint(r) || unicode.IsSpace(r) {
			printable++
		}
	}
	return total > 0 && float64(printable)/float64(total) > 0.9
}

// CleanExtractedText normalizes line endings, collapses whitespace runs
// and strips characters outside a safe set
func CleanExtractedText(text string) string {
	if text == "" {
		return ""
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = unsafeRegex.ReplaceAllString(text, " ")
	text = spaceRunsRegex.ReplaceAllString(text, " ")
	text = blankLinesRegex.ReplaceAllString(text, "\n\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
