// Package extract defines the document text-extraction contract. Real OCR
// engines live behind this interface; the orchestrator only consumes it.
package extract

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ExtractionError is a typed extraction failure.
type ExtractionError struct {
	Name   string
	Reason string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed for %s: %s", e.Name, e.Reason)
}

// Extractor turns raw document bytes into text plus metadata.
type Extractor interface {
	Extract(ctx context.Context, data []byte, name string) (string, map[string]string, error)
}

// PlainText is an Extractor for UTF-8 text documents.
type PlainText struct{}

// NewPlainText returns a plain-text extractor.
func NewPlainText() *PlainText { return &PlainText{} }

// Extract validates the payload is UTF-8 text and returns it unchanged.
func (p *PlainText) Extract(_ context.Context, data []byte, name string) (string, map[string]string, error) {
	if len(data) == 0 {
		return "", nil, &ExtractionError{Name: name, Reason: "empty document"}
	}
	if !utf8.Valid(data) {
		return "", nil, &ExtractionError{Name: name, Reason: "not valid utf-8"}
	}
	text := string(data)
	meta := map[string]string{
		"source": name,
		"chars":  fmt.Sprintf("%d", len(text)),
	}
	return text, meta, nil
}

// Chunk splits text into overlapping windows for indexing. Splitting prefers
// whitespace boundaries near the window edge.
func Chunk(text string, size, overlap int) []string {
	if size <= 0 {
		return nil
	}
	if overlap >= size {
		overlap = size / 2
	}

	var chunks []string
	runes := []rune(text)
	for start := 0; start < len(runes); {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		} else {
			// Back off to the nearest whitespace to avoid mid-word splits.
			cut := end
			for cut > start && !isSpace(runes[cut-1]) {
				cut--
			}
			if cut > start+size/2 {
				end = cut
			}
		}
		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}
		start = end - overlap
		if start < 0 {
			start = 0
		}
	}
	return chunks
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t' || r == '\r'
}
