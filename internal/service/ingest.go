package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/sentinelmcp/orchestrator/internal/adapter/audit"
	"github.com/sentinelmcp/orchestrator/internal/adapter/extract"
	"github.com/sentinelmcp/orchestrator/internal/adapter/index"
	"github.com/sentinelmcp/orchestrator/internal/domain"
)

const (
	chunkSize    = 1500
	chunkOverlap = 150
)

// IngestResult summarizes one ingested document.
type IngestResult struct {
	DocID  string `json:"doc_id"`
	Source string `json:"source"`
	Chunks int    `json:"chunks"`
}

// IngestDocument extracts, chunks, embeds, and indexes one document.
func (s *Service) IngestDocument(ctx context.Context, data []byte, name string) (*IngestResult, error) {
	text, meta, err := s.extractor.Extract(ctx, data, name)
	if err != nil {
		return nil, err
	}

	docID := "doc_" + uuid.New().String()[:8]
	chunks := extract.Chunk(text, chunkSize, chunkOverlap)
	for i, chunk := range chunks {
		vector, err := s.embedder.Embed(ctx, chunk)
		if err != nil {
			return nil, fmt.Errorf("failed to embed chunk %d of %s: %w", i, name, err)
		}
		err = s.index.Add(ctx, index.Chunk{
			ChunkID:  fmt.Sprintf("%s-%d", docID, i),
			DocID:    docID,
			Source:   name,
			Text:     chunk,
			Metadata: meta,
		}, vector)
		if err != nil {
			return nil, fmt.Errorf("failed to index chunk %d of %s: %w", i, name, err)
		}
	}

	result := &IngestResult{DocID: docID, Source: name, Chunks: len(chunks)}
	s.sink.Emit(audit.NewEvent(docID, domain.EventTypeDocumentIngested, result))
	return result, nil
}

// Search answers an ad-hoc corpus query outside any case, with the same
// source diversification the retriever applies.
func (s *Service) Search(ctx context.Context, query string, k int, filters map[string]string) ([]index.Hit, error) {
	if query == "" {
		return nil, fmt.Errorf("query must not be empty")
	}
	if k <= 0 {
		k = 5
	}
	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	hits, err := s.index.Search(ctx, vector, k, filters)
	if err != nil {
		return nil, err
	}
	return index.Diversify(hits), nil
}
