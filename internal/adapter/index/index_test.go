package index

import (
	"context"
	"testing"
)

func seedIndex(t *testing.T) (*Memory, *HashEmbedder) {
	t.Helper()
	emb := NewHashEmbedder()
	idx := NewMemory()
	chunks := []Chunk{
		{ChunkID: "a-0", DocID: "a", Source: "registry.txt", Text: "ACME sarl identity registration director records"},
		{ChunkID: "a-1", DocID: "a", Source: "registry.txt", Text: "ACME sarl branch offices and identity filings"},
		{ChunkID: "b-0", DocID: "b", Source: "filings.txt", Text: "tax declarations and revenue figures for ACME"},
		{ChunkID: "c-0", DocID: "c", Source: "news.txt", Text: "unrelated weather report for the coastal region"},
	}
	for _, c := range chunks {
		vec, err := emb.Embed(context.Background(), c.Text)
		if err != nil {
			t.Fatalf("Embed failed: %v", err)
		}
		if err := idx.Add(context.Background(), c, vec); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}
	return idx, emb
}

func TestSearchRanksByRelevance(t *testing.T) {
	idx, emb := seedIndex(t)
	vec, err := emb.Embed(context.Background(), "ACME sarl identity records")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	hits, err := idx.Search(context.Background(), vec, 3, nil)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("expected 3 hits, got %d", len(hits))
	}
	if hits[0].Chunk.DocID != "a" {
		t.Fatalf("expected registry chunk first, got %+v", hits[0].Chunk)
	}
	for i := 1; i < len(hits); i++ {
		if hits[i].Score > hits[i-1].Score {
			t.Fatalf("hits not ordered by score: %+v", hits)
		}
	}
}

func TestSearchAppliesSourceFilter(t *testing.T) {
	idx, emb := seedIndex(t)
	vec, _ := emb.Embed(context.Background(), "ACME")
	hits, err := idx.Search(context.Background(), vec, 10, map[string]string{"source": "filings.txt"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 1 || hits[0].Chunk.Source != "filings.txt" {
		t.Fatalf("filter not applied: %+v", hits)
	}
}

func TestSearchRejectsNonPositiveK(t *testing.T) {
	idx, emb := seedIndex(t)
	vec, _ := emb.Embed(context.Background(), "ACME")
	if _, err := idx.Search(context.Background(), vec, 0, nil); err == nil {
		t.Fatalf("expected error for k=0")
	}
}

func TestAddRejectsEmptyChunk(t *testing.T) {
	idx := NewMemory()
	if err := idx.Add(context.Background(), Chunk{}, []float32{1}); err == nil {
		t.Fatalf("expected error for missing chunk id")
	}
	if err := idx.Add(context.Background(), Chunk{ChunkID: "x"}, nil); err == nil {
		t.Fatalf("expected error for empty vector")
	}
}

func TestEmbedIsDeterministic(t *testing.T) {
	emb := NewHashEmbedder()
	a, _ := emb.Embed(context.Background(), "ACME sarl identity")
	b, _ := emb.Embed(context.Background(), "ACME sarl identity")
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("embedding differs at %d", i)
		}
	}
}

func TestDiversifyBreaksSourceRuns(t *testing.T) {
	hits := []Hit{
		{Chunk: Chunk{ChunkID: "a-0", Source: "registry.txt"}, Score: 0.9},
		{Chunk: Chunk{ChunkID: "a-1", Source: "registry.txt"}, Score: 0.8},
		{Chunk: Chunk{ChunkID: "b-0", Source: "filings.txt"}, Score: 0.7},
		{Chunk: Chunk{ChunkID: "c-0", Source: "news.txt"}, Score: 0.6},
	}
	out := Diversify(hits)
	if len(out) != 4 {
		t.Fatalf("diversify must not drop hits, got %d", len(out))
	}
	for i := 1; i < 3; i++ {
		if out[i].Chunk.Source == out[i-1].Chunk.Source {
			t.Fatalf("consecutive hits share a source: %+v", out)
		}
	}
	if out[0].Chunk.ChunkID != "a-0" {
		t.Fatalf("top hit must stay first, got %+v", out[0].Chunk)
	}
}

func TestDiversifyKeepsShortLists(t *testing.T) {
	hits := []Hit{
		{Chunk: Chunk{ChunkID: "a-0", Source: "x"}, Score: 0.9},
		{Chunk: Chunk{ChunkID: "a-1", Source: "x"}, Score: 0.8},
	}
	out := Diversify(hits)
	if len(out) != 2 || out[0].Chunk.ChunkID != "a-0" {
		t.Fatalf("short lists must pass through unchanged: %+v", out)
	}
}
