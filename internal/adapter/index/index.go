// Package index defines the embedding and semantic-search contracts consumed
// by the retriever and the ingest pipeline. The production vector store is
// external; the in-memory implementation here serves tests and local runs.
package index

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"sync"
)

// Chunk is one indexed passage of a document.
type Chunk struct {
	ChunkID  string            `json:"chunk_id"`
	DocID    string            `json:"doc_id"`
	Source   string            `json:"source"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Hit is one search result with its relevance score.
type Hit struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Index stores chunk vectors and answers top-k similarity queries with
// optional metadata filters.
type Index interface {
	Add(ctx context.Context, chunk Chunk, vector []float32) error
	Search(ctx context.Context, vector []float32, k int, filters map[string]string) ([]Hit, error)
}

// IndexError is a typed retrieval failure.
type IndexError struct {
	Op     string
	Reason string
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("index %s failed: %s", e.Op, e.Reason)
}

const hashDim = 256

// HashEmbedder is a deterministic token-hashing embedder. It is not a
// semantic model; it exists so retrieval is exercisable without an external
// embedding service.
type HashEmbedder struct{}

// NewHashEmbedder returns a deterministic embedder.
func NewHashEmbedder() *HashEmbedder { return &HashEmbedder{} }

// Embed hashes lower-cased tokens into a fixed-dimension normalized vector.
func (e *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, hashDim)
	for _, token := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(token))
		vec[h.Sum32()%hashDim]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec, nil
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec, nil
}

type entry struct {
	chunk  Chunk
	vector []float32
}

// Memory is an in-memory Index safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	entries []entry
}

// NewMemory returns an empty in-memory index.
func NewMemory() *Memory { return &Memory{} }

// Add stores a chunk vector.
func (m *Memory) Add(_ context.Context, chunk Chunk, vector []float32) error {
	if chunk.ChunkID == "" {
		return &IndexError{Op: "add", Reason: "missing chunk id"}
	}
	if len(vector) == 0 {
		return &IndexError{Op: "add", Reason: "empty vector"}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry{chunk: chunk, vector: vector})
	return nil
}

// Search returns the k most similar chunks matching all filters, ordered by
// score descending with chunk id as a deterministic tie-break.
func (m *Memory) Search(_ context.Context, vector []float32, k int, filters map[string]string) ([]Hit, error) {
	if k <= 0 {
		return nil, &IndexError{Op: "search", Reason: "k must be positive"}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	hits := make([]Hit, 0, len(m.entries))
	for _, e := range m.entries {
		if !matches(e.chunk, filters) {
			continue
		}
		hits = append(hits, Hit{Chunk: e.chunk, Score: cosine(vector, e.vector)})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Chunk.ChunkID < hits[j].Chunk.ChunkID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func matches(c Chunk, filters map[string]string) bool {
	for key, want := range filters {
		if key == "source" && c.Source == want {
			continue
		}
		if got, ok := c.Metadata[key]; !ok || got != want {
			return false
		}
	}
	return true
}

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// Diversify re-ranks hits so consecutive results come from distinct sources
// where possible, without changing the score ordering within a source.
func Diversify(hits []Hit) []Hit {
	if len(hits) < 3 {
		return hits
	}
	out := make([]Hit, 0, len(hits))
	remaining := append([]Hit(nil), hits...)
	lastSource := ""
	for len(remaining) > 0 {
		picked := -1
		for i, h := range remaining {
			if h.Chunk.Source != lastSource {
				picked = i
				break
			}
		}
		if picked == -1 {
			picked = 0
		}
		out = append(out, remaining[picked])
		lastSource = remaining[picked].Chunk.Source
		remaining = append(remaining[:picked], remaining[picked+1:]...)
	}
	return out
}
