package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/sentinelmcp/orchestrator/internal/adapter/index"
	"github.com/sentinelmcp/orchestrator/internal/domain"
)

// Retriever issues a semantic-search query against the external index and
// attaches citations. It caches its last query embedding; the cache is part
// of the persisted case state.
type Retriever struct {
	embedder index.Embedder
	index    index.Index

	state retrieverState
}

type retrieverState struct {
	LastQuery  string    `json:"last_query,omitempty"`
	LastVector []float32 `json:"last_vector,omitempty"`
}

// NewRetriever returns a retriever over the given embedder and index.
func NewRetriever(embedder index.Embedder, idx index.Index) *Retriever {
	return &Retriever{embedder: embedder, index: idx}
}

func (r *Retriever) Descriptor() domain.AgentDescriptor {
	return domain.AgentDescriptor{
		ID:           domain.AgentRetrieve,
		Capabilities: []string{domain.CapabilityRetrieves},
	}
}

// Eligible is true once a plan exists and no retrieval followed it.
func (r *Retriever) Eligible(cc *Context) bool {
	plan := cc.Transcript.LastBy(domain.AgentPlanner)
	if plan == nil {
		return false
	}
	retrieved := cc.Transcript.LastBy(domain.AgentRetrieve)
	return retrieved == nil || retrieved.Turn < plan.Turn
}

// Act embeds the case query, searches top-k with diversity re-ranking, and
// reports citations.
func (r *Retriever) Act(ctx context.Context, cc *Context) (domain.Contribution, error) {
	topK := r.planTopK(cc.Transcript)

	vector := r.state.LastVector
	if r.state.LastQuery != cc.Query || len(vector) == 0 {
		var err error
		vector, err = r.embedder.Embed(ctx, cc.Query)
		if err != nil {
			return domain.Contribution{}, fmt.Errorf("embed query: %w", err)
		}
		r.state = retrieverState{LastQuery: cc.Query, LastVector: vector}
	}

	hits, err := r.index.Search(ctx, vector, topK, nil)
	if err != nil {
		return domain.Contribution{}, fmt.Errorf("search index: %w", err)
	}
	hits = index.Diversify(hits)

	if len(hits) == 0 {
		return domain.Contribution{
			Kind: domain.ContributionMessage,
			Text: "retrieved 0 passages; corpus has no matching evidence; handoff: analyst",
		}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "retrieved %d passages:", len(hits))
	for _, h := range hits {
		snippet := truncateRunes(h.Chunk.Text, 120)
		fmt.Fprintf(&b, " [%s] %s;", h.Chunk.Source, snippet)
	}
	b.WriteString(" handoff: analyst")
	return domain.Contribution{Kind: domain.ContributionMessage, Text: b.String()}, nil
}

// truncateRunes cuts s to at most max bytes without splitting a rune.
func truncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// planTopK parses the top_k constraint from the planner's message.
func (r *Retriever) planTopK(t domain.Transcript) int {
	plan := t.LastBy(domain.AgentPlanner)
	if plan != nil {
		for _, field := range strings.Fields(plan.Text) {
			if v, ok := strings.CutPrefix(field, "top_k="); ok {
				if k, err := strconv.Atoi(strings.TrimRight(v, ";")); err == nil && k > 0 {
					return k
				}
			}
		}
	}
	return 5
}

func (r *Retriever) MarshalState() (json.RawMessage, error) {
	if r.state.LastQuery == "" {
		return nil, nil
	}
	return json.Marshal(r.state)
}

func (r *Retriever) RestoreState(state json.RawMessage) error {
	return json.Unmarshal(state, &r.state)
}
