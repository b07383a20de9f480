// Package service is the composition root: it exposes the case lifecycle
// operations consumed by the request layer and owns scheduling of case runs.
package service

import (
	"github.com/sentinelmcp/orchestrator/internal/adapter/audit"
	"github.com/sentinelmcp/orchestrator/internal/adapter/extract"
	"github.com/sentinelmcp/orchestrator/internal/adapter/index"
	"github.com/sentinelmcp/orchestrator/internal/agent"
	"github.com/sentinelmcp/orchestrator/internal/config"
	"github.com/sentinelmcp/orchestrator/internal/orchestrator"
	"github.com/sentinelmcp/orchestrator/internal/repository"
)

// Service wires the orchestrator core to its collaborators.
type Service struct {
	store     repository.Store
	orch      *orchestrator.Orchestrator
	pool      *orchestrator.Pool
	sink      audit.Sink
	policy    *config.Policy
	extractor extract.Extractor
	embedder  index.Embedder
	index     index.Index
	newRoster func() []agent.Agent
}

// New constructs the service. newRoster must return a fresh participant set
// per run; agent instances are stateful and never shared across cases.
func New(
	store repository.Store,
	orch *orchestrator.Orchestrator,
	pool *orchestrator.Pool,
	sink audit.Sink,
	policy *config.Policy,
	extractor extract.Extractor,
	embedder index.Embedder,
	idx index.Index,
	newRoster func() []agent.Agent,
) *Service {
	return &Service{
		store:     store,
		orch:      orch,
		pool:      pool,
		sink:      sink,
		policy:    policy,
		extractor: extractor,
		embedder:  embedder,
		index:     idx,
		newRoster: newRoster,
	}
}

// Wait blocks until in-flight case runs finish; used during shutdown.
func (s *Service) Wait() {
	s.pool.Wait()
}
