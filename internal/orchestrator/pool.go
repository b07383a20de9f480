package orchestrator

import (
	"context"
	"log"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Pool bounds concurrent case runs and guarantees at most one active run per
// case id. Independent cases share no mutable state and run in parallel.
type Pool struct {
	sem *semaphore.Weighted

	mu     sync.Mutex
	active map[string]context.CancelFunc
	wg     sync.WaitGroup
}

// NewPool returns a pool admitting up to maxConcurrent case runs.
func NewPool(maxConcurrent int) *Pool {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Pool{
		sem:    semaphore.NewWeighted(int64(maxConcurrent)),
		active: make(map[string]context.CancelFunc),
	}
}

// Submit schedules a run for the case. Returns false when a run for the same
// case is already in flight; the transcript ordering invariant forbids two
// concurrent runs of one case.
func (p *Pool) Submit(caseID string, run func(ctx context.Context)) bool {
	p.mu.Lock()
	if _, exists := p.active[caseID]; exists {
		p.mu.Unlock()
		return false
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.active[caseID] = cancel
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() {
			p.mu.Lock()
			delete(p.active, caseID)
			p.mu.Unlock()
			cancel()
		}()

		if err := p.sem.Acquire(ctx, 1); err != nil {
			log.Printf("WARN: case %s cancelled before starting: %v", caseID, err)
			return
		}
		defer p.sem.Release(1)
		run(ctx)
	}()
	return true
}

// Cancel requests cancellation of an in-flight run. The orchestrator honors
// it between turns only. Returns false when no run is active.
func (p *Pool) Cancel(caseID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	cancel, ok := p.active[caseID]
	if ok {
		cancel()
	}
	return ok
}

// Active reports whether the case has an in-flight run.
func (p *Pool) Active(caseID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.active[caseID]
	return ok
}

// Wait blocks until all in-flight runs finish.
func (p *Pool) Wait() {
	p.wg.Wait()
}
