package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sentinelmcp/orchestrator/internal/adapter/audit"
	"github.com/sentinelmcp/orchestrator/internal/adapter/extract"
	"github.com/sentinelmcp/orchestrator/internal/adapter/index"
	"github.com/sentinelmcp/orchestrator/internal/adapter/provider"
	"github.com/sentinelmcp/orchestrator/internal/agent"
	"github.com/sentinelmcp/orchestrator/internal/config"
	"github.com/sentinelmcp/orchestrator/internal/gate"
	"github.com/sentinelmcp/orchestrator/internal/orchestrator"
	"github.com/sentinelmcp/orchestrator/internal/repository"
	"github.com/sentinelmcp/orchestrator/internal/selector"
	"github.com/sentinelmcp/orchestrator/internal/service"
	"github.com/sentinelmcp/orchestrator/internal/termination"
	handler "github.com/sentinelmcp/orchestrator/internal/transport/http"
	"github.com/sentinelmcp/orchestrator/policy"
)

const defaultTopK = 5

func main() {
	// Load configuration
	cfg := config.Load()

	log.Printf("Starting orchestrator...")
	log.Printf("HTTP Port: %d", cfg.HTTPPort)
	log.Printf("Database: %s", cfg.DatabaseURL)

	policyCfg, err := config.LoadPolicyFile(cfg.PolicyFile)
	if err != nil {
		log.Fatalf("Failed to load policy file: %v", err)
	}

	// Initialize store
	db, err := repository.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer db.Close()

	// Initialize moderation engine
	ctx := context.Background()
	moderator, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		log.Fatalf("Failed to initialize policy engine: %v", err)
	}

	// Initialize tool provider behind the circuit breaker
	prov := provider.NewBreaker(
		provider.NewMock(),
		policyCfg.Breaker.TripThreshold,
		time.Duration(policyCfg.Breaker.CooldownMs)*time.Millisecond,
	)

	// Audit sink
	sink := audit.NewStoreSink(db, 256)
	defer sink.Close()

	// Retrieval stack
	embedder := index.NewHashEmbedder()
	idx := index.NewMemory()
	extractor := extract.NewPlainText()

	// Core engine
	g := gate.New(policyCfg, moderator, prov, db, sink, cfg.ProviderTimeout)
	sel := selector.New(policyCfg.Selector)
	eval := termination.New(policyCfg)
	orch := orchestrator.New(db, g, sel, eval, sink)
	pool := orchestrator.NewPool(cfg.MaxConcurrentCases)

	svc := service.New(db, orch, pool, sink, policyCfg, extractor, embedder, idx, func() []agent.Agent {
		return agent.NewRoster(embedder, idx, moderator, defaultTopK)
	})

	// Background approval-expiry monitor
	stopSweeper := svc.StartApprovalSweeper(30 * time.Second)
	defer stopSweeper()

	// HTTP server
	e := handler.NewServer(svc)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Printf("API started on port %d", cfg.HTTPPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down orchestrator...")

	// Graceful shutdown: stop accepting requests, then drain in-flight runs.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown server gracefully: %v", err)
	}
	svc.Wait()

	log.Println("Orchestrator stopped")
}
