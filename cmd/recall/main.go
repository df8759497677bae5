package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/recall-ai/cli/config"
	"github.com/recall-ai/cli/internal/chat"
	"github.com/recall-ai/cli/internal/db"
	"github.com/recall-ai/cli/internal/documents"
	"github.com/recall-ai/cli/internal/embeddings"
	"github.com/recall-ai/cli/internal/gateway"
	"github.com/recall-ai/cli/internal/memorystore"
	"github.com/recall-ai/cli/internal/rag"
	"github.com/recall-ai/cli/internal/server"
	"github.com/recall-ai/cli/internal/vectorindex"
	chromemindex "github.com/recall-ai/cli/internal/vectorindex/chromem"
	pgvectorindex "github.com/recall-ai/cli/internal/vectorindex/pgvector"
)

func main() {
	migrate := flag.Bool("migrate", false, "run database migrations and exit")
	flag.Parse()

	// A missing .env is fine; the config file and environment still apply.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	database, err := db.New(db.Config{
		ConnString: cfg.Database.ConnectionString,
		MaxConns:   cfg.Database.MaxConns,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	if err := database.Migrate(context.Background()); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	if *migrate {
		fmt.Println("Migrations applied.")
		return
	}

	embedder := embeddings.NewTextEmbedder(
		cfg.Embeddings.BaseURL,
		cfg.Embeddings.Model,
		cfg.Embeddings.Dimensions,
	)

	var index vectorindex.Index
	switch cfg.Vector.Backend {
	case "chromem":
		index = chromemindex.New(embedder)
	case "pgvector":
		index = pgvectorindex.New(database.Pool(), embedder)
	default:
		log.Fatalf("Unknown vector backend %q", cfg.Vector.Backend)
	}

	memories := memorystore.NewClient(memorystore.Config{
		BaseURL: cfg.Memory.BaseURL,
		APIKey:  cfg.Memory.APIKey,
	})

	generator := gateway.NewClient(gateway.Config{
		BaseURL: cfg.Gateway.BaseURL,
		APIKey:  cfg.Gateway.APIKey,
	})

	ingestor := documents.NewIngestor(
		documents.NewLoader(),
		embedder,
		index,
		cfg.Processing.ChunkSize,
		cfg.Processing.ChunkOverlap,
	)

	assembler := rag.NewAssembler(index, memories, cfg.Processing.TopK, cfg.Processing.MemoryLimit)

	sink := chat.NewSink(database, memories)
	orchestrator := chat.NewOrchestrator(assembler, generator, sink)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: server.New(database, ingestor, index, orchestrator),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("[SERVER] Listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("[SERVER] Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[SERVER] Shutdown error: %v", err)
	}

	// Drain queued transcript and memory writes before exiting.
	sink.Close()
}
