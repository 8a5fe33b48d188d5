package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/auralabs/aura/backend/internal/config"
	"github.com/auralabs/aura/backend/internal/handler"
	"github.com/auralabs/aura/backend/internal/service/ai"
	"github.com/auralabs/aura/backend/internal/service/memory"
	"github.com/auralabs/aura/backend/internal/service/orchestrator"
	"github.com/auralabs/aura/backend/internal/service/safety"
	"github.com/auralabs/aura/backend/internal/service/session"
	"github.com/auralabs/aura/backend/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	st, err := openStore(cfg.Memory.DataDir)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Printf("failed to close store: %v", err)
		}
	}()

	cache := memory.NewCache(cfg.Memory.CacheTTL)
	if err := cache.StartSweeper(ctx, cfg.Memory.SweepInterval); err != nil {
		log.Printf("warning: cache sweeper not started: %v", err)
	}

	sessions := session.NewManager(st.Conversations(), st.Messages(), cfg.Chat.HistoryLimit)
	monitor := safety.NewMonitor(st.Alerts())

	// Initialize AI service
	var pipeline *orchestrator.Pipeline
	if cfg.AI.Enabled() {
		aiService, err := ai.NewService(ctx, cfg.AI)
		if err != nil {
			log.Printf("warning: failed to initialize AI service: %v", err)
			log.Println("continuing without chat functionality")
		} else {
			log.Println("AI service initialized successfully")
			consolidator := memory.NewConsolidator(st.Memories(), cache, aiService)
			var refiner orchestrator.Refiner
			if cfg.Chat.SpeechRefine {
				refiner = aiService
			}
			pipeline = orchestrator.NewPipeline(sessions, cache, st.Memories(), monitor, consolidator, aiService, refiner)
		}
	} else {
		log.Println("model credentials not configured, chat endpoints answer 503")
	}

	router := handler.NewRouter(pipeline, sessions, st)

	startServer(ctx, cfg.Server, router)
}

// openStore selects the persistence backend. A configured data directory
// selects the on-disk store; otherwise everything lives in process memory.
func openStore(dataDir string) (store.Store, error) {
	if dataDir == "" {
		log.Println("DATA_DIR not set, using in-memory store")
		return store.NewMemStore(), nil
	}
	log.Printf("opening document store at %s", dataDir)
	return store.OpenBadger(dataDir)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Aura backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
