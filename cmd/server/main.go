package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/docchat/internal/api"
	"github.com/dgallion1/docchat/internal/chat"
	"github.com/dgallion1/docchat/internal/chunker"
	"github.com/dgallion1/docchat/internal/config"
	"github.com/dgallion1/docchat/internal/ingest"
	"github.com/dgallion1/docchat/internal/llm"
	"github.com/dgallion1/docchat/internal/parser"
	"github.com/dgallion1/docchat/internal/store"
)

func main() {
	cfg := config.Load()
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Error("open database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	claude := llm.NewClient(llm.Config{
		APIKey:    cfg.AnthropicAPIKey,
		Model:     cfg.AnthropicModel,
		MaxTokens: cfg.MaxAnswerTokens,
		Timeout:   cfg.LLMTimeout,
		BaseURL:   cfg.AnthropicURL,
	})

	chatSvc := chat.NewService(st, claude, log, chat.Options{
		TopK:         cfg.RetrievalTopK,
		HistoryTurns: cfg.HistoryTurns,
		ExcerptBytes: cfg.ExcerptBytes,
	})

	// Initialize pipeline.
	orch := ingest.NewOrchestrator(st, log, ingest.Options{
		Workers:   cfg.WorkerCount,
		QueueSize: cfg.MaxQueueSize,
		JobTTL:    cfg.JobTTL,
		Chunk: chunker.Config{
			ChunkSize:    cfg.ChunkSize,
			ChunkOverlap: cfg.ChunkOverlap,
			MinChunk:     cfg.MinChunk,
		},
		Parser: parser.Options{PDFFallback: cfg.PDFFallbackPdftotext},
	})
	orch.Start(ctx)

	srv := api.NewServer(st, chatSvc, orch, claude, log, cfg)

	// A chat request may wait on every retry of the model call.
	writeTimeout := time.Duration(llm.MaxRetries+1)*cfg.LLMTimeout + 30*time.Second
	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("http shutdown", "error", err)
		}
		orch.Stop()
	}()

	log.Info("starting docchat", "port", cfg.Port, "db", cfg.DBPath, "model", cfg.AnthropicModel)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	<-done
}
