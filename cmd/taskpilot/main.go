// Command taskpilot runs the task-management server: a REST API over the
// task store plus a natural-language chat interface driven by an LLM tool
// loop.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/taskpilot-ai/taskpilot/internal/agent"
	"github.com/taskpilot-ai/taskpilot/internal/config"
	"github.com/taskpilot-ai/taskpilot/internal/llm"
	"github.com/taskpilot-ai/taskpilot/internal/logger"
	"github.com/taskpilot-ai/taskpilot/internal/session"
	"github.com/taskpilot-ai/taskpilot/internal/task"
	"github.com/taskpilot-ai/taskpilot/internal/web"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "taskpilot: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", config.GetConfigPath(), "path to the configuration file")
	listenAddr := flag.String("listen", "", "listen address, overrides the configured value")
	dbPath := flag.String("db", "", "sqlite database path, overrides the configured value")
	memoryStore := flag.Bool("memory", false, "use an in-memory task store instead of sqlite")
	logLevel := flag.String("log-level", "", "log level: debug, info, warn, error or none")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	if *dbPath != "" {
		cfg.DatabasePath = *dbPath
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	if err := logger.Init(logger.ParseLevel(cfg.LogLevel), cfg.LogPath); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logger.Global().Close()

	var store task.Store
	if *memoryStore {
		store = task.NewMemoryStore()
	} else {
		sqliteStore, err := task.NewSQLiteStore(cfg.DatabasePath)
		if err != nil {
			return err
		}
		store = sqliteStore
	}
	defer store.Close()

	llmClient, err := llm.NewClient(cfg)
	if err != nil {
		return err
	}
	logger.Info("Using model %s via provider %s", llmClient.GetModelName(), cfg.Provider.Name)

	sessions := session.NewManager(cfg.HistoryLimit, cfg.SessionIdleTimeout())
	defer sessions.Close()

	orchestrator := agent.New(llmClient, agent.NewTaskRegistry(store), sessions, &agent.Options{
		Temperature:   cfg.Temperature,
		MaxTokens:     cfg.MaxTokens,
		MaxIterations: cfg.MaxToolIterations,
		LLMTimeout:    cfg.LLMTimeout(),
		ToolTimeout:   cfg.ToolTimeout(),
	})

	server := web.NewServer(cfg.ListenAddr, store, orchestrator)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info("Received %s, shutting down", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
