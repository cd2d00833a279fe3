// Command tracelens-server runs the demo API that exercises the
// tracelens SDK: traced chat completions, feedback scoring, and
// prompt-template completions.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	tracelens "github.com/tracelens/tracelens-go"
	"github.com/tracelens/tracelens-go/internal/provider"
	"github.com/tracelens/tracelens-go/internal/server"
)

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(log *zap.Logger) error {
	cfg, err := server.LoadConfig()
	if err != nil {
		return err
	}

	sinkCfg, err := tracelens.ConfigFromEnv()
	if err != nil {
		return err
	}
	metrics := server.NewPromMetrics(nil)
	sinkCfg.Logger = server.NewZapAdapter(log.Named("tracelens"))
	sinkCfg.Metrics = metrics

	client, err := tracelens.NewWithConfig(sinkCfg)
	if err != nil {
		return err
	}

	var prov provider.Provider
	if cfg.UseMockProvider {
		prov = provider.NewMock()
		log.Info("using mock completion provider")
	} else {
		var opts []provider.OpenAIOption
		if cfg.OpenAIBaseURL != "" {
			opts = append(opts, provider.WithBaseURL(cfg.OpenAIBaseURL))
		}
		prov = provider.NewOpenAI(cfg.OpenAIAPIKey, opts...)
	}

	prompts := tracelens.NewPromptRegistry()
	watchCtx, cancelWatch := context.WithCancel(context.Background())
	defer cancelWatch()
	if cfg.PromptsFile != "" {
		if err := prompts.LoadFile(cfg.PromptsFile); err != nil {
			return err
		}
		if err := prompts.Watch(watchCtx, cfg.PromptsFile, sinkCfg.Logger); err != nil {
			return err
		}
		log.Info("loaded prompt templates", zap.String("file", cfg.PromptsFile))
	}

	srv := server.New(cfg, log, client, prov, prompts, metrics)

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      srv.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.Addr))
		errCh <- httpServer.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown failed", zap.Error(err))
	}
	cancelWatch()

	// Drain buffered trace events before exit.
	if err := client.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		log.Warn("sink shutdown incomplete", zap.Error(err))
	}
	return nil
}
