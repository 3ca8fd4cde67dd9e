package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/user/deckhand/internal/compose"
	"github.com/user/deckhand/internal/dedupe"
	"github.com/user/deckhand/internal/delivery"
	"github.com/user/deckhand/internal/extract"
	"github.com/user/deckhand/internal/poller"
	"github.com/user/deckhand/internal/router"
	"github.com/user/deckhand/internal/session"
	"github.com/user/deckhand/internal/slack"
	"github.com/user/deckhand/internal/state"
	"github.com/user/deckhand/internal/sweeper"
	"github.com/user/deckhand/internal/telegram"
	"github.com/user/deckhand/internal/webhook"
	"github.com/user/deckhand/pkg/generate/slidespeak"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the deckhand daemon",
	RunE:  runServe,
}

func writePIDFile(dataDir string) (string, error) {
	pidPath := filepath.Join(dataDir, "deckhand.pid")
	pid := os.Getpid()
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return "", fmt.Errorf("write PID file: %w", err)
	}
	return pidPath, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	// Write PID file
	pidPath, err := writePIDFile(cfg.DataDir)
	if err != nil {
		return err
	}
	defer os.Remove(pidPath)

	// Stores
	sessions := session.NewStore()
	transcript := state.NewLog(cfg.DataDir)
	window := dedupe.New(time.Duration(cfg.Dedupe.WindowSecs) * time.Second)

	// Platform clients and per-platform multiplexers
	slackClient := slack.New(cfg.Slack.BotToken)
	responders := delivery.NewRegistry()
	responders.Register("slack", slackClient)
	downloads := delivery.NewDownloads()
	downloads.Register("slack", slackClient)

	// File extraction
	transcriber := extract.NewTranscriber(cfg.Whisper.Language, cfg.Whisper.Model)
	extractor := extract.New(downloads, transcriber)

	// Payload composer
	composer, err := compose.New(cfg.Compose.TokenBudget)
	if err != nil {
		return fmt.Errorf("create composer: %w", err)
	}

	// Generation service and poller
	service := slidespeak.New(&slidespeak.Config{
		BaseURL:     cfg.Generator.BaseURL,
		APIKey:      cfg.Generator.APIKey,
		Slides:      cfg.Generator.Slides,
		Template:    cfg.Generator.Template,
		Tone:        cfg.Generator.Tone,
		Verbosity:   cfg.Generator.Verbosity,
		FetchImages: cfg.Generator.FetchImages,
	})
	jobs := poller.New(service,
		poller.WithInterval(time.Duration(cfg.Generator.PollIntervalSecs)*time.Second),
		poller.WithCeiling(time.Duration(cfg.Generator.TimeoutSecs)*time.Second),
	)

	// Router and queue
	rtr := router.New(window, sessions, extractor, responders, composer, jobs, transcript)
	queue := router.NewQueue(rtr, int64(cfg.MaxConcurrent))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	queue.Start(ctx)
	defer queue.Stop()

	slog.Info("deckhand started",
		"data_dir", cfg.DataDir,
		"log_level", cfg.LogLevel,
		"max_concurrent", cfg.MaxConcurrent,
		"dedupe_window_secs", cfg.Dedupe.WindowSecs,
		"generator_base_url", cfg.Generator.BaseURL,
		"pid_file", pidPath,
	)

	// Session sweeper
	sweep := sweeper.New(sessions, cfg.Session.SweepEvery,
		time.Duration(cfg.Session.MaxIdleMins)*time.Minute)
	if err := sweep.Start(); err != nil {
		return fmt.Errorf("start sweeper: %w", err)
	}
	defer sweep.Stop()

	// Telegram adapter
	if cfg.Telegram.Token != "" {
		adapter, err := telegram.New(cfg.Telegram.Token, queue)
		if err != nil {
			return fmt.Errorf("create telegram adapter: %w", err)
		}
		go adapter.Start(ctx)
		responders.Register("telegram", adapter)
		downloads.Register("telegram", adapter)
		slog.Info("telegram adapter started")
	} else {
		slog.Warn("telegram adapter disabled (no token)")
	}

	// Webhook HTTP server
	if cfg.HTTP.Enabled {
		webhookSrv := webhook.NewServer(queue, slackClient, transcript)
		httpServer := &http.Server{
			Addr:    cfg.HTTP.Listen,
			Handler: webhookSrv,
		}
		go func() {
			slog.Info("webhook server started", "listen", cfg.HTTP.Listen)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("webhook server error", "error", err)
			}
		}()
		go func() {
			<-ctx.Done()
			httpServer.Close()
		}()
	} else {
		slog.Warn("webhook server disabled")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		sig := <-sigChan
		if sig == syscall.SIGHUP {
			slog.Info("received SIGHUP, restarting")
			execPath, err := os.Executable()
			if err != nil {
				slog.Error("failed to get executable path", "error", err)
				continue
			}
			// Clean up PID file before re-exec
			os.Remove(pidPath)
			if err := syscall.Exec(execPath, os.Args, os.Environ()); err != nil {
				slog.Error("failed to re-exec", "error", err)
				// Re-write PID file since we failed to re-exec
				if _, writeErr := writePIDFile(cfg.DataDir); writeErr != nil {
					slog.Error("failed to re-write PID file", "error", writeErr)
				}
				continue
			}
		}
		// SIGINT or SIGTERM
		slog.Info("shutting down", "signal", sig)
		return nil
	}
}
