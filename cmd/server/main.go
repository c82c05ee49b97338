// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Traveldesk Mailroom — email-to-ticket ingestion service
//
// Entry point for the mailroom service. It:
//  1. Loads configuration from config.yaml
//  2. Connects to PostgreSQL and Redis
//  3. Builds provider adapters (Gmail, Microsoft Graph, IMAP)
//  4. Runs a periodic sync loop over all active inboxes
//  5. Serves the on-demand sync trigger and health endpoints
//  6. Handles graceful shutdown on SIGTERM/SIGINT
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/traveldesk/mailroom/internal/config"
	"github.com/traveldesk/mailroom/internal/dedup"
	"github.com/traveldesk/mailroom/internal/httpapi"
	"github.com/traveldesk/mailroom/internal/outbox"
	"github.com/traveldesk/mailroom/internal/provider"
	"github.com/traveldesk/mailroom/internal/router"
	"github.com/traveldesk/mailroom/internal/store"
	"github.com/traveldesk/mailroom/internal/syncer"
)

func main() {
	// Structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("starting traveldesk mailroom service")

	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded",
		"sync_interval", cfg.SyncInterval,
		"reply_transport", cfg.ReplyTransport,
		"dedup", cfg.DedupEnabled,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Connect to PostgreSQL ---
	pgPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to create Postgres pool", "error", err)
		os.Exit(1)
	}
	defer pgPool.Close()

	if err := pgPool.Ping(ctx); err != nil {
		slog.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to PostgreSQL")

	repo, err := store.New(ctx, pgPool)
	if err != nil {
		slog.Error("failed to initialise store", "error", err)
		os.Exit(1)
	}

	// --- Connect to Redis ---
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("invalid REDIS_URL", "error", err)
		os.Exit(1)
	}
	rdb := redis.NewClient(opt)

	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to Redis")

	// --- Reply dispatch ---
	var replies router.ReplySender
	switch cfg.ReplyTransport {
	case "queue":
		replies = outbox.NewQueuePublisher(rdb, cfg.RepliesQueue)
	default:
		replies = outbox.NewSMTPSender(outbox.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			User:     cfg.SMTP.User,
			Password: cfg.SMTP.Password,
		})
	}

	// --- Provider adapters ---
	var graphProvider provider.Provider
	if cfg.Graph.TenantID != "" {
		creds := &clientcredentials.Config{
			ClientID:     cfg.Graph.ClientID,
			ClientSecret: cfg.Graph.ClientSecret,
			TokenURL:     fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", cfg.Graph.TenantID),
			Scopes:       []string{"https://graph.microsoft.com/.default"},
		}
		graphProvider = provider.NewGraph(creds.Client(ctx), provider.DefaultGraphBaseURL)
	}

	var gmailProvider provider.Provider
	if cfg.Gmail.CredentialsFile != "" {
		gmailProvider, err = provider.NewGmail(ctx, cfg.Gmail.CredentialsFile, cfg.Gmail.TokenFile)
		if err != nil {
			slog.Error("failed to initialise gmail provider", "error", err)
			os.Exit(1)
		}
	}

	registry := provider.NewRegistry(gmailProvider, graphProvider, provider.NewIMAP())

	// --- Pipeline ---
	var filter syncer.DedupFilter
	if cfg.DedupEnabled {
		filter = dedup.NewFilter(rdb)
	}

	route := router.New(repo, repo, repo, replies)

	sync := syncer.New(syncer.Config{
		Inboxes:      repo,
		Fetcher:      registry,
		Processor:    route,
		Dedup:        filter,
		SyncInterval: cfg.SyncInterval,
	})
	sync.StartPeriodicSync(ctx)

	// --- HTTP surface ---
	handler := httpapi.NewHandler(sync, map[string]httpapi.Pinger{
		"postgres": repo,
		"redis":    redisPinger{rdb},
	})
	ready, err := httpapi.Serve(ctx, cfg.Port, handler)
	if err != nil {
		slog.Error("failed to start http server", "error", err)
		os.Exit(1)
	}
	<-ready

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh

	slog.Info("received shutdown signal", "signal", sig)
	cancel() // Stop the sync loop and close the HTTP listener

	sync.Stop()

	rdb.Close()
	pgPool.Close()

	slog.Info("mailroom service stopped")
}

// redisPinger adapts the Redis client to the health-check contract.
type redisPinger struct {
	rdb *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return p.rdb.Ping(ctx).Err()
}
