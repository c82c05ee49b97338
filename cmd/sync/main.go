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

// Traveldesk Mailroom — One-shot Sync Command
//
// Standalone CLI tool that runs a single sync pass for one inbox, or
// seeds inbox configurations from a YAML file. Intended for operators
// and new deployments.
//
// Usage:
//
//	go run ./cmd/sync/ --inbox <inbox-id>
//	go run ./cmd/sync/ --seed inboxes.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2/clientcredentials"
	"gopkg.in/yaml.v3"

	"github.com/traveldesk/mailroom/internal/config"
	"github.com/traveldesk/mailroom/internal/dedup"
	"github.com/traveldesk/mailroom/internal/models"
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

	// --- CLI Flags ---
	inboxFlag := flag.String("inbox", "", "Inbox ID to sync")
	seedFlag := flag.String("seed", "", "YAML file of inbox configurations to upsert")
	flag.Parse()

	if *inboxFlag == "" && *seedFlag == "" {
		fmt.Fprintf(os.Stderr, "Error: one of --inbox or --seed is required\n\n")
		flag.Usage()
		os.Exit(1)
	}

	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	pgPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to create Postgres pool", "error", err)
		os.Exit(1)
	}
	defer pgPool.Close()

	repo, err := store.New(ctx, pgPool)
	if err != nil {
		slog.Error("failed to initialise store", "error", err)
		os.Exit(1)
	}

	if *seedFlag != "" {
		if err := seedInboxes(ctx, repo, *seedFlag); err != nil {
			slog.Error("seed failed", "error", err)
			os.Exit(1)
		}
		return
	}

	// --- Connect to Redis ---
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("invalid REDIS_URL", "error", err)
		os.Exit(1)
	}
	rdb := redis.NewClient(opt)
	defer rdb.Close()

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

	var filter syncer.DedupFilter
	if cfg.DedupEnabled {
		filter = dedup.NewFilter(rdb)
	}

	sync := syncer.New(syncer.Config{
		Inboxes:   repo,
		Fetcher:   registry,
		Processor: router.New(repo, repo, repo, replies),
		Dedup:     filter,
	})

	result, err := sync.SyncInbox(ctx, *inboxFlag)
	if err != nil {
		slog.Error("sync failed", "inbox", *inboxFlag, "error", err)
		os.Exit(1)
	}

	fmt.Printf("Sync complete for inbox %s\n", result.InboxID)
	fmt.Printf("  Processed:       %d\n", result.Processed)
	fmt.Printf("  New tickets:     %d\n", result.NewTickets)
	fmt.Printf("  Updated tickets: %d\n", result.UpdatedTickets)
	fmt.Printf("  Errors:          %d\n", result.Errors)
	for _, d := range result.Details {
		if d.Error != "" {
			fmt.Printf("  ! %s: %s\n", d.Message, d.Error)
		}
	}
}

// seedInboxes upserts inbox configurations from a YAML file.
func seedInboxes(ctx context.Context, repo *store.Store, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}

	var seed struct {
		Inboxes []models.InboxConfig `yaml:"inboxes"`
	}
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parse seed file: %w", err)
	}

	for i := range seed.Inboxes {
		inbox := &seed.Inboxes[i]
		if err := repo.SaveInbox(ctx, inbox); err != nil {
			return fmt.Errorf("save inbox %s: %w", inbox.EmailAddress, err)
		}
		slog.Info("inbox saved", "id", inbox.ID, "email", inbox.EmailAddress, "provider", inbox.Provider)
	}

	return nil
}
