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

// Package syncer drives a full sync pass over an inbox: fetch a batch of
// emails from the provider, route each one independently, and aggregate
// the per-message outcomes. Batch-level preconditions fail the whole sync;
// a single message's failure never aborts the batch.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/traveldesk/mailroom/internal/models"
)

// Batch-level precondition failures. These abort the sync before any
// message is processed.
var (
	ErrInboxNotFound     = errors.New("inbox not found")
	ErrInboxInactive     = errors.New("inbox is not active")
	ErrInvalidConnection = errors.New("invalid inbox configuration: missing host or authentication details")
)

// InboxStore provides inbox configuration lookups.
type InboxStore interface {
	GetInbox(ctx context.Context, id string) (*models.InboxConfig, error)
	ListActiveInboxes(ctx context.Context) ([]models.InboxConfig, error)
}

// Fetcher retrieves the pending batch of emails for an inbox. The fetch is
// a single atomic call: it returns the full batch or fails entirely.
type Fetcher interface {
	FetchEmails(ctx context.Context, inbox *models.InboxConfig) ([]models.InboundEmail, error)
}

// Processor routes a single email. Implemented by router.Router.
type Processor interface {
	ProcessIncomingEmail(ctx context.Context, email *models.InboundEmail, inboxID string) models.RoutingDecision
}

// DedupFilter tracks already-processed message IDs. Implemented by
// dedup.Filter; optional.
type DedupFilter interface {
	IsNew(ctx context.Context, messageID string) (bool, error)
}

// Syncer orchestrates inbox sync passes.
type Syncer struct {
	inboxes   InboxStore
	fetcher   Fetcher
	processor Processor
	dedup     DedupFilter

	syncInterval time.Duration
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

// Config holds the syncer's collaborators. Dedup may be nil to disable
// re-delivery filtering.
type Config struct {
	Inboxes      InboxStore
	Fetcher      Fetcher
	Processor    Processor
	Dedup        DedupFilter
	SyncInterval time.Duration
}

// New creates a syncer.
func New(cfg Config) *Syncer {
	return &Syncer{
		inboxes:      cfg.Inboxes,
		fetcher:      cfg.Fetcher,
		processor:    cfg.Processor,
		dedup:        cfg.Dedup,
		syncInterval: cfg.SyncInterval,
	}
}

// SyncInbox performs one sync pass for the given inbox. Batch-level
// failures (unknown or inactive inbox, incomplete connection settings,
// fetch failure) return an error with zero messages processed. Per-email
// failures are captured in that email's RoutingDecision.
func (s *Syncer) SyncInbox(ctx context.Context, inboxID string) (*models.SyncResult, error) {
	inbox, err := s.inboxes.GetInbox(ctx, inboxID)
	if err != nil {
		return nil, fmt.Errorf("resolve inbox %s: %w", inboxID, err)
	}
	if inbox == nil {
		return nil, fmt.Errorf("inbox %s: %w", inboxID, ErrInboxNotFound)
	}
	if !inbox.IsActive {
		return nil, fmt.Errorf("inbox %s: %w", inboxID, ErrInboxInactive)
	}

	resolved := *inbox
	resolved.Settings = normalizeSettings(inbox)
	if resolved.Settings.Host == "" || resolved.Settings.User == "" {
		return nil, fmt.Errorf("inbox %s: %w", inboxID, ErrInvalidConnection)
	}

	emails, err := s.fetcher.FetchEmails(ctx, &resolved)
	if err != nil {
		return nil, fmt.Errorf("fetch emails for inbox %s: %w", inboxID, err)
	}

	slog.Info("fetched emails",
		"inbox", inboxID,
		"provider", inbox.Provider,
		"count", len(emails),
	)

	result := &models.SyncResult{
		InboxID:   inboxID,
		Processed: len(emails),
	}

	for i := range emails {
		email := &emails[i]

		if s.dedup != nil {
			isNew, err := s.dedup.IsNew(ctx, email.MessageID)
			if err != nil {
				slog.Warn("dedup check failed, proceeding", "message_id", email.MessageID, "error", err)
			} else if !isNew {
				result.Details = append(result.Details, models.RoutingDecision{
					Action:  models.ActionSkipped,
					Message: fmt.Sprintf("Skipped duplicate delivery of %s", email.MessageID),
				})
				continue
			}
		}

		decision := s.processor.ProcessIncomingEmail(ctx, email, inboxID)
		result.Details = append(result.Details, decision)

		switch {
		case decision.Error != "":
			result.Errors++
		case decision.IsNewTicket:
			result.NewTickets++
		case decision.TicketID != "":
			result.UpdatedTickets++
		}
	}

	slog.Info("inbox sync complete",
		"inbox", inboxID,
		"processed", result.Processed,
		"new_tickets", result.NewTickets,
		"updated_tickets", result.UpdatedTickets,
		"errors", result.Errors,
	)

	return result, nil
}

// normalizeSettings fills connection defaults from the inbox itself:
// the mailbox address doubles as the login user, IMAPS port when unset.
func normalizeSettings(inbox *models.InboxConfig) models.ConnectionSettings {
	settings := inbox.Settings
	if settings.Port == 0 {
		settings.Port = 993
		settings.Secure = true
	}
	if settings.User == "" {
		settings.User = inbox.EmailAddress
	}
	return settings
}

// StartPeriodicSync runs a sync pass over every active inbox at the
// configured interval until the context is cancelled.
func (s *Syncer) StartPeriodicSync(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.syncInterval)
		defer ticker.Stop()

		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				s.syncAll(loopCtx)
			}
		}
	}()

	slog.Info("periodic inbox sync started", "interval", s.syncInterval)
}

func (s *Syncer) syncAll(ctx context.Context) {
	inboxes, err := s.inboxes.ListActiveInboxes(ctx)
	if err != nil {
		slog.Error("list active inboxes failed", "error", err)
		return
	}

	for _, inbox := range inboxes {
		if _, err := s.SyncInbox(ctx, inbox.ID); err != nil {
			slog.Error("periodic sync failed",
				"inbox", inbox.ID,
				"provider", inbox.Provider,
				"error", err,
			)
		}
	}
}

// Stop shuts down the periodic sync loop.
func (s *Syncer) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}
