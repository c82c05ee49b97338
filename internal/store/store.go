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

// Package store provides the Postgres-backed ticket, user, and inbox
// repository consumed by the routing pipeline. Ticket numbers come from a
// database sequence, so they are unique and sequential across processes.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/traveldesk/mailroom/internal/models"
)

// Store provides CRUD operations over tickets, comments, users, and
// inboxes in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a store backed by the given Postgres pool. It ensures the
// schema exists on creation.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	s := &Store{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	slog.Info("ticket store initialised")
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE SEQUENCE IF NOT EXISTS ticket_seq;

		CREATE TABLE IF NOT EXISTS users (
			id         UUID PRIMARY KEY,
			name       TEXT NOT NULL,
			email      TEXT NOT NULL UNIQUE,
			role       TEXT NOT NULL DEFAULT 'customer',
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS inboxes (
			id            UUID PRIMARY KEY,
			name          TEXT NOT NULL,
			provider      TEXT NOT NULL,
			email_address TEXT NOT NULL UNIQUE,
			brand_id      TEXT DEFAULT '',
			auto_reply    BOOLEAN DEFAULT FALSE,
			signature     TEXT DEFAULT '',
			is_active     BOOLEAN DEFAULT TRUE,
			settings      JSONB DEFAULT '{}',
			created_at    TIMESTAMPTZ DEFAULT NOW(),
			updated_at    TIMESTAMPTZ DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS tickets (
			id            UUID PRIMARY KEY,
			ticket_number TEXT NOT NULL UNIQUE,
			subject       TEXT NOT NULL,
			description   TEXT DEFAULT '',
			status        TEXT NOT NULL DEFAULT 'new',
			priority      TEXT NOT NULL DEFAULT 'normal',
			category      TEXT NOT NULL DEFAULT 'service',
			satisfaction  TEXT NOT NULL DEFAULT 'unoffered',
			requester_id  UUID REFERENCES users(id),
			brand_id      TEXT DEFAULT '',
			airline_id    TEXT DEFAULT '',
			inbox_id      TEXT DEFAULT '',
			tags          TEXT[] DEFAULT '{}',
			custom_fields JSONB DEFAULT '{}',
			created_at    TIMESTAMPTZ DEFAULT NOW(),
			updated_at    TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_tickets_number ON tickets(ticket_number);
		CREATE INDEX IF NOT EXISTS idx_tickets_status ON tickets(status);

		CREATE TABLE IF NOT EXISTS comments (
			id          UUID PRIMARY KEY,
			ticket_id   UUID NOT NULL REFERENCES tickets(id),
			author_id   UUID REFERENCES users(id),
			content     TEXT NOT NULL,
			is_internal BOOLEAN DEFAULT FALSE,
			created_at  TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_comments_ticket ON comments(ticket_id);
	`)
	return err
}

const ticketColumns = `id, ticket_number, subject, description, status, priority,
       category, satisfaction, requester_id, brand_id, airline_id, inbox_id,
       tags, custom_fields, created_at, updated_at`

// FindTicketByNumber retrieves a ticket by its human-facing number.
// Returns nil when no ticket carries that number.
func (s *Store) FindTicketByNumber(ctx context.Context, ticketNumber string) (*models.Ticket, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE ticket_number = $1
	`, ticketNumber)
	return scanTicket(row)
}

// CreateTicket inserts a ticket and assigns it the next sequential
// ticket number.
func (s *Store) CreateTicket(ctx context.Context, t *models.Ticket) (*models.Ticket, error) {
	id := uuid.New().String()
	row := s.pool.QueryRow(ctx, `
		INSERT INTO tickets
			(id, ticket_number, subject, description, status, priority, category,
			 satisfaction, requester_id, brand_id, airline_id, inbox_id, tags, custom_fields)
		VALUES
			($1, 'TKT-' || lpad(nextval('ticket_seq')::text, 6, '0'),
			 $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING `+ticketColumns+`
	`, id, t.Subject, t.Description, t.Status, t.Priority, t.Category,
		t.Satisfaction, t.RequesterID, t.BrandID, t.AirlineID, t.InboxID, t.Tags, t.CustomFields)
	return scanTicket(row)
}

// UpdateTicket applies the non-nil fields of the update to a ticket.
func (s *Store) UpdateTicket(ctx context.Context, id string, update models.TicketUpdate) (*models.Ticket, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE tickets
		SET status     = COALESCE($2, status),
		    priority   = COALESCE($3, priority),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING `+ticketColumns+`
	`, id, update.Status, update.Priority)
	return scanTicket(row)
}

// AddComment appends a comment to a ticket's thread.
func (s *Store) AddComment(ctx context.Context, c *models.Comment) (*models.Comment, error) {
	comment := *c
	comment.ID = uuid.New().String()
	row := s.pool.QueryRow(ctx, `
		INSERT INTO comments (id, ticket_id, author_id, content, is_internal)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, comment.ID, comment.TicketID, comment.AuthorID, comment.Content, comment.IsInternal)
	if err := row.Scan(&comment.CreatedAt); err != nil {
		return nil, err
	}
	return &comment, nil
}

// FindOrCreateUser resolves a user by email address, case-insensitively,
// creating a customer-role user when absent. Idempotent: the same address
// always resolves to the same row.
func (s *Store) FindOrCreateUser(ctx context.Context, email, name string) (*models.User, error) {
	if name == "" {
		name = displayNameFromEmail(email)
	}

	var u models.User
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (id, name, email, role)
		VALUES ($1, $2, lower($3), 'customer')
		ON CONFLICT (email) DO UPDATE SET updated_at = NOW()
		RETURNING id, name, email, role
	`, uuid.New().String(), name, email).Scan(&u.ID, &u.Name, &u.Email, &u.Role)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// displayNameFromEmail derives a readable name from the address local
// part: dots and underscores become spaces, words are capitalised.
func displayNameFromEmail(email string) string {
	local := email
	if at := strings.Index(email, "@"); at >= 0 {
		local = email[:at]
	}
	local = strings.NewReplacer(".", " ", "_", " ").Replace(local)
	words := strings.Fields(local)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	if len(words) == 0 {
		return email
	}
	return strings.Join(words, " ")
}

// GetInbox retrieves a single inbox configuration. Returns nil when the
// inbox does not exist.
func (s *Store) GetInbox(ctx context.Context, id string) (*models.InboxConfig, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, provider, email_address, brand_id, auto_reply,
		       signature, is_active, settings
		FROM inboxes
		WHERE id = $1
	`, id)
	return scanInbox(row)
}

// ListActiveInboxes returns every inbox eligible for periodic sync.
func (s *Store) ListActiveInboxes(ctx context.Context) ([]models.InboxConfig, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, provider, email_address, brand_id, auto_reply,
		       signature, is_active, settings
		FROM inboxes
		WHERE is_active
		ORDER BY email_address
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var inboxes []models.InboxConfig
	for rows.Next() {
		inbox, err := scanInbox(rows)
		if err != nil {
			return nil, err
		}
		inboxes = append(inboxes, *inbox)
	}
	return inboxes, rows.Err()
}

// SaveInbox inserts or updates an inbox keyed on its mailbox address.
// Used by the provisioning CLI.
func (s *Store) SaveInbox(ctx context.Context, inbox *models.InboxConfig) error {
	if inbox.ID == "" {
		inbox.ID = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO inboxes
			(id, name, provider, email_address, brand_id, auto_reply, signature, is_active, settings)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (email_address) DO UPDATE SET
			name       = EXCLUDED.name,
			provider   = EXCLUDED.provider,
			brand_id   = EXCLUDED.brand_id,
			auto_reply = EXCLUDED.auto_reply,
			signature  = EXCLUDED.signature,
			is_active  = EXCLUDED.is_active,
			settings   = EXCLUDED.settings,
			updated_at = NOW()
	`, inbox.ID, inbox.Name, inbox.Provider, inbox.EmailAddress, inbox.BrandID,
		inbox.AutoReply, inbox.Signature, inbox.IsActive, inbox.Settings)
	return err
}

// Ping checks the Postgres connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// scanTicket scans a single row into a Ticket.
func scanTicket(row pgx.Row) (*models.Ticket, error) {
	var t models.Ticket
	err := row.Scan(
		&t.ID, &t.TicketNumber, &t.Subject, &t.Description, &t.Status,
		&t.Priority, &t.Category, &t.Satisfaction, &t.RequesterID, &t.BrandID,
		&t.AirlineID, &t.InboxID, &t.Tags, &t.CustomFields,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// scanInbox scans a single row into an InboxConfig.
func scanInbox(row pgx.Row) (*models.InboxConfig, error) {
	var inbox models.InboxConfig
	err := row.Scan(
		&inbox.ID, &inbox.Name, &inbox.Provider, &inbox.EmailAddress,
		&inbox.BrandID, &inbox.AutoReply, &inbox.Signature, &inbox.IsActive,
		&inbox.Settings,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &inbox, nil
}
