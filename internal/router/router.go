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

// Package router decides, for one inbound email, whether it continues an
// existing ticket or starts a new one, and issues the corresponding store
// operations exactly once. Failures never escape the router; they are
// captured in the returned RoutingDecision.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/traveldesk/mailroom/internal/classify"
	"github.com/traveldesk/mailroom/internal/extract"
	"github.com/traveldesk/mailroom/internal/models"
	"github.com/traveldesk/mailroom/internal/reply"
)

// TicketStore is the external ticket repository contract the router needs.
type TicketStore interface {
	FindTicketByNumber(ctx context.Context, ticketNumber string) (*models.Ticket, error)
	CreateTicket(ctx context.Context, ticket *models.Ticket) (*models.Ticket, error)
	AddComment(ctx context.Context, comment *models.Comment) (*models.Comment, error)
	UpdateTicket(ctx context.Context, id string, update models.TicketUpdate) (*models.Ticket, error)
}

// UserStore resolves or creates requesters. Lookup is case-insensitive on
// the email address and must be idempotent.
type UserStore interface {
	FindOrCreateUser(ctx context.Context, email, name string) (*models.User, error)
}

// InboxStore provides read-only inbox configuration.
type InboxStore interface {
	GetInbox(ctx context.Context, id string) (*models.InboxConfig, error)
}

// ReplySender dispatches auto-replies. Fire-and-forget from the router's
// perspective: a send failure is logged and never fails the decision.
type ReplySender interface {
	SendAutoReply(ctx context.Context, to, subject, body string, inbox *models.InboxConfig) error
}

// Router routes inbound emails to the ticket store.
type Router struct {
	tickets TicketStore
	users   UserStore
	inboxes InboxStore
	replies ReplySender
}

// New creates a router over the given collaborators.
func New(tickets TicketStore, users UserStore, inboxes InboxStore, replies ReplySender) *Router {
	return &Router{
		tickets: tickets,
		users:   users,
		inboxes: inboxes,
		replies: replies,
	}
}

var subjectPrefix = regexp.MustCompile(`(?i)^(?:re:|fwd?:)\s*`)

// ProcessIncomingEmail routes one email for the given inbox. A ticket
// number extracted from the subject that resolves to an existing ticket
// appends a comment; anything else creates a new ticket. A stale or
// foreign ticket number degrades to creation rather than erroring:
// a duplicate ticket is recoverable by an agent, a comment attached to
// the wrong customer's ticket is not.
func (r *Router) ProcessIncomingEmail(ctx context.Context, email *models.InboundEmail, inboxID string) models.RoutingDecision {
	inbox, err := r.inboxes.GetInbox(ctx, inboxID)
	if err != nil {
		return failed(fmt.Errorf("resolve inbox %s: %w", inboxID, err))
	}
	if inbox == nil {
		return failed(fmt.Errorf("inbox %s not found", inboxID))
	}

	ticketNumber := extract.TicketNumber(email.Subject)

	if ticketNumber != "" {
		existing, err := r.tickets.FindTicketByNumber(ctx, ticketNumber)
		if err != nil {
			return failed(fmt.Errorf("look up ticket %s: %w", ticketNumber, err))
		}
		if existing != nil {
			return r.appendToTicket(ctx, email, inbox, existing)
		}
		slog.Debug("extracted ticket number has no matching ticket, creating new",
			"ticket_number", ticketNumber,
			"message_id", email.MessageID,
		)
	}

	return r.createTicket(ctx, email, inbox)
}

// appendToTicket handles the continuation path: the email quotes a known
// ticket number, so it becomes a public comment on that ticket.
func (r *Router) appendToTicket(ctx context.Context, email *models.InboundEmail, inbox *models.InboxConfig, ticket *models.Ticket) models.RoutingDecision {
	user, err := r.users.FindOrCreateUser(ctx, email.From, "")
	if err != nil {
		return failed(fmt.Errorf("resolve user %s: %w", email.From, err))
	}

	comment := &models.Comment{
		TicketID:   ticket.ID,
		AuthorID:   user.ID,
		Content:    fmt.Sprintf("Email received from %s:\n\n%s", email.From, email.Body),
		IsInternal: false,
	}
	if _, err := r.tickets.AddComment(ctx, comment); err != nil {
		return failed(fmt.Errorf("add comment to ticket %s: %w", ticket.TicketNumber, err))
	}

	// A reply to a closed or solved ticket reopens it.
	if ticket.Status == models.StatusClosed || ticket.Status == models.StatusSolved {
		open := models.StatusOpen
		if _, err := r.tickets.UpdateTicket(ctx, ticket.ID, models.TicketUpdate{Status: &open}); err != nil {
			return failed(fmt.Errorf("reopen ticket %s: %w", ticket.TicketNumber, err))
		}
	}

	r.maybeAutoReply(ctx, email, inbox, ticket)

	return models.RoutingDecision{
		TicketID:    ticket.ID,
		IsNewTicket: false,
		Action:      models.ActionUpdated,
		Message:     fmt.Sprintf("Added email comment to ticket %s", ticket.TicketNumber),
	}
}

// createTicket handles the creation path: classify, extract metadata, and
// create a new ticket for the email.
func (r *Router) createTicket(ctx context.Context, email *models.InboundEmail, inbox *models.InboxConfig) models.RoutingDecision {
	user, err := r.users.FindOrCreateUser(ctx, email.From, "")
	if err != nil {
		return failed(fmt.Errorf("resolve user %s: %w", email.From, err))
	}

	category := classify.Category(email, inbox)
	priority := classify.Priority(email)
	bookingID := extract.BookingID(email.Subject, email.Body)
	airline := extract.AirlineInfo(email.From, email.Subject, email.Body)

	customFields := map[string]string{
		"email_message_id":    email.MessageID,
		"original_email_date": email.Date.UTC().Format(time.RFC3339),
		"email_from":          email.From,
		"email_to":            email.To,
	}
	if bookingID != "" {
		customFields["booking_id"] = bookingID
	}
	if airline != nil {
		customFields["airline_name"] = airline.Name
	}

	subjectLower := strings.ToLower(email.Subject)
	tags := []string{category, "email"}
	if bookingID != "" {
		tags = append(tags, "booking")
	}
	if priority == models.PriorityUrgent {
		tags = append(tags, "urgent")
	}
	if strings.Contains(subjectLower, "cancel") {
		tags = append(tags, "cancellation")
	}
	if strings.Contains(subjectLower, "refund") {
		tags = append(tags, "refund")
	}

	ticket := &models.Ticket{
		Subject:      strings.TrimSpace(subjectPrefix.ReplaceAllString(email.Subject, "")),
		Description:  fmt.Sprintf("Email received from %s:\n\n%s", email.From, email.Body),
		Category:     category,
		Priority:     priority,
		Status:       models.StatusNew,
		Satisfaction: "unoffered",
		RequesterID:  user.ID,
		BrandID:      inbox.BrandID,
		InboxID:      inbox.ID,
		Tags:         tags,
		CustomFields: customFields,
	}
	if airline != nil {
		ticket.AirlineID = airline.ID
	}

	created, err := r.tickets.CreateTicket(ctx, ticket)
	if err != nil {
		return failed(fmt.Errorf("create ticket: %w", err))
	}

	slog.Info("created ticket from email",
		"ticket_number", created.TicketNumber,
		"category", category,
		"priority", priority,
		"message_id", email.MessageID,
	)

	r.maybeAutoReply(ctx, email, inbox, created)

	return models.RoutingDecision{
		TicketID:    created.ID,
		IsNewTicket: true,
		Action:      models.ActionCreated,
		Message:     fmt.Sprintf("Created new %s ticket %s (priority: %s)", category, created.TicketNumber, priority),
	}
}

// maybeAutoReply composes and dispatches the acknowledgement when the
// inbox has auto-reply enabled. Send failures are logged and swallowed.
func (r *Router) maybeAutoReply(ctx context.Context, email *models.InboundEmail, inbox *models.InboxConfig, ticket *models.Ticket) {
	if !inbox.AutoReply || r.replies == nil {
		return
	}
	body := reply.Compose(ticket, inbox)
	if err := r.replies.SendAutoReply(ctx, email.From, reply.Subject(email.Subject), body, inbox); err != nil {
		slog.Warn("auto-reply send failed",
			"to", email.From,
			"ticket_number", ticket.TicketNumber,
			"error", err,
		)
	}
}

func failed(err error) models.RoutingDecision {
	return models.RoutingDecision{
		TicketID:    "",
		IsNewTicket: false,
		Action:      models.ActionCreated,
		Message:     "Failed to process email",
		Error:       err.Error(),
	}
}
