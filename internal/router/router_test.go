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

package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/traveldesk/mailroom/internal/models"
)

// --- Fakes ---

type fakeTicketStore struct {
	byNumber map[string]*models.Ticket
	created  []*models.Ticket
	comments []*models.Comment
	updates  map[string][]models.TicketUpdate
	seq      int

	failComment bool
	failCreate  bool
}

func newFakeTicketStore() *fakeTicketStore {
	return &fakeTicketStore{
		byNumber: make(map[string]*models.Ticket),
		updates:  make(map[string][]models.TicketUpdate),
	}
}

func (s *fakeTicketStore) FindTicketByNumber(ctx context.Context, ticketNumber string) (*models.Ticket, error) {
	return s.byNumber[ticketNumber], nil
}

func (s *fakeTicketStore) CreateTicket(ctx context.Context, ticket *models.Ticket) (*models.Ticket, error) {
	if s.failCreate {
		return nil, errors.New("insert failed")
	}
	s.seq++
	created := *ticket
	created.ID = fmt.Sprintf("ticket-%d", s.seq)
	created.TicketNumber = fmt.Sprintf("TKT-%06d", s.seq)
	s.byNumber[created.TicketNumber] = &created
	s.created = append(s.created, &created)
	return &created, nil
}

func (s *fakeTicketStore) AddComment(ctx context.Context, comment *models.Comment) (*models.Comment, error) {
	if s.failComment {
		return nil, errors.New("comment insert failed")
	}
	s.comments = append(s.comments, comment)
	return comment, nil
}

func (s *fakeTicketStore) UpdateTicket(ctx context.Context, id string, update models.TicketUpdate) (*models.Ticket, error) {
	s.updates[id] = append(s.updates[id], update)
	return &models.Ticket{ID: id}, nil
}

type fakeUserStore struct {
	users map[string]*models.User
}

func (s *fakeUserStore) FindOrCreateUser(ctx context.Context, email, name string) (*models.User, error) {
	if s.users == nil {
		s.users = make(map[string]*models.User)
	}
	key := strings.ToLower(email)
	if u, ok := s.users[key]; ok {
		return u, nil
	}
	u := &models.User{
		ID:    fmt.Sprintf("user-%d", len(s.users)+1),
		Email: key,
		Role:  "customer",
	}
	s.users[key] = u
	return u, nil
}

type fakeInboxStore struct {
	inboxes map[string]*models.InboxConfig
}

func (s *fakeInboxStore) GetInbox(ctx context.Context, id string) (*models.InboxConfig, error) {
	return s.inboxes[id], nil
}

type sentReply struct {
	to      string
	subject string
	body    string
}

type fakeReplySender struct {
	sent []sentReply
	fail bool
}

func (s *fakeReplySender) SendAutoReply(ctx context.Context, to, subject, body string, inbox *models.InboxConfig) error {
	if s.fail {
		return errors.New("smtp unavailable")
	}
	s.sent = append(s.sent, sentReply{to: to, subject: subject, body: body})
	return nil
}

func newTestRouter(inbox *models.InboxConfig) (*Router, *fakeTicketStore, *fakeReplySender) {
	tickets := newFakeTicketStore()
	replies := &fakeReplySender{}
	inboxes := &fakeInboxStore{inboxes: map[string]*models.InboxConfig{}}
	if inbox != nil {
		inboxes.inboxes[inbox.ID] = inbox
	}
	return New(tickets, &fakeUserStore{}, inboxes, replies), tickets, replies
}

// --- Tests ---

func TestProcessIncomingEmail_CreatesTicket(t *testing.T) {
	inbox := &models.InboxConfig{ID: "inbox-1", Name: "Support", BrandID: "brand-1"}
	r, tickets, _ := newTestRouter(inbox)

	email := &models.InboundEmail{
		From:      "jane.doe@example.com",
		To:        "support@traveldesk.example",
		Subject:   "Re: URGENT: Flight cancelled - Booking ID: AC-123456",
		Body:      "My flight was cancelled this morning, please help.",
		MessageID: "<msg-1@example.com>",
	}

	decision := r.ProcessIncomingEmail(context.Background(), email, "inbox-1")

	if decision.Error != "" {
		t.Fatalf("unexpected error: %s", decision.Error)
	}
	if !decision.IsNewTicket || decision.Action != models.ActionCreated {
		t.Fatalf("expected creation, got %+v", decision)
	}
	if len(tickets.created) != 1 {
		t.Fatalf("expected 1 ticket, got %d", len(tickets.created))
	}

	ticket := tickets.created[0]
	if ticket.Subject != "URGENT: Flight cancelled - Booking ID: AC-123456" {
		t.Errorf("reply prefix not stripped: %q", ticket.Subject)
	}
	if ticket.Status != models.StatusNew {
		t.Errorf("status = %q, want new", ticket.Status)
	}
	if ticket.Category != models.CategoryAirline {
		t.Errorf("category = %q, want airline", ticket.Category)
	}
	if ticket.Priority != models.PriorityUrgent {
		t.Errorf("priority = %q, want urgent", ticket.Priority)
	}
	if ticket.BrandID != "brand-1" || ticket.InboxID != "inbox-1" {
		t.Errorf("inbox attribution missing: brand=%q inbox=%q", ticket.BrandID, ticket.InboxID)
	}
	if got := ticket.CustomFields["booking_id"]; got != "AC-123456" {
		t.Errorf("booking_id = %q, want AC-123456", got)
	}
	if got := ticket.CustomFields["email_message_id"]; got != "<msg-1@example.com>" {
		t.Errorf("email_message_id = %q", got)
	}
	for _, want := range []string{"airline", "email", "booking", "urgent", "cancellation"} {
		if !containsTag(ticket.Tags, want) {
			t.Errorf("tags %v missing %q", ticket.Tags, want)
		}
	}
	if containsTag(ticket.Tags, "refund") {
		t.Errorf("tags %v should not include refund", ticket.Tags)
	}
}

// TestProcessIncomingEmail_IdempotentRedelivery routes the same reply twice
// and expects two comments on one ticket, never a second ticket.
func TestProcessIncomingEmail_IdempotentRedelivery(t *testing.T) {
	inbox := &models.InboxConfig{ID: "inbox-1", Name: "Support"}
	r, tickets, _ := newTestRouter(inbox)
	ctx := context.Background()

	first := r.ProcessIncomingEmail(ctx, &models.InboundEmail{
		From:      "jane.doe@example.com",
		Subject:   "Flight delayed",
		Body:      "Three hours and counting.",
		MessageID: "<msg-1@example.com>",
	}, "inbox-1")
	if !first.IsNewTicket {
		t.Fatalf("expected initial creation, got %+v", first)
	}
	number := tickets.created[0].TicketNumber

	followUp := &models.InboundEmail{
		From:      "jane.doe@example.com",
		Subject:   "Re: " + number + " Flight delayed",
		Body:      "Any update?",
		MessageID: "<msg-2@example.com>",
	}
	for i := 0; i < 2; i++ {
		decision := r.ProcessIncomingEmail(ctx, followUp, "inbox-1")
		if decision.Error != "" {
			t.Fatalf("redelivery %d failed: %s", i, decision.Error)
		}
		if decision.IsNewTicket || decision.Action != models.ActionUpdated {
			t.Fatalf("redelivery %d should append, got %+v", i, decision)
		}
	}

	if len(tickets.created) != 1 {
		t.Errorf("expected exactly 1 ticket, got %d", len(tickets.created))
	}
	if len(tickets.comments) != 2 {
		t.Errorf("expected 2 comments, got %d", len(tickets.comments))
	}
}

// TestProcessIncomingEmail_StaleNumberCreates verifies that a subject quoting
// an unknown ticket number degrades to creation instead of failing.
func TestProcessIncomingEmail_StaleNumberCreates(t *testing.T) {
	inbox := &models.InboxConfig{ID: "inbox-1", Name: "Support"}
	r, tickets, _ := newTestRouter(inbox)

	decision := r.ProcessIncomingEmail(context.Background(), &models.InboundEmail{
		From:    "jane.doe@example.com",
		Subject: "Re: TKT-999999 nonexistent booking",
		Body:    "Following up.",
	}, "inbox-1")

	if decision.Error != "" {
		t.Fatalf("unexpected error: %s", decision.Error)
	}
	if !decision.IsNewTicket {
		t.Fatalf("expected creation, got %+v", decision)
	}
	if len(tickets.created) != 1 {
		t.Errorf("expected 1 ticket, got %d", len(tickets.created))
	}
}

func TestProcessIncomingEmail_ReopensSolvedTicket(t *testing.T) {
	inbox := &models.InboxConfig{ID: "inbox-1", Name: "Support"}
	r, tickets, _ := newTestRouter(inbox)
	tickets.byNumber["TKT-000777"] = &models.Ticket{
		ID:           "ticket-777",
		TicketNumber: "TKT-000777",
		Status:       models.StatusSolved,
	}

	decision := r.ProcessIncomingEmail(context.Background(), &models.InboundEmail{
		From:    "jane.doe@example.com",
		Subject: "Re: TKT-000777 still broken",
		Body:    "The problem came back.",
	}, "inbox-1")

	if decision.Error != "" {
		t.Fatalf("unexpected error: %s", decision.Error)
	}
	updates := tickets.updates["ticket-777"]
	if len(updates) != 1 || updates[0].Status == nil || *updates[0].Status != models.StatusOpen {
		t.Fatalf("expected a single reopen update, got %+v", updates)
	}
}

func TestProcessIncomingEmail_OpenTicketNotUpdated(t *testing.T) {
	inbox := &models.InboxConfig{ID: "inbox-1", Name: "Support"}
	r, tickets, _ := newTestRouter(inbox)
	tickets.byNumber["TKT-000042"] = &models.Ticket{
		ID:           "ticket-42",
		TicketNumber: "TKT-000042",
		Status:       models.StatusOpen,
	}

	r.ProcessIncomingEmail(context.Background(), &models.InboundEmail{
		From:    "jane.doe@example.com",
		Subject: "Re: TKT-000042 more details",
		Body:    "Attached.",
	}, "inbox-1")

	if len(tickets.updates) != 0 {
		t.Errorf("open ticket should not be updated, got %+v", tickets.updates)
	}
	if len(tickets.comments) != 1 {
		t.Errorf("expected 1 comment, got %d", len(tickets.comments))
	}
}

func TestProcessIncomingEmail_InboxMissing(t *testing.T) {
	r, tickets, _ := newTestRouter(nil)

	decision := r.ProcessIncomingEmail(context.Background(), &models.InboundEmail{
		From:    "jane.doe@example.com",
		Subject: "Help",
	}, "no-such-inbox")

	if decision.Error == "" {
		t.Fatal("expected a failed decision")
	}
	if decision.TicketID != "" || decision.Message != "Failed to process email" {
		t.Errorf("unexpected decision: %+v", decision)
	}
	if len(tickets.created) != 0 {
		t.Errorf("no ticket should be created, got %d", len(tickets.created))
	}
}

func TestProcessIncomingEmail_CommentFailureCaptured(t *testing.T) {
	inbox := &models.InboxConfig{ID: "inbox-1", Name: "Support"}
	r, tickets, _ := newTestRouter(inbox)
	tickets.byNumber["TKT-000001"] = &models.Ticket{ID: "ticket-1", TicketNumber: "TKT-000001", Status: models.StatusOpen}
	tickets.failComment = true

	decision := r.ProcessIncomingEmail(context.Background(), &models.InboundEmail{
		From:    "jane.doe@example.com",
		Subject: "Re: TKT-000001",
		Body:    "Still waiting.",
	}, "inbox-1")

	if decision.Error == "" {
		t.Fatal("comment failure should surface in the decision")
	}
}

func TestProcessIncomingEmail_AutoReply(t *testing.T) {
	inbox := &models.InboxConfig{
		ID:        "inbox-1",
		Name:      "Support",
		AutoReply: true,
		Signature: "Traveldesk Support",
	}
	r, tickets, replies := newTestRouter(inbox)

	r.ProcessIncomingEmail(context.Background(), &models.InboundEmail{
		From:    "jane.doe@example.com",
		Subject: "Seat change request",
		Body:    "Window seat if possible.",
	}, "inbox-1")

	if len(replies.sent) != 1 {
		t.Fatalf("expected 1 auto-reply, got %d", len(replies.sent))
	}
	sent := replies.sent[0]
	if sent.to != "jane.doe@example.com" {
		t.Errorf("reply to = %q", sent.to)
	}
	if sent.subject != "Re: Seat change request" {
		t.Errorf("reply subject = %q", sent.subject)
	}
	if !strings.Contains(sent.body, tickets.created[0].TicketNumber) {
		t.Error("reply body should quote the ticket number")
	}
}

func TestProcessIncomingEmail_AutoReplyDisabled(t *testing.T) {
	inbox := &models.InboxConfig{ID: "inbox-1", Name: "Support", AutoReply: false}
	r, _, replies := newTestRouter(inbox)

	r.ProcessIncomingEmail(context.Background(), &models.InboundEmail{
		From:    "jane.doe@example.com",
		Subject: "Seat change request",
	}, "inbox-1")

	if len(replies.sent) != 0 {
		t.Errorf("expected no auto-reply, got %d", len(replies.sent))
	}
}

// TestProcessIncomingEmail_ReplyFailureSwallowed verifies that a send failure
// never fails the routing decision.
func TestProcessIncomingEmail_ReplyFailureSwallowed(t *testing.T) {
	inbox := &models.InboxConfig{ID: "inbox-1", Name: "Support", AutoReply: true}
	r, tickets, replies := newTestRouter(inbox)
	replies.fail = true

	decision := r.ProcessIncomingEmail(context.Background(), &models.InboundEmail{
		From:    "jane.doe@example.com",
		Subject: "Seat change request",
	}, "inbox-1")

	if decision.Error != "" {
		t.Fatalf("reply failure must not fail the decision: %s", decision.Error)
	}
	if !decision.IsNewTicket || len(tickets.created) != 1 {
		t.Fatalf("ticket should still be created, got %+v", decision)
	}
}

func containsTag(tags []string, want string) bool {
	for _, tag := range tags {
		if tag == want {
			return true
		}
	}
	return false
}
