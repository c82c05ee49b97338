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

// Package models defines the data structures shared across the mailroom service.
package models

import "time"

// InboundEmail represents a single received message, normalised across
// providers. One InboundEmail is consumed per sync pass and then discarded;
// MessageID is globally unique per message and re-delivery of the same
// MessageID must never produce a duplicate ticket.
type InboundEmail struct {
	From      string            `json:"from"`
	To        string            `json:"to"`
	Subject   string            `json:"subject"`
	Body      string            `json:"body"`
	Date      time.Time         `json:"date"`
	MessageID string            `json:"message_id"`
	Headers   map[string]string `json:"headers,omitempty"`
}

// Header returns the first non-empty value among the named headers.
func (e *InboundEmail) Header(names ...string) string {
	for _, n := range names {
		if v, ok := e.Headers[n]; ok && v != "" {
			return v
		}
	}
	return ""
}

// ConnectionSettings holds what a provider adapter needs to reach a mailbox.
type ConnectionSettings struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Secure   bool   `json:"secure" yaml:"secure"`
	User     string `json:"user" yaml:"user"`
	Password string `json:"password" yaml:"password"`
}

// InboxConfig describes a monitored mailbox. Read-only to the pipeline.
type InboxConfig struct {
	ID           string             `json:"id" yaml:"id"`
	Name         string             `json:"name" yaml:"name"`
	Provider     string             `json:"provider" yaml:"provider"` // gmail, outlook, imap, pop3, exchange
	EmailAddress string             `json:"email_address" yaml:"email_address"`
	BrandID      string             `json:"brand_id,omitempty" yaml:"brand_id"`
	AutoReply    bool               `json:"auto_reply" yaml:"auto_reply"`
	Signature    string             `json:"signature,omitempty" yaml:"signature"`
	IsActive     bool               `json:"is_active" yaml:"is_active"`
	Settings     ConnectionSettings `json:"settings" yaml:"settings"`
}

// Ticket statuses as used by the ticket store.
const (
	StatusNew    = "new"
	StatusOpen   = "open"
	StatusSolved = "solved"
	StatusClosed = "closed"
)

// Ticket categories.
const (
	CategoryService  = "service"
	CategoryAirline  = "airline"
	CategorySupplier = "supplier"
)

// Ticket priorities.
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Ticket is the subset of the ticket store's record that the pipeline
// reads and derives. The store owns the full record.
type Ticket struct {
	ID           string            `json:"id"`
	TicketNumber string            `json:"ticket_number"`
	Subject      string            `json:"subject"`
	Description  string            `json:"description"`
	Status       string            `json:"status"`
	Priority     string            `json:"priority"`
	Category     string            `json:"category"`
	Satisfaction string            `json:"satisfaction"`
	RequesterID  string            `json:"requester_id"`
	BrandID      string            `json:"brand_id,omitempty"`
	AirlineID    string            `json:"airline_id,omitempty"`
	InboxID      string            `json:"inbox_id,omitempty"`
	Tags         []string          `json:"tags"`
	CustomFields map[string]string `json:"custom_fields,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// TicketUpdate carries partial field updates for an existing ticket.
// Nil fields are left untouched.
type TicketUpdate struct {
	Status   *string `json:"status,omitempty"`
	Priority *string `json:"priority,omitempty"`
}

// Comment is a single entry on a ticket's conversation thread.
type Comment struct {
	ID         string    `json:"id"`
	TicketID   string    `json:"ticket_id"`
	AuthorID   string    `json:"author_id"`
	Content    string    `json:"content"`
	IsInternal bool      `json:"is_internal"`
	CreatedAt  time.Time `json:"created_at"`
}

// User is a requester or agent known to the ticket store.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"` // customer, agent, admin
}

// Routing actions. Skipped is produced by the sync driver for duplicate
// deliveries that never reach the router.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionSkipped = "skipped"
)

// RoutingDecision is the per-email outcome of the routing pipeline. It is
// returned to the sync driver for aggregation and never persisted.
type RoutingDecision struct {
	TicketID    string `json:"ticket_id"`
	IsNewTicket bool   `json:"is_new_ticket"`
	Action      string `json:"action"`
	Message     string `json:"message"`
	Error       string `json:"error,omitempty"`
}

// SyncResult aggregates the outcome of one inbox sync pass.
type SyncResult struct {
	InboxID        string            `json:"inbox_id"`
	Processed      int               `json:"processed"`
	NewTickets     int               `json:"new_tickets"`
	UpdatedTickets int               `json:"updated_tickets"`
	Errors         int               `json:"errors"`
	Details        []RoutingDecision `json:"details"`
}
