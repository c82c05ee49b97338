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

// Package reply composes the templated auto-reply acknowledging a routed
// email. Pure string composition, no I/O.
package reply

import (
	"fmt"
	"strings"

	"github.com/traveldesk/mailroom/internal/models"
)

// DefaultSignature is used when the inbox has no configured signature.
const DefaultSignature = "Best regards,\nSupport Team"

// Compose builds the auto-reply body for a ticket. The text is fully
// deterministic: greeting, ticket number, a category-specific hint, an
// SLA line keyed on priority, and the inbox signature.
func Compose(ticket *models.Ticket, inbox *models.InboxConfig) string {
	signature := DefaultSignature
	if inbox != nil && inbox.Signature != "" {
		signature = inbox.Signature
	}

	var categoryHint string
	switch ticket.Category {
	case models.CategoryAirline:
		categoryHint = "\nFor flight-related inquiries, please have your booking reference and travel dates ready when our team contacts you."
	case models.CategorySupplier:
		categoryHint = "\nFor accommodation or service-related inquiries, please include your booking confirmation number for faster assistance."
	}

	slaLine := "\n\nOur support team typically responds within 24 hours during business days."
	if ticket.Priority == models.PriorityUrgent || ticket.Priority == models.PriorityHigh {
		slaLine = "\n\nDue to the priority nature of your request, our team will respond within 2-4 hours."
	}

	var b strings.Builder
	b.WriteString("Thank you for contacting us!\n\n")
	fmt.Fprintf(&b, "We have received your message and created ticket #%s for your inquiry: %q\n", ticket.TicketNumber, ticket.Subject)
	b.WriteString(categoryHint)
	b.WriteString(slaLine)
	fmt.Fprintf(&b, "\n\nYou can reference ticket #%s in any future correspondence regarding this issue.\n\n", ticket.TicketNumber)
	b.WriteString(signature)
	return b.String()
}

// Subject derives the auto-reply subject from the inbound subject.
func Subject(original string) string {
	if strings.HasPrefix(strings.ToLower(original), "re:") {
		return original
	}
	return "Re: " + original
}
