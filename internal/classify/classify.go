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

// Package classify derives ticket category and priority from email content,
// sender identity, and inbox hints. Classification never fails; an email
// that matches nothing is a normal-priority service ticket.
package classify

import (
	"strings"

	"github.com/traveldesk/mailroom/internal/models"
)

// airlineDomains and supplierDomains categorise by sender identity alone.
// Domain matches outrank every keyword heuristic.
var airlineDomains = []string{"aircanada.ca", "westjet.com", "itaairways.com", "lufthansa.com"}

var supplierDomains = []string{"booking.com", "expedia.com", "hotels.com", "hertz.com", "avis.com"}

var airlineKeywords = []string{
	"flight", "airline", "booking", "reservation", "itinerary",
	"departure", "arrival", "gate", "seat", "baggage", "check-in",
	"aircraft", "pilot", "crew", "boarding", "terminal", "runway",
	"schedule change", "cancellation", "delay", "pnr",
}

var supplierKeywords = []string{
	"hotel", "accommodation", "car rental", "insurance", "transfer",
	"excursion", "tour", "package", "supplier", "vendor",
	"room", "suite", "lobby", "reception", "housekeeping",
	"vehicle", "rental", "pickup", "dropoff", "coverage",
}

// Category decides between service, airline, and supplier for an email.
// Precedence: sender domain, then inbox hints, then keyword scores, then
// the service default. A keyword counts once per email regardless of how
// often it occurs.
func Category(email *models.InboundEmail, inbox *models.InboxConfig) string {
	from := strings.ToLower(email.From)

	for _, domain := range airlineDomains {
		if strings.Contains(from, domain) {
			return models.CategoryAirline
		}
	}
	for _, domain := range supplierDomains {
		if strings.Contains(from, domain) {
			return models.CategorySupplier
		}
	}

	subject := strings.ToLower(email.Subject)
	body := strings.ToLower(email.Body)

	airlineScore := keywordScore(subject, body, airlineKeywords)
	supplierScore := keywordScore(subject, body, supplierKeywords)

	if inbox != nil {
		name := strings.ToLower(inbox.Name)
		if strings.Contains(name, "airline") || strings.Contains(inbox.EmailAddress, "booking") {
			if airlineScore > 0 {
				return models.CategoryAirline
			}
			return models.CategoryService
		}
		if strings.Contains(name, "supplier") || strings.Contains(name, "hotel") {
			if supplierScore > 0 {
				return models.CategorySupplier
			}
			return models.CategoryService
		}
	}

	if airlineScore > supplierScore && airlineScore > 0 {
		return models.CategoryAirline
	}
	if supplierScore > airlineScore && supplierScore > 0 {
		return models.CategorySupplier
	}

	return models.CategoryService
}

func keywordScore(subject, body string, keywords []string) int {
	score := 0
	for _, kw := range keywords {
		if strings.Contains(subject, kw) || strings.Contains(body, kw) {
			score++
		}
	}
	return score
}

var urgentKeywords = []string{
	"urgent", "emergency", "asap", "immediately", "critical",
	"help!", "stuck", "stranded", "cancelled", "missed flight",
}

var highKeywords = []string{
	"important", "soon", "today", "tomorrow", "deadline",
	"refund", "compensation", "complaint", "issue",
}

var lowKeywords = []string{
	"question", "inquiry", "information", "clarification",
	"general", "feedback", "suggestion",
}

// Priority maps an email to low, normal, high, or urgent. A priority or
// importance header always short-circuits the keyword sets: a header that
// maps to no level yields normal rather than falling through.
func Priority(email *models.InboundEmail) string {
	if hdr := email.Header("X-Priority", "Priority", "Importance"); hdr != "" {
		lower := strings.ToLower(hdr)
		switch {
		case strings.Contains(hdr, "1") || strings.Contains(lower, "high"):
			return models.PriorityUrgent
		case strings.Contains(hdr, "2"):
			return models.PriorityHigh
		case strings.Contains(hdr, "4") || strings.Contains(hdr, "5"):
			return models.PriorityLow
		}
		return models.PriorityNormal
	}

	subject := strings.ToLower(email.Subject)
	body := strings.ToLower(email.Body)

	for _, set := range []struct {
		keywords []string
		priority string
	}{
		{urgentKeywords, models.PriorityUrgent},
		{highKeywords, models.PriorityHigh},
		{lowKeywords, models.PriorityLow},
	} {
		for _, kw := range set.keywords {
			if strings.Contains(subject, kw) || strings.Contains(body, kw) {
				return set.priority
			}
		}
	}

	return models.PriorityNormal
}
