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

// Package extract derives structured signals from free-text email fields:
// ticket numbers, booking references, and airline identification. All
// functions are pure; a failed extraction is an empty result, never an error.
package extract

import (
	"regexp"
	"strings"
)

// ticketPatterns is an ordered list evaluated first-match-wins. The order
// is deliberate: explicit prefixed formats before bare hash or reference
// formats, so "Re: [TKT-001234]" never resolves through the looser rules.
var ticketPatterns = []*regexp.Regexp{
	// Standard formats: TKT-123456, DEMO-001, TICKET 123
	regexp.MustCompile(`(?i)(?:TKT|DEMO|TICKET)[-\s]?(\d{3,6})`),
	// Hash formats: #42, #123456
	regexp.MustCompile(`#(\d{1,6})`),
	// Bracketed formats: [TKT-123456]
	regexp.MustCompile(`(?i)\[(?:TKT|DEMO|TICKET)[-\s]?(\d{3,6})\]`),
	// Reference formats: ref #42, reference: TKT-123
	regexp.MustCompile(`(?i)(?:ticket|ref|reference)[-\s]?#?(?:TKT|DEMO)?[-\s]?(\d{1,6})`),
	// Booking reference that is actually a ticket: booking TKT-123
	regexp.MustCompile(`(?i)booking\s+(?:TKT|DEMO)[-\s]?(\d{3,6})`),
}

// TicketNumber extracts a normalised ticket number from a subject line.
// The digit run is zero-padded and prefixed with DEMO- when the subject
// mentions "demo" (any case), TKT- otherwise. Returns "" when no pattern
// matches.
func TicketNumber(subject string) string {
	for _, p := range ticketPatterns {
		m := p.FindStringSubmatch(subject)
		if m == nil {
			continue
		}
		digits := m[1]
		if strings.Contains(strings.ToLower(subject), "demo") {
			return "DEMO-" + zeroPad(digits, 3)
		}
		return "TKT-" + zeroPad(digits, 6)
	}
	return ""
}

func zeroPad(s string, width int) string {
	for len(s) < width {
		s = "0" + s
	}
	return s
}

// bookingPatterns is evaluated in order against subject + body. Each
// pattern captures the candidate reference in its first group.
var bookingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)booking\s*(?:id|ref|reference|number)?\s*:?\s*([A-Z]{2}-?[A-Z0-9]{6,10})`),
	regexp.MustCompile(`(?i)reservation\s*(?:id|ref|reference|number)?\s*:?\s*([A-Z]{2}-?[A-Z0-9]{6,10})`),
	regexp.MustCompile(`(?i)confirmation\s*(?:id|ref|reference|number)?\s*:?\s*([A-Z]{2}-?[A-Z0-9]{6,10})`),
	// PNR formats
	regexp.MustCompile(`(?i)pnr\s*:?\s*([A-Z0-9]{6,8})`),
	// Airline code plus digits: AC-123456, WS 789012 (case sensitive)
	regexp.MustCompile(`([A-Z]{2}[-\s]?\d{6,8})`),
	// Hotel booking formats: HTL-123456
	regexp.MustCompile(`(?i)(HTL[-\s]?[A-Z0-9]{6,8})`),
	// Generic reference numbers
	regexp.MustCompile(`(?i)ref\s*:?\s*([A-Z0-9]{6,12})`),
}

var (
	bookingLabel = regexp.MustCompile(`(?i)^(?:booking|reservation|confirmation|pnr|ref)\s*:?\s*`)
	whitespace   = regexp.MustCompile(`\s+`)
)

// BookingID extracts a booking reference from an email's subject and body.
// A candidate is accepted only if, after stripping a leading label token,
// at least six characters remain. The result is uppercased with internal
// whitespace collapsed to hyphens. Returns "" when nothing qualifies.
func BookingID(subject, body string) string {
	content := subject + " " + body
	for _, p := range bookingPatterns {
		for _, m := range p.FindAllStringSubmatch(content, -1) {
			candidate := bookingLabel.ReplaceAllString(m[1], "")
			if len(candidate) >= 6 {
				return whitespace.ReplaceAllString(strings.ToUpper(candidate), "-")
			}
		}
	}
	return ""
}

// Airline identifies a recognised carrier.
type Airline struct {
	ID   string
	Name string
}

// airlineTable is a closed lookup of carrier name, domain, and flight-code
// patterns. Matching is exact-match reproducible; extending the table is a
// data change, not a logic change.
var airlineTable = []struct {
	pattern *regexp.Regexp
	airline Airline
}{
	{regexp.MustCompile(`air\s*canada|aircanada\.ca|ac\s*\d{3,4}`), Airline{ID: "airline-1", Name: "Air Canada"}},
	{regexp.MustCompile(`westjet|westjet\.com|ws\s*\d{3,4}`), Airline{ID: "airline-2", Name: "WestJet"}},
	{regexp.MustCompile(`ita\s*airways|itaairways\.com|az\s*\d{3,4}`), Airline{ID: "airline-3", Name: "ITA Airways"}},
}

// AirlineInfo matches the sender, subject, and body against the airline
// table and returns the first recognised carrier, or nil.
func AirlineInfo(from, subject, body string) *Airline {
	content := strings.ToLower(from + " " + subject + " " + body)
	for _, entry := range airlineTable {
		if entry.pattern.MatchString(content) {
			a := entry.airline
			return &a
		}
	}
	return nil
}
