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

package reply

import (
	"strings"
	"testing"

	"github.com/traveldesk/mailroom/internal/models"
)

func TestCompose_UrgentAirline(t *testing.T) {
	ticket := &models.Ticket{
		TicketNumber: "TKT-001234",
		Subject:      "Flight cancelled",
		Category:     models.CategoryAirline,
		Priority:     models.PriorityUrgent,
	}
	inbox := &models.InboxConfig{Signature: "Traveldesk Airline Team"}

	body := Compose(ticket, inbox)

	if n := strings.Count(body, "TKT-001234"); n != 2 {
		t.Errorf("ticket number should appear twice, appeared %d times", n)
	}
	if !strings.Contains(body, "2-4 hours") {
		t.Error("urgent ticket should get the expedited SLA line")
	}
	if !strings.Contains(body, "booking reference and travel dates") {
		t.Error("airline ticket should get the flight hint")
	}
	if !strings.HasSuffix(body, "Traveldesk Airline Team") {
		t.Error("inbox signature should close the reply")
	}
}

func TestCompose_NormalService(t *testing.T) {
	ticket := &models.Ticket{
		TicketNumber: "TKT-000042",
		Subject:      "Question about my invoice",
		Category:     models.CategoryService,
		Priority:     models.PriorityNormal,
	}

	body := Compose(ticket, nil)

	if !strings.Contains(body, "24 hours") {
		t.Error("normal ticket should get the standard SLA line")
	}
	if strings.Contains(body, "booking reference") || strings.Contains(body, "booking confirmation") {
		t.Error("service ticket should get no category hint")
	}
	if !strings.HasSuffix(body, DefaultSignature) {
		t.Error("missing signature should fall back to the default")
	}
}

func TestCompose_SupplierHint(t *testing.T) {
	ticket := &models.Ticket{
		TicketNumber: "TKT-000007",
		Subject:      "Room issue",
		Category:     models.CategorySupplier,
		Priority:     models.PriorityHigh,
	}

	body := Compose(ticket, &models.InboxConfig{})

	if !strings.Contains(body, "booking confirmation number") {
		t.Error("supplier ticket should get the accommodation hint")
	}
	if !strings.Contains(body, "2-4 hours") {
		t.Error("high priority should get the expedited SLA line")
	}
}

func TestSubject(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Flight cancelled", "Re: Flight cancelled"},
		{"Re: Flight cancelled", "Re: Flight cancelled"},
		{"RE: payment", "RE: payment"},
		{"", "Re: "},
	}
	for _, tt := range tests {
		if got := Subject(tt.in); got != tt.want {
			t.Errorf("Subject(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
