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

package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/traveldesk/mailroom/internal/models"
)

func graphTestInbox() *models.InboxConfig {
	return &models.InboxConfig{
		ID:           "inbox-1",
		Provider:     "outlook",
		EmailAddress: "support@traveldesk.example",
	}
}

func TestGraphFetchEmails(t *testing.T) {
	const page = `{
		"value": [
			{
				"id": "AAMk-1",
				"internetMessageId": "<msg-1@example.com>",
				"subject": "Flight delayed",
				"receivedDateTime": "2026-03-01T10:30:00Z",
				"from": {"emailAddress": {"address": "jane@example.com", "name": "Jane"}},
				"toRecipients": [{"emailAddress": {"address": "support@traveldesk.example"}}],
				"body": {"contentType": "text", "content": "Three hours late."},
				"internetMessageHeaders": [{"name": "X-Priority", "value": "1"}]
			},
			{
				"id": "AAMk-2",
				"internetMessageId": "",
				"subject": "No headers",
				"receivedDateTime": "not-a-date",
				"from": {"emailAddress": {"address": "bob@example.com"}},
				"body": {"contentType": "text", "content": "Hi."}
			}
		]
	}`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/users/support@traveldesk.example/mailFolders/inbox/messages") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("$filter"); got != "isRead eq false" {
			t.Errorf("$filter = %q", got)
		}
		if got := r.Header.Get("Prefer"); !strings.Contains(got, "text") {
			t.Errorf("Prefer header = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(page))
	}))
	defer server.Close()

	g := NewGraph(server.Client(), server.URL)
	emails, err := g.FetchEmails(context.Background(), graphTestInbox())
	if err != nil {
		t.Fatalf("FetchEmails: %v", err)
	}

	if len(emails) != 2 {
		t.Fatalf("expected 2 emails, got %d", len(emails))
	}

	first := emails[0]
	if first.From != "jane@example.com" {
		t.Errorf("from = %q", first.From)
	}
	if first.To != "support@traveldesk.example" {
		t.Errorf("to = %q", first.To)
	}
	if first.MessageID != "<msg-1@example.com>" {
		t.Errorf("message id = %q", first.MessageID)
	}
	want := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	if !first.Date.Equal(want) {
		t.Errorf("date = %v, want %v", first.Date, want)
	}
	if first.Headers["X-Priority"] != "1" {
		t.Errorf("headers = %v", first.Headers)
	}

	second := emails[1]
	if second.MessageID != "AAMk-2" {
		t.Errorf("missing internetMessageId should fall back to the Graph id, got %q", second.MessageID)
	}
	if second.To != "support@traveldesk.example" {
		t.Errorf("missing recipients should fall back to the mailbox, got %q", second.To)
	}
	if second.Date.IsZero() {
		t.Error("unparseable date should fall back to now, not zero")
	}
}

func TestGraphFetchEmails_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"code": "ErrorAccessDenied"}}`, http.StatusForbidden)
	}))
	defer server.Close()

	g := NewGraph(server.Client(), server.URL)
	if _, err := g.FetchEmails(context.Background(), graphTestInbox()); err == nil {
		t.Fatal("expected an error on HTTP 403")
	}
}

func TestGraphTestConnection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/users/support@traveldesk.example") {
			w.Write([]byte(`{"id": "user-1"}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	g := NewGraph(server.Client(), server.URL)
	if err := g.TestConnection(context.Background(), graphTestInbox()); err != nil {
		t.Errorf("TestConnection: %v", err)
	}

	missing := graphTestInbox()
	missing.EmailAddress = "gone@traveldesk.example"
	if err := g.TestConnection(context.Background(), missing); err == nil {
		t.Error("expected an error for an unknown mailbox")
	}
}
