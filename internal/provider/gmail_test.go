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
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/traveldesk/mailroom/internal/models"
)

// gmailFake serves the three Gmail API calls the adapter issues and
// records the order in which they arrive.
type gmailFake struct {
	ids      []string
	failGets map[string]bool

	requests []string
	modified []string
}

func (f *gmailFake) handler(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	case strings.HasSuffix(path, "/messages/batchModify"):
		f.requests = append(f.requests, "batchModify")
		var req gmail.BatchModifyMessagesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			f.modified = append(f.modified, req.Ids...)
		}
		w.WriteHeader(http.StatusNoContent)
	case strings.HasSuffix(path, "/messages"):
		f.requests = append(f.requests, "list")
		stubs := make([]map[string]string, 0, len(f.ids))
		for _, id := range f.ids {
			stubs = append(stubs, map[string]string{"id": id})
		}
		writeGmailJSON(w, map[string]any{"messages": stubs, "resultSizeEstimate": len(f.ids)})
	case strings.Contains(path, "/messages/"):
		id := path[strings.LastIndex(path, "/")+1:]
		f.requests = append(f.requests, "get:"+id)
		if f.failGets[id] {
			http.Error(w, `{"error": {"code": 500, "message": "backend error"}}`, http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, gmailMessageJSON(id, "Message "+id))
	default:
		http.NotFound(w, r)
	}
}

func writeGmailJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// "SGkgdGhlcmU=" is base64url for "Hi there".
func gmailMessageJSON(id, subject string) string {
	return fmt.Sprintf(`{
		"id": %q,
		"internalDate": "1767225600000",
		"payload": {
			"mimeType": "text/plain",
			"headers": [
				{"name": "Subject", "value": %q},
				{"name": "From", "value": "Jane Doe <jane@example.com>"},
				{"name": "Message-ID", "value": "<%s@example.com>"}
			],
			"body": {"data": "SGkgdGhlcmU="}
		}
	}`, id, subject, id)
}

func newTestGmail(t *testing.T, endpoint string) *Gmail {
	t.Helper()
	srv, err := gmail.NewService(context.Background(),
		option.WithHTTPClient(http.DefaultClient),
		option.WithEndpoint(endpoint),
	)
	if err != nil {
		t.Fatalf("gmail service: %v", err)
	}
	return &Gmail{srv: srv, fetchLimit: 50}
}

func TestGmailFetchEmails(t *testing.T) {
	fake := &gmailFake{ids: []string{"m1", "m2"}}
	server := httptest.NewServer(http.HandlerFunc(fake.handler))
	defer server.Close()

	g := newTestGmail(t, server.URL)
	emails, err := g.FetchEmails(context.Background(), &models.InboxConfig{EmailAddress: "support@traveldesk.example"})
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
	if first.Subject != "Message m1" {
		t.Errorf("subject = %q", first.Subject)
	}
	if first.MessageID != "<m1@example.com>" {
		t.Errorf("message id = %q", first.MessageID)
	}
	if first.Body != "Hi there" {
		t.Errorf("body = %q", first.Body)
	}

	// The read marking must be a single call after every message is in hand.
	if len(fake.requests) == 0 || fake.requests[len(fake.requests)-1] != "batchModify" {
		t.Fatalf("batchModify should be the final request, got %v", fake.requests)
	}
	if len(fake.modified) != 2 {
		t.Errorf("expected both messages marked read, got %v", fake.modified)
	}
}

// TestGmailFetchEmails_MidBatchFailure verifies that a failed message get
// aborts the fetch without marking anything read, so the whole batch stays
// fetchable on the next pass.
func TestGmailFetchEmails_MidBatchFailure(t *testing.T) {
	fake := &gmailFake{
		ids:      []string{"m1", "m2", "m3"},
		failGets: map[string]bool{"m2": true},
	}
	server := httptest.NewServer(http.HandlerFunc(fake.handler))
	defer server.Close()

	g := newTestGmail(t, server.URL)
	emails, err := g.FetchEmails(context.Background(), &models.InboxConfig{EmailAddress: "support@traveldesk.example"})
	if err == nil {
		t.Fatal("expected the fetch to fail on the broken message")
	}
	if emails != nil {
		t.Errorf("no partial batch should be returned, got %d emails", len(emails))
	}

	for _, req := range fake.requests {
		if req == "batchModify" {
			t.Fatalf("nothing may be marked read on a failed batch, got %v", fake.requests)
		}
	}
	if len(fake.modified) != 0 {
		t.Errorf("modified ids should be empty, got %v", fake.modified)
	}
}
