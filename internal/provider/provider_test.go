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
	"errors"
	"testing"

	"github.com/traveldesk/mailroom/internal/models"
)

type stubProvider struct {
	name string
}

func (s *stubProvider) FetchEmails(ctx context.Context, inbox *models.InboxConfig) ([]models.InboundEmail, error) {
	return []models.InboundEmail{{Subject: s.name}}, nil
}

func (s *stubProvider) TestConnection(ctx context.Context, inbox *models.InboxConfig) error {
	return nil
}

func TestRegistryForKind(t *testing.T) {
	gmail := &stubProvider{name: "gmail"}
	graph := &stubProvider{name: "graph"}
	imap := &stubProvider{name: "imap"}
	r := NewRegistry(gmail, graph, imap)

	tests := []struct {
		kind string
		want Provider
	}{
		{"gmail", gmail},
		{"outlook", graph},
		{"exchange", graph},
		{"imap", imap},
		{"pop3", imap},
	}
	for _, tt := range tests {
		got, err := r.ForKind(tt.kind)
		if err != nil {
			t.Errorf("ForKind(%q): %v", tt.kind, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ForKind(%q) resolved the wrong adapter", tt.kind)
		}
	}
}

func TestRegistryForKind_Unsupported(t *testing.T) {
	r := NewRegistry(&stubProvider{}, &stubProvider{}, &stubProvider{})
	if _, err := r.ForKind("carrier-pigeon"); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestRegistryForKind_Unconfigured(t *testing.T) {
	r := NewRegistry(nil, nil, &stubProvider{name: "imap"})
	if _, err := r.ForKind("gmail"); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported for a nil adapter, got %v", err)
	}
}

func TestRegistryFetchEmails(t *testing.T) {
	r := NewRegistry(nil, nil, &stubProvider{name: "imap"})

	emails, err := r.FetchEmails(context.Background(), &models.InboxConfig{Provider: "pop3"})
	if err != nil {
		t.Fatalf("FetchEmails: %v", err)
	}
	if len(emails) != 1 || emails[0].Subject != "imap" {
		t.Errorf("pop3 should dispatch to the imap adapter, got %+v", emails)
	}
}
