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

// Package provider fetches raw messages from mailbox backends. Each
// adapter normalises its wire format into models.InboundEmail; everything
// downstream is provider-agnostic.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/traveldesk/mailroom/internal/models"
)

// ErrUnsupported is returned for provider kinds no adapter handles.
var ErrUnsupported = errors.New("unsupported provider")

// Provider fetches the pending batch of messages for an inbox. FetchEmails
// is atomic from the caller's perspective: a full batch or an error.
type Provider interface {
	FetchEmails(ctx context.Context, inbox *models.InboxConfig) ([]models.InboundEmail, error)
	TestConnection(ctx context.Context, inbox *models.InboxConfig) error
}

// Registry dispatches an inbox to its adapter by provider kind. POP3
// inboxes fall back to the IMAP adapter, outlook and exchange to Graph.
type Registry struct {
	gmail Provider
	graph Provider
	imap  Provider
}

// NewRegistry creates a registry. Any adapter may be nil when the
// deployment does not configure that backend.
func NewRegistry(gmail, graph, imap Provider) *Registry {
	return &Registry{
		gmail: gmail,
		graph: graph,
		imap:  imap,
	}
}

// ForKind resolves the adapter for a provider kind.
func (r *Registry) ForKind(kind string) (Provider, error) {
	var p Provider
	switch kind {
	case "gmail":
		p = r.gmail
	case "outlook", "exchange":
		p = r.graph
	case "imap", "pop3":
		p = r.imap
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, kind)
	}
	if p == nil {
		return nil, fmt.Errorf("%w: %s adapter not configured", ErrUnsupported, kind)
	}
	return p, nil
}

// FetchEmails implements the sync driver's Fetcher over the registry.
func (r *Registry) FetchEmails(ctx context.Context, inbox *models.InboxConfig) ([]models.InboundEmail, error) {
	p, err := r.ForKind(inbox.Provider)
	if err != nil {
		return nil, err
	}
	return p.FetchEmails(ctx, inbox)
}
