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
	"fmt"
	"io"
	"log/slog"
	"net/mail"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"

	"github.com/traveldesk/mailroom/internal/models"
)

// IMAP fetches unseen messages from a generic IMAP mailbox. POP3-kind
// inboxes use this adapter too; virtually every provider that still
// offers POP3 exposes the same mailbox over IMAP.
type IMAP struct {
	fetchLimit int
	timeout    time.Duration
}

// NewIMAP creates an IMAP adapter.
func NewIMAP() *IMAP {
	return &IMAP{
		fetchLimit: 50,
		timeout:    30 * time.Second,
	}
}

// FetchEmails connects to the inbox's IMAP server, searches for unseen
// messages, and returns them oldest first. Bodies are fetched with a
// peek, so nothing is marked seen until the whole batch has parsed; a
// failure mid-batch leaves every message unseen for the next pass.
func (p *IMAP) FetchEmails(ctx context.Context, inbox *models.InboxConfig) ([]models.InboundEmail, error) {
	c, err := p.dial(inbox.Settings)
	if err != nil {
		return nil, err
	}
	defer c.Logout()

	if err := c.Login(inbox.Settings.User, inbox.Settings.Password); err != nil {
		return nil, fmt.Errorf("imap login %s: %w", inbox.Settings.User, err)
	}

	if _, err := c.Select("INBOX", false); err != nil {
		return nil, fmt.Errorf("imap select INBOX: %w", err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	ids, err := c.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("imap search unseen: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > p.fetchLimit {
		ids = ids[:p.fetchLimit]
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, section.FetchItem()}

	messages := make(chan *imap.Message, len(ids))
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqset, items, messages)
	}()

	var emails []models.InboundEmail
	for msg := range messages {
		email, err := parseIMAPMessage(msg, section, inbox.EmailAddress)
		if err != nil {
			return nil, fmt.Errorf("parse message seq %d: %w", msg.SeqNum, err)
		}
		emails = append(emails, email)
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("imap fetch: %w", err)
	}

	// The batch is complete; only now flag it seen. A failed store leaves
	// the messages unseen and re-fetched next pass, which the dedup filter
	// and ticket-number matching absorb.
	item := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := c.Store(seqset, item, []interface{}{imap.SeenFlag}, nil); err != nil {
		slog.Warn("imap mark seen failed", "mailbox", inbox.EmailAddress, "count", len(emails), "error", err)
	}

	return emails, nil
}

// parseIMAPMessage converts a fetched IMAP message into an InboundEmail.
// The envelope supplies the routing fields; the raw body is re-parsed for
// headers the envelope does not carry (priority hints live there).
func parseIMAPMessage(msg *imap.Message, section *imap.BodySectionName, mailbox string) (models.InboundEmail, error) {
	env := msg.Envelope
	if env == nil {
		return models.InboundEmail{}, fmt.Errorf("missing envelope")
	}

	email := models.InboundEmail{
		To:        mailbox,
		Subject:   env.Subject,
		Date:      env.Date,
		MessageID: env.MessageId,
		Headers:   make(map[string]string),
	}
	if len(env.From) > 0 {
		email.From = env.From[0].Address()
	}
	if len(env.To) > 0 {
		email.To = env.To[0].Address()
	}

	raw := msg.GetBody(section)
	if raw == nil {
		return email, nil
	}

	parsed, err := mail.ReadMessage(raw)
	if err != nil {
		return models.InboundEmail{}, fmt.Errorf("read message body: %w", err)
	}
	for name := range parsed.Header {
		email.Headers[name] = parsed.Header.Get(name)
	}
	body, err := io.ReadAll(parsed.Body)
	if err != nil {
		return models.InboundEmail{}, fmt.Errorf("read body: %w", err)
	}
	email.Body = string(body)

	return email, nil
}

// TestConnection dials and authenticates without touching any mailbox.
func (p *IMAP) TestConnection(ctx context.Context, inbox *models.InboxConfig) error {
	settings := inbox.Settings
	if settings.Host == "" || settings.User == "" || settings.Password == "" {
		return fmt.Errorf("missing required connection parameters")
	}

	c, err := p.dial(settings)
	if err != nil {
		return err
	}
	defer c.Logout()

	if err := c.Login(settings.User, settings.Password); err != nil {
		return fmt.Errorf("imap login %s: %w", settings.User, err)
	}
	return nil
}

func (p *IMAP) dial(settings models.ConnectionSettings) (*client.Client, error) {
	addr := fmt.Sprintf("%s:%d", settings.Host, settings.Port)

	var (
		c   *client.Client
		err error
	)
	if settings.Secure {
		c, err = client.DialTLS(addr, nil)
	} else {
		c, err = client.Dial(addr)
	}
	if err != nil {
		return nil, fmt.Errorf("imap dial %s: %w", addr, err)
	}
	c.Timeout = p.timeout
	return c, nil
}
