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
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/mail"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/traveldesk/mailroom/internal/models"
)

// Gmail fetches unread messages through the Gmail REST API. Tokens are
// provisioned out of band (the service never runs a browser consent flow);
// the configured token file must carry a refresh token.
type Gmail struct {
	srv        *gmail.Service
	fetchLimit int64
}

// NewGmail creates a Gmail adapter from an OAuth2 client credentials file
// and a stored token file.
func NewGmail(ctx context.Context, credentialsFile, tokenFile string) (*Gmail, error) {
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read gmail credentials: %w", err)
	}
	oauthConfig, err := google.ConfigFromJSON(b, gmail.GmailModifyScope)
	if err != nil {
		return nil, fmt.Errorf("parse gmail credentials: %w", err)
	}

	tok, err := tokenFromFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("read gmail token: %w", err)
	}

	srv, err := gmail.NewService(ctx, option.WithHTTPClient(oauthConfig.Client(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}

	return &Gmail{
		srv:        srv,
		fetchLimit: 50,
	}, nil
}

func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, err
	}
	return tok, nil
}

// FetchEmails lists the mailbox's unread inbox messages. Nothing is
// marked read until the whole batch has been retrieved; a failure
// mid-batch leaves every message unread for the next pass.
func (g *Gmail) FetchEmails(ctx context.Context, inbox *models.InboxConfig) ([]models.InboundEmail, error) {
	list, err := g.srv.Users.Messages.List("me").
		Q("in:inbox is:unread").
		MaxResults(g.fetchLimit).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("list gmail messages: %w", err)
	}

	emails := make([]models.InboundEmail, 0, len(list.Messages))
	ids := make([]string, 0, len(list.Messages))
	for _, stub := range list.Messages {
		msg, err := g.srv.Users.Messages.Get("me", stub.Id).Format("full").Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("get gmail message %s: %w", stub.Id, err)
		}
		emails = append(emails, parseGmailMessage(msg, inbox.EmailAddress))
		ids = append(ids, stub.Id)
	}

	if len(ids) > 0 {
		markRead := &gmail.BatchModifyMessagesRequest{
			Ids:            ids,
			RemoveLabelIds: []string{"UNREAD"},
		}
		// A failed mark leaves the batch unread and re-fetched next pass;
		// the dedup filter and ticket-number matching absorb the re-delivery.
		if err := g.srv.Users.Messages.BatchModify("me", markRead).Context(ctx).Do(); err != nil {
			slog.Warn("mark gmail batch read failed", "mailbox", inbox.EmailAddress, "count", len(ids), "error", err)
		}
	}

	return emails, nil
}

// parseGmailMessage converts a full-format Gmail message into an
// InboundEmail.
func parseGmailMessage(msg *gmail.Message, mailbox string) models.InboundEmail {
	email := models.InboundEmail{
		To:        mailbox,
		Date:      time.UnixMilli(msg.InternalDate).UTC(),
		MessageID: msg.Id,
		Headers:   make(map[string]string),
	}

	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			email.Headers[h.Name] = h.Value
			switch h.Name {
			case "Subject":
				email.Subject = h.Value
			case "From":
				email.From = plainAddress(h.Value)
			case "To":
				email.To = plainAddress(h.Value)
			case "Message-ID", "Message-Id":
				email.MessageID = h.Value
			}
		}
		email.Body = extractTextBody(msg.Payload)
	}

	return email
}

// plainAddress reduces "Name <addr@host>" to addr@host.
func plainAddress(header string) string {
	addr, err := mail.ParseAddress(header)
	if err != nil {
		return header
	}
	return addr.Address
}

// extractTextBody walks the MIME tree for the first text/plain part.
func extractTextBody(part *gmail.MessagePart) string {
	if part.MimeType == "text/plain" && part.Body != nil && part.Body.Data != "" {
		decoded, err := base64.URLEncoding.DecodeString(part.Body.Data)
		if err != nil {
			return ""
		}
		return string(decoded)
	}
	for _, child := range part.Parts {
		if body := extractTextBody(child); body != "" {
			return body
		}
	}
	return ""
}

// TestConnection verifies the token by fetching the mailbox profile.
func (g *Gmail) TestConnection(ctx context.Context, inbox *models.InboxConfig) error {
	if _, err := g.srv.Users.GetProfile("me").Context(ctx).Do(); err != nil {
		return fmt.Errorf("gmail profile: %w", err)
	}
	return nil
}
