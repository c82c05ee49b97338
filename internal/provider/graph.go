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
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/traveldesk/mailroom/internal/models"
)

// DefaultGraphBaseURL is the production Microsoft Graph endpoint.
const DefaultGraphBaseURL = "https://graph.microsoft.com/v1.0"

// Graph fetches unread messages for outlook and exchange inboxes via the
// Microsoft Graph API. The HTTP client carries OAuth2 client-credentials
// tokens for the tenant.
type Graph struct {
	httpClient *http.Client
	baseURL    string
	pageSize   int
}

// NewGraph creates a Graph adapter.
func NewGraph(httpClient *http.Client, baseURL string) *Graph {
	if baseURL == "" {
		baseURL = DefaultGraphBaseURL
	}
	return &Graph{
		httpClient: httpClient,
		baseURL:    baseURL,
		pageSize:   50,
	}
}

// graphMessage represents the relevant fields of a Graph API message.
type graphMessage struct {
	ID                string `json:"id"`
	InternetMessageID string `json:"internetMessageId"`
	Subject           string `json:"subject"`
	ReceivedDateTime  string `json:"receivedDateTime"`
	From              struct {
		EmailAddress struct {
			Address string `json:"address"`
			Name    string `json:"name"`
		} `json:"emailAddress"`
	} `json:"from"`
	ToRecipients []struct {
		EmailAddress struct {
			Address string `json:"address"`
		} `json:"emailAddress"`
	} `json:"toRecipients"`
	Body struct {
		ContentType string `json:"contentType"`
		Content     string `json:"content"`
	} `json:"body"`
	InternetMessageHeaders []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	} `json:"internetMessageHeaders"`
}

// messagesResponse is a page of the /messages list response.
type messagesResponse struct {
	Value    []graphMessage `json:"value"`
	NextLink string         `json:"@odata.nextLink"`
}

// FetchEmails lists the inbox's unread messages. A single page bounded by
// pageSize; the next sync pass picks up the remainder.
func (g *Graph) FetchEmails(ctx context.Context, inbox *models.InboxConfig) ([]models.InboundEmail, error) {
	params := url.Values{}
	params.Set("$filter", "isRead eq false")
	params.Set("$select", "id,internetMessageId,subject,receivedDateTime,from,toRecipients,body,internetMessageHeaders")
	params.Set("$top", fmt.Sprintf("%d", g.pageSize))
	params.Set("$orderby", "receivedDateTime asc")

	reqURL := fmt.Sprintf("%s/users/%s/mailFolders/inbox/messages?%s",
		g.baseURL, url.PathEscape(inbox.EmailAddress), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build messages request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Prefer", "outlook.body-content-type=\"text\"")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		slog.Error("graph messages query error", "status", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("graph API returned HTTP %d for mailbox %s", resp.StatusCode, inbox.EmailAddress)
	}

	var page messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode messages response: %w", err)
	}

	emails := make([]models.InboundEmail, 0, len(page.Value))
	for _, msg := range page.Value {
		emails = append(emails, parseGraphMessage(msg, inbox.EmailAddress))
	}

	return emails, nil
}

// parseGraphMessage converts a Graph API message into an InboundEmail.
func parseGraphMessage(msg graphMessage, mailbox string) models.InboundEmail {
	headers := make(map[string]string, len(msg.InternetMessageHeaders))
	for _, h := range msg.InternetMessageHeaders {
		headers[h.Name] = h.Value
	}

	to := mailbox
	if len(msg.ToRecipients) > 0 {
		to = msg.ToRecipients[0].EmailAddress.Address
	}

	date, err := time.Parse(time.RFC3339, msg.ReceivedDateTime)
	if err != nil {
		date = time.Now().UTC()
	}

	messageID := msg.InternetMessageID
	if messageID == "" {
		messageID = msg.ID
	}

	return models.InboundEmail{
		From:      msg.From.EmailAddress.Address,
		To:        to,
		Subject:   msg.Subject,
		Body:      msg.Body.Content,
		Date:      date,
		MessageID: messageID,
		Headers:   headers,
	}
}

// TestConnection verifies the mailbox is reachable with the current token.
func (g *Graph) TestConnection(ctx context.Context, inbox *models.InboxConfig) error {
	reqURL := fmt.Sprintf("%s/users/%s?$select=id", g.baseURL, url.PathEscape(inbox.EmailAddress))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("reach graph API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("graph API returned HTTP %d for mailbox %s", resp.StatusCode, inbox.EmailAddress)
	}
	return nil
}
