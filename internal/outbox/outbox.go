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

// Package outbox dispatches auto-replies. Two senders are provided: a
// direct SMTP sender for single-process deployments, and a Redis queue
// publisher for deployments where a separate mailer worker drains the
// outbound queue. Either satisfies the router's ReplySender contract.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/traveldesk/mailroom/internal/models"
)

// SMTPConfig holds the relay settings for the direct sender.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
}

// SMTPSender delivers auto-replies through an SMTP relay.
type SMTPSender struct {
	cfg SMTPConfig
}

// NewSMTPSender creates a direct SMTP sender.
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &SMTPSender{cfg: cfg}
}

// SendAutoReply composes an RFC 5322 message and submits it to the relay.
// The From address is the inbox's own mailbox address.
func (s *SMTPSender) SendAutoReply(ctx context.Context, to, subject, body string, inbox *models.InboxConfig) error {
	from := inbox.EmailAddress

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	auth := sasl.NewPlainClient("", s.cfg.User, s.cfg.Password)

	if err := smtp.SendMail(addr, auth, from, []string{to}, strings.NewReader(msg.String())); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}

	slog.Info("auto-reply sent",
		"to", to,
		"from", from,
		"subject", subject,
	)
	return nil
}

// replyJob is the payload the mailer worker consumes from Redis.
type replyJob struct {
	ID       string `json:"id"`
	To       string `json:"to"`
	From     string `json:"from"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
	InboxID  string `json:"inbox_id"`
	QueuedAt string `json:"queued_at"`
}

// QueuePublisher enqueues auto-replies to Redis for a mailer worker.
type QueuePublisher struct {
	rdb       *redis.Client
	queueName string
}

// NewQueuePublisher creates a publisher targeting the given queue.
func NewQueuePublisher(rdb *redis.Client, queueName string) *QueuePublisher {
	return &QueuePublisher{
		rdb:       rdb,
		queueName: queueName,
	}
}

// SendAutoReply serialises the reply as a job and pushes it to the queue.
func (p *QueuePublisher) SendAutoReply(ctx context.Context, to, subject, body string, inbox *models.InboxConfig) error {
	job := replyJob{
		ID:       uuid.New().String(),
		To:       to,
		From:     inbox.EmailAddress,
		Subject:  subject,
		Body:     body,
		InboxID:  inbox.ID,
		QueuedAt: time.Now().UTC().Format(time.RFC3339),
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal reply job: %w", err)
	}

	if err := p.rdb.LPush(ctx, p.queueName, payload).Err(); err != nil {
		return fmt.Errorf("redis LPUSH: %w", err)
	}

	slog.Info("queued auto-reply",
		"job_id", job.ID,
		"to", to,
		"queue", p.queueName,
	)
	return nil
}

// Ping checks the Redis connection.
func (p *QueuePublisher) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return p.rdb.Ping(ctx).Err()
}
