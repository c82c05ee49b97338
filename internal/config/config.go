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

// Package config loads configuration from config.yaml and environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// GraphConfig holds client-credentials for the Microsoft Graph tenant
// serving outlook and exchange inboxes.
type GraphConfig struct {
	TenantID     string `yaml:"tenant_id"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// GmailConfig points at the OAuth2 material for Gmail inboxes.
type GmailConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	TokenFile       string `yaml:"token_file"`
}

// SMTPConfig holds the outbound relay used for direct auto-replies.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// Config holds all configuration for the mailroom service.
type Config struct {
	DatabaseURL  string
	RedisURL     string
	RepliesQueue string

	// ReplyTransport selects the auto-reply dispatch path: "smtp" for the
	// direct sender, "queue" for the Redis mailer queue.
	ReplyTransport string

	SyncInterval time.Duration
	DedupEnabled bool

	Graph GraphConfig
	Gmail GmailConfig
	SMTP  SMTPConfig

	Port int
}

// rawConfig mirrors the YAML structure for unmarshalling.
type rawConfig struct {
	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`
	Redis struct {
		URL    string `yaml:"url"`
		Queues struct {
			Replies string `yaml:"replies"`
		} `yaml:"queues"`
	} `yaml:"redis"`
	ReplyTransport string      `yaml:"reply_transport"`
	Graph          GraphConfig `yaml:"graph"`
	Gmail          GmailConfig `yaml:"gmail"`
	SMTP           SMTPConfig  `yaml:"smtp"`
}

// Load reads configuration from config.yaml (with env var expansion) and
// environment variables for non-YAML settings.
func Load() (*Config, error) {
	configPath := envOrDefault("CONFIG_PATH", "/app/config/config.yaml")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", configPath, err)
	}

	// Expand ${VAR} references in the YAML
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config YAML: %w", err)
	}

	cfg := &Config{
		DatabaseURL:    firstNonEmpty(raw.Database.URL, envOrDefault("DATABASE_URL", "")),
		RedisURL:       firstNonEmpty(raw.Redis.URL, envOrDefault("REDIS_URL", "redis://localhost:6379/0")),
		RepliesQueue:   firstNonEmpty(raw.Redis.Queues.Replies, envOrDefault("REPLIES_QUEUE", "replies")),
		ReplyTransport: firstNonEmpty(raw.ReplyTransport, envOrDefault("REPLY_TRANSPORT", "smtp")),
		SyncInterval:   envOrDefaultDuration("SYNC_INTERVAL", 60*time.Second),
		DedupEnabled:   envOrDefaultBool("DEDUP_ENABLED", true),
		Graph:          raw.Graph,
		Gmail:          raw.Gmail,
		SMTP:           raw.SMTP,
		Port:           envOrDefaultInt("PORT", 8080),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("database URL is required: set database.url in config.yaml or DATABASE_URL")
	}

	switch cfg.ReplyTransport {
	case "smtp", "queue":
	default:
		return nil, fmt.Errorf("unknown reply_transport %q, expected smtp or queue", cfg.ReplyTransport)
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envOrDefaultBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
