package config

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v4"
)

// Config is the top-level application configuration.
type Config struct {
	LogLevel           string  `yaml:"log_level"`
	Mailbox            Mailbox `yaml:"mailbox"`
	Search             string  `yaml:"search"`
	IncludeHeaderLinks bool    `yaml:"include_header_links"`
	Visit              Visit   `yaml:"visit"`
}

// Mailbox describes the mail store to scan.
type Mailbox struct {
	Type     string `yaml:"type"` // "imap", "pop3" or "mbox"
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	UseTLS   *bool  `yaml:"use_tls"`
	Folder   string `yaml:"folder"` // IMAP only
	Path     string `yaml:"path"`   // mbox only
}

// Visit controls how extracted links are visited.
type Visit struct {
	MaxAttempts       int   `yaml:"max_attempts"`
	BackoffFactorMS   int   `yaml:"backoff_factor_ms"`
	TimeoutSeconds    int   `yaml:"timeout_seconds"`
	RetryableStatuses []int `yaml:"retryable_statuses"`
	Workers           int   `yaml:"workers"`
}

// SearchQuery returns the mailbox search predicate, defaulting to "unsubscribe".
func (c *Config) SearchQuery() string {
	if c.Search == "" {
		return "unsubscribe"
	}
	return c.Search
}

// GetHost returns the mail server host, defaulting to Gmail's IMAP endpoint.
func (m *Mailbox) GetHost() string {
	if m.Host == "" {
		return "imap.gmail.com"
	}
	return m.Host
}

// GetPort returns the server port, defaulting by protocol and TLS mode.
func (m *Mailbox) GetPort() int {
	if m.Port != 0 {
		return m.Port
	}
	if m.Type == "pop3" {
		if m.GetUseTLS() {
			return 995
		}
		return 110
	}
	if m.GetUseTLS() {
		return 993
	}
	return 143
}

// GetUseTLS reports whether to connect over TLS, defaulting to on.
func (m *Mailbox) GetUseTLS() bool {
	if m.UseTLS == nil {
		return true
	}
	return *m.UseTLS
}

// GetFolder returns the IMAP folder name, defaulting to "INBOX".
func (m *Mailbox) GetFolder() string {
	if m.Folder == "" {
		return "INBOX"
	}
	return m.Folder
}

// GetMaxAttempts returns the total attempts per link, defaulting to 3.
func (v *Visit) GetMaxAttempts() int {
	if v.MaxAttempts <= 0 {
		return 3
	}
	return v.MaxAttempts
}

// GetBackoffFactor returns the retry backoff factor, defaulting to 300ms.
func (v *Visit) GetBackoffFactor() time.Duration {
	if v.BackoffFactorMS <= 0 {
		return 300 * time.Millisecond
	}
	return time.Duration(v.BackoffFactorMS) * time.Millisecond
}

// GetTimeout returns the per-request timeout, defaulting to 10 seconds.
func (v *Visit) GetTimeout() time.Duration {
	if v.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(v.TimeoutSeconds) * time.Second
}

// GetRetryableStatuses returns the status codes worth retrying, defaulting
// to 429, 500, 502, 503 and 504.
func (v *Visit) GetRetryableStatuses() []int {
	if len(v.RetryableStatuses) == 0 {
		return []int{429, 500, 502, 503, 504}
	}
	return v.RetryableStatuses
}

// GetWorkers returns how many links are visited concurrently, defaulting to 1.
func (v *Visit) GetWorkers() int {
	if v.Workers <= 0 {
		return 1
	}
	return v.Workers
}

// Load reads and parses a YAML configuration file, then applies environment
// overrides. An empty path starts from defaults so the tool can run on
// environment variables alone.
func Load(path string) (*Config, error) {
	cfg := &Config{
		LogLevel: "info",
		Mailbox:  Mailbox{Type: "imap"},
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// applyEnv overrides credentials from the environment. EMAIL and PASSWORD
// are how deployments usually pass them.
func (c *Config) applyEnv() {
	if v := os.Getenv("EMAIL"); v != "" {
		c.Mailbox.Username = v
	}
	if v := os.Getenv("PASSWORD"); v != "" {
		c.Mailbox.Password = v
	}
}

func (c *Config) validate() error {
	switch c.Mailbox.Type {
	case "imap", "pop3":
		if c.Mailbox.Type == "pop3" && c.Mailbox.Host == "" {
			return fmt.Errorf("mailbox.host is required for pop3")
		}
		if c.Mailbox.Username == "" {
			return fmt.Errorf("mailbox.username is required (or set EMAIL)")
		}
		if c.Mailbox.Password == "" {
			return fmt.Errorf("mailbox.password is required (or set PASSWORD)")
		}
	case "mbox":
		if c.Mailbox.Path == "" {
			return fmt.Errorf("mailbox.path is required for mbox")
		}
	default:
		return fmt.Errorf("mailbox.type must be imap, pop3 or mbox")
	}

	if c.Visit.MaxAttempts < 0 {
		return fmt.Errorf("visit.max_attempts must be at least 1")
	}
	for _, code := range c.Visit.RetryableStatuses {
		if code < 100 || code > 599 {
			return fmt.Errorf("visit.retryable_statuses: %d is not an HTTP status code", code)
		}
	}
	return nil
}
