package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFullConfig(t *testing.T) {
	t.Setenv("EMAIL", "")
	t.Setenv("PASSWORD", "")

	path := writeConfig(t, `
log_level: debug
mailbox:
  type: imap
  host: mail.example.com
  port: 1993
  username: me@example.com
  password: hunter2
  folder: Newsletters
search: opt-out
include_header_links: true
visit:
  max_attempts: 5
  backoff_factor_ms: 500
  timeout_seconds: 20
  retryable_statuses: [500, 503]
  workers: 4
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "imap", cfg.Mailbox.Type)
	assert.Equal(t, "mail.example.com", cfg.Mailbox.GetHost())
	assert.Equal(t, 1993, cfg.Mailbox.GetPort())
	assert.Equal(t, "me@example.com", cfg.Mailbox.Username)
	assert.Equal(t, "Newsletters", cfg.Mailbox.GetFolder())
	assert.Equal(t, "opt-out", cfg.SearchQuery())
	assert.True(t, cfg.IncludeHeaderLinks)
	assert.Equal(t, 5, cfg.Visit.GetMaxAttempts())
	assert.Equal(t, 500*time.Millisecond, cfg.Visit.GetBackoffFactor())
	assert.Equal(t, 20*time.Second, cfg.Visit.GetTimeout())
	assert.Equal(t, []int{500, 503}, cfg.Visit.GetRetryableStatuses())
	assert.Equal(t, 4, cfg.Visit.GetWorkers())
}

func TestLoadEnvironmentOnly(t *testing.T) {
	t.Setenv("EMAIL", "me@gmail.com")
	t.Setenv("PASSWORD", "app-password")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "imap", cfg.Mailbox.Type)
	assert.Equal(t, "imap.gmail.com", cfg.Mailbox.GetHost())
	assert.Equal(t, 993, cfg.Mailbox.GetPort())
	assert.True(t, cfg.Mailbox.GetUseTLS())
	assert.Equal(t, "INBOX", cfg.Mailbox.GetFolder())
	assert.Equal(t, "me@gmail.com", cfg.Mailbox.Username)
	assert.Equal(t, "app-password", cfg.Mailbox.Password)
	assert.Equal(t, "unsubscribe", cfg.SearchQuery())
	assert.False(t, cfg.IncludeHeaderLinks)
}

func TestLoadEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, `
mailbox:
  type: imap
  username: stale@example.com
  password: stale
`)
	t.Setenv("EMAIL", "fresh@example.com")
	t.Setenv("PASSWORD", "fresh-secret")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "fresh@example.com", cfg.Mailbox.Username)
	assert.Equal(t, "fresh-secret", cfg.Mailbox.Password)
}

func TestLoadDefaultVisitSettings(t *testing.T) {
	t.Setenv("EMAIL", "me@gmail.com")
	t.Setenv("PASSWORD", "pw")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Visit.GetMaxAttempts())
	assert.Equal(t, 300*time.Millisecond, cfg.Visit.GetBackoffFactor())
	assert.Equal(t, 10*time.Second, cfg.Visit.GetTimeout())
	assert.Equal(t, []int{429, 500, 502, 503, 504}, cfg.Visit.GetRetryableStatuses())
	assert.Equal(t, 1, cfg.Visit.GetWorkers())
}

func TestLoadValidation(t *testing.T) {
	t.Setenv("EMAIL", "")
	t.Setenv("PASSWORD", "")

	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "missing credentials",
			yaml: `
mailbox:
  type: imap
`,
			wantErr: "mailbox.username",
		},
		{
			name: "pop3 requires host",
			yaml: `
mailbox:
  type: pop3
  username: me@example.com
  password: pw
`,
			wantErr: "mailbox.host",
		},
		{
			name: "mbox requires path",
			yaml: `
mailbox:
  type: mbox
`,
			wantErr: "mailbox.path",
		},
		{
			name: "unknown type",
			yaml: `
mailbox:
  type: carrier-pigeon
`,
			wantErr: "mailbox.type",
		},
		{
			name: "bogus retryable status",
			yaml: `
mailbox:
  type: imap
  username: me@example.com
  password: pw
visit:
  retryable_statuses: [9000]
`,
			wantErr: "retryable_statuses",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.yaml)
			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMailboxPortDefaults(t *testing.T) {
	off := false
	tests := []struct {
		name string
		mb   Mailbox
		want int
	}{
		{"imap tls", Mailbox{Type: "imap"}, 993},
		{"imap plain", Mailbox{Type: "imap", UseTLS: &off}, 143},
		{"pop3 tls", Mailbox{Type: "pop3"}, 995},
		{"pop3 plain", Mailbox{Type: "pop3", UseTLS: &off}, 110},
		{"explicit wins", Mailbox{Type: "imap", Port: 2993}, 2993},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.mb.GetPort())
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")
}

func TestUseTLSExplicitFalse(t *testing.T) {
	path := writeConfig(t, `
mailbox:
  type: imap
  host: localhost
  username: me
  password: pw
  use_tls: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.Mailbox.GetUseTLS())
	assert.Equal(t, 143, cfg.Mailbox.GetPort())
}
