package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "openair.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultHost, cfg.Host)
	require.Len(t, cfg.Allocations, 1)
	assert.Equal(t, training, cfg.Allocations[0])
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
host: sandbox.openair.com
timesheet_url: https://sandbox.openair.com/timesheet.pl?uid=1;app=ta;action=grid;timesheet_id=2
cookie: "session=abc; lang=en"
history_db: /tmp/history.db
browser:
  debugger_url: ws://127.0.0.1:9222/devtools/browser/x
  headless: true
  navigation_timeout: 5s
allocations:
  - project_id: "12:34"
    task_id: 56
    hours: 4
    comment: Client work
  - project_id: "88:223"
    task_id: 737
    hours: 4
    comment: Training
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "sandbox.openair.com", cfg.Host)
	assert.Equal(t, "https://sandbox.openair.com/", cfg.BaseURL())
	assert.Equal(t, "/tmp/history.db", cfg.HistoryDB)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, "ws://127.0.0.1:9222/devtools/browser/x", cfg.Browser.DebuggerURL)

	timeout, err := cfg.Browser.Timeout()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, timeout)

	require.Len(t, cfg.Allocations, 2)
	assert.Equal(t, Allocation{ProjectID: "12:34", TaskID: 56, Hours: 4, Comment: "Client work"}, cfg.Allocations[0])

	cookies, err := cfg.Cookies()
	require.NoError(t, err)
	require.Len(t, cookies, 2)
	assert.Equal(t, "session", cookies[0].Name)
	assert.Equal(t, "abc", cookies[0].Value)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	path := writeConfig(t, "cookie: from-file=1\n")
	t.Setenv("OPENAIR_COOKIE", "from-env=2")
	t.Setenv("OPENAIR_TIMESHEET_URL", "https://example.test/timesheet.pl")
	t.Setenv("OPENAIR_DEBUGGER_URL", "ws://127.0.0.1:9333")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env=2", cfg.Cookie)
	assert.Equal(t, "https://example.test/timesheet.pl", cfg.TimesheetURL)
	assert.Equal(t, "ws://127.0.0.1:9333", cfg.Browser.DebuggerURL)
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		msg  string
	}{
		{name: "yaml", body: "host: [", msg: "parse config"},
		{name: "no allocations", body: "allocations: []\n", msg: "no allocations"},
		{name: "empty host", body: "host: \"\"\n", msg: "host is empty"},
		{name: "timeout", body: "browser:\n  navigation_timeout: soon\n", msg: "navigation_timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestConfigNoCookie(t *testing.T) {
	cookies, err := DefaultConfig().Cookies()
	require.NoError(t, err)
	assert.Nil(t, cookies)
}
