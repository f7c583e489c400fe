package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.True(t, cfg.Browser.Headless)
	assert.True(t, cfg.Browser.NoSandbox)
	assert.Equal(t, int64(1920), cfg.Browser.ViewportWidth)
	assert.Equal(t, int64(1080), cfg.Browser.ViewportHeight)
	assert.Equal(t, "en-US", cfg.Browser.Locale)
	assert.Equal(t, "/tmp/twitter_session.json", cfg.Session.StatePath)
	assert.Equal(t, 30*time.Second, cfg.Timing.NavigationTimeout)
	assert.Equal(t, 15*time.Second, cfg.Timing.IdentifierTimeout)
	assert.Equal(t, 50*time.Millisecond, cfg.Timing.LoginKeyDelay.Min)
	assert.Equal(t, 150*time.Millisecond, cfg.Timing.LoginKeyDelay.Max)
	assert.Equal(t, `[data-testid="primaryColumn"]`, cfg.Selectors.HomeSignature)
	assert.Equal(t, "next", cfg.Selectors.NextLabel)
}

func TestTargetURLs(t *testing.T) {
	target := Default().Target

	assert.Equal(t, "https://x.com/home", target.HomeURL())
	assert.Equal(t, "https://x.com/i/flow/login", target.LoginURL())
	assert.Equal(t, "https://x.com/i/status/12345", target.StatusURL("12345"))

	target.BaseURL = "https://example.test/"
	assert.Equal(t, "https://example.test/home", target.HomeURL())
}

func TestLoadConfig_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
browser:
  headless: false
  locale: de-DE
session:
  statePath: /var/lib/xsession/state.json
timing:
  pageSettle: 1500ms
  composeKeyDelay:
    min: 10ms
    max: 20ms
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, "de-DE", cfg.Browser.Locale)
	assert.Equal(t, "/var/lib/xsession/state.json", cfg.Session.StatePath)
	assert.Equal(t, 1500*time.Millisecond, cfg.Timing.PageSettle)
	assert.Equal(t, 10*time.Millisecond, cfg.Timing.ComposeKeyDelay.Min)
	// Untouched keys keep their defaults.
	assert.Equal(t, 10*time.Second, cfg.Timing.PasswordTimeout)
}

func TestLoadConfig_CredentialsFromEnvironment(t *testing.T) {
	t.Setenv("TWITTER_USERNAME", "someone")
	t.Setenv("TWITTER_EMAIL", "someone@example.com")
	t.Setenv("TWITTER_PASSWORD", "hunter2")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "someone", cfg.Credentials.Username)
	assert.Equal(t, "someone@example.com", cfg.Credentials.Email)
	assert.Equal(t, "hunter2", cfg.Credentials.Password)
}

func TestLoadConfig_PrefixedEnvironment(t *testing.T) {
	t.Setenv("XSESSION_SESSION_STATEPATH", "/tmp/other.json")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/other.json", cfg.Session.StatePath)
}

func TestLoadConfig_ExpandsHome(t *testing.T) {
	t.Setenv("XSESSION_SESSION_STATEPATH", "~/.xsession/state.json")
	t.Setenv("XSESSION_LOG_FILE", "~/logs/xsession.log")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	home, err := homedir.Dir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".xsession", "state.json"), cfg.Session.StatePath)
	assert.Equal(t, filepath.Join(home, "logs", "xsession.log"), cfg.Log.File)
	assert.Empty(t, cfg.Browser.ExecutablePath)
}

func TestLoadConfig_RejectsOtherUsersHome(t *testing.T) {
	t.Setenv("XSESSION_SESSION_STATEPATH", "~bob/state.json")

	_, err := LoadConfig("")
	assert.ErrorContains(t, err, "expand path")
}
