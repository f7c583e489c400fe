package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/copyleftdev/xsession/internal/actiontypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	state := filepath.Join(t.TempDir(), "session.json")
	cmd.SetArgs(append([]string{"--state", state}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func decode(t *testing.T, line string) actiontypes.Outcome {
	t.Helper()
	var out actiontypes.Outcome
	require.NoError(t, json.Unmarshal([]byte(line), &out))
	return out
}

func TestRoot_NoAction(t *testing.T) {
	stdout, err := execute(t)
	require.NoError(t, err)

	assert.JSONEq(t, `{"success":false,"error":"No action specified. Usage: xsession <login|tweet|reply> [args...]"}`, stdout)
}

func TestRoot_ArgumentErrorsNeedNoBrowser(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"tweet"}, "No tweet text provided"},
		{[]string{"reply", "12345"}, "Need tweet_id and text"},
		{[]string{"tweet", "hello", "world"}, "Tweet takes one argument, got 2; quote the text"},
		// Arguments after the action are never parsed as flags.
		{[]string{"reply", "--headless"}, "Need tweet_id and text"},
	}
	for _, tt := range tests {
		t.Run(tt.args[0], func(t *testing.T) {
			stdout, err := execute(t, tt.args...)
			require.NoError(t, err)

			out := decode(t, stdout)
			assert.False(t, out.Success)
			assert.Equal(t, tt.want, out.Error)
		})
	}
}

func TestRoot_OutcomeIsOneLine(t *testing.T) {
	stdout, err := execute(t, "tweet")
	require.NoError(t, err)
	assert.Equal(t, 1, bytes.Count([]byte(stdout), []byte("\n")))
}

func TestRoot_MissingConfigFile(t *testing.T) {
	stdout, err := execute(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"), "login")
	require.Error(t, err)
	assert.Empty(t, stdout)
}
