package notify

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "notify.sh")
	err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o700) //nolint:gosec // test script needs exec bit
	require.NoError(t, err)
	return path
}

func TestCustomChannel_Send(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported on windows")
	}

	t.Run("pipes json to script stdin", func(t *testing.T) {
		out := filepath.Join(t.TempDir(), "event.json")
		ch := newCustomChannel(writeScript(t, "cat > "+out))
		e := Event{RunID: "r1", Status: "delivered", Request: "a cat", Backend: "gemini", Reason: "delivered", Artifact: "🐱"}

		require.NoError(t, ch.send(context.Background(), e))

		data, err := os.ReadFile(out) //nolint:gosec // path from t.TempDir()
		require.NoError(t, err)
		var got Event
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, e, got)
	})

	t.Run("non-zero exit includes stderr", func(t *testing.T) {
		ch := newCustomChannel(writeScript(t, "echo 'script failed' >&2\nexit 1"))
		err := ch.send(context.Background(), Event{Status: "failed"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "script failed")
	})

	t.Run("timeout kills script", func(t *testing.T) {
		ch := newCustomChannel(writeScript(t, "exec sleep 5"))
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		require.Error(t, ch.send(ctx, Event{Status: "delivered"}))
	})

	t.Run("nonexistent script", func(t *testing.T) {
		ch := newCustomChannel("/nonexistent/script.sh")
		err := ch.send(context.Background(), Event{Status: "delivered"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "script /nonexistent/script.sh")
	})
}
