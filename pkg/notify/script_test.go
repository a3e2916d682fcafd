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

func TestScriptSender(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts")
	}

	t.Run("result piped as json", func(t *testing.T) {
		dir := t.TempDir()
		got := filepath.Join(dir, "got.json")
		script := filepath.Join(dir, "capture.sh")
		require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\ncat > "+got+"\n"), 0o700)) //nolint:gosec // executable

		r := Result{Status: StatusFailure, RunID: "run-7", Total: 5, Passed: 4, Failed: 1, Failures: []string{"e2e.TestAPI_Users"}}
		require.NoError(t, scriptSender{path: script}.send(context.Background(), r, "ignored text"))

		data, err := os.ReadFile(got) //nolint:gosec // temp dir
		require.NoError(t, err)
		var back Result
		require.NoError(t, json.Unmarshal(data, &back))
		assert.Equal(t, r, back)
	})

	t.Run("failure includes output", func(t *testing.T) {
		err := scriptSender{path: "testdata/fail_with_stdout.sh"}.send(context.Background(), Result{}, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exit status 2")
		assert.Contains(t, err.Error(), "stdout info")
		assert.Contains(t, err.Error(), "stderr info")
	})

	t.Run("stderr only", func(t *testing.T) {
		err := scriptSender{path: "testdata/fail.sh"}.send(context.Background(), Result{}, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "script failed")
	})

	t.Run("missing script", func(t *testing.T) {
		err := scriptSender{path: "testdata/nope.sh"}.send(context.Background(), Result{}, "")
		require.Error(t, err)
	})

	t.Run("timeout", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		start := time.Now()
		err := scriptSender{path: "testdata/slow.sh"}.send(ctx, Result{}, "")
		require.Error(t, err)
		assert.Less(t, time.Since(start), 4*time.Second)
	})

	assert.Equal(t, "script /opt/notify.sh", scriptSender{path: "/opt/notify.sh"}.String())
}
