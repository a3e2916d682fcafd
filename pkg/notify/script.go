package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// scriptSender pipes the result as json to a user script.
// the script gets the raw result, not the formatted text, so it can format it itself.
type scriptSender struct {
	path string
}

func (s scriptSender) send(ctx context.Context, r Result, _ string) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, s.path) //nolint:gosec // path from config
	cmd.Stdin = bytes.NewReader(data)
	cmd.Stdout, cmd.Stderr = &out, &out
	cmd.WaitDelay = time.Second // children of a killed script may hold the output open
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(out.String()); msg != "" {
			return fmt.Errorf("run %s: %w: %s", s.path, err, msg)
		}
		return fmt.Errorf("run %s: %w", s.path, err)
	}
	return nil
}

func (s scriptSender) String() string { return "script " + s.path }
