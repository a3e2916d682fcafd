package suite

import (
	"errors"
	"fmt"
	"os/exec"
	"sync"
)

// processGroup kills the whole process tree of a command on cancellation.
// go test spawns the compiled test binary, which spawns the playwright driver and the browser,
// so killing the direct child alone would leave them running.
type processGroup struct {
	cmd  *exec.Cmd
	done chan struct{}
	once sync.Once
	err  error
}

// Wait waits for the command and stops the cancel watcher. repeated calls return the same result.
func (pg *processGroup) Wait() error {
	pg.once.Do(func() {
		pg.err = pg.cmd.Wait()
		close(pg.done)
		if pg.err != nil {
			pg.err = fmt.Errorf("command wait: %w", pg.err)
		}
	})
	return pg.err
}

// exitCode returns the exit code carried by err, -1 if there is none.
func exitCode(err error) int {
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}
	return -1
}
