//go:build windows

package suite

import "os/exec"

// windows has no process groups in the unix sense, the direct child is killed.
func setupProcessGroup(*exec.Cmd) {}

func newProcessGroup(cmd *exec.Cmd, cancel <-chan struct{}) *processGroup {
	pg := &processGroup{cmd: cmd, done: make(chan struct{})}
	go func() {
		select {
		case <-cancel:
			if cmd.Process != nil {
				_ = cmd.Process.Kill()
			}
		case <-pg.done:
		}
	}()
	return pg
}
