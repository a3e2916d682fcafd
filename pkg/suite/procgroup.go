//go:build !windows

package suite

import (
	"os/exec"
	"syscall"
	"time"
)

// killGrace is the pause between SIGTERM and SIGKILL of the process group.
const killGrace = 100 * time.Millisecond

// setupProcessGroup makes the command the leader of a new process group.
func setupProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// newProcessGroup watches cancel for a started command. Wait must be called to stop the watcher.
func newProcessGroup(cmd *exec.Cmd, cancel <-chan struct{}) *processGroup {
	pg := &processGroup{cmd: cmd, done: make(chan struct{})}
	go func() {
		select {
		case <-cancel:
			pg.kill()
		case <-pg.done:
		}
	}()
	return pg
}

// kill sends SIGTERM to the group, then SIGKILL after a short grace period.
func (pg *processGroup) kill() {
	if pg.cmd.Process == nil {
		return
	}
	pgid := -pg.cmd.Process.Pid
	if err := syscall.Kill(pgid, syscall.SIGTERM); err != nil {
		return // ESRCH, already gone
	}
	time.Sleep(killGrace)
	_ = syscall.Kill(pgid, syscall.SIGKILL)
}

