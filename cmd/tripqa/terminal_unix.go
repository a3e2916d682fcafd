//go:build !windows

package main

import (
	"os"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// disableCtrlCEcho stops the terminal from printing "^C" in the middle of a task line
// when the run is interrupted, teardown keeps logging after that. returns the undo func,
// a no-op when stdin is not a terminal.
func disableCtrlCEcho() func() {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return func() {}
	}
	tio, err := unix.IoctlGetTermios(fd, getTermios)
	if err != nil {
		return func() {}
	}
	prev := *tio
	tio.Lflag &^= unix.ECHOCTL
	if err := unix.IoctlSetTermios(fd, setTermios, tio); err != nil {
		return func() {}
	}
	return func() { _ = unix.IoctlSetTermios(fd, setTermios, &prev) }
}
