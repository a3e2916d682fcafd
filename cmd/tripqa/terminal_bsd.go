//go:build darwin || freebsd || openbsd || netbsd || dragonfly

package main

import "golang.org/x/sys/unix"

// the BSD family, macOS included, names the termios ioctls TIOCGETA and TIOCSETA.
const (
	getTermios = unix.TIOCGETA
	setTermios = unix.TIOCSETA
)
