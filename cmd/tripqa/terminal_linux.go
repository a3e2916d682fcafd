//go:build !darwin && !freebsd && !openbsd && !netbsd && !dragonfly && !windows

package main

import "golang.org/x/sys/unix"

// linux and the remaining unixes use TCGETS and TCSETS.
const (
	getTermios = unix.TCGETS
	setTermios = unix.TCSETS
)
