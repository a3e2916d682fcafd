//go:build windows

package main

func disableCtrlCEcho() func() { return func() {} }
