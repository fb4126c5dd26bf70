//go:build !windows

package main

import (
	"os"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// disableCtrlCEcho turns off ECHOCTL while the server runs, so stopping it with Ctrl+C
// leaves no "^C" in front of the shutdown log line. the returned func restores the terminal.
func disableCtrlCEcho() func() {
	noop := func() {}
	fd := int(os.Stdin.Fd()) //nolint:gosec // fd fits int
	if !term.IsTerminal(fd) {
		return noop
	}

	tio, err := unix.IoctlGetTermios(fd, ioctlReadTermios)
	if err != nil {
		return noop
	}
	saved := *tio
	tio.Lflag &^= unix.ECHOCTL
	if err := unix.IoctlSetTermios(fd, ioctlWriteTermios, tio); err != nil {
		return noop
	}
	return func() { _ = unix.IoctlSetTermios(fd, ioctlWriteTermios, &saved) }
}
