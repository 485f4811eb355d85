//go:build !windows

package main

import (
	"os"
	"syscall"
)

// controlSignals returns the signals that reset the console and reload the
// ROM.
func controlSignals() (reset, reload os.Signal) {
	return syscall.SIGHUP, syscall.SIGUSR1
}
