//go:build windows

package main

import "os"

// controlSignals returns nil signals; reset and reload are not available.
func controlSignals() (reset, reload os.Signal) {
	return nil, nil
}
