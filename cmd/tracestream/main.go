package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/vango-dev/tracestream/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ┌┬┐┬─┐┌─┐┌─┐┌─┐┌─┐┌┬┐┬─┐┌─┐┌─┐┌┬┐
   │ ├┬┘├─┤│  ├┤ └─┐ │ ├┬┘├┤ ├─┤│││
   ┴ ┴└─┴ ┴└─┘└─┘└─┘ ┴ ┴└─└─┘┴ ┴┴ ┴
`

func main() {
	rootCmd := &cobra.Command{
		Use:   "tracestream",
		Short: "Debug trace streamer for NES emulators",
		Long: `tracestream streams emulator state to one debugging tool at a time.

The streamer listens on the first free port of 127.0.0.1:63783-63792 and
speaks a small binary protocol: a Hello handshake, an Info frame describing
the cartridge and Sync frames with CPU and PPU position.

  • serve runs the streamer against a simulated NES
  • probe connects to a running streamer and prints what it sends`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		probeCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		errors.PrintError(err)
		os.Exit(1)
	}
}

// printBanner prints the ASCII art banner.
func printBanner() {
	fmt.Print(banner)
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}

// warn prints a warning message.
func warn(format string, args ...any) {
	fmt.Printf("\033[33m⚠\033[0m %s\n", fmt.Sprintf(format, args...))
}
