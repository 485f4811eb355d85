package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/spf13/cobra"
	"github.com/vango-dev/tracestream/internal/errors"
	"github.com/vango-dev/tracestream/pkg/client"
	"github.com/vango-dev/tracestream/pkg/protocol"
	"github.com/vango-dev/tracestream/pkg/server"
)

type probeOptions struct {
	host         string
	portStart    int
	portAttempts int
	watch        time.Duration
	timeout      time.Duration
}

func probeCmd() *cobra.Command {
	opts := probeOptions{
		host:         "127.0.0.1",
		portStart:    int(server.DefaultPortStart),
		portAttempts: server.DefaultPortAttempts,
		watch:        500 * time.Millisecond,
		timeout:      client.DefaultTimeout,
	}

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Connect to a running trace streamer and print its frames",
		Long: `Connect to the first trace streamer found in the port range, perform the
handshake and print every frame received for the --watch period. The probe
ends the session with Goodbye and prints the acknowledgement.

Examples:
  tracestream probe
  tracestream probe --watch=10s
  tracestream probe --port-start=47000 --port-attempts=1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.portStart < 1 || opts.portStart+opts.portAttempts-1 > 65535 || opts.portAttempts < 1 {
				return errors.New("T040").
					WithDetail(fmt.Sprintf("port range %d+%d is outside 1-65535", opts.portStart, opts.portAttempts))
			}
			return runProbe(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.host, "host", opts.host, "Host the streamer runs on")
	cmd.Flags().IntVar(&opts.portStart, "port-start", opts.portStart, "First port tried")
	cmd.Flags().IntVar(&opts.portAttempts, "port-attempts", opts.portAttempts, "Number of consecutive ports tried")
	cmd.Flags().DurationVarP(&opts.watch, "watch", "w", opts.watch, "How long to print pushed frames before saying Goodbye")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", opts.timeout, "Timeout for a single exchange")

	return cmd
}

// runProbe performs one probe session and writes a line per frame to w.
func runProbe(ctx context.Context, w io.Writer, opts probeOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	c, port, err := client.DialRange(ctx, opts.host, uint16(opts.portStart), opts.portAttempts)
	if err != nil {
		return errors.New("T012").Wrap(err)
	}
	defer c.Close()
	c.Timeout = opts.timeout

	fmt.Fprintf(w, "connected to %s\n", net.JoinHostPort(opts.host, fmt.Sprint(port)))

	ack, err := c.Hello(protocol.VersionMajor, protocol.VersionMinor)
	if err != nil {
		return errors.New("T020").Wrap(err)
	}
	fmt.Fprintf(w, "HelloAck v%d.%d\n", ack.Major, ack.Minor)

	deadline := time.Now().Add(opts.watch)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		f, err := c.ReadFrame(remaining)
		if err != nil {
			var ne net.Error
			if stderrors.As(err, &ne) && ne.Timeout() {
				break
			}
			return errors.New("T021").Wrap(err)
		}
		printFrame(w, f)
	}

	reason, err := c.Goodbye(protocol.GoodbyeClientRequest, func(f *protocol.Frame) {
		printFrame(w, f)
	})
	if err != nil {
		return errors.New("T021").Wrap(err)
	}
	fmt.Fprintf(w, "GoodbyeAck %s\n", reason)
	return nil
}

// printFrame writes a one line summary of f.
func printFrame(w io.Writer, f *protocol.Frame) {
	v, err := client.Decode(f)
	if err != nil {
		fmt.Fprintf(w, "%s len=%d (%v)\n", f.Type, len(f.Payload), err)
		return
	}

	switch m := v.(type) {
	case *protocol.Info:
		if !m.HasGame {
			fmt.Fprintln(w, "Info  no game")
			return
		}
		fmt.Fprintf(w, "Info  %s sha1=%s mapper=%d/%d mirroring=%d prg=%d chr=%d crc32=%08X prgcrc=%08X prgchrcrc=%08X\n",
			m.FileName, m.Sha1, m.MapperID, m.SubmapperID, m.Mirroring,
			m.PrgRomSize, m.ChrRomSize, m.Crc32, m.PrgCrc32, m.PrgChrCrc32)
	case *protocol.Sync:
		fmt.Fprintf(w, "Sync  reason=%s cycle=%d scanline=%d dot=%d PC=$%04X A=$%02X X=$%02X Y=$%02X SP=$%02X P=$%02X\n",
			m.Reason, m.CPUCycleCount, m.Scanline, m.Dot, m.PC, m.A, m.X, m.Y, m.SP, m.PS)
	default:
		fmt.Fprintf(w, "%s %v\n", f.Type, v)
	}
}
