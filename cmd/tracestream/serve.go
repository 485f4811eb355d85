package main

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/vango-dev/tracestream/internal/config"
	"github.com/vango-dev/tracestream/internal/errors"
	"github.com/vango-dev/tracestream/internal/sim"
	"github.com/vango-dev/tracestream/pkg/notifications"
	"github.com/vango-dev/tracestream/pkg/server"
)

// listenTimeout bounds the wait for the first bind attempt.
const listenTimeout = 5 * time.Second

type serveOptions struct {
	configPath   string
	rom          string
	portStart    int
	portAttempts int
	statusAddr   string
	region       string
	logLevel     string
	logFormat    string
}

func serveCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the trace streamer against a simulated NES",
		Long: `Run the trace streamer with a simulated NES host.

The host loads an iNES or NES 2.0 file and runs a free-running clock, so a
connected tool sees real cartridge hashes and a moving PPU position.

Settings come from tracestream.json in the working directory (or --config)
and are overridden by flags.

Signals:
  SIGHUP   reset the console (Sync reason Reset)
  SIGUSR1  reload the ROM from disk (Info + Sync reason Initial)

Examples:
  tracestream serve --rom smb3.nes
  tracestream serve --port-start=47000 --status-addr=""
  tracestream serve --config ./ci/tracestream.json --log-format=json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadServeConfig(cmd, opts)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, os.Stderr)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to tracestream.json (default ./tracestream.json if present)")
	cmd.Flags().StringVarP(&opts.rom, "rom", "r", "", "iNES file to load at startup")
	cmd.Flags().IntVar(&opts.portStart, "port-start", 0, "First port tried (default 63783)")
	cmd.Flags().IntVar(&opts.portAttempts, "port-attempts", 0, "Number of consecutive ports tried (default 10)")
	cmd.Flags().StringVar(&opts.statusAddr, "status-addr", "", "HTTP status address, empty to disable (default 127.0.0.1:9464)")
	cmd.Flags().StringVar(&opts.region, "region", "", "Console region: ntsc or pal")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	cmd.Flags().StringVar(&opts.logFormat, "log-format", "", "Log format: text or json")

	return cmd
}

// loadServeConfig reads the configuration file and applies flag overrides.
func loadServeConfig(cmd *cobra.Command, opts serveOptions) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	switch {
	case opts.configPath != "":
		cfg, err = config.LoadFile(opts.configPath)
	case config.Exists("."):
		cfg, err = config.Load(".")
	default:
		cfg = config.New()
	}
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("rom") {
		cfg.Emulator.ROM = opts.rom
	}
	if flags.Changed("port-start") {
		cfg.Streamer.PortStart = opts.portStart
	}
	if flags.Changed("port-attempts") {
		cfg.Streamer.PortAttempts = opts.portAttempts
	}
	if flags.Changed("status-addr") {
		cfg.Status.Addr = opts.statusAddr
		cfg.Status.Disabled = opts.statusAddr == ""
	}
	if flags.Changed("region") {
		cfg.Emulator.Region = opts.region
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = opts.logFormat
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the slog handler selected by the log section.
func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	level, _ := cfg.SlogLevel()
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// runServe runs the daemon until ctx is done.
func runServe(ctx context.Context, cfg *config.Config, logw io.Writer) error {
	logger := newLogger(cfg, logw)
	slog.SetDefault(logger)

	region, err := sim.ParseRegion(cfg.Emulator.Region)
	if err != nil {
		return errors.New("T040").WithDetail(err.Error())
	}

	bus := notifications.NewBus()
	host := sim.NewHost(bus, region, logger)

	srv := server.New(host, bus, cfg.ServerConfig(logger))
	srv.StartAuto()
	defer srv.Stop()

	waitCtx, cancel := context.WithTimeout(ctx, listenTimeout)
	port, err := srv.WaitListening(waitCtx)
	cancel()
	if err != nil {
		if stderrors.Is(err, server.ErrNoPortAvailable) {
			return errors.New("T010").Wrap(err)
		}
		return err
	}

	printBanner()
	success("Trace streamer listening on 127.0.0.1:%d", port)

	if cfg.Emulator.ROM != "" {
		rom, err := host.LoadFile(cfg.Emulator.ROM)
		if err != nil {
			return err
		}
		success("Loaded %s (mapper %d, sha1 %s)", rom.FileName, rom.Cartridge.MapperID, rom.Sha1)
	} else {
		warn("No ROM given, Info frames will report no game")
	}

	go host.Run(ctx, cfg.TickInterval())

	if !cfg.Status.Disabled {
		shutdown, err := startStatus(cfg.Status.Addr, newStatusRouter(srv, host, prometheus.DefaultRegisterer, prometheus.DefaultGatherer))
		if err != nil {
			return err
		}
		defer shutdown()
		success("Status on http://%s/status", cfg.Status.Addr)
	}

	reset, reload := controlSignals()
	sigCh := make(chan os.Signal, 1)
	if reset != nil && reload != nil {
		signal.Notify(sigCh, reset, reload)
		defer signal.Stop(sigCh)
	}

	for {
		select {
		case <-ctx.Done():
			info("Shutting down...")
			return nil
		case sig := <-sigCh:
			switch sig {
			case reset:
				host.Reset()
			case reload:
				if cfg.Emulator.ROM == "" {
					logger.Warn("reload requested without a ROM path")
					continue
				}
				if _, err := host.LoadFile(cfg.Emulator.ROM); err != nil {
					logger.Error("reload failed", "rom", cfg.Emulator.ROM, "error", err)
				}
			}
		}
	}
}

// startStatus serves h on addr and returns the function that stops it.
func startStatus(addr string, h http.Handler) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.New("T011").Wrap(err)
	}

	hs := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := hs.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			slog.Error("status server failed", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		hs.Shutdown(ctx)
	}, nil
}
