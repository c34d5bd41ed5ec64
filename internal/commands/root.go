package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/caltechlibrary/commonpy/config"
	"github.com/caltechlibrary/commonpy/interrupt"
	"github.com/caltechlibrary/commonpy/logger"
	"github.com/caltechlibrary/commonpy/network"
)

// RootOptions holds the persistent flags
type RootOptions struct {
	ConfigPath string
	LogLevel   string
	Trace      bool
}

// annotationNoSession marks commands that run without config, signal
// handling or a network client.
const annotationNoSession = "netfetch.no-session"

// session is what subcommands share once the persistent flags are parsed.
type session struct {
	cfg         *config.Config
	log         logger.Logger
	token       *interrupt.Token
	client      *network.Client
	stopSignals func()
	telemetry   *telemetry
}

// Execute runs netfetch with args and releases signal handlers and
// telemetry afterwards, whether or not the command failed.
func Execute(ctx context.Context, version string, args []string, stdout, stderr io.Writer) error {
	root, s := newRootCommand(version)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	return errors.Join(err, s.close(context.WithoutCancel(ctx)))
}

func newRootCommand(version string) (*cobra.Command, *session) {
	opts := &RootOptions{}
	s := &session{}

	root := &cobra.Command{
		Use:   "netfetch",
		Short: "Fetch URLs through flaky networks",
		Long: `netfetch performs HTTP requests with automatic retries, backoff on
rate limiting and classification of failures.

Settings come from the config file given with --config and from
COMMONPY_* environment variables.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if _, ok := cmd.Annotations[annotationNoSession]; ok {
				return nil
			}
			return s.open(cmd, opts)
		},
	}

	root.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "YAML configuration file")
	root.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "Log level (overrides configuration)")
	root.PersistentFlags().BoolVar(&opts.Trace, "trace", false, "Print spans and metrics to stderr")

	root.AddCommand(
		NewGetCommand(s),
		NewDownloadCommand(s),
		NewExplainCommand(),
		NewProbeCommand(s),
		NewVersionCommand(version),
	)

	return root, s
}

func (s *session) open(cmd *cobra.Command, opts *RootOptions) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
	s.cfg = cfg
	s.log = logger.NewWithWriter(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Pretty)

	s.token = interrupt.New()
	s.stopSignals = s.token.NotifyOnSignal(cmd.Context(), os.Interrupt, syscall.SIGTERM)

	builder := network.NewBuilder(s.log).
		WithConfig(cfg.Network.ToNetwork()).
		WithInterrupter(s.token).
		WithProber(cfg.Probe.Prober())

	if opts.Trace {
		s.telemetry, err = newTelemetry(cmd.ErrOrStderr())
		if err != nil {
			return fmt.Errorf("failed to set up tracing: %w", err)
		}
		builder = builder.
			WithTracerProvider(s.telemetry.tracerProvider).
			WithMeterProvider(s.telemetry.meterProvider)
	}

	s.client = builder.Build()
	return nil
}

func (s *session) close(ctx context.Context) error {
	if s.stopSignals != nil {
		s.stopSignals()
		s.stopSignals = nil
	}
	if s.telemetry != nil {
		t := s.telemetry
		s.telemetry = nil
		return t.shutdown(ctx)
	}
	return nil
}
