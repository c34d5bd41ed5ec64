package commands

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// ErrUnreachable is returned by the probe command when the target cannot be reached.
var ErrUnreachable = errors.New("network unreachable")

// ProbeOptions holds options for the probe command
type ProbeOptions struct {
	Address string
	Port    int
	Timeout time.Duration
}

// NewProbeCommand creates the probe command
func NewProbeCommand(s *session) *cobra.Command {
	opts := &ProbeOptions{}

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check general network connectivity",
		Long: `Opens a TCP connection to a well-known host (by default a public DNS
server) to tell whether the network at large is reachable.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			prober := s.cfg.Probe.Prober()
			if opts.Address != "" {
				prober.Address = opts.Address
			}
			if opts.Port > 0 {
				prober.Port = opts.Port
			}
			if opts.Timeout > 0 {
				prober.Timeout = opts.Timeout
			}

			target := net.JoinHostPort(prober.Address, strconv.Itoa(prober.Port))
			if !prober.Reachable(cmd.Context()) {
				return fmt.Errorf("%w: %s", ErrUnreachable, target)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "network reachable via %s\n", target)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Address, "address", "", "Probe address (default from configuration)")
	cmd.Flags().IntVar(&opts.Port, "port", 0, "Probe TCP port (default from configuration)")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "Probe timeout (default from configuration)")

	return cmd
}
