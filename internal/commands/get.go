package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/caltechlibrary/commonpy/network"
)

// GetOptions holds options for the get command
type GetOptions struct {
	Method         string
	Headers        []string
	Data           string
	Polling        bool
	NoRateHandling bool
	Include        bool
}

// NewGetCommand creates the get command
func NewGetCommand(s *session) *cobra.Command {
	opts := &GetOptions{}

	cmd := &cobra.Command{
		Use:   "get URL",
		Short: "Perform a request and print the response body",
		Long: `Performs an HTTP request, retrying through transient failures, and
prints the response body. A response classified as a failure (404, 500,
exhausted rate limit, ...) is still printed and the command exits non-zero.`,
		Example: `  # Simple GET
  netfetch get https://example.org/

  # POST with a header, printing the status line
  netfetch get -X post -H Content-Type=application/json -d '{"a":1}' -i https://example.org/api

  # Poll a resource that may not exist yet
  netfetch get --polling https://example.org/result/42`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(cmd, s, opts, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.Method, "method", "X", "get", "HTTP method")
	cmd.Flags().StringArrayVarP(&opts.Headers, "header", "H", nil, "Request header as NAME=VALUE (repeatable)")
	cmd.Flags().StringVarP(&opts.Data, "data", "d", "", "Request body")
	cmd.Flags().BoolVar(&opts.Polling, "polling", false, "Do not treat 404 and 410 as failures")
	cmd.Flags().BoolVar(&opts.NoRateHandling, "no-rate-handling", false, "Fail on the first 429 instead of backing off")
	cmd.Flags().BoolVarP(&opts.Include, "include", "i", false, "Print the status line before the body")

	return cmd
}

func runGet(cmd *cobra.Command, s *session, opts *GetOptions, rawURL string) error {
	req, err := buildRequest(opts)
	if err != nil {
		return err
	}

	var netOpts []network.NetOption
	if opts.Polling {
		netOpts = append(netOpts, network.WithPolling())
	}
	if opts.NoRateHandling {
		netOpts = append(netOpts, network.WithoutRateHandling())
	}

	resp, err := s.client.Net(cmd.Context(), opts.Method, rawURL, req, netOpts...)
	if resp != nil {
		out := cmd.OutOrStdout()
		if opts.Include {
			fmt.Fprintf(out, "%d %s\n", resp.StatusCode, resp.Reason)
		}
		if _, werr := out.Write(resp.Body); werr != nil {
			return werr
		}
	}
	return err
}

func buildRequest(opts *GetOptions) (*network.Request, error) {
	req := &network.Request{}
	if len(opts.Headers) > 0 {
		req.Headers = make(map[string]string, len(opts.Headers))
		for _, h := range opts.Headers {
			name, value, ok := strings.Cut(h, "=")
			if !ok || strings.TrimSpace(name) == "" {
				return nil, fmt.Errorf("invalid header %q: expected NAME=VALUE", h)
			}
			req.Headers[strings.TrimSpace(name)] = value
		}
	}
	if opts.Data != "" {
		req.Body = []byte(opts.Data)
	}
	return req, nil
}
