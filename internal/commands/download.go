package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewDownloadCommand creates the download command
func NewDownloadCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "download URL DEST",
		Short: "Stream a URL to a file",
		Long: `Streams the body of URL into DEST, replacing any existing file. While
the server answers 202 Accepted the download is retried after a pause.
An interrupted download leaves the partial file in place.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := s.client.Download(cmd.Context(), args[0], args[1], nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", args[1])
			return nil
		},
	}
}
