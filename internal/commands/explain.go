package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/caltechlibrary/commonpy/httpcode"
)

// NewExplainCommand creates the explain command
func NewExplainCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "explain CODE",
		Short:       "Explain an HTTP status code",
		Annotations: map[string]string{annotationNoSession: ""},
		Args:        cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid status code %q", args[0])
			}
			meaning, err := httpcode.Meaning(code)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d %s: %s\n", code, httpcode.Phrase(code), meaning)
			return nil
		},
	}
}
