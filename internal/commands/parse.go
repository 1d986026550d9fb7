package commands

import (
	"github.com/spf13/cobra"

	"github.com/dotcommander/errfix/internal/cache"
	"github.com/dotcommander/errfix/internal/models"
	"github.com/dotcommander/errfix/internal/output"
	"github.com/dotcommander/errfix/internal/parser"
)

// NewParseCmd creates the parse command.
func NewParseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse",
		Short: "Extract file, line and error code from a message and stack trace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, _ := cmd.Flags().GetString("msg")
			trace, _ := cmd.Flags().GetString("trace")
			traceFile, _ := cmd.Flags().GetString("trace-file")

			trace, err := readTrace(trace, traceFile)
			if err != nil {
				return cmdErr(err)
			}
			e, err := capturedFromFlags(msg, trace)
			if err != nil {
				return cmdErr(err)
			}

			type resp struct {
				ID          string              `json:"id"`
				Fingerprint string              `json:"fingerprint"`
				Location    models.LocationInfo `json:"location"`
			}
			return output.PrintSuccess(resp{
				ID:          e.ID,
				Fingerprint: cache.Fingerprint(e.Message),
				Location:    parser.Parse(e.Message, e.StackTrace),
			})
		},
	}

	cmd.Flags().String("msg", "", "Error message (required)")
	cmd.Flags().String("trace", "", "Stack trace text")
	cmd.Flags().String("trace-file", "", "Read the stack trace from a file")
	return cmd
}
