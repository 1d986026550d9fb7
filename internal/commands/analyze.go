package commands

import (
	"github.com/spf13/cobra"

	"github.com/dotcommander/errfix/internal/actions"
	"github.com/dotcommander/errfix/internal/output"
)

// NewAnalyzeCmd creates the analyze command.
func NewAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Diagnose one error, serving repeats from the result cache",
		Long: `Diagnose one error message (and optional stack trace) with the remote model.
The referenced source file is included when it can be read. Results are cached
by message, so repeated calls for the same message do not hit the API unless
--no-cache is given. Use --out to save the result for "errfix diff" and
"errfix apply".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, _ := cmd.Flags().GetString("msg")
			trace, _ := cmd.Flags().GetString("trace")
			traceFile, _ := cmd.Flags().GetString("trace-file")
			outPath, _ := cmd.Flags().GetString("out")
			noCache, _ := cmd.Flags().GetBool("no-cache")

			trace, err := readTrace(trace, traceFile)
			if err != nil {
				return cmdErr(err)
			}
			e, err := capturedFromFlags(msg, trace)
			if err != nil {
				return cmdErr(err)
			}

			var outcome *actions.AnalyzeOutcome
			if err := withKV(func(kv kvStore) error {
				d := buildDeps(kv)
				o, err := actions.AnalyzeError(commandContext(cmd), d.cache, d.client, d.reader, e, !noCache)
				if err != nil {
					return err
				}
				outcome = o
				return nil
			}); err != nil {
				return err
			}

			if outPath != "" {
				if err := saveResult(outPath, outcome); err != nil {
					return cmdErr(err)
				}
			}
			return output.PrintSuccess(outcome)
		},
	}

	cmd.Flags().String("msg", "", "Error message (required)")
	cmd.Flags().String("trace", "", "Stack trace text")
	cmd.Flags().String("trace-file", "", "Read the stack trace from a file")
	cmd.Flags().String("out", "", "Also write the result to this file")
	cmd.Flags().Bool("no-cache", false, "Skip the cache lookup and always call the API")
	return cmd
}
