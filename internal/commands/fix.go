package commands

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/dotcommander/errfix/internal/actions"
	"github.com/dotcommander/errfix/internal/app"
	"github.com/dotcommander/errfix/internal/output"
	"github.com/dotcommander/errfix/internal/patch"
	"github.com/dotcommander/errfix/internal/source"
)

func newPatcher() *patch.Patcher {
	return patch.NewPatcher(source.NewResolver(app.EffectiveRuntime().ProjectRoot))
}

// NewDiffCmd creates the diff command.
func NewDiffCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Preview the patch carried by a saved result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resultPath, _ := cmd.Flags().GetString("result")
			start, _ := cmd.Flags().GetInt("start")
			human, _ := cmd.Flags().GetBool("human")

			result, err := loadResult(resultPath)
			if err != nil {
				return cmdErr(err)
			}
			preview, err := actions.PreviewFix(newPatcher(), result, start)
			if err != nil {
				return cmdErr(err)
			}

			if human {
				output.RenderDiff(os.Stdout, preview.Lines)
				if preview.Unified != "" {
					output.RenderUnified(os.Stdout, preview.Unified)
				}
				return nil
			}
			return output.PrintSuccess(preview)
		},
	}

	cmd.Flags().String("result", "", "Result file written by analyze --out (required)")
	cmd.Flags().Int("start", 0, "First line number of the original block (default: the result's line)")
	cmd.Flags().Bool("human", false, "Print a colored diff instead of JSON")
	return cmd
}

// NewApplyCmd creates the apply command.
func NewApplyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply the patch carried by a saved result",
		Long: `Print the unified diff the patch would produce. The file is only written
when --yes is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resultPath, _ := cmd.Flags().GetString("result")
			yes, _ := cmd.Flags().GetBool("yes")

			result, err := loadResult(resultPath)
			if err != nil {
				return cmdErr(err)
			}
			p := newPatcher()

			type resp struct {
				Applied bool   `json:"applied"`
				File    string `json:"file,omitempty"`
				Diff    string `json:"diff,omitempty"`
				Message string `json:"message"`
			}

			if !yes {
				unified, err := p.Preview(result)
				if err != nil {
					return cmdErr(err)
				}
				return output.PrintSuccess(resp{
					File:    result.File,
					Diff:    unified,
					Message: "dry run: re-run with --yes to write the file",
				})
			}

			outcome := actions.ApplyFix(p, result)
			if !outcome.Success {
				return cmdErr(errors.New(outcome.Message))
			}
			return output.PrintSuccess(resp{
				Applied: true,
				File:    outcome.File,
				Diff:    outcome.Diff,
				Message: outcome.Message,
			})
		},
	}

	cmd.Flags().String("result", "", "Result file written by analyze --out (required)")
	cmd.Flags().BoolP("yes", "y", false, "Write the file")
	return cmd
}
