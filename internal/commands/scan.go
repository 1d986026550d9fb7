package commands

import (
	"errors"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dotcommander/errfix/internal/app"
	"github.com/dotcommander/errfix/internal/capture"
	"github.com/dotcommander/errfix/internal/models"
	"github.com/dotcommander/errfix/internal/output"
	"github.com/dotcommander/errfix/internal/triage"
)

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one reconciliation pass over a build log and list its errors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			consolePath, _ := cmd.Flags().GetString("console")
			human, _ := cmd.Flags().GetBool("human")
			if consolePath == "" {
				return cmdErr(errors.New("--console is required"))
			}

			errs, err := scanConsole(capture.NewFileConsole(consolePath), app.EffectiveRuntime().StoreCapacity)
			if err != nil {
				return cmdErr(err)
			}

			if human {
				output.RenderErrorList(os.Stdout, errs, time.Now(), output.DefaultListWidth)
				return nil
			}
			type resp struct {
				Console string                  `json:"console"`
				Count   int                     `json:"count"`
				Errors  []*models.CapturedError `json:"errors"`
			}
			return output.PrintSuccess(resp{Console: consolePath, Count: len(errs), Errors: errs})
		},
	}

	cmd.Flags().String("console", "", "Build log file to treat as the console (required)")
	cmd.Flags().Bool("human", false, "Print a colored list instead of JSON")
	return cmd
}

func scanConsole(console capture.ConsoleSource, capacity int) ([]*models.CapturedError, error) {
	session := triage.New(triage.Config{
		Store:   capture.NewErrorStore(capacity),
		Console: console,
	})
	defer session.Close()

	if err := session.Reconcile(); err != nil {
		return nil, err
	}
	return session.List()
}
