package commands

import (
	"errors"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dotcommander/errfix/internal/app"
	"github.com/dotcommander/errfix/internal/output"
)

// Execute runs the CLI application.
func Execute(version string) error {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	root := newRootCmd(version)

	err := root.Execute()
	if err != nil {
		var pe printedError
		if !errors.As(err, &pe) {
			slog.Error("command failed", "error", err.Error())
		}
	}
	return err
}

func newRootCmd(version string) *cobra.Command {
	root := &cobra.Command{
		Use:           "errfix",
		Short:         "Capture runtime and build errors, diagnose them remotely, and apply reviewed patches",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			showVersion, _ := cmd.Flags().GetBool("version")
			if showVersion {
				type resp struct {
					Version string `json:"version"`
				}
				return output.PrintSuccess(resp{Version: version})
			}
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := app.EnsureConfigDir(); err != nil {
				return err
			}

			if dbPath, err := cmd.Flags().GetString("db-path"); err == nil && dbPath != "" {
				app.SetDBPathOverride(dbPath)
			}
			if project, err := cmd.Flags().GetString("project"); err == nil && project != "" {
				app.SetProjectRootOverride(project)
			}

			return nil
		},
	}

	root.PersistentFlags().String("db-path", "", "Override database path")
	root.PersistentFlags().String("project", "", "Project root for resolving source paths (default: $ERRFIX_PROJECT_ROOT or cwd)")
	root.Flags().BoolP("version", "v", false, "version for errfix")

	root.AddCommand(NewWatchCmd())
	root.AddCommand(NewScanCmd())
	root.AddCommand(NewParseCmd())
	root.AddCommand(NewAnalyzeCmd())
	root.AddCommand(NewDiffCmd())
	root.AddCommand(NewApplyCmd())
	root.AddCommand(NewCacheCmd())
	root.AddCommand(NewConfigCmd())
	root.AddCommand(newSchemaCmd(root))

	return root
}
