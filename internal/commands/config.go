package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/dotcommander/errfix/internal/actions"
	"github.com/dotcommander/errfix/internal/app"
	"github.com/dotcommander/errfix/internal/output"
)

// NewConfigCmd creates the config command with subcommands.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show effective settings, persist preferences and test the API key",
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigTestKeyCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective settings (API key masked)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			type resp struct {
				app.Runtime
				APIKey         string `json:"api_key"`
				HasAPIKey      bool   `json:"has_api_key"`
				RequestTimeout string `json:"request_timeout"`
				RetryDelay     string `json:"retry_delay"`
				DBPath         string `json:"db_path"`
				DBPathSource   string `json:"db_path_source"`
			}

			dbPath, dbSource, err := app.ResolveDBPathDetailed()
			if err != nil {
				return cmdErr(err)
			}

			var out resp
			if err := withKV(func(kv kvStore) error {
				rt := buildDeps(kv).rt
				out = resp{
					Runtime:        rt,
					APIKey:         actions.MaskKey(rt.APIKey),
					HasAPIKey:      rt.HasAPIKey(),
					RequestTimeout: rt.RequestTimeout.String(),
					RetryDelay:     rt.RetryDelay.String(),
					DBPath:         dbPath,
					DBPathSource:   dbSource,
				}
				return nil
			}); err != nil {
				return err
			}
			return output.PrintSuccess(out)
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Persist a preference (api_key, model, auto_capture); an empty VALUE clears it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, value := args[0], args[1]
			if err := withPrefs(func(kv kvStore) error {
				return actions.SetSetting(kv, name, value)
			}); err != nil {
				return err
			}

			type resp struct {
				Key     string `json:"key"`
				Cleared bool   `json:"cleared"`
			}
			return output.PrintSuccess(resp{Key: name, Cleared: value == ""})
		},
	}
}

func newConfigTestKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test-key",
		Short: "Send one probe request to check the API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, _ := cmd.Flags().GetString("key")

			type resp struct {
				Valid   bool   `json:"valid"`
				Model   string `json:"model"`
				Message string `json:"message"`
			}
			var out resp
			if err := withKV(func(kv kvStore) error {
				d := buildDeps(kv)
				if key == "" {
					key = d.rt.APIKey
				}
				ok, msg := d.client.TestCredential(commandContext(cmd), key)
				out = resp{Valid: ok, Model: d.client.Model(), Message: msg}
				if !ok {
					return errors.New(msg)
				}
				return nil
			}); err != nil {
				return err
			}
			return output.PrintSuccess(out)
		},
	}

	cmd.Flags().String("key", "", "Key to test instead of the configured one")
	return cmd
}
