package commands

import (
	"slices"

	"github.com/spf13/cobra"

	"github.com/dotcommander/errfix/internal/output"
)

// NewCacheCmd creates the cache command with subcommands.
func NewCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the persisted analysis cache",
	}

	cmd.AddCommand(newCacheStatsCmd())
	cmd.AddCommand(newCacheListCmd())
	cmd.AddCommand(newCacheClearCmd())

	return cmd
}

func newCacheStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache size and capacity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			type resp struct {
				Count    int `json:"count"`
				Capacity int `json:"capacity"`
			}
			var out resp
			if err := withPrefs(func(kv kvStore) error {
				c := buildDeps(kv).cache
				out = resp{Count: c.Count(), Capacity: c.Capacity()}
				return nil
			}); err != nil {
				return err
			}
			return output.PrintSuccess(out)
		},
	}
}

func newCacheListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cached message fingerprints",
		Long:  "List cached message fingerprints. When the cache is full an arbitrary entry is evicted, so the list carries no recency order.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			type resp struct {
				Fingerprints []string `json:"fingerprints"`
			}
			var out resp
			if err := withPrefs(func(kv kvStore) error {
				keys := buildDeps(kv).cache.Keys()
				slices.Sort(keys)
				out.Fingerprints = keys
				return nil
			}); err != nil {
				return err
			}
			return output.PrintSuccess(out)
		},
	}
}

func newCacheClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every cached result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			type resp struct {
				Cleared int `json:"cleared"`
			}
			var out resp
			if err := withPrefs(func(kv kvStore) error {
				c := buildDeps(kv).cache
				out.Cleared = c.Count()
				c.ClearAll()
				return nil
			}); err != nil {
				return err
			}
			return output.PrintSuccess(out)
		},
	}
}
