package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dotcommander/errfix/internal/capture"
	"github.com/dotcommander/errfix/internal/models"
	"github.com/dotcommander/errfix/internal/output"
	"github.com/dotcommander/errfix/internal/repl"
	"github.com/dotcommander/errfix/internal/triage"
)

// NewWatchCmd creates the watch command.
func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [flags] -- CMD [ARGS...]",
		Short: "Run a process, capture its errors and triage them interactively",
		Long: `Run CMD and capture every error it logs. When --console names a build log,
compile errors in it are reconciled at startup and whenever the file changes:
fixed errors disappear, new ones are added.

Without --no-repl an interactive shell is started (type "help"). With
--no-repl the process output is passed through and the captured errors are
printed as JSON when it exits.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			consolePath, _ := cmd.Flags().GetString("console")
			noREPL, _ := cmd.Flags().GetBool("no-repl")
			debounce, _ := cmd.Flags().GetDuration("debounce")

			var result *watchResult
			if err := withKV(func(kv kvStore) error {
				r, err := runWatch(commandContext(cmd), buildDeps(kv), watchOptions{
					Command:  args,
					Console:  consolePath,
					NoREPL:   noREPL,
					Debounce: debounce,
				})
				result = r
				return err
			}); err != nil {
				return err
			}

			if noREPL {
				return output.PrintSuccess(result)
			}
			return nil
		},
	}

	cmd.Flags().String("console", "", "Build log file reconciled on start and on change")
	cmd.Flags().Bool("no-repl", false, "Capture only; print the errors as JSON when the process exits")
	cmd.Flags().Duration("debounce", capture.DefaultDebounce, "Quiet period before a console change triggers reconciliation")
	return cmd
}

type watchOptions struct {
	Command  []string
	Console  string
	NoREPL   bool
	Debounce time.Duration
}

type watchResult struct {
	Command []string                `json:"command"`
	ExitErr string                  `json:"exit_error,omitempty"`
	Count   int                     `json:"count"`
	Errors  []*models.CapturedError `json:"errors"`
}

func runWatch(ctx context.Context, d deps, opts watchOptions) (*watchResult, error) {
	if len(opts.Command) == 0 {
		return nil, errors.New("a command to run is required")
	}
	ctx, stopSignals := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stopSignals()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var console capture.ConsoleSource
	if opts.Console != "" {
		console = capture.NewFileConsole(opts.Console)
	}
	cfg := triage.Config{
		Store:   capture.NewErrorStore(d.rt.StoreCapacity),
		Cache:   d.cache,
		Reader:  d.reader,
		Patcher: d.patcher,
		Console: console,
	}
	if d.client != nil {
		cfg.Client = d.client
	}
	session := triage.New(cfg)
	defer session.Close()

	if err := session.Reconcile(); err != nil {
		return nil, err
	}

	var passthrough func(string)
	if opts.NoREPL {
		passthrough = func(line string) { fmt.Fprintln(os.Stderr, line) }
	}
	proc, err := capture.StartProcess(ctx, passthrough, opts.Command[0], opts.Command[1:]...)
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for ev := range proc.Events() {
			if d.rt.AutoCapture {
				session.Ingest(ev)
			}
		}
		return nil
	})

	var exitErr error
	g.Go(func() error {
		exitErr = proc.Wait()
		if exitErr != nil {
			slog.Info("watched process exited", "error", exitErr)
		}
		if opts.NoREPL {
			cancel()
		}
		return nil
	})

	if opts.Console != "" {
		watcher, err := capture.NewBuildWatcher(opts.Console, opts.Debounce)
		if err != nil {
			slog.Warn("console watch disabled", "path", opts.Console, "error", err)
		} else {
			defer watcher.Stop()
			g.Go(func() error {
				watcher.Run(gctx)
				return nil
			})
			g.Go(func() error {
				for {
					select {
					case <-gctx.Done():
						return nil
					case <-watcher.Triggers():
						if err := session.Reconcile(); err != nil {
							return nil
						}
					}
				}
			})
		}
	}

	if !opts.NoREPL {
		r, err := repl.New(repl.Config{Session: session, Cache: d.cache})
		if err != nil {
			cancel()
			_ = g.Wait()
			return nil, err
		}
		replErr := r.Run(gctx)
		cancel()
		_ = g.Wait()
		return &watchResult{Command: opts.Command}, replErr
	}

	_ = g.Wait()
	errs, err := session.List()
	if err != nil {
		return nil, err
	}
	res := &watchResult{Command: opts.Command, Count: len(errs), Errors: errs}
	if exitErr != nil {
		res.ExitErr = exitErr.Error()
	}
	return res, nil
}
