// Package repl is the interactive triage shell run by `errfix watch`.
package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/fatih/color"

	"github.com/dotcommander/errfix/internal/analysis"
	"github.com/dotcommander/errfix/internal/cache"
	"github.com/dotcommander/errfix/internal/output"
	"github.com/dotcommander/errfix/internal/triage"
)

// errExit ends the loop from a command handler.
var errExit = errors.New("exit")

// CommandHandler handles a specific command
type CommandHandler func(args []string) error

// Config holds REPL configuration
type Config struct {
	Session *triage.Session
	Cache   *cache.Cache
	// Out defaults to stdout; the readline instance replaces it in Run.
	Out io.Writer
	// Confirm asks a yes/no question; defaults to a readline prompt in Run.
	Confirm func(question string) (bool, error)
}

// REPL represents the interactive shell
type REPL struct {
	session  *triage.Session
	cache    *cache.Cache
	out      io.Writer
	confirm  func(string) (bool, error)
	commands map[string]CommandHandler
	now      func() time.Time
}

// New creates a new REPL instance
func New(cfg Config) (*REPL, error) {
	if cfg.Session == nil {
		return nil, errors.New("triage session is required")
	}
	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}
	r := &REPL{
		session: cfg.Session,
		cache:   cfg.Cache,
		out:     out,
		confirm: cfg.Confirm,
		now:     time.Now,
	}
	r.registerCommands()
	return r, nil
}

// Run starts the REPL loop. It returns when the operator exits, stdin closes
// or ctx is done.
func (r *REPL) Run(ctx context.Context) error {
	cyan := color.New(color.FgCyan).SprintFunc()
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            cyan("errfix> "),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
		AutoComplete:      r.completer(),
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer func() { _ = rl.Close() }()

	r.out = rl.Stdout()
	if r.confirm == nil {
		r.confirm = readlineConfirm(rl)
	}

	go r.watchCompletions(ctx)
	go func() {
		<-ctx.Done()
		_ = rl.Close()
	}()

	r.printWelcome()
	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := r.ProcessInput(line); err != nil {
			if errors.Is(err, errExit) {
				return nil
			}
			red := color.New(color.FgRed).SprintFunc()
			fmt.Fprintf(r.out, "%s %v\n", red("Error:"), err)
		}
	}
}

func readlineConfirm(rl *readline.Instance) func(string) (bool, error) {
	return func(question string) (bool, error) {
		prev := rl.Config.Prompt
		rl.SetPrompt(question + " [y/N] ")
		defer rl.SetPrompt(prev)
		answer, err := rl.Readline()
		if err != nil {
			return false, err
		}
		a := strings.ToLower(strings.TrimSpace(answer))
		return a == "y" || a == "yes", nil
	}
}

func (r *REPL) completer() *readline.PrefixCompleter {
	items := make([]readline.PrefixCompleterInterface, 0, len(commandHelp))
	for _, c := range commandHelp {
		items = append(items, readline.PcItem(strings.Fields(c.name)[0]))
	}
	return readline.NewPrefixCompleter(items...)
}

// watchCompletions prints analysis results as they arrive.
func (r *REPL) watchCompletions(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-r.session.Completions():
			if !ok {
				return
			}
			r.HandleCompletion(c)
		}
	}
}

// HandleCompletion renders one finished analysis.
func (r *REPL) HandleCompletion(c triage.Completion) {
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	switch {
	case c.Err != nil:
		fmt.Fprintf(r.out, "\n%s %s\n", red("analysis failed:"), c.Err)
		var ae *analysis.Error
		if errors.As(c.Err, &ae) && ae.SuggestedAction() != "" {
			fmt.Fprintf(r.out, "  hint: %s\n", ae.SuggestedAction())
		}
	case c.Orphaned:
		fmt.Fprintf(r.out, "\n%s %s\n", yellow("analysis finished for a cleared error:"), output.Truncate(c.Message, output.DefaultListWidth))
	default:
		fmt.Fprintf(r.out, "\n%s %s\n", yellow("analysis ready:"), output.Truncate(c.Message, output.DefaultListWidth))
		output.RenderResult(r.out, c.Result)
	}
}

// ProcessInput runs one command line.
func (r *REPL) ProcessInput(line string) error {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return nil
	}
	command := strings.ToLower(parts[0])
	if handler, ok := r.commands[command]; ok {
		return handler(parts[1:])
	}
	return fmt.Errorf("unknown command %q (type 'help')", parts[0])
}

func (r *REPL) registerCommands() {
	r.commands = map[string]CommandHandler{
		"list":    r.cmdList,
		"ls":      r.cmdList,
		"show":    r.cmdShow,
		"analyze": r.cmdAnalyze,
		"diff":    r.cmdDiff,
		"apply":   r.cmdApply,
		"scan":    r.cmdScan,
		"clear":   r.cmdClear,
		"cache":   r.cmdCache,
		"help":    r.cmdHelp,
		"?":       r.cmdHelp,
		"exit":    r.cmdExit,
		"quit":    r.cmdExit,
	}
}

func (r *REPL) printWelcome() {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Fprintf(r.out, "\n%s\n", cyan("errfix: error triage shell"))
	fmt.Fprintln(r.out, "Type 'help' for available commands, 'exit' to quit")
	fmt.Fprintln(r.out)
}

var commandHelp = []struct {
	name string
	desc string
}{
	{"list", "List captured errors"},
	{"show N", "Show error N with its diagnosis"},
	{"analyze N [--force]", "Diagnose error N (cached unless --force)"},
	{"diff N", "Preview the patch suggested for error N"},
	{"apply N [-y]", "Apply the patch for error N after confirmation"},
	{"scan", "Reconcile against the console log"},
	{"clear", "Drop all captured errors"},
	{"cache [clear]", "Show cache usage, or clear it"},
	{"help", "Show this help message"},
	{"exit", "Exit the shell"},
}

func (r *REPL) cmdHelp(_ []string) error {
	green := color.New(color.FgGreen).SprintFunc()
	for _, c := range commandHelp {
		fmt.Fprintf(r.out, "  %-22s %s\n", green(c.name), c.desc)
	}
	return nil
}

func (r *REPL) cmdExit(_ []string) error {
	return errExit
}

func (r *REPL) cmdList(_ []string) error {
	list, err := r.session.List()
	if err != nil {
		return err
	}
	output.RenderErrorList(r.out, list, r.now(), output.DefaultListWidth)
	return nil
}

func (r *REPL) errorID(args []string) (string, error) {
	if len(args) == 0 {
		return "", errors.New("error number is required")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return "", fmt.Errorf("invalid error number %q", args[0])
	}
	e, err := r.session.At(n)
	if err != nil {
		return "", err
	}
	return e.ID, nil
}

func (r *REPL) cmdShow(args []string) error {
	if len(args) == 0 {
		return errors.New("error number is required")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid error number %q", args[0])
	}
	e, err := r.session.At(n)
	if err != nil {
		return err
	}
	output.RenderError(r.out, e)
	return nil
}

func hasFlag(args []string, names ...string) bool {
	for _, a := range args {
		for _, n := range names {
			if a == n {
				return true
			}
		}
	}
	return false
}

func (r *REPL) cmdAnalyze(args []string) error {
	id, err := r.errorID(args)
	if err != nil {
		return err
	}
	ticket, err := r.session.Analyze(id, hasFlag(args[1:], "--force", "-f"))
	if err != nil {
		return err
	}
	if ticket.Cached {
		fmt.Fprintln(r.out, color.New(color.FgHiBlack).Sprint("(cached)"))
		output.RenderResult(r.out, ticket.Result)
		return nil
	}
	fmt.Fprintf(r.out, "analyzing... (request %s)\n", ticket.RequestID)
	return nil
}

func (r *REPL) cmdDiff(args []string) error {
	id, err := r.errorID(args)
	if err != nil {
		return err
	}
	fp, err := r.session.Preview(id, 0)
	if err != nil {
		return err
	}
	output.RenderDiff(r.out, fp.Lines)
	fmt.Fprintf(r.out, "%d removed, %d added\n", fp.Removed, fp.Added)
	if !fp.Applicable {
		fmt.Fprintf(r.out, "%s %s\n", color.New(color.FgYellow).Sprint("cannot apply:"), fp.PreviewError)
	}
	return nil
}

func (r *REPL) cmdApply(args []string) error {
	id, err := r.errorID(args)
	if err != nil {
		return err
	}
	fp, err := r.session.Preview(id, 0)
	if err != nil {
		return err
	}
	if !fp.Applicable {
		return errors.New(fp.PreviewError)
	}
	output.RenderUnified(r.out, fp.Unified)

	if !hasFlag(args[1:], "-y", "--yes") {
		if r.confirm == nil {
			return errors.New("confirmation unavailable; use apply N -y")
		}
		ok, err := r.confirm(fmt.Sprintf("Apply patch to %s?", fp.File))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(r.out, "skipped")
			return nil
		}
	}

	out, err := r.session.Apply(id)
	if err != nil {
		return err
	}
	output.RenderOutcome(r.out, out)
	return nil
}

func (r *REPL) cmdScan(_ []string) error {
	if err := r.session.Reconcile(); err != nil {
		return err
	}
	return r.cmdList(nil)
}

func (r *REPL) cmdClear(_ []string) error {
	if err := r.session.Clear(); err != nil {
		return err
	}
	fmt.Fprintln(r.out, "cleared")
	return nil
}

func (r *REPL) cmdCache(args []string) error {
	if r.cache == nil {
		return errors.New("cache is not configured")
	}
	if len(args) > 0 && args[0] == "clear" {
		r.cache.ClearAll()
		fmt.Fprintln(r.out, "cache cleared")
		return nil
	}
	fmt.Fprintf(r.out, "%d / %d cached diagnoses\n", r.cache.Count(), r.cache.Capacity())
	return nil
}
