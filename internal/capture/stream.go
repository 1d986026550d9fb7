package capture

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dotcommander/errfix/internal/models"
)

// Event is one (message, trace, severity) tuple from a log stream.
type Event struct {
	Message    string
	StackTrace string
	Severity   models.Severity
}

// ScanEvents reads r line by line and sends an Event for every error-marker
// line, with following indented or frame lines folded into its stack trace.
// Passthrough, when non-nil, receives every raw line.
func ScanEvents(ctx context.Context, r io.Reader, out chan<- Event, passthrough func(string)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	var (
		cur   *Event
		trace []string
	)
	flush := func() error {
		if cur == nil {
			return nil
		}
		cur.StackTrace = strings.Join(trace, "\n")
		ev := *cur
		cur, trace = nil, nil
		select {
		case out <- ev:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if passthrough != nil {
			passthrough(line)
		}

		if cur != nil && isContinuation(line) {
			trace = append(trace, strings.TrimSpace(line))
			continue
		}
		if err := flush(); err != nil {
			return err
		}
		if sev, ok := classifyLine(line); ok {
			cur = &Event{Message: strings.TrimSpace(line), Severity: sev}
		}
	}
	if err := flush(); err != nil {
		return err
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("scan log stream: %w", err)
	}
	return nil
}

// ProcessStream runs a child process and turns its stdout and stderr into
// Events. The Events channel closes when both pipes reach EOF.
type ProcessStream struct {
	cmd    *exec.Cmd
	events chan Event
	group  *errgroup.Group

	waitOnce sync.Once
	waitErr  error
}

// StartProcess launches name with args. Passthrough, when non-nil, receives
// every output line (possibly from two goroutines).
func StartProcess(ctx context.Context, passthrough func(string), name string, args ...string) (*ProcessStream, error) {
	if name == "" {
		return nil, errors.New("command is required")
	}
	cmd := exec.CommandContext(ctx, name, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", name, err)
	}

	ps := &ProcessStream{cmd: cmd, events: make(chan Event, 64)}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ScanEvents(gctx, stdout, ps.events, passthrough) })
	g.Go(func() error { return ScanEvents(gctx, stderr, ps.events, passthrough) })
	ps.group = g

	go func() {
		_ = g.Wait()
		close(ps.events)
	}()
	return ps, nil
}

// Events returns the event channel.
func (p *ProcessStream) Events() <-chan Event {
	return p.events
}

// Wait blocks until the output is drained and the process exits.
// Events must be consumed concurrently or Wait never returns.
func (p *ProcessStream) Wait() error {
	p.waitOnce.Do(func() {
		scanErr := p.group.Wait()
		exitErr := p.cmd.Wait()
		switch {
		case exitErr != nil:
			p.waitErr = fmt.Errorf("process exited: %w", exitErr)
		case scanErr != nil && !errors.Is(scanErr, context.Canceled):
			p.waitErr = scanErr
		}
	})
	return p.waitErr
}
