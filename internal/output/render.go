package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"github.com/dotcommander/errfix/internal/models"
)

// DefaultListWidth is the message column width used when the terminal width is unknown.
const DefaultListWidth = 72

var (
	bold   = color.New(color.Bold).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
)

// Truncate shortens s to width display cells, cutting at the first newline.
func Truncate(s string, width int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i] + "..."
	}
	if width <= 0 || runewidth.StringWidth(s) <= width {
		return s
	}
	if width <= 3 {
		return runewidth.Truncate(s, width, "")
	}
	return runewidth.Truncate(s, width, "...")
}

func severityTag(s models.Severity) string {
	switch s {
	case models.SeverityException:
		return red("EXC")
	case models.SeverityAssert:
		return yellow("AST")
	default:
		return red("ERR")
	}
}

func confidenceColor(c models.Confidence) func(a ...interface{}) string {
	switch c {
	case models.ConfidenceHigh:
		return green
	case models.ConfidenceMedium:
		return yellow
	default:
		return red
	}
}

// Location formats file:line, or "" when the error has no file.
func Location(file string, line int) string {
	if file == "" {
		return ""
	}
	if line > 0 {
		return fmt.Sprintf("%s:%d", file, line)
	}
	return file
}

// RenderErrorList writes one numbered row per error, oldest first.
func RenderErrorList(w io.Writer, errs []*models.CapturedError, now time.Time, width int) {
	if len(errs) == 0 {
		fmt.Fprintln(w, gray("no errors captured"))
		return
	}
	if width <= 0 {
		width = DefaultListWidth
	}
	for i, e := range errs {
		mark := "○"
		if e.Analyzed {
			mark = green("●")
		}
		kind := severityTag(e.Severity)
		if e.IsCompile {
			kind = red("CMP")
		}
		fmt.Fprintf(w, "%3d %s %s %s", i+1, mark, kind, Truncate(e.Message, width))
		if loc := Location(e.File, e.Line); loc != "" {
			fmt.Fprintf(w, " %s", cyan(loc))
		}
		fmt.Fprintf(w, " %s\n", gray(humanize.RelTime(e.CapturedAt, now, "ago", "from now")))
	}
}

// RenderError writes the full detail of one error, including its result.
func RenderError(w io.Writer, e *models.CapturedError) {
	fmt.Fprintf(w, "%s %s\n", severityTag(e.Severity), bold(e.Message))
	if e.Code != "" {
		fmt.Fprintf(w, "code:     %s\n", e.Code)
	}
	if loc := Location(e.File, e.Line); loc != "" {
		fmt.Fprintf(w, "location: %s\n", cyan(loc))
	}
	fmt.Fprintf(w, "captured: %s\n", humanize.Time(e.CapturedAt))
	if e.StackTrace != "" {
		fmt.Fprintln(w, gray(e.StackTrace))
	}
	if e.Analyzed && e.Result != nil {
		fmt.Fprintln(w)
		RenderResult(w, e.Result)
	} else {
		fmt.Fprintln(w, gray("not analyzed yet"))
	}
}

// RenderResult writes a diagnosis.
func RenderResult(w io.Writer, r *models.AnalysisResult) {
	track := yellow("diagnosis only")
	if r.Fixable {
		track = green("fixable")
	}
	conf := confidenceColor(r.Confidence)
	fmt.Fprintf(w, "%s  confidence: %s\n", track, conf(string(r.Confidence)))
	fmt.Fprintf(w, "%s\n%s\n", bold("Diagnosis"), r.Diagnosis)
	if loc := Location(r.File, r.Line); loc != "" {
		fmt.Fprintf(w, "%s %s\n", bold("File"), cyan(loc))
	}
	if r.Solution != "" {
		fmt.Fprintf(w, "%s\n%s\n", bold("Solution"), r.Solution)
	}
	if r.HasPatch() {
		fmt.Fprintln(w, gray("patch available: use diff / apply"))
	}
}

// RenderDiff writes an edit script with optional old-line numbers.
func RenderDiff(w io.Writer, lines []models.DiffLine) {
	for _, l := range lines {
		num := "    "
		if l.OldLine > 0 {
			num = fmt.Sprintf("%4d", l.OldLine)
		}
		switch l.Type {
		case models.DiffRemoved:
			fmt.Fprintln(w, red(fmt.Sprintf("%s - %s", num, l.Text)))
		case models.DiffAdded:
			fmt.Fprintln(w, green(fmt.Sprintf("%s + %s", num, l.Text)))
		default:
			fmt.Fprintf(w, "%s   %s\n", gray(num), l.Text)
		}
	}
}

// RenderUnified colorizes a unified diff.
func RenderUnified(w io.Writer, text string) {
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			fmt.Fprintln(w, bold(line))
		case strings.HasPrefix(line, "@@"):
			fmt.Fprintln(w, cyan(line))
		case strings.HasPrefix(line, "+"):
			fmt.Fprintln(w, green(line))
		case strings.HasPrefix(line, "-"):
			fmt.Fprintln(w, red(line))
		default:
			fmt.Fprintln(w, line)
		}
	}
}

// RenderOutcome writes a patch outcome.
func RenderOutcome(w io.Writer, out models.PatchOutcome) {
	if out.Success {
		fmt.Fprintln(w, green("✓ "+out.Message))
		return
	}
	fmt.Fprintln(w, red("✗ "+out.Message))
}
