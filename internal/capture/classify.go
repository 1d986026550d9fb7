package capture

import (
	"regexp"
	"strings"

	"github.com/dotcommander/errfix/internal/models"
	"github.com/dotcommander/errfix/internal/parser"
)

var (
	errorMarker     = regexp.MustCompile(`(?i)(\berror\b|exception\b|\bpanic\b|\bassert)`)
	exceptionMarker = regexp.MustCompile(`(?i)(exception\b|\bpanic\b)`)
	assertMarker    = regexp.MustCompile(`(?i)\bassert`)
	warningPrefix   = regexp.MustCompile(`(?i)^\s*warn(ing)?\b`)
)

// classifyLine reports whether line starts an error event and at what severity.
// Compiler warnings are never errors.
func classifyLine(line string) (models.Severity, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return "", false
	}
	if parser.IsWarning(trimmed) || warningPrefix.MatchString(trimmed) {
		return "", false
	}
	if parser.IsCompileError(trimmed) {
		return models.SeverityError, true
	}
	if !errorMarker.MatchString(trimmed) {
		return "", false
	}
	switch {
	case exceptionMarker.MatchString(trimmed):
		return models.SeverityException, true
	case assertMarker.MatchString(trimmed):
		return models.SeverityAssert, true
	default:
		return models.SeverityError, true
	}
}

// isContinuation reports whether line extends the stack trace of the
// preceding event.
func isContinuation(line string) bool {
	if line == "" {
		return false
	}
	if line[0] == ' ' || line[0] == '\t' {
		return true
	}
	return strings.HasPrefix(line, "at ") ||
		strings.HasPrefix(line, "goroutine ") ||
		parser.HasRuntimeFrame(line)
}
