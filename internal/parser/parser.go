// Package parser extracts source locations from compiler diagnostics and
// runtime stack traces.
package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/dotcommander/errfix/internal/models"
)

var (
	// Assets/Scripts/Example.cs(16,95): error CS1002: ; expected
	compileErrorPattern = regexp.MustCompile(`([^()\r\n]+?\.[A-Za-z0-9]+)\((\d+),\d+\):\s*error\s+([A-Za-z]+\d+)`)

	// Assets/Scripts/Example.cs(16,95): warning CS0219
	compileWarningPattern = regexp.MustCompile(`([^()\r\n]+?\.[A-Za-z0-9]+)\((\d+),\d+\):\s*warning\s+([A-Za-z]+\d+)`)

	// (at Assets/Scripts/PlayerController.cs:42)
	runtimeTracePattern = regexp.MustCompile(`\(at\s+([^()\r\n]+?\.[A-Za-z0-9]+):(\d+)\)`)
)

// Parse extracts location info from an error message and its stack trace.
//
// Patterns are tried in a fixed order and the first hit wins:
//  1. compiler diagnostic in message
//  2. runtime frame in stackTrace
//  3. runtime frame in message
//
// Empty inputs never match.
func Parse(message, stackTrace string) models.LocationInfo {
	if message != "" {
		if m := compileErrorPattern.FindStringSubmatch(message); m != nil {
			if line, ok := atoiLine(m[2]); ok {
				return models.LocationInfo{
					File:        strings.TrimSpace(m[1]),
					Line:        line,
					Code:        m[3],
					IsCompile:   true,
					HasLocation: true,
				}
			}
		}
	}

	if loc, ok := parseRuntime(stackTrace); ok {
		return loc
	}
	if loc, ok := parseRuntime(message); ok {
		return loc
	}

	return models.LocationInfo{}
}

// IsCompileError reports whether message is a compiler error diagnostic.
func IsCompileError(message string) bool {
	return message != "" && compileErrorPattern.MatchString(message)
}

// IsWarning reports whether message is a compiler warning diagnostic.
func IsWarning(message string) bool {
	return message != "" && compileWarningPattern.MatchString(message) && !compileErrorPattern.MatchString(message)
}

// HasRuntimeFrame reports whether text contains an "(at file:line)" frame.
func HasRuntimeFrame(text string) bool {
	return text != "" && runtimeTracePattern.MatchString(text)
}

func parseRuntime(text string) (models.LocationInfo, bool) {
	if text == "" {
		return models.LocationInfo{}, false
	}
	m := runtimeTracePattern.FindStringSubmatch(text)
	if m == nil {
		return models.LocationInfo{}, false
	}
	line, ok := atoiLine(m[2])
	if !ok {
		return models.LocationInfo{}, false
	}
	return models.LocationInfo{
		File:        strings.TrimSpace(m[1]),
		Line:        line,
		HasLocation: true,
	}, true
}

// atoiLine rejects values that overflow int; the regex already guarantees digits.
func atoiLine(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}
