package models

import (
	"strings"
	"time"
)

// ID Strategy:
// - CapturedError IDs are the hex dedupe key of (message, stack trace)
// - Cache fingerprints are the hex hash of the message text only
//
// The two are deliberately different granularities: the store keeps one entry
// per distinct occurrence, the cache shares one diagnosis per message text.

// Severity classifies a captured log entry.
type Severity string

// Severity constants.
const (
	SeverityError     Severity = "error"
	SeverityException Severity = "exception"
	SeverityAssert    Severity = "assert"
)

// ParseSeverity maps a free-form level string onto a Severity.
// Unknown values map to SeverityError.
func ParseSeverity(s string) Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "exception", "panic", "fatal":
		return SeverityException
	case "assert", "assertion":
		return SeverityAssert
	default:
		return SeverityError
	}
}

// Confidence is the remote model's self-reported certainty.
type Confidence string

// Confidence constants.
const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// IsValid returns true for the three known confidence levels.
func (c Confidence) IsValid() bool {
	return c == ConfidenceHigh || c == ConfidenceMedium || c == ConfidenceLow
}

// LocationInfo is the parser's view of where an error points.
type LocationInfo struct {
	File        string `json:"file,omitempty"`
	Line        int    `json:"line,omitempty"`
	Code        string `json:"code,omitempty"`
	IsCompile   bool   `json:"is_compile"`
	HasLocation bool   `json:"has_location"`
}

// CapturedError is one observed error occurrence.
type CapturedError struct {
	ID         string          `json:"id"`
	Message    string          `json:"message"`
	StackTrace string          `json:"stack_trace,omitempty"`
	Severity   Severity        `json:"severity"`
	CapturedAt time.Time       `json:"captured_at"`
	File       string          `json:"file,omitempty"`
	Line       int             `json:"line,omitempty"`
	Code       string          `json:"code,omitempty"`
	IsCompile  bool            `json:"is_compile"`
	Analyzed   bool            `json:"analyzed"`
	Result     *AnalysisResult `json:"result,omitempty"`
}

// HasLocation returns true if the parser resolved a source file.
func (e *CapturedError) HasLocation() bool {
	return e.File != ""
}

// Patch is a single literal substitution inside one file.
type Patch struct {
	Original string `json:"original"`
	Fixed    string `json:"fixed"`
}

// AnalysisResult is the triage outcome for one error.
// Patch is non-nil only when Fixable is true.
type AnalysisResult struct {
	Fixable    bool       `json:"fixable"`
	Confidence Confidence `json:"confidence"`
	Diagnosis  string     `json:"diagnosis"`
	File       string     `json:"file"`
	Line       int        `json:"line"`
	Solution   string     `json:"solution"`
	Patch      *Patch     `json:"patch"`
}

// HasPatch returns true if the result carries a patch.
func (r *AnalysisResult) HasPatch() bool {
	return r != nil && r.Patch != nil
}

// Clone returns a deep copy, or nil for a nil receiver.
func (r *AnalysisResult) Clone() *AnalysisResult {
	if r == nil {
		return nil
	}
	c := *r
	if r.Patch != nil {
		p := *r.Patch
		c.Patch = &p
	}
	return &c
}

// Normalize enforces the fixable/patch invariant in place.
func (r *AnalysisResult) Normalize() {
	if r == nil {
		return
	}
	if !r.Fixable {
		r.Patch = nil
	}
	r.Confidence = Confidence(strings.ToLower(strings.TrimSpace(string(r.Confidence))))
}

// DiffLineType is the kind of a line in an edit script.
type DiffLineType string

// DiffLineType constants.
const (
	DiffContext DiffLineType = "context"
	DiffRemoved DiffLineType = "removed"
	DiffAdded   DiffLineType = "added"
)

// DiffLine is one line of an edit script.
// OldLine is 0 when no original line number applies.
type DiffLine struct {
	Type    DiffLineType `json:"type"`
	Text    string       `json:"text"`
	OldLine int          `json:"old_line,omitempty"`
}

// PatchOutcome reports the result of applying a patch.
type PatchOutcome struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Diff    string `json:"diff,omitempty"`
}

// SourceContext is what the source reader extracted for one location.
type SourceContext struct {
	FullSource  string `json:"full_source,omitempty"`
	Surrounding string `json:"surrounding,omitempty"`
	ErrorLine   string `json:"error_line,omitempty"`
	Exists      bool   `json:"exists"`
	TotalLines  int    `json:"total_lines"`
}

// Best returns the full source when available, else the surrounding excerpt.
func (c SourceContext) Best() string {
	if c.FullSource != "" {
		return c.FullSource
	}
	return c.Surrounding
}
