// Package patch applies single-substitution fixes to source files.
package patch

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/dotcommander/errfix/internal/diff"
	"github.com/dotcommander/errfix/internal/models"
	"github.com/dotcommander/errfix/internal/source"
)

// Precondition failures, checked in this order.
var (
	ErrNotFixable      = errors.New("no applicable patch: the result is not fixable")
	ErrPatchMissing    = errors.New("no applicable patch: the result carries no patch")
	ErrFileMissing     = errors.New("the patch does not name a target file")
	ErrPatchIncomplete = errors.New("the patch is incomplete: original and fixed code are both required")
	ErrOutsideRoot     = errors.New("target file is outside the project root")
	ErrFileNotFound    = errors.New("target file does not exist")
	ErrOriginalAbsent  = errors.New("original code block not found in the current file; it may already be modified or the suggestion may be inaccurate")
)

// Patcher applies patches relative to a project root.
type Patcher struct {
	resolver source.Resolver
}

// NewPatcher returns a Patcher resolving paths with resolver.
func NewPatcher(resolver source.Resolver) *Patcher {
	return &Patcher{resolver: resolver}
}

type plan struct {
	path     string
	mode     fs.FileMode
	before   string
	after    string
	relative string
}

// Validate checks the result-level preconditions without touching the file system.
func Validate(result *models.AnalysisResult) error {
	switch {
	case result == nil || !result.Fixable:
		return ErrNotFixable
	case result.Patch == nil:
		return ErrPatchMissing
	case strings.TrimSpace(result.File) == "":
		return ErrFileMissing
	case result.Patch.Original == "" || result.Patch.Fixed == "":
		return ErrPatchIncomplete
	}
	return nil
}

func (p *Patcher) prepare(result *models.AnalysisResult) (*plan, error) {
	if err := Validate(result); err != nil {
		return nil, err
	}

	path, err := p.resolver.Resolve(result.File)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", result.File, err)
	}
	if !p.resolver.Within(path) {
		return nil, fmt.Errorf("%w: %s", ErrOutsideRoot, result.File)
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, result.File)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", result.File, err)
	}

	before := string(raw)
	content := diff.NormalizeNewlines(before)
	original := diff.NormalizeNewlines(result.Patch.Original)
	if !strings.Contains(content, original) {
		return nil, ErrOriginalAbsent
	}

	after := strings.Replace(content, original, diff.NormalizeNewlines(result.Patch.Fixed), 1)
	if strings.Contains(before, "\r\n") {
		after = strings.ReplaceAll(after, "\n", "\r\n")
	}

	return &plan{
		path:     path,
		mode:     info.Mode().Perm(),
		before:   before,
		after:    after,
		relative: result.File,
	}, nil
}

// Preview returns the unified diff the patch would produce, without writing.
func (p *Patcher) Preview(result *models.AnalysisResult) (string, error) {
	pl, err := p.prepare(result)
	if err != nil {
		return "", err
	}
	return unified(pl)
}

// Apply validates result and, on success only, rewrites the target file with
// the first occurrence of the original block replaced. Line endings follow
// the file: a CRLF file stays CRLF.
func (p *Patcher) Apply(result *models.AnalysisResult) models.PatchOutcome {
	pl, err := p.prepare(result)
	if err != nil {
		return models.PatchOutcome{Success: false, Message: err.Error()}
	}

	d, err := unified(pl)
	if err != nil {
		slog.Warn("patch diff failed", "file", pl.path, "error", err)
	}

	if err := writeFile(pl.path, []byte(pl.after), pl.mode); err != nil {
		return models.PatchOutcome{Success: false, Message: fmt.Sprintf("write %s: %v", pl.relative, err), File: pl.path}
	}

	slog.Info("patch applied", "file", pl.path)
	return models.PatchOutcome{
		Success: true,
		Message: fmt.Sprintf("patch applied: %s", pl.relative),
		File:    pl.path,
		Diff:    d,
	}
}

func unified(pl *plan) (string, error) {
	name := filepath.ToSlash(pl.relative)
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(diff.NormalizeNewlines(pl.before)),
		B:        difflib.SplitLines(diff.NormalizeNewlines(pl.after)),
		FromFile: "a/" + name,
		ToFile:   "b/" + name,
		Context:  3,
	})
}

// writeFile replaces path via a sibling temp file so a failed write leaves the
// original intact.
func writeFile(path string, data []byte, mode fs.FileMode) error {
	tmp := path + ".errfix.tmp"
	if err := os.WriteFile(tmp, data, mode); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Chmod(tmp, mode); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
