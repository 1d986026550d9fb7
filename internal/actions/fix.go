package actions

import (
	"errors"

	"github.com/dotcommander/errfix/internal/diff"
	"github.com/dotcommander/errfix/internal/models"
	"github.com/dotcommander/errfix/internal/patch"
)

// FixPreview is what an operator reviews before applying a patch.
// Unified is the whole-file diff and stays empty when the file cannot be patched.
type FixPreview struct {
	File         string            `json:"file"`
	Line         int               `json:"line,omitempty"`
	Lines        []models.DiffLine `json:"lines"`
	Removed      int               `json:"removed"`
	Added        int               `json:"added"`
	Unified      string            `json:"unified,omitempty"`
	Applicable   bool              `json:"applicable"`
	PreviewError string            `json:"preview_error,omitempty"`
}

// PreviewFix builds the line diff of result's patch and, when p is non-nil,
// the unified diff against the file on disk. startLine <= 0 falls back to the
// result's own line.
func PreviewFix(p *patch.Patcher, result *models.AnalysisResult, startLine int) (*FixPreview, error) {
	if !result.HasPatch() {
		return nil, errors.New("result has no patch to preview")
	}
	if startLine <= 0 {
		startLine = result.Line
	}

	lines := diff.Diff(result.Patch.Original, result.Patch.Fixed, startLine)
	removed, added := diff.Stats(lines)
	fp := &FixPreview{
		File:    result.File,
		Line:    result.Line,
		Lines:   lines,
		Removed: removed,
		Added:   added,
	}

	if p == nil {
		return fp, nil
	}
	unified, err := p.Preview(result)
	if err != nil {
		fp.PreviewError = err.Error()
		return fp, nil
	}
	fp.Unified = unified
	fp.Applicable = true
	return fp, nil
}

// ApplyFix applies result's patch. All failures are reported in the outcome.
func ApplyFix(p *patch.Patcher, result *models.AnalysisResult) models.PatchOutcome {
	if p == nil {
		return models.PatchOutcome{Success: false, Message: "patcher is not configured"}
	}
	return p.Apply(result)
}
