package actions

import (
	"context"
	"errors"

	"github.com/dotcommander/errfix/internal/cache"
	"github.com/dotcommander/errfix/internal/models"
	"github.com/dotcommander/errfix/internal/source"
)

// Analyzer is the remote diagnosis call.
type Analyzer interface {
	Analyze(ctx context.Context, e *models.CapturedError, source string) (*models.AnalysisResult, error)
}

// AnalyzeOutcome is the result of one analyze action.
type AnalyzeOutcome struct {
	ErrorID        string                 `json:"error_id,omitempty"`
	Fingerprint    string                 `json:"fingerprint"`
	Cached         bool                   `json:"cached"`
	SourceIncluded bool                   `json:"source_included"`
	Result         *models.AnalysisResult `json:"result"`
}

// LookupCached returns the cached diagnosis for e's message, if any.
func LookupCached(c *cache.Cache, e *models.CapturedError) (*models.AnalysisResult, bool) {
	if c == nil || e == nil {
		return nil, false
	}
	return c.Get(e.Message)
}

// SourceFor returns what is sent to the API for e: the full file when it is
// small enough, otherwise the excerpt around the error line. Empty when the
// error has no location or the file is unreadable.
func SourceFor(reader *source.Reader, e *models.CapturedError) string {
	if reader == nil || e == nil || e.File == "" {
		return ""
	}
	return reader.Best(e.File, e.Line)
}

// RecordResult stores result in the cache under e's message.
func RecordResult(c *cache.Cache, e *models.CapturedError, result *models.AnalysisResult) {
	if c == nil || e == nil || result == nil {
		return
	}
	c.Put(e.Message, result)
}

// AnalyzeError diagnoses e synchronously: cache first (unless useCache is
// false), then source read and the remote call, then cache write.
func AnalyzeError(ctx context.Context, c *cache.Cache, client Analyzer, reader *source.Reader, e *models.CapturedError, useCache bool) (*AnalyzeOutcome, error) {
	if e == nil || e.Message == "" {
		return nil, errors.New("error message is required")
	}
	out := &AnalyzeOutcome{ErrorID: e.ID, Fingerprint: cache.Fingerprint(e.Message)}

	if useCache {
		if r, ok := LookupCached(c, e); ok {
			out.Cached = true
			out.Result = r
			return out, nil
		}
	}
	if client == nil {
		return nil, errors.New("analysis client is not configured")
	}

	src := SourceFor(reader, e)
	out.SourceIncluded = src != ""

	result, err := client.Analyze(ctx, e, src)
	if err != nil {
		return nil, err
	}
	RecordResult(c, e, result)
	out.Result = result
	return out, nil
}
