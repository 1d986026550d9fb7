package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dotcommander/errfix/internal/actions"
	"github.com/dotcommander/errfix/internal/analysis"
	"github.com/dotcommander/errfix/internal/app"
	"github.com/dotcommander/errfix/internal/cache"
	"github.com/dotcommander/errfix/internal/capture"
	"github.com/dotcommander/errfix/internal/models"
	"github.com/dotcommander/errfix/internal/patch"
	"github.com/dotcommander/errfix/internal/source"
)

// deps is everything a triage command needs, built from effective settings.
type deps struct {
	rt       app.Runtime
	cache    *cache.Cache
	client   *analysis.Client
	resolver source.Resolver
	reader   *source.Reader
	patcher  *patch.Patcher
}

func buildDeps(kv kvStore) deps {
	rt := app.EffectiveRuntime().WithStored(actions.LoadStoredPrefs(kv))
	resolver := source.NewResolver(rt.ProjectRoot)
	return deps{
		rt:       rt,
		cache:    cache.New(kv, rt.CacheCapacity),
		client:   newClient(rt),
		resolver: resolver,
		reader:   source.NewReader(resolver),
		patcher:  patch.NewPatcher(resolver),
	}
}

func newClient(rt app.Runtime) *analysis.Client {
	return analysis.NewClient(analysis.Config{
		APIKey:         rt.APIKey,
		Model:          rt.Model,
		BaseURL:        rt.Endpoint,
		RequestTimeout: rt.RequestTimeout,
		MaxRetries:     rt.MaxRetries,
		RetryDelay:     rt.RetryDelay,
	})
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// capturedFromFlags builds a one-off CapturedError the same way the live
// store does, so parsing and ids match a watched session.
func capturedFromFlags(msg, trace string) (*models.CapturedError, error) {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return nil, errors.New("--msg is required")
	}
	st := capture.NewErrorStore(1)
	e, _ := st.Ingest(msg, trace, models.SeverityError)
	return e, nil
}

func readTrace(trace, traceFile string) (string, error) {
	if traceFile == "" {
		return trace, nil
	}
	if trace != "" {
		return "", errors.New("use either --trace or --trace-file, not both")
	}
	b, err := os.ReadFile(traceFile) //nolint:gosec // G304: operator-supplied path
	if err != nil {
		return "", fmt.Errorf("read trace file: %w", err)
	}
	return string(b), nil
}

// loadResult reads a diagnosis saved by `errfix analyze --out`. A bare
// AnalysisResult object is accepted too.
func loadResult(path string) (*models.AnalysisResult, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("--result is required")
	}
	b, err := os.ReadFile(path) //nolint:gosec // G304: operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("read result: %w", err)
	}

	var wrapped struct {
		Result *models.AnalysisResult `json:"result"`
	}
	if err := json.Unmarshal(b, &wrapped); err != nil {
		return nil, fmt.Errorf("decode result %s: %w", path, err)
	}
	result := wrapped.Result
	if result == nil {
		result = &models.AnalysisResult{}
		if err := json.Unmarshal(b, result); err != nil {
			return nil, fmt.Errorf("decode result %s: %w", path, err)
		}
	}
	result.Normalize()
	return result, nil
}

func saveResult(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if err := os.WriteFile(path, append(b, '\n'), 0o600); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}
