// Package source reads the code around an error location.
package source

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dotcommander/errfix/internal/diff"
	"github.com/dotcommander/errfix/internal/models"
)

const (
	// DefaultContextLines is how many lines above and below the target are excerpted.
	DefaultContextLines = 10
	// DefaultMaxFileSize is the largest file whose full text is returned (500 KB).
	DefaultMaxFileSize = 500_000
)

// Resolver maps project-relative paths onto absolute paths.
type Resolver struct {
	Root string
}

// NewResolver returns a Resolver rooted at root; empty root means the working directory.
func NewResolver(root string) Resolver {
	return Resolver{Root: root}
}

// Resolve returns the absolute path for p. Absolute inputs are cleaned and returned as-is.
func (r Resolver) Resolve(p string) (string, error) {
	if p == "" {
		return "", errors.New("empty path")
	}
	p = filepath.FromSlash(p)
	if filepath.IsAbs(p) {
		return filepath.Clean(p), nil
	}
	root, err := r.root()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, p), nil
}

// Within reports whether abs lies inside the project root.
func (r Resolver) Within(abs string) bool {
	root, err := r.root()
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(root, filepath.Clean(abs))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (r Resolver) root() (string, error) {
	root := r.Root
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("resolve working directory: %w", err)
		}
		root = wd
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve root %s: %w", root, err)
	}
	return abs, nil
}

// Reader extracts full files or windowed excerpts.
type Reader struct {
	resolver     Resolver
	contextLines int
	maxFileSize  int64
}

// NewReader returns a Reader with default limits.
func NewReader(resolver Resolver) *Reader {
	return &Reader{
		resolver:     resolver,
		contextLines: DefaultContextLines,
		maxFileSize:  DefaultMaxFileSize,
	}
}

// WithLimits overrides the excerpt radius and full-source size cap.
// Non-positive values keep the defaults.
func (r *Reader) WithLimits(contextLines int, maxFileSize int64) *Reader {
	if contextLines > 0 {
		r.contextLines = contextLines
	}
	if maxFileSize > 0 {
		r.maxFileSize = maxFileSize
	}
	return r
}

// ReadContext reads path and returns its text plus an excerpt around line (1-based).
// Files over the size cap are excerpted only. Missing files yield Exists=false.
func (r *Reader) ReadContext(path string, line int) models.SourceContext {
	var ctx models.SourceContext

	abs, err := r.resolver.Resolve(path)
	if err != nil {
		return ctx
	}
	info, err := os.Stat(abs)
	if err != nil || info.IsDir() {
		return ctx
	}

	b, err := os.ReadFile(abs) //nolint:gosec // G304: path comes from a parsed diagnostic inside the project
	if err != nil {
		return ctx
	}
	ctx.Exists = true

	text := diff.NormalizeNewlines(string(b))
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	if text == "" {
		lines = nil
	}
	ctx.TotalLines = len(lines)

	if info.Size() <= r.maxFileSize {
		ctx.FullSource = strings.Join(lines, "\n")
	}

	idx := line - 1
	if idx >= 0 && idx < len(lines) {
		ctx.ErrorLine = lines[idx]
	}
	ctx.Surrounding = excerpt(lines, idx, r.contextLines)
	return ctx
}

// ReadFull returns the whole file text, or false if missing or over the size cap.
func (r *Reader) ReadFull(path string) (string, bool) {
	abs, err := r.resolver.Resolve(path)
	if err != nil {
		return "", false
	}
	info, err := os.Stat(abs)
	if err != nil || info.IsDir() || info.Size() > r.maxFileSize {
		return "", false
	}
	b, err := os.ReadFile(abs) //nolint:gosec // G304: see ReadContext
	if err != nil {
		return "", false
	}
	return string(b), true
}

// Best returns what should be sent for analysis: full source, else the excerpt,
// else "" when the file cannot be read.
func (r *Reader) Best(path string, line int) string {
	if path == "" {
		return ""
	}
	c := r.ReadContext(path, line)
	if !c.Exists {
		return ""
	}
	return c.Best()
}

// excerpt renders lines[idx-radius..idx+radius] with 1-based numbers and a
// ">>>" marker on idx. Out-of-range idx is clamped for the window only.
func excerpt(lines []string, idx, radius int) string {
	if len(lines) == 0 {
		return ""
	}
	start := max(0, idx-radius)
	end := min(len(lines)-1, idx+radius)
	if start > end {
		return ""
	}

	var sb strings.Builder
	for i := start; i <= end; i++ {
		marker := "   "
		if i == idx {
			marker = ">>>"
		}
		fmt.Fprintf(&sb, "%s %4d: %s\n", marker, i+1, lines[i])
	}
	return sb.String()
}
