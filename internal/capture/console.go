package capture

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
)

// ConsoleSource returns the current set of error-classified console messages.
type ConsoleSource interface {
	ReadErrors() (map[string]struct{}, error)
}

// Snapshot reads src, degrading to an empty set when src is nil or fails.
func Snapshot(src ConsoleSource) map[string]struct{} {
	if src == nil {
		return map[string]struct{}{}
	}
	set, err := src.ReadErrors()
	if err != nil {
		slog.Warn("console snapshot unavailable", "error", err)
		return map[string]struct{}{}
	}
	if set == nil {
		return map[string]struct{}{}
	}
	return set
}

// FileConsole treats a build log file as the console. A missing file is an
// empty console.
type FileConsole struct {
	Path string
}

// NewFileConsole returns a FileConsole over path.
func NewFileConsole(path string) *FileConsole {
	return &FileConsole{Path: path}
}

// ReadErrors returns every error-classified line of the file, trimmed.
func (c *FileConsole) ReadErrors() (map[string]struct{}, error) {
	set := make(map[string]struct{})
	if c == nil || c.Path == "" {
		return set, nil
	}

	f, err := os.Open(c.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return set, nil
		}
		return nil, fmt.Errorf("open console log: %w", err)
	}
	defer func() { _ = f.Close() }()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if _, ok := classifyLine(line); ok {
			set[line] = struct{}{}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read console log: %w", err)
	}
	return set, nil
}
