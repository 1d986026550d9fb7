package source

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLines(t *testing.T, dir, name string, n int) string {
	t.Helper()
	var sb strings.Builder
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&sb, "line %d\n", i)
	}
	p := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(sb.String()), 0o644))
	return p
}

func TestResolver(t *testing.T) {
	r := NewResolver("/project")

	abs, err := r.Resolve("Assets/Foo.cs")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/project", "Assets", "Foo.cs"), abs)

	abs, err = r.Resolve("/elsewhere/x.go")
	require.NoError(t, err)
	assert.Equal(t, filepath.Clean("/elsewhere/x.go"), abs)

	_, err = r.Resolve("")
	require.Error(t, err)
}

func TestResolver_Within(t *testing.T) {
	r := NewResolver("/project")

	assert.True(t, r.Within("/project/Assets/Foo.cs"))
	assert.True(t, r.Within("/project"))
	assert.True(t, r.Within("/project/..hidden/x.cs"))
	assert.False(t, r.Within("/elsewhere/x.go"))
	assert.False(t, r.Within("/project-other/x.go"))

	abs, err := r.Resolve("../escape.cs")
	require.NoError(t, err)
	assert.False(t, r.Within(abs))
}

func TestReadContext_Window(t *testing.T) {
	dir := t.TempDir()
	writeLines(t, dir, "Assets/Foo.cs", 40)

	c := NewReader(NewResolver(dir)).ReadContext("Assets/Foo.cs", 20)

	require.True(t, c.Exists)
	assert.Equal(t, 40, c.TotalLines)
	assert.Equal(t, "line 20", c.ErrorLine)
	assert.Contains(t, c.FullSource, "line 1\n")
	assert.NotContains(t, c.FullSource, "\n\n")

	rows := strings.Split(strings.TrimSuffix(c.Surrounding, "\n"), "\n")
	require.Len(t, rows, 21)
	assert.Equal(t, "      10: line 10", rows[0])
	assert.Equal(t, ">>>   20: line 20", rows[10])
	assert.Equal(t, "      30: line 30", rows[20])
}

func TestReadContext_WindowClampedAtEdges(t *testing.T) {
	dir := t.TempDir()
	writeLines(t, dir, "a.go", 5)

	c := NewReader(NewResolver(dir)).ReadContext("a.go", 1)
	rows := strings.Split(strings.TrimSuffix(c.Surrounding, "\n"), "\n")
	require.Len(t, rows, 5)
	assert.True(t, strings.HasPrefix(rows[0], ">>>"))
}

func TestReadContext_MissingFile(t *testing.T) {
	c := NewReader(NewResolver(t.TempDir())).ReadContext("nope.cs", 3)
	assert.False(t, c.Exists)
	assert.Empty(t, c.Best())
}

func TestReadContext_LargeFileOmitsFullSource(t *testing.T) {
	dir := t.TempDir()
	writeLines(t, dir, "big.cs", 100)

	r := NewReader(NewResolver(dir)).WithLimits(2, 50)
	c := r.ReadContext("big.cs", 50)

	require.True(t, c.Exists)
	assert.Empty(t, c.FullSource)
	assert.Equal(t, c.Surrounding, c.Best())
	assert.Equal(t, 5, strings.Count(c.Surrounding, "\n"))

	_, ok := r.ReadFull("big.cs")
	assert.False(t, ok)
}

func TestReadFull(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "x.go")
	require.NoError(t, os.WriteFile(p, []byte("a\r\nb\r\n"), 0o644))

	text, ok := NewReader(NewResolver(dir)).ReadFull("x.go")
	require.True(t, ok)
	assert.Equal(t, "a\r\nb\r\n", text)
}

func TestBest_PrefersFullSource(t *testing.T) {
	dir := t.TempDir()
	writeLines(t, dir, "x.go", 3)

	r := NewReader(NewResolver(dir))
	assert.Equal(t, "line 1\nline 2\nline 3", r.Best("x.go", 2))
	assert.Empty(t, r.Best("", 2))
}
