package capture

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingConsole struct{}

func (failingConsole) ReadErrors() (map[string]struct{}, error) {
	return nil, errors.New("console unavailable")
}

func TestFileConsole_ReadErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "build.log")
	content := "Compiling...\n" +
		"Assets/A.cs(10,3): error CS1002: ; expected\n" +
		"Assets/A.cs(11,1): warning CS0219: unused variable\n" +
		"warning: deprecated API\n" +
		"Build finished with 0 errors\n" +
		"ERROR: asset bundle missing\n" +
		"  Assets/A.cs(10,3): error CS1002: ; expected  \n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	got, err := NewFileConsole(path).ReadErrors()
	require.NoError(t, err)
	assert.Equal(t, set(
		"Assets/A.cs(10,3): error CS1002: ; expected",
		"ERROR: asset bundle missing",
	), got)
}

func TestFileConsole_MissingFileIsEmpty(t *testing.T) {
	got, err := NewFileConsole(filepath.Join(t.TempDir(), "nope.log")).ReadErrors()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSnapshot_Degrades(t *testing.T) {
	assert.Empty(t, Snapshot(nil))
	assert.Empty(t, Snapshot(failingConsole{}))
	assert.NotNil(t, Snapshot(failingConsole{}))
}

func TestClassifyLine(t *testing.T) {
	cases := []struct {
		line string
		ok   bool
		sev  string
	}{
		{"NullReferenceException: Object reference not set", true, "exception"},
		{"panic: runtime error: index out of range", true, "exception"},
		{"Assertion failed: x > 0", true, "assert"},
		{"error: something broke", true, "error"},
		{"Assets/A.cs(1,1): warning CS0168: unused", false, ""},
		{"0 errors, 2 warnings", false, ""},
		{"all good", false, ""},
		{"", false, ""},
	}
	for _, tc := range cases {
		t.Run(tc.line, func(t *testing.T) {
			sev, ok := classifyLine(tc.line)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.sev, string(sev))
		})
	}
}
