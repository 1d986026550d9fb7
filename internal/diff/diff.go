// Package diff computes line-level edit scripts between two code blocks.
package diff

import (
	"strings"
	"unicode"

	"github.com/dotcommander/errfix/internal/models"
)

// Diff aligns original and replacement with a longest-common-subsequence over
// lines and returns the edit script. Lines compare equal when they match after
// trimming trailing whitespace.
//
// When startLine > 0, context and removed lines are numbered from startLine in
// original order. Added lines never carry a number.
func Diff(original, replacement string, startLine int) []models.DiffLine {
	a := SplitLines(original)
	b := SplitLines(replacement)
	pairs := lcs(a, b)

	out := make([]models.DiffLine, 0, len(a)+len(b)-len(pairs))
	lineNum := startLine
	number := func() int {
		if startLine <= 0 {
			return 0
		}
		return lineNum
	}

	ai, bi := 0, 0
	emitRemoved := func(end int) {
		for ; ai < end; ai++ {
			out = append(out, models.DiffLine{Type: models.DiffRemoved, Text: a[ai], OldLine: number()})
			lineNum++
		}
	}
	emitAdded := func(end int) {
		for ; bi < end; bi++ {
			out = append(out, models.DiffLine{Type: models.DiffAdded, Text: b[bi]})
		}
	}

	for _, p := range pairs {
		emitRemoved(p.a)
		emitAdded(p.b)
		out = append(out, models.DiffLine{Type: models.DiffContext, Text: a[p.a], OldLine: number()})
		lineNum++
		ai = p.a + 1
		bi = p.b + 1
	}
	emitRemoved(len(a))
	emitAdded(len(b))

	return out
}

// Stats counts removed and added lines in an edit script.
func Stats(lines []models.DiffLine) (removed, added int) {
	for _, l := range lines {
		switch l.Type {
		case models.DiffRemoved:
			removed++
		case models.DiffAdded:
			added++
		}
	}
	return removed, added
}

// HasChanges returns true if the script contains any removed or added line.
func HasChanges(lines []models.DiffLine) bool {
	r, a := Stats(lines)
	return r+a > 0
}

// SplitLines normalizes CRLF/CR to LF and splits on LF.
// Empty text yields no lines.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(NormalizeNewlines(text), "\n")
}

// NormalizeNewlines converts CRLF and lone CR to LF.
func NormalizeNewlines(text string) string {
	if !strings.ContainsRune(text, '\r') {
		return text
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}

type pair struct{ a, b int }

// lcs returns aligned index pairs in ascending order.
//
// Backtracking starts at (m, n). A match is taken first; otherwise the walk
// moves up (skipping an original line) when dp[i-1][j] >= dp[i][j-1], else left.
func lcs(a, b []string) []pair {
	m, n := len(a), len(b)
	if m == 0 || n == 0 {
		return nil
	}

	ta := make([]string, m)
	for i, s := range a {
		ta[i] = strings.TrimRightFunc(s, unicode.IsSpace)
	}
	tb := make([]string, n)
	for j, s := range b {
		tb[j] = strings.TrimRightFunc(s, unicode.IsSpace)
	}

	dp := make([][]int, m+1)
	for i := range dp {
		dp[i] = make([]int, n+1)
	}
	for i := 1; i <= m; i++ {
		for j := 1; j <= n; j++ {
			if ta[i-1] == tb[j-1] {
				dp[i][j] = dp[i-1][j-1] + 1
			} else {
				dp[i][j] = max(dp[i-1][j], dp[i][j-1])
			}
		}
	}

	out := make([]pair, 0, dp[m][n])
	i, j := m, n
	for i > 0 && j > 0 {
		switch {
		case ta[i-1] == tb[j-1]:
			out = append(out, pair{a: i - 1, b: j - 1})
			i--
			j--
		case dp[i-1][j] >= dp[i][j-1]:
			i--
		default:
			j--
		}
	}

	for l, r := 0, len(out)-1; l < r; l, r = l+1, r-1 {
		out[l], out[r] = out[r], out[l]
	}
	return out
}
