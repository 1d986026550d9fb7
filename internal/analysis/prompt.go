package analysis

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dotcommander/errfix/internal/models"
)

const (
	analysisTemperature = 0.1
	responseMIMEType    = "application/json"
	promptSeparator     = "\n\n---\n\n"
	credentialProbeText = "Hello. Reply with just 'OK'."
)

const systemPrompt = `You are an expert at diagnosing compiler and runtime errors.
Given an error log and, when available, the source file it points at, analyze the error and explain how to fix it.

Respond ONLY with JSON in exactly this shape. Never include any text outside the JSON.

{
  "fixable": true or false,
  "confidence": "high" or "medium" or "low",
  "diagnosis": "what causes the error",
  "file": "path of the file the error occurred in",
  "line": line number of the error (integer),
  "solution": "concrete step-by-step fix",
  "patch": {
    "original": "code before the fix (the affected line or block)",
    "fixed": "code after the fix (the affected line or block)"
  }
}

Rules:
- fixable is true only when source code is provided and the fix is confined to that single file
- when only the error log is provided: fixable must be false and patch must be null
- problems spanning several files, or caused by configuration, assets or scenes: fixable is false
- patch.original must be text that actually exists in the provided source, copied exactly; never guess
- patch.fixed is the corrected text that replaces patch.original
- confidence: high (almost certain), medium (likely), low (a guess)
- when fixable is false, patch must be null`

type requestPart struct {
	Text string `json:"text"`
}

type requestContent struct {
	Role  string        `json:"role"`
	Parts []requestPart `json:"parts"`
}

type generationConfig struct {
	ResponseMIMEType string  `json:"responseMimeType,omitempty"`
	Temperature      float64 `json:"temperature"`
}

type requestBody struct {
	Contents         []requestContent `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

// BuildPrompt combines the fixed system prompt with the per-error user section.
func BuildPrompt(e *models.CapturedError, source string) string {
	return systemPrompt + promptSeparator + buildUserMessage(e, source)
}

func buildUserMessage(e *models.CapturedError, source string) string {
	var sb strings.Builder
	sb.WriteString("## Error\n")
	fmt.Fprintf(&sb, "**Message:** %s\n", e.Message)

	if e.StackTrace != "" {
		fmt.Fprintf(&sb, "\n**Stack trace:**\n```\n%s\n```\n", e.StackTrace)
	}
	if e.File != "" {
		fmt.Fprintf(&sb, "\n**File:** %s\n", e.File)
		if e.Line > 0 {
			fmt.Fprintf(&sb, "**Line:** %d\n", e.Line)
		}
	}
	if source != "" {
		fmt.Fprintf(&sb, "\n## Source\n```%s\n%s\n```\n", fenceLanguage(e.File), source)
	} else {
		sb.WriteString("\n(source code unavailable)\n")
	}
	return sb.String()
}

// BuildRequestBody returns the JSON body for an analysis call.
func BuildRequestBody(e *models.CapturedError, source string) ([]byte, error) {
	body := requestBody{
		Contents: []requestContent{{
			Role:  "user",
			Parts: []requestPart{{Text: BuildPrompt(e, source)}},
		}},
		GenerationConfig: generationConfig{
			ResponseMIMEType: responseMIMEType,
			Temperature:      analysisTemperature,
		},
	}
	return json.Marshal(body)
}

func buildProbeBody() ([]byte, error) {
	return json.Marshal(requestBody{
		Contents: []requestContent{{
			Role:  "user",
			Parts: []requestPart{{Text: credentialProbeText}},
		}},
		GenerationConfig: generationConfig{Temperature: 0},
	})
}

var fenceLanguages = map[string]string{
	".cs":    "csharp",
	".go":    "go",
	".py":    "python",
	".js":    "javascript",
	".ts":    "typescript",
	".java":  "java",
	".kt":    "kotlin",
	".rs":    "rust",
	".c":     "c",
	".h":     "c",
	".cpp":   "cpp",
	".hpp":   "cpp",
	".rb":    "ruby",
	".php":   "php",
	".swift": "swift",
}

func fenceLanguage(file string) string {
	return fenceLanguages[strings.ToLower(filepath.Ext(file))]
}
