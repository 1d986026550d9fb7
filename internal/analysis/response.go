package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/dotcommander/errfix/internal/models"
)

const resultTextPath = "candidates.0.content.parts.0.text"

// ParseResponse extracts the AnalysisResult from a successful API envelope.
// The returned error is always a KindMalformed *Error.
func ParseResponse(body []byte) (*models.AnalysisResult, error) {
	if !gjson.ValidBytes(body) {
		return nil, errMalformed(errors.New("response is not valid JSON"))
	}
	text := gjson.GetBytes(body, resultTextPath).String()
	if strings.TrimSpace(text) == "" {
		return nil, errMalformed(errors.New("response has no candidate text"))
	}

	payload := stripFence(text)
	if !gjson.Parse(payload).IsObject() {
		return nil, errMalformed(errors.New("analysis result is not a JSON object"))
	}
	var result models.AnalysisResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, errMalformed(fmt.Errorf("decode analysis result: %w", err))
	}
	result.Normalize()
	return &result, nil
}

// apiError reads error.code and error.message from an error envelope.
func apiError(body []byte) (code int, message string) {
	if !gjson.ValidBytes(body) {
		return 0, ""
	}
	e := gjson.GetBytes(body, "error")
	return int(e.Get("code").Int()), e.Get("message").String()
}

// stripFence removes a surrounding ```json fence some models emit despite
// the JSON response MIME type.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
