package analysis

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind classifies an analysis failure.
type Kind string

// Failure kinds.
const (
	KindConfig            Kind = "config"
	KindRateLimited       Kind = "rate_limited"
	KindInvalidCredential Kind = "invalid_credential"
	KindHTTP              Kind = "http"
	KindNetwork           Kind = "network"
	KindMalformed         Kind = "malformed_response"
)

// Error is the failure value returned by Client. Message is safe to show to
// an operator; raw response payloads never appear in it.
type Error struct {
	Kind    Kind
	Message string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorCode implements models.RecoverableError.
func (e *Error) ErrorCode() string {
	return "ANALYSIS_" + strings.ToUpper(string(e.Kind))
}

// Context implements models.RecoverableError.
func (e *Error) Context() map[string]string {
	ctx := map[string]string{"kind": string(e.Kind)}
	if e.Status != 0 {
		ctx["status"] = strconv.Itoa(e.Status)
	}
	return ctx
}

// SuggestedAction implements models.RecoverableError.
func (e *Error) SuggestedAction() string {
	switch e.Kind {
	case KindConfig:
		return "errfix config set api_key <KEY>"
	case KindInvalidCredential:
		return "errfix config test-key"
	case KindRateLimited:
		return "wait a minute and retry"
	case KindNetwork:
		return "check network connectivity and retry"
	case KindMalformed:
		return "retry the analysis"
	default:
		return ""
	}
}

// IsKind reports whether err is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	ae, ok := asError(err)
	return ok && ae.Kind == k
}

func errConfig() *Error {
	return &Error{Kind: KindConfig, Message: "API key is not configured. Set it with `errfix config set api_key <KEY>`."}
}

func errRateLimited(status int) *Error {
	return &Error{Kind: KindRateLimited, Status: status, Message: "API rate limit exceeded. Try again shortly."}
}

func errInvalidCredential(status int) *Error {
	return &Error{Kind: KindInvalidCredential, Status: status, Message: "API key is invalid. Check it in the errfix settings."}
}

func errHTTP(status int, apiMessage string) *Error {
	if apiMessage == "" {
		apiMessage = "unknown API error"
	}
	return &Error{Kind: KindHTTP, Status: status, Message: fmt.Sprintf("API error (%d): %s", status, apiMessage)}
}

func errNetwork(err error) *Error {
	return &Error{Kind: KindNetwork, Err: err, Message: fmt.Sprintf("network error: %v", err)}
}

func errMalformed(err error) *Error {
	return &Error{Kind: KindMalformed, Err: err, Message: "Could not interpret the API response. Please try again."}
}
