package playstore

import (
	"fmt"
	"strings"
)

// ErrorCode classifies the remote service's Error= strings.
type ErrorCode string

const (
	CodeBadAuthentication        ErrorCode = "BadAuthentication"
	CodeNeedsBrowser             ErrorCode = "NeedsBrowser"
	CodeDeviceManagementRequired ErrorCode = "DeviceManagementRequiredOrSyncDisabled"
	CodeAccountDeleted           ErrorCode = "AccountDeleted"
	CodeAccountDisabled          ErrorCode = "AccountDisabled"
	CodeCaptchaRequired          ErrorCode = "CaptchaRequired"
	CodeServiceUnavailable       ErrorCode = "ServiceUnavailable"
	CodeKeyExpired               ErrorCode = "KeyExpired"
	CodeUnknownRemoteError       ErrorCode = "UnknownRemoteError"
	CodeMalformedResponse        ErrorCode = "MalformedResponse"
)

var errorCodes = map[string]ErrorCode{
	"BadAuthentication":                      CodeBadAuthentication,
	"NeedsBrowser":                           CodeNeedsBrowser,
	"DeviceManagementRequiredOrSyncDisabled": CodeDeviceManagementRequired,
	"AccountDeleted":                         CodeAccountDeleted,
	"AccountDisabled":                        CodeAccountDisabled,
	"CaptchaRequired":                        CodeCaptchaRequired,
	"ServiceUnavailable":                     CodeServiceUnavailable,
	"KeyExpired":                             CodeKeyExpired,
}

// AuthError carries the remote rejection. Raw preserves the service's
// original string (or the whole body for malformed responses) for
// diagnostics.
type AuthError struct {
	Code ErrorCode
	Raw  string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("playstore: remote error %s: %s", e.Code, e.Raw)
}

// Retryable reports whether repeating the identical request can
// plausibly succeed.
func (e *AuthError) Retryable() bool {
	return e.Code == CodeServiceUnavailable || e.Code == CodeMalformedResponse
}

type OutcomeKind int

const (
	OutcomeError OutcomeKind = iota
	OutcomeToken
	OutcomeChallenge
)

// Challenge is the interactive verification the service may demand
// instead of a token.
type Challenge struct {
	URL   string
	Token string
}

// Outcome is the single resolved result of an authentication attempt.
// Exactly one variant is populated, selected by Kind.
type Outcome struct {
	Kind      OutcomeKind
	Token     string
	Challenge Challenge
	Err       *AuthError
}

// ParseResponse classifies a newline-separated key=value body. It never
// fails: unrecognizable bodies classify as CodeMalformedResponse with
// the raw body attached, and the caller decides how to surface that.
func ParseResponse(body []byte) Outcome {

	fields := parseKeyValues(string(body))

	if v := fields["Auth"]; v != "" {
		return Outcome{Kind: OutcomeToken, Token: v}
	}

	if u, ok := fields["Url"]; ok {
		if tok, ok := fields["Token"]; ok {
			return Outcome{Kind: OutcomeChallenge, Challenge: Challenge{URL: u, Token: tok}}
		}
	}

	if raw, ok := fields["Error"]; ok {
		code, known := errorCodes[raw]
		if !known {
			code = CodeUnknownRemoteError
		}
		return Outcome{Kind: OutcomeError, Err: &AuthError{Code: code, Raw: raw}}
	}

	return Outcome{Kind: OutcomeError, Err: &AuthError{Code: CodeMalformedResponse, Raw: string(body)}}
}

// parseKeyValues splits the deliberately casual wire format: one
// key=value per line, no nesting, no escaping, last occurrence wins.
func parseKeyValues(body string) map[string]string {
	fields := make(map[string]string)
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimRight(line, "\r")
		k, v, ok := strings.Cut(line, "=")
		if !ok || k == "" {
			continue
		}
		fields[k] = v
	}
	return fields
}
