// Package redact removes sensitive information from strings before they are
// logged or persisted as queue error text. Provider credentials, connection
// strings, file paths and similar fragments that can surface in upstream
// error bodies are replaced with placeholders.
package redact

import (
	"regexp"
	"unicode/utf8"
)

// Constants for redaction placeholders
const (
	RedactionPlaceholder          = "[REDACTED]"
	RedactedPathPlaceholder       = "[REDACTED_PATH]"
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
)

// Precompiled regex patterns, applied in order.
var (
	dbConnRegex   = regexp.MustCompile(`(?i)(postgres|postgresql|mysql|db|database|connection)://[^@\s]+@`)
	passwordRegex = regexp.MustCompile(`(?i)(password|passwd|pwd)([=:\s]?['"]?)[^'"&\s]{3,}`)
	bearerRegex   = regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9_\-.~+/]{8,}=*`)

	// Provider key formats: OpenAI style "sk-..." and Google API keys.
	providerKeyRegex = regexp.MustCompile(`\b(sk-[A-Za-z0-9_\-]{16,}|AIza[0-9A-Za-z_\-]{30,})`)
	apiKeyRegex      = regexp.MustCompile(
		`(?i)(api[_-]?key|token|secret|key|access|auth)(['"\s:=]+)[A-Za-z0-9_\-.~+/]{8,}`,
	)

	unixPathRegex = regexp.MustCompile(`(/[\w.-]+){2,}`)
	winPathRegex  = regexp.MustCompile(`[A-Za-z]:\\[^\\]+(\\[^\\]+)+`)

	stackTraceRegex = regexp.MustCompile(`(?:goroutine \d+|panic:)[\s\S]*?(\n\t.*)+`)
	emailRegex      = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	sqlRegex        = regexp.MustCompile(
		`(?i)(SELECT|INSERT|UPDATE|DELETE|CREATE|ALTER|DROP|GRANT)[\s\w,*()]+(?:FROM|INTO|SET|TABLE|DATABASE|SCHEMA|VIEW)(?:[\s\w,*()='"]+)?`,
	)
	hostPortRegex = regexp.MustCompile(
		`\b(?:[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,}(?::\d{1,5})?\b`,
	)

	rules = []struct {
		pattern     *regexp.Regexp
		placeholder string
	}{
		{dbConnRegex, RedactedCredentialPlaceholder},
		{passwordRegex, RedactedCredentialPlaceholder},
		{bearerRegex, "Bearer " + RedactedKeyPlaceholder},
		{providerKeyRegex, RedactedKeyPlaceholder},
		{apiKeyRegex, RedactedKeyPlaceholder},
		{stackTraceRegex, "[STACK_TRACE_REDACTED]"},
		{unixPathRegex, RedactedPathPlaceholder},
		{winPathRegex, RedactedPathPlaceholder},
		{emailRegex, "[REDACTED_EMAIL]"},
		{sqlRegex, "[REDACTED_SQL]"},
		{hostPortRegex, "[REDACTED_HOST]"},
	}
)

// String redacts sensitive information from the input string
func String(input string) string {
	if input == "" {
		return input
	}

	result := input
	for _, rule := range rules {
		result = rule.pattern.ReplaceAllString(result, rule.placeholder)
	}
	return result
}

// Error redacts sensitive information from an error's Error() output
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}

// Truncate shortens s to at most maxRunes runes, appending "..." when cut.
// Used when raw provider bodies are logged.
func Truncate(s string, maxRunes int) string {
	if maxRunes <= 0 || utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxRunes]) + "..."
}

// Body redacts then truncates a raw upstream payload for logging.
func Body(raw []byte, maxRunes int) string {
	return Truncate(String(string(raw)), maxRunes)
}
