package logging

import (
	"regexp"
)

// RedactedText replaces sensitive data.
const RedactedText = "[REDACTED]"

type redaction struct {
	pattern *regexp.Regexp
	repl    string
}

// redactions run in order over anything about to be logged. They cover the
// secrets the factory handles: Postgres and Redis credentials, the session
// secret, and AWS keys used by the deploy publisher.
var redactions = []redaction{
	// password=xxx, pwd=xxx, pass=xxx, secret=xxx up to the next delimiter
	{regexp.MustCompile(`(?i)\b(password|pwd|pass|secret)=[^;&\s]+`), "${1}=" + RedactedText},
	// userinfo of postgres:// and redis:// URLs, including redis://:pass@host
	{regexp.MustCompile(`://[^/@\s]*:[^/@\s]*@`), "://" + RedactedText + "@"},
	// AWS access key ids
	{regexp.MustCompile(`\b(AKIA|ASIA)[A-Z0-9]{16}\b`), RedactedText},
	// presigned S3 URLs
	{regexp.MustCompile(`(?i)(X-Amz-Signature|X-Amz-Credential|X-Amz-Security-Token)=[^&\s]+`), "${1}=" + RedactedText},
}

// SanitizeConnectionString removes credentials from Postgres and Redis
// connection strings. Use this before logging any connection string.
func SanitizeConnectionString(connStr string) string {
	return redact(connStr)
}

// SanitizeError renders err with credentials removed.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return redact(err.Error())
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	for _, r := range redactions {
		s = r.pattern.ReplaceAllString(s, r.repl)
	}
	return s
}
