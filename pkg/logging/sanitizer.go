// Package logging holds helpers for keeping secrets out of log output.
package logging

import "regexp"

// Redacted replaces secret material in sanitized strings.
const Redacted = "[REDACTED]"

var (
	// key=value password fields in libpq-style connection strings.
	passwordField = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)

	// user:pass@host credentials embedded in URLs.
	urlCredentials = regexp.MustCompile(`://[^:]+:[^@]+@[^/\s]+`)

	// api_key=... style parameters (assistant endpoints).
	apiKeyField = regexp.MustCompile(`(?i)(api[_-]?key|apikey)=[A-Za-z0-9-_]{8,}`)
)

// SanitizeConnectionString redacts credentials from a database
// connection string so it can be logged at startup.
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}
	out := passwordField.ReplaceAllString(connStr, "${1}="+Redacted)
	return urlCredentials.ReplaceAllString(out, "://"+Redacted+"@"+Redacted)
}

// SanitizeError redacts credential-shaped fragments from an error
// message. Driver errors sometimes echo the connection string back.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	out := passwordField.ReplaceAllString(err.Error(), "${1}="+Redacted)
	out = apiKeyField.ReplaceAllString(out, "${1}="+Redacted)
	return urlCredentials.ReplaceAllString(out, "://"+Redacted+"@"+Redacted)
}
