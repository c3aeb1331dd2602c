package logger

import (
	"strings"
)

// SanitizedEmail masks an email address for logging (e.g., "a**@*******.com")
func SanitizedEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || domain == "" {
		return "[invalid-email]"
	}

	if len(local) > 1 {
		local = local[:1] + strings.Repeat("*", len(local)-1)
	}

	labels := strings.Split(domain, ".")
	for i := 0; i < len(labels)-1; i++ {
		labels[i] = strings.Repeat("*", len(labels[i]))
	}

	return local + "@" + strings.Join(labels, ".")
}

var sensitiveQueryParams = []string{
	"password", "token", "secret", "email", "otp", "code", "state", "auth",
}

// IsSensitiveQuery reports whether a raw query string names a parameter that
// must not be logged.
func IsSensitiveQuery(rawQuery string) bool {
	query := strings.ToLower(rawQuery)
	for _, param := range sensitiveQueryParams {
		if strings.Contains(query, param) {
			return true
		}
	}
	return false
}
