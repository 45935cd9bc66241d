package cmd

import (
	"fmt"
	"strings"
)

// nats does not allow certain characters to be used as a subject (topic) name
// validateSubject will return a validated & sanitized subject string
func validateSubject(subject string) (string, error) {
	if len(subject) == 0 {
		return "", fmt.Errorf("subject must not be empty")
	}
	if strings.ContainsAny(subject, "*>") {
		return "", fmt.Errorf("wildcards are not allowed in '%s'", subject)
	}
	if strings.HasPrefix(subject, ".") || strings.HasSuffix(subject, ".") ||
		strings.Contains(subject, "..") {
		return "", fmt.Errorf("empty token in '%s'", subject)
	}
	return strings.Replace(subject, " ", "_", -1), nil
}
