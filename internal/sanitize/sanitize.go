// Package sanitize redacts policy keywords and secret-shaped tokens from
// produced text before it leaves the gateway.
package sanitize

import (
	"regexp"
	"strings"

	"github.com/teasru/Secure-LLM-Gateway/internal/policy"
)

const (
	RedactedToken       = "[REDACTED]"
	RedactedSecretToken = "[REDACTED_SECRET]"
)

// Placeholders stand in for the redaction tokens while the passes run so
// a token already present, or just emitted, can never re-match a keyword
// or secret pattern. Control characters do not occur in policy keywords.
const (
	placeholderRedacted       = "\x00\x01"
	placeholderRedactedSecret = "\x00\x02"
)

// secretPatterns are built in and independent of the active policy.
// Order matters: the first pattern to match a span wins that span.
var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`sk-[A-Za-z0-9]{20,}`),                   // OpenAI-style key
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),                      // AWS access key
	regexp.MustCompile(`-----BEGIN (?:RSA |EC )?PRIVATE KEY-----`), // PEM block marker
}

// Sanitize applies two total substitution passes: every case-insensitive
// occurrence of each policy blocked keyword, then every secret pattern
// match. Idempotent: the redaction tokens never re-match either pass,
// even for keywords like "red" or "secret" that match inside the tokens
// themselves.
func Sanitize(text string, p *policy.Policy) string {
	text = strings.ReplaceAll(text, RedactedSecretToken, placeholderRedactedSecret)
	text = strings.ReplaceAll(text, RedactedToken, placeholderRedacted)

	for _, keyword := range p.BlockedKeywords {
		re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(keyword))
		text = re.ReplaceAllString(text, placeholderRedacted)
	}

	for _, re := range secretPatterns {
		text = re.ReplaceAllString(text, placeholderRedactedSecret)
	}

	text = strings.ReplaceAll(text, placeholderRedactedSecret, RedactedSecretToken)
	return strings.ReplaceAll(text, placeholderRedacted, RedactedToken)
}
