// Package inspect screens inbound prompts against the active policy.
package inspect

import (
	"fmt"
	"strings"

	"github.com/teasru/Secure-LLM-Gateway/internal/policy"
)

// Decision is the outcome of inspecting one prompt. When Allowed is false,
// Reason names the offending keyword or pattern.
type Decision struct {
	Allowed bool
	Reason  string
}

// Inspect evaluates the prompt in policy order, first match wins: blocked
// keywords (case-insensitive substring), then blocked patterns (regex
// search). Deterministic for a given (prompt, policy) pair.
func Inspect(prompt string, p *policy.Policy) Decision {
	lower := strings.ToLower(prompt)

	for _, keyword := range p.BlockedKeywords {
		if strings.Contains(lower, strings.ToLower(keyword)) {
			return Decision{Reason: fmt.Sprintf("Blocked keyword: %s", keyword)}
		}
	}

	for _, re := range p.BlockedPatterns {
		if re.MatchString(prompt) {
			return Decision{Reason: fmt.Sprintf("Blocked pattern: %s", trimPatternPrefix(re.String()))}
		}
	}

	return Decision{Allowed: true}
}

// trimPatternPrefix strips the case-insensitivity flag added at compile
// time so reasons echo the pattern as the administrator wrote it.
func trimPatternPrefix(pattern string) string {
	return strings.TrimPrefix(pattern, "(?i)")
}
