// Package policy holds the active content policy and its storage. A policy
// is an immutable snapshot; replacement swaps the whole snapshot atomically
// so concurrent readers never observe a partial update.
package policy

import (
	"encoding/json"
	"fmt"
	"regexp"
)

// Document is the wire and persisted form of a policy.
type Document struct {
	BlockedKeywords []string `json:"blocked_keywords"`
	BlockedPatterns []string `json:"blocked_patterns"`
}

// Policy is a compiled, immutable policy snapshot.
type Policy struct {
	BlockedKeywords []string
	BlockedPatterns []*regexp.Regexp

	doc Document
}

// Compile validates the document and compiles its patterns. Pattern order
// is preserved; any invalid pattern fails the whole document.
func Compile(doc Document) (*Policy, error) {
	p := &Policy{
		BlockedKeywords: append([]string(nil), doc.BlockedKeywords...),
		doc:             doc,
	}

	for _, pattern := range doc.BlockedPatterns {
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid blocked pattern %q: %w", pattern, err)
		}
		p.BlockedPatterns = append(p.BlockedPatterns, re)
	}

	return p, nil
}

// ParseDocument decodes and compiles a JSON policy document.
func ParseDocument(data []byte) (*Policy, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode policy document: %w", err)
	}
	return Compile(doc)
}

// Document returns the raw document this policy was compiled from.
func (p *Policy) Document() Document {
	return p.doc
}
