// Package scrub redacts personally identifiable information from text
// before it is persisted. It backs the memory package's WithScrubber
// option, applied to every message on its way into a lane buffer.
package scrub

import "regexp"

// Pattern defines a named PII detection pattern with its replacement
// placeholder. For example, an email pattern would use the placeholder
// "[EMAIL]".
type Pattern struct {
	Name        string
	Pattern     *regexp.Regexp
	Placeholder string
}

// DefaultPatterns contains the built-in PII detection patterns for common
// data types: email addresses, US phone numbers, US Social Security
// numbers, credit card numbers, and IPv4 addresses.
var DefaultPatterns = []Pattern{
	{
		Name:        "email",
		Pattern:     regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`),
		Placeholder: "[EMAIL]",
	},
	{
		Name:        "credit_card",
		Pattern:     regexp.MustCompile(`\b(?:[0-9]{4}[-\s]?){3}[0-9]{4}\b`),
		Placeholder: "[CREDIT_CARD]",
	},
	{
		Name:        "ssn",
		Pattern:     regexp.MustCompile(`\b[0-9]{3}-[0-9]{2}-[0-9]{4}\b`),
		Placeholder: "[SSN]",
	},
	{
		Name:        "phone",
		Pattern:     regexp.MustCompile(`(\+?1[-.\s]?)?\(?[0-9]{3}\)?[-.\s][0-9]{3}[-.\s]?[0-9]{4}`),
		Placeholder: "[PHONE]",
	},
	{
		Name:        "ip_address",
		Pattern:     regexp.MustCompile(`\b(?:[0-9]{1,3}\.){3}[0-9]{1,3}\b`),
		Placeholder: "[IP_ADDRESS]",
	},
}

// Redactor replaces PII matches in text with configurable placeholders.
type Redactor struct {
	patterns []Pattern
}

// New creates a Redactor with the given patterns. With no patterns, Redact
// is a no-op.
func New(patterns ...Pattern) *Redactor {
	return &Redactor{patterns: patterns}
}

// Redact scans text for PII and returns the sanitised text along with
// whether any redaction occurred.
func (r *Redactor) Redact(text string) (out string, redacted bool) {
	out = text
	for _, p := range r.patterns {
		if p.Pattern.MatchString(out) {
			out = p.Pattern.ReplaceAllString(out, p.Placeholder)
			redacted = true
		}
	}
	return out, redacted
}
