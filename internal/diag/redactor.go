package diag

import "regexp"

// Redactor masks identifiers that should not leave the machine: MAC
// addresses, IPv4 addresses, USB serials and anything that looks like a
// credential.
type Redactor struct {
	patterns []redactionPattern
}

type redactionPattern struct {
	regex       *regexp.Regexp
	replacement string
}

// NewRedactor creates a redactor with the default patterns
func NewRedactor() *Redactor {
	return &Redactor{
		patterns: []redactionPattern{
			{
				regex:       regexp.MustCompile(`(?i)\b([0-9a-f]{2}[:-]){5}[0-9a-f]{2}\b`),
				replacement: `[MAC]`,
			},
			{
				regex:       regexp.MustCompile(`\b(25[0-5]|2[0-4]\d|1?\d?\d)(\.(25[0-5]|2[0-4]\d|1?\d?\d)){3}\b`),
				replacement: `[IPV4]`,
			},
			{
				regex:       regexp.MustCompile(`(?i)("?(?:i?serial|serial_number)"?\s*[:=]\s*"?)[^",\s}]+`),
				replacement: `${1}[REDACTED]`,
			},
			{
				regex:       regexp.MustCompile(`(?i)("?(?:api[_-]?key|token|secret|password)"?\s*[:=]\s*"?)[^",\s}]+`),
				replacement: `${1}[REDACTED]`,
			},
		},
	}
}

// Redact applies every pattern to input
func (r *Redactor) Redact(input []byte) []byte {
	result := input
	for _, pattern := range r.patterns {
		result = pattern.regex.ReplaceAll(result, []byte(pattern.replacement))
	}
	return result
}
