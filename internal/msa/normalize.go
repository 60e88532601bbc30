// Package msa derives canonical Master Service Agreement keys from free-text
// document metadata and groups documents under them.
package msa

import (
	"regexp"
	"strings"
)

var (
	// An MSA token: "MSA" followed by optional separators and the numeric
	// body, e.g. "MSA-2025-001", "MSA#2025-001", "MSA2025/001".
	msaPattern = regexp.MustCompile(`MSA[\s#:-]*(\d{3,}(?:[-/]\d{2,})?)`)
	// Bare year-sequence references like "2025-001" with no MSA token.
	genericPattern = regexp.MustCompile(`\d{4}[-/]\d{3,}`)
)

// Normalize maps a raw identifier value to its canonical MSA key, or ""
// when no identifier is recoverable. The canonical form is always
// "MSA-<body>" regardless of the separator the raw text used, which makes
// Normalize idempotent.
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}
	cleaned := strings.ToUpper(strings.TrimSpace(raw))
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	cleaned = strings.ReplaceAll(cleaned, "_", "-")

	if m := msaPattern.FindStringSubmatch(cleaned); m != nil {
		return "MSA-" + m[1]
	}
	if body := genericPattern.FindString(cleaned); body != "" {
		return "MSA-" + body
	}
	return ""
}
