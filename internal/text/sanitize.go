// Package text cleans caller-supplied text before it is sent for synthesis.
package text

import (
	"regexp"
	"strings"
	"unicode"
)

// Typographic characters normalized to plain ASCII so the synthesis output
// does not stumble over them.
const (
	emDash       = "—"
	enDash       = "–"
	figureDash   = "‒"
	ellipsisChar = "…"
	leftDouble   = "“"
	rightDouble  = "”"
	leftSingle   = "‘"
	rightSingle  = "’"
)

const whitespaceRegexPattern = `\s+`

// Sanitizer normalizes text for synthesis. Patterns and replacers are
// compiled once so per-request work stays cheap.
type Sanitizer struct {
	whitespacePattern *regexp.Regexp
	typographyReplace *strings.Replacer
}

// NewSanitizer creates a sanitizer with compiled patterns and replacers.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{
		whitespacePattern: regexp.MustCompile(whitespaceRegexPattern),
		typographyReplace: strings.NewReplacer(
			emDash, ", ",
			enDash, "-",
			figureDash, "-",
			ellipsisChar, "...",
			leftDouble, `"`,
			rightDouble, `"`,
			leftSingle, "'",
			rightSingle, "'",
		),
	}
}

// Sanitize normalizes typography, strips control characters, and collapses
// whitespace. Empty input passes through unchanged.
func (s *Sanitizer) Sanitize(input string) string {
	if input == "" {
		return input
	}

	cleaned := s.typographyReplace.Replace(input)
	cleaned = stripControlRunes(cleaned)
	cleaned = s.whitespacePattern.ReplaceAllString(cleaned, " ")

	return strings.TrimSpace(cleaned)
}

// stripControlRunes removes control characters while keeping the whitespace
// runes the collapse step handles.
func stripControlRunes(input string) string {
	var builder strings.Builder

	builder.Grow(len(input))

	for _, char := range input {
		if unicode.IsControl(char) && char != '\n' && char != '\t' && char != '\r' {
			continue
		}

		builder.WriteRune(char)
	}

	return builder.String()
}
