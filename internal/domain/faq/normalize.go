package faq

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	maxHandleLen  = 50
	defaultHandle = "faq-question"
)

// Slugify derives a question handle from a title: lower-case ASCII letters and
// digits joined by single hyphens, at most 50 characters.
func Slugify(title string) string {
	return slugify(foldAccents(strings.ToLower(strings.TrimSpace(title))))
}

// LegacySlug derives the handle older mappings produced, where accented
// letters were dropped instead of folded ("Général" gives "gnral").
func LegacySlug(title string) string {
	return slugify(strings.ToLower(strings.TrimSpace(title)))
}

func slugify(folded string) string {
	var builder strings.Builder
	builder.Grow(len(folded))
	pendingDash := false
	for _, r := range folded {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			if pendingDash && builder.Len() > 0 {
				builder.WriteByte('-')
			}
			builder.WriteRune(r)
			pendingDash = false
		case unicode.IsSpace(r):
			pendingDash = true
		}
		// anything else is dropped without separating words
	}
	handle := builder.String()
	if len(handle) > maxHandleLen {
		handle = strings.TrimRight(handle[:maxHandleLen], "-")
	}
	if handle == "" {
		return defaultHandle
	}
	return handle
}

// CleanContent trims the answer body and wraps plain text in a paragraph.
func CleanContent(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return ""
	}
	if !strings.HasPrefix(trimmed, "<") {
		return "<p>" + trimmed + "</p>"
	}
	return trimmed
}

func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// NormalizeText lower-cases and collapses punctuation and whitespace, so two
// headings differing only in formatting compare equal.
func NormalizeText(q string) string {
	lowered := foldAccents(strings.ToLower(strings.TrimSpace(q)))
	var builder strings.Builder
	builder.Grow(len(lowered))
	lastSpace := true
	for _, r := range lowered {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			builder.WriteRune(r)
			lastSpace = false
			continue
		}
		// treat punctuation as space
		if !lastSpace {
			builder.WriteRune(' ')
			lastSpace = true
		}
	}
	return strings.Join(strings.Fields(builder.String()), " ")
}
