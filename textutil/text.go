package textutil

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	controlRe    = regexp.MustCompile(`[\x{0000}-\x{001f}\x{007f}-\x{009f}]`)
	whitespaceRe = regexp.MustCompile(`\s+`)
	punctRe      = regexp.MustCompile(`[^\p{L}\p{N}\s]`)
)

// Normalize unifies Unicode to NFC, strips control characters and collapses
// whitespace. Chunks are stored and compared in this form.
func Normalize(value string) string {
	if value == "" {
		return ""
	}
	text := norm.NFC.String(value)
	text = controlRe.ReplaceAllString(text, " ")
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// NormalizeSocial reduces a message to a canonical form for greeting and
// courtesy matching: diacritics removed, lowercased, punctuation dropped and
// repeated characters squeezed ("Holaaa!!" -> "hola").
func NormalizeSocial(value string) string {
	decomposed := norm.NFD.String(value)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	cleaned := strings.ToLower(b.String())
	cleaned = punctRe.ReplaceAllString(cleaned, " ")
	cleaned = squeezeRepeats(cleaned)
	cleaned = whitespaceRe.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}

func squeezeRepeats(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	var prev rune = -1
	for _, r := range value {
		if r == prev {
			continue
		}
		b.WriteRune(r)
		prev = r
	}
	return b.String()
}
