// Package derivation implements the builtin strategies for the
// derivation stage: reflection statistics, extractive summarization,
// key-point distillation and age-based forgetting.
package derivation

import (
	"strings"
	"unicode"
)

// splitSentences splits prose at sentence-ending punctuation, keeping the
// punctuation and trimming surrounding whitespace.
func splitSentences(s string) []string {
	var sentences []string
	var b strings.Builder
	for _, r := range s {
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if sent := strings.TrimSpace(b.String()); sent != "" {
				sentences = append(sentences, sent)
			}
			b.Reset()
		}
	}
	if sent := strings.TrimSpace(b.String()); sent != "" {
		sentences = append(sentences, sent)
	}
	return sentences
}

// tokenize lowercases s and splits it into alphanumeric word tokens.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
