// Package tokenize normalizes code and query text into comparable BM25
// terms: word-run extraction, underscore and camelCase splitting, then
// a length threshold and stop-word filter.
package tokenize

import (
	"regexp"
	"strings"
	"unicode"
)

// wordRunRegex extracts maximal word-character runs (the first splitting
// pass, before underscore/camelCase segmentation).
var wordRunRegex = regexp.MustCompile(`[a-zA-Z0-9_]+`)

// minTokenLength is the shortest token kept after splitting; anything
// shorter is noise for lexical ranking.
const minTokenLength = 3

// stopWords is the fixed set dropped after splitting: programming
// keywords common across the supported languages, plus common English
// stopwords.
var stopWords = BuildStopWordMap([]string{
	// programming keywords
	"def", "class", "return", "if", "for", "while", "try", "with", "as",
	"import", "from", "and", "or", "not", "true", "false", "none",
	"function", "const", "let", "var", "this", "new", "async", "await",
	// common English stopwords
	"the", "a", "an", "is", "are", "was", "were", "be", "been", "being",
	"to", "of", "in", "on", "at", "by", "it", "its", "that", "which",
	"but", "so", "than", "then", "there", "their", "they", "you", "your",
	"we", "our", "all", "any", "can", "will", "would", "should", "may",
	"about", "into", "over", "out", "up", "down", "when", "where", "how",
	"what", "who", "these", "those", "have", "has", "had", "do", "does",
	"did", "no", "yes",
})

// Tokenize extracts maximal word-character runs from text, lowercases,
// splits on underscore and camelCase boundaries, then drops tokens
// shorter than three characters and tokens in the fixed stop-word set.
// Duplicates are preserved - BM25 needs term frequency, not a set.
//
// Tokenize is idempotent after a trivial join: Tokenize(strings.Join(
// Tokenize(x), " ")) == Tokenize(x), since every emitted token is already
// lowercase, underscore-free, and camelCase-free.
func Tokenize(text string) []string {
	var tokens []string

	for _, word := range wordRunRegex.FindAllString(text, -1) {
		for _, part := range SplitIdentifier(word) {
			lower := strings.ToLower(part)
			if len(lower) < minTokenLength {
				continue
			}
			if _, stop := stopWords[lower]; stop {
				continue
			}
			tokens = append(tokens, lower)
		}
	}

	return tokens
}

// SplitIdentifier splits an identifier on underscore boundaries, then
// camelCase boundaries within each underscore-delimited part.
func SplitIdentifier(token string) []string {
	if strings.Contains(token, "_") {
		var result []string
		for _, part := range strings.Split(token, "_") {
			if part == "" {
				continue
			}
			result = append(result, SplitCamelCase(part)...)
		}
		return result
	}
	return SplitCamelCase(token)
}

// SplitCamelCase splits camelCase/PascalCase identifiers, including
// acronym runs: "getUserByID" -> ["get", "User", "By", "ID"].
func SplitCamelCase(s string) []string {
	if s == "" {
		return nil
	}

	var result []string
	var current strings.Builder

	runes := []rune(s)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevLower := unicode.IsLower(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevLower || nextLower {
				if current.Len() > 0 {
					result = append(result, current.String())
					current.Reset()
				}
			}
		}
		current.WriteRune(r)
	}
	if current.Len() > 0 {
		result = append(result, current.String())
	}

	return result
}

// BuildStopWordMap converts a slice of stop words to a lookup set.
func BuildStopWordMap(words []string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[strings.ToLower(w)] = struct{}{}
	}
	return m
}
