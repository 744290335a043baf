package sparse

import "regexp"

// tokenRegex extracts lowercase alphanumeric tokens, preserving internal
// hyphens so error codes like "E-4012" survive as "e-4012". No stemming.
var tokenRegex = regexp.MustCompile(`[a-z0-9](?:[a-z0-9-]*[a-z0-9])?`)

// Tokenize splits text into lowercase tokens for indexing and search.
// Query and document tokenization must be identical, so both paths go
// through this one function.
func Tokenize(text string) []string {
	return tokenRegex.FindAllString(lower(text), -1)
}

// lower is an ASCII-only lowercase. The token alphabet is [a-z0-9-], so full
// Unicode case folding is unnecessary and this avoids allocating for text
// that is already lowercase.
func lower(s string) string {
	hasUpper := false
	for i := 0; i < len(s); i++ {
		if s[i] >= 'A' && s[i] <= 'Z' {
			hasUpper = true
			break
		}
	}
	if !hasUpper {
		return s
	}
	b := []byte(s)
	for i := 0; i < len(b); i++ {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}
