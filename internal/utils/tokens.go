package utils

// Token estimation for narrative prompts. The heuristic is model independent.

// CountTokens estimates the number of tokens in the given text.
// We approximate 1 token ~= 4 characters.
func CountTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	// Ensure at least 1 token for any non-empty text
	tokens := len([]rune(text)) / 4
	if tokens == 0 {
		return 1
	}
	return tokens
}

// TruncateToTokenLimit truncates text to roughly fit within a token limit.
// When a cut is needed it backs up to the last line break so table rows stay whole.
func TruncateToTokenLimit(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(text)
	charLimit := limit * 4
	if charLimit >= len(runes) {
		return text
	}
	cut := runes[:charLimit]
	for i := len(cut) - 1; i > 0; i-- {
		if cut[i] == '\n' {
			return string(cut[:i+1])
		}
	}
	return string(cut)
}
