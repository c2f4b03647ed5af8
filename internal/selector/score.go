package selector

import "strings"

// maxInterestTokens is how many of the user's interests take part in ranking.
const maxInterestTokens = 3

// InterestTokens lower-cases the comma separated interests and keeps the
// non-empty ones among the first three.
func InterestTokens(interests string) []string {
	if strings.TrimSpace(interests) == "" {
		return nil
	}
	parts := strings.Split(strings.ToLower(interests), ",")
	if len(parts) > maxInterestTokens {
		parts = parts[:maxInterestTokens]
	}

	tokens := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			tokens = append(tokens, p)
		}
	}
	return tokens
}

// Score counts how many tokens appear as substrings of the candidate's
// interests, case-insensitively. Matching is plain substring search, so
// tokens never reach the query text.
func Score(candidateInterests string, tokens []string) int {
	if len(tokens) == 0 {
		return 0
	}
	haystack := strings.ToLower(candidateInterests)
	score := 0
	for _, tok := range tokens {
		if strings.Contains(haystack, tok) {
			score++
		}
	}
	return score
}
