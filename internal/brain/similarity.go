package brain

import (
	"math"
	"regexp"
	"strings"
)

var nonWord = regexp.MustCompile(`\W+`)

// Tokenize splits free text into lowercase tokens on non-word boundaries,
// dropping tokens of length <= 2 ("a", "of", "to" carry no signal).
func Tokenize(text string) []string {
	var tokens []string
	for _, t := range nonWord.Split(strings.ToLower(text), -1) {
		if len(t) > 2 {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// SynonymTable expands token sets with domain synonyms. Each rule fires when
// all its trigger tokens are present and the expansion is not.
type SynonymTable []SynonymRule

type SynonymRule struct {
	Triggers  []string
	Expansion string
}

// DefaultSynonyms covers the splits users actually type. "front end" is the
// one observed in practice.
var DefaultSynonyms = SynonymTable{
	{Triggers: []string{"front", "end"}, Expansion: "frontend"},
	{Triggers: []string{"back", "end"}, Expansion: "backend"},
}

// Expand applies the table to a token list, appending expansions in rule
// order. The input slice is not modified.
func (t SynonymTable) Expand(tokens []string) []string {
	present := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		present[tok] = true
	}

	out := append([]string(nil), tokens...)
	for _, rule := range t {
		if present[rule.Expansion] {
			continue
		}
		fired := true
		for _, trigger := range rule.Triggers {
			if !present[trigger] {
				fired = false
				break
			}
		}
		if fired {
			out = append(out, rule.Expansion)
			present[rule.Expansion] = true
		}
	}
	return out
}

// LexicalScore counts how many tokens appear as substrings of the candidate
// text (case-folded). Cheap and precise for keyword-rich queries; it is never
// blended with the semantic score.
func LexicalScore(tokens []string, candidateText string) int {
	text := strings.ToLower(candidateText)
	score := 0
	for _, tok := range tokens {
		if strings.Contains(text, tok) {
			score++
		}
	}
	return score
}

// zeroNormEpsilon stands in for a zero vector norm so similarity degrades to
// ~0 instead of dividing by zero.
const zeroNormEpsilon = 1e-9

// CosineSimilarity returns the cosine of the angle between two vectors,
// in [-1, 1]. Mismatched lengths are compared over the shorter prefix.
func CosineSimilarity(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	na := math.Sqrt(normA)
	nb := math.Sqrt(normB)
	if na == 0 {
		na = zeroNormEpsilon
	}
	if nb == 0 {
		nb = zeroNormEpsilon
	}
	return dot / (na * nb)
}
