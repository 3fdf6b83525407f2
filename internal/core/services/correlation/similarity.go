package correlation

import (
	"sort"
	"strings"
)

// tokenize splits a name/description into lowercase tokens for overlap
// scoring. Punctuation-only fragments are dropped.
func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	out := fields[:0]
	for _, f := range fields {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// jaccard computes |a∩b| / |a∪b| over two token sets. Empty inputs score 0:
// two unnamed things are not evidence of sameness.
func jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	setA := make(map[string]struct{}, len(a))
	for _, t := range a {
		setA[t] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, t := range b {
		setB[t] = struct{}{}
	}

	inter := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// sharedTokens returns the sorted intersection of two token sets, used to
// build human-readable rationales.
func sharedTokens(a, b []string) []string {
	setB := make(map[string]struct{}, len(b))
	for _, t := range b {
		setB[t] = struct{}{}
	}
	seen := make(map[string]struct{})
	var out []string
	for _, t := range a {
		if _, dup := seen[t]; dup {
			continue
		}
		if _, ok := setB[t]; ok {
			out = append(out, t)
			seen[t] = struct{}{}
		}
	}
	sort.Strings(out)
	return out
}

// sharedKeys returns the sorted intersection of two attribute-key sets.
func sharedKeys(a, b map[string]string) []string {
	var out []string
	for k := range a {
		if _, ok := b[k]; ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
