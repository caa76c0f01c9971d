package plano

import "github.com/agnivade/levenshtein"

// suggestThreshold is the largest edit distance still offered as a
// "did you mean" hint.
const suggestThreshold = 3

// suggest returns the candidate closest to unknown, or "" if none is
// within suggestThreshold edits.
func suggest(unknown string, candidates []string) string {
	best := ""
	bestDistance := suggestThreshold + 1
	for _, c := range candidates {
		if d := levenshtein.ComputeDistance(unknown, c); d < bestDistance {
			best, bestDistance = c, d
		}
	}
	return best
}
