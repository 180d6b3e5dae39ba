package driver

import (
	"context"
	"strings"
)

// Scorer is the candidate-ranking oracle. The optimizer calls Compare for
// tournament brackets and Judge for per-objective scoring of a chosen
// candidate.
type Scorer interface {
	// Compare returns a positive value when a beats b for the task,
	// negative when b wins, zero on a tie.
	Compare(task, a, b string) int

	// Judge scores the candidate 0..10 per objective name.
	Judge(ctx context.Context, task, candidate string, examples []Example, objectives []string) (map[string]float64, error)
}

// LexicalScorer ranks candidates with token statistics only. It is the
// default oracle and needs no network.
type LexicalScorer struct{}

func (LexicalScorer) Compare(task, a, b string) int {
	sa := lexicalTotal(task, a)
	sb := lexicalTotal(task, b)
	switch {
	case sa > sb:
		return 1
	case sa < sb:
		return -1
	}
	return 0
}

func lexicalTotal(task, candidate string) float64 {
	taskSet := tokenSet(task)
	candSet := tokenSet(candidate)
	overlap := 0
	for t := range candSet {
		if _, ok := taskSet[t]; ok {
			overlap++
		}
	}
	// Relevance dominates; brevity breaks ties.
	return float64(overlap)*1000 - float64(len(candidate))
}

func (LexicalScorer) Judge(_ context.Context, task, candidate string, examples []Example, objectives []string) (map[string]float64, error) {
	words := strings.Fields(candidate)
	uniq := tokenSet(candidate)

	brevity := float64(10 - len(candidate)%10)

	diversity := 0.0
	if len(words) > 0 {
		diversity = float64(int(10 * float64(len(uniq)) / float64(len(words))))
	}

	refTokens := tokenSet(task)
	for _, ex := range examples {
		for t := range tokenSet(ex.Input) {
			refTokens[t] = struct{}{}
		}
		for t := range tokenSet(ex.Expected) {
			refTokens[t] = struct{}{}
		}
	}
	overlap := 0
	for t := range uniq {
		if _, ok := refTokens[t]; ok {
			overlap++
		}
	}
	denom := len(refTokens)
	if denom < 1 {
		denom = 1
	}
	coverage := float64(int(10 * float64(overlap) / float64(denom)))

	scores := map[string]float64{
		"brevity":   clampScore(brevity),
		"diversity": clampScore(diversity),
		"coverage":  clampScore(coverage),
	}

	if len(objectives) == 0 {
		return scores, nil
	}
	out := make(map[string]float64, len(objectives))
	for _, name := range objectives {
		if v, ok := scores[name]; ok {
			out[name] = v
		}
	}
	return out, nil
}

func tokenSet(text string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, t := range strings.Fields(strings.ToLower(text)) {
		out[t] = struct{}{}
	}
	return out
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 10 {
		return 10
	}
	return v
}
