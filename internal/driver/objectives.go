package driver

import "strings"

// An objective maps candidate text to a score where greater is better.
type objective func(text string) float64

// scoreBrevity rewards shorter candidates.
func scoreBrevity(text string) float64 {
	return -float64(len(text))
}

// scoreDiversity is the unique-token ratio of the candidate.
func scoreDiversity(text string) float64 {
	toks := strings.Fields(strings.ToLower(text))
	if len(toks) == 0 {
		return 0
	}
	uniq := make(map[string]struct{}, len(toks))
	for _, t := range toks {
		uniq[t] = struct{}{}
	}
	return float64(len(uniq)) / float64(len(toks))
}

// scoreCoverage is the fraction of example-input tokens the candidate
// mentions.
func scoreCoverage(text string, examples []Example) float64 {
	exampleSet := make(map[string]struct{})
	for _, ex := range examples {
		for _, t := range strings.Fields(strings.ToLower(ex.Input)) {
			exampleSet[t] = struct{}{}
		}
	}
	if len(exampleSet) == 0 {
		return 0
	}
	hits := 0
	seen := make(map[string]struct{})
	for _, t := range strings.Fields(strings.ToLower(text)) {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := exampleSet[t]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(exampleSet))
}

// getObjectives resolves objective names to scoring functions. Unknown
// names are skipped.
func getObjectives(names []string, examples []Example) ([]string, []objective) {
	var keptNames []string
	var funcs []objective
	for _, name := range names {
		switch name {
		case "brevity":
			funcs = append(funcs, scoreBrevity)
		case "diversity":
			funcs = append(funcs, scoreDiversity)
		case "coverage":
			ex := examples
			funcs = append(funcs, func(text string) float64 {
				return scoreCoverage(text, ex)
			})
		default:
			continue
		}
		keptNames = append(keptNames, name)
	}
	return keptNames, funcs
}
