package driver

import "sort"

// paretoFilter keeps the non-dominated front of candidates under the given
// objectives (greater is better) and returns at most n of them, ordered by
// their score vectors. With no objectives every candidate survives.
func paretoFilter(candidates []string, n int, objectives []objective) []string {
	if len(candidates) == 0 {
		return nil
	}

	type scored struct {
		text   string
		vector []float64
	}
	all := make([]scored, len(candidates))
	for i, c := range candidates {
		vec := make([]float64, len(objectives))
		for j, obj := range objectives {
			vec[j] = obj(c)
		}
		all[i] = scored{text: c, vector: vec}
	}

	dominates := func(a, b []float64) bool {
		better := false
		for k := range a {
			if a[k] < b[k] {
				return false
			}
			if a[k] > b[k] {
				better = true
			}
		}
		return better
	}

	var front []scored
	for i := range all {
		dominated := false
		for j := range all {
			if i != j && dominates(all[j].vector, all[i].vector) {
				dominated = true
				break
			}
		}
		if !dominated {
			front = append(front, all[i])
		}
	}

	sort.SliceStable(front, func(i, j int) bool {
		a, b := front[i].vector, front[j].vector
		for k := range a {
			if a[k] != b[k] {
				return a[k] > b[k]
			}
		}
		return false
	})

	if n > 0 && len(front) > n {
		front = front[:n]
	}
	out := make([]string, len(front))
	for i, s := range front {
		out[i] = s.text
	}
	return out
}

// tournamentRank orders candidates by total scorer points from round-robin
// pairwise comparisons inside a bracket of the given size. Ties keep the
// earlier candidate first.
func tournamentRank(candidates []string, task string, size int, scorer Scorer) []string {
	if len(candidates) <= 1 {
		return candidates
	}
	if size < 2 {
		size = 2
	}
	bracket := candidates
	if len(bracket) > size {
		bracket = bracket[:size]
	}

	wins := make([]int, len(bracket))
	for i := 0; i < len(bracket); i++ {
		for j := i + 1; j < len(bracket); j++ {
			if scorer.Compare(task, bracket[i], bracket[j]) >= 0 {
				wins[i]++
			} else {
				wins[j]++
			}
		}
	}

	idx := make([]int, len(bracket))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return wins[idx[a]] > wins[idx[b]]
	})

	ranked := make([]string, 0, len(candidates))
	for _, i := range idx {
		ranked = append(ranked, bracket[i])
	}
	ranked = append(ranked, candidates[len(bracket):]...)
	return ranked
}
