package driver

import (
	"math/rand"
	"strings"
)

type mutationOp func(text string, rnd *rand.Rand) string

func swapWords(text string, rnd *rand.Rand) string {
	words := strings.Fields(text)
	if len(words) < 2 {
		return text
	}
	i := rnd.Intn(len(words))
	j := rnd.Intn(len(words) - 1)
	if j >= i {
		j++
	}
	words[i], words[j] = words[j], words[i]
	return strings.Join(words, " ")
}

func dropWord(text string, rnd *rand.Rand) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return text
	}
	idx := rnd.Intn(len(words))
	return strings.Join(append(words[:idx:idx], words[idx+1:]...), " ")
}

func reverseWords(text string, _ *rand.Rand) string {
	words := strings.Fields(text)
	for i, j := 0, len(words)-1; i < j; i, j = i+1, j-1 {
		words[i], words[j] = words[j], words[i]
	}
	return strings.Join(words, " ")
}

var mutationOps = []mutationOp{swapWords, dropWord, reverseWords}

// mutatePrompt derives up to k variants of base by cycling through the
// word-level operators. Duplicates and no-op results are discarded, so the
// output may be shorter than k.
func mutatePrompt(base string, k int, seed int64) []string {
	rnd := rand.New(rand.NewSource(seed))
	var out []string
	for i := 0; i < k; i++ {
		op := mutationOps[i%len(mutationOps)]
		mutated := op(base, rnd)
		if mutated == "" || mutated == base {
			continue
		}
		dup := false
		for _, seen := range out {
			if seen == mutated {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, mutated)
		}
	}
	return out
}
