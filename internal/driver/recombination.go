package driver

import (
	"math/rand"
	"strings"
)

// crossover splices a prefix of a onto a suffix of b at seeded cut points.
func crossover(a, b string, seed int64) string {
	rnd := rand.New(rand.NewSource(seed))
	sa, sb := strings.Fields(a), strings.Fields(b)
	if len(sa) < 2 || len(sb) < 2 {
		if a != "" {
			return a
		}
		return b
	}
	cutA := 1 + rnd.Intn(len(sa)-1)
	cutB := 1 + rnd.Intn(len(sb)-1)
	child := append(sa[:cutA:cutA], sb[cutB:]...)
	return strings.Join(child, " ")
}

// recombine produces crossover children from random pairs in the pool.
// The pair count scales with the pool size and the configured rate.
func recombine(pool []string, rate float64, seed int64) []string {
	if rate <= 0 || len(pool) < 2 {
		return nil
	}
	rnd := rand.New(rand.NewSource(seed))
	n := int(float64(len(pool)) * rate)
	if n < 1 {
		n = 1
	}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		ai := rnd.Intn(len(pool))
		bi := rnd.Intn(len(pool) - 1)
		if bi >= ai {
			bi++
		}
		out = append(out, crossover(pool[ai], pool[bi], seed+int64(i)))
	}
	return out
}
