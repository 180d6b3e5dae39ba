package driver

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/gepa-next/innerloop/internal/config"
	"github.com/gepa-next/innerloop/internal/events"
)

// interIterationPause yields between iterations so cancellation can land.
const interIterationPause = 50 * time.Millisecond

// Optimizer is the built-in driver: a bounded iterative search over prompt
// variants. Each round mutates the current base, recombines the previous
// pool, keeps the Pareto front, ranks a tournament bracket, and scores the
// winner.
type Optimizer struct {
	cfg           config.OptimizerConfig
	maxIterations int
	scorer        Scorer

	// ObserveIteration, when set, receives each iteration's duration in
	// seconds.
	ObserveIteration func(seconds float64)
}

// NewOptimizer builds the driver from configuration. A nil scorer selects
// the lexical default.
func NewOptimizer(cfg config.OptimizerConfig, maxIterations int, scorer Scorer) *Optimizer {
	if scorer == nil {
		scorer = LexicalScorer{}
	}
	return &Optimizer{cfg: cfg, maxIterations: maxIterations, scorer: scorer}
}

type mutationData struct {
	Count int `json:"count"`
}

type progressData struct {
	Iteration   int            `json:"iteration"`
	Proposal    string         `json:"proposal"`
	TargetModel string         `json:"target_model"`
	Rubric      string         `json:"rubric"`
	Scores      map[string]any `json:"scores"`
}

type selectedData struct {
	Candidate string         `json:"candidate"`
	Scores    map[string]any `json:"scores"`
}

type earlyStopData struct {
	Best string `json:"best"`
}

// Result is the terminal payload of a finished optimization.
type Result struct {
	Proposal    string         `json:"proposal"`
	Lessons     []string       `json:"lessons"`
	Scores      map[string]any `json:"scores"`
	TargetModel string         `json:"target_model"`
	Rubric      string         `json:"rubric"`
}

func (o *Optimizer) Run(ctx context.Context, h Handle, req Request) (json.RawMessage, error) {
	if err := h.Emit("started", struct{}{}); err != nil {
		return nil, err
	}

	iterations := req.Iterations
	if iterations > o.maxIterations {
		iterations = o.maxIterations
	}

	targetModel := req.TargetModel
	if targetModel == "" {
		targetModel = o.cfg.TargetModelDefault
	}
	rubric := req.EvaluationRubric
	if rubric == "" {
		rubric = o.cfg.EvaluationRubric
	}
	examples := req.Examples
	if len(examples) > o.cfg.MaxExamplesPerJob {
		examples = examples[:o.cfg.MaxExamplesPerJob]
	}
	objectiveNames := req.Objectives
	if len(objectiveNames) == 0 {
		objectiveNames = []string{"brevity", "diversity", "coverage"}
	}
	recombinationRate := req.RecombinationRate
	if recombinationRate == 0 {
		recombinationRate = o.cfg.RecombinationRate
	}
	tournamentSize := req.TournamentSize
	if tournamentSize == 0 {
		tournamentSize = o.cfg.TournamentSize
	}
	patience := req.EarlyStopPatience
	if patience == 0 {
		patience = o.cfg.EarlyStopPatience
	}
	seed := req.Seed
	if seed == 0 {
		seed = o.cfg.Seed
	}

	task := req.Prompt
	if task == "" && len(examples) > 0 {
		task = examples[0].Input
	}
	objectiveNames, objectives := getObjectives(objectiveNames, examples)

	scoresFor := func(text string) map[string]float64 {
		out := make(map[string]float64, len(objectiveNames))
		for i, name := range objectiveNames {
			out[name] = objectives[i](text)
		}
		return out
	}

	base := req.Prompt
	best := base
	bestScore := math.Inf(-1)
	stale := 0
	var prevPool []string

	for i := 0; i < iterations; i++ {
		iterStart := time.Now()
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if events.Now() > h.Deadline() {
			return nil, ErrDeadlineExceeded
		}

		mutants := mutatePrompt(base, o.cfg.MaxMutationsPerRound, seed+int64(i))
		recombos := recombine(prevPool, recombinationRate, seed+int64(i))
		candidates := append(append([]string{base}, mutants...), recombos...)

		if err := h.Emit("mutation", mutationData{Count: len(mutants)}); err != nil {
			return nil, err
		}

		front := paretoFilter(candidates, o.cfg.MaxCandidates, objectives)
		ranked := tournamentRank(front, task, tournamentSize*2, o.scorer)

		chosen := base
		if len(ranked) > 0 {
			chosen = ranked[0]
		}

		detScores := scoresFor(chosen)
		judge, err := o.scorer.Judge(ctx, task, chosen, examples, objectiveNames)
		if err != nil {
			return nil, fmt.Errorf("judge scoring: %w", err)
		}
		scores := combinedScores(detScores, judge)

		if err := h.Emit("progress", progressData{
			Iteration:   i + 1,
			Proposal:    chosen,
			TargetModel: targetModel,
			Rubric:      rubric,
			Scores:      scores,
		}); err != nil {
			return nil, err
		}
		if o.ObserveIteration != nil {
			o.ObserveIteration(time.Since(iterStart).Seconds())
		}

		if err := h.Emit("selected", selectedData{Candidate: chosen, Scores: scores}); err != nil {
			return nil, err
		}

		total := sumScores(detScores) + sumScores(judge)
		if total > bestScore {
			bestScore = total
			best = chosen
			stale = 0
		} else {
			stale++
			if stale >= patience {
				if err := h.Emit("early_stop", earlyStopData{Best: best}); err != nil {
					return nil, err
				}
				break
			}
		}

		base = chosen
		prevPool = ranked

		if events.Now() > h.Deadline() {
			return nil, ErrDeadlineExceeded
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interIterationPause):
		}
	}

	detFinal := scoresFor(best)
	judgeFinal, err := o.scorer.Judge(ctx, task, best, examples, objectiveNames)
	if err != nil {
		return nil, fmt.Errorf("final judge scoring: %w", err)
	}

	result := Result{
		Proposal:    best,
		Lessons:     []string{},
		Scores:      combinedScores(detFinal, judgeFinal),
		TargetModel: targetModel,
		Rubric:      rubric,
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return raw, nil
}

func combinedScores(det, judge map[string]float64) map[string]any {
	out := make(map[string]any, len(det)+1)
	for name, v := range det {
		out[name] = v
	}
	out["judge"] = judge
	return out
}

func sumScores(scores map[string]float64) float64 {
	total := 0.0
	for _, v := range scores {
		total += v
	}
	return total
}
