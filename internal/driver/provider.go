package driver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Provider is an external completion model. The optimizer uses it through
// ModelScorer; the default deployment uses LexicalScorer and never touches
// a Provider.
type Provider interface {
	Complete(ctx context.Context, prompt, model string) (string, error)
}

// HTTPProvider talks to an OpenAI-compatible chat completion endpoint.
type HTTPProvider struct {
	url    string
	apiKey string
	client *http.Client
}

// NewHTTPProvider creates a provider for the given completions URL.
func NewHTTPProvider(url, apiKey string) *HTTPProvider {
	return &HTTPProvider{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (p *HTTPProvider) Complete(ctx context.Context, prompt, model string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: 0,
		MaxTokens:   300,
	})
	if err != nil {
		return "", fmt.Errorf("marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("provider returned %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read completion response: %w", err)
	}
	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("parse completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("provider returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// ModelScorer asks a Provider to judge candidates, falling back to lexical
// scoring when the model response is unusable.
type ModelScorer struct {
	provider Provider
	model    string
	fallback LexicalScorer
}

// NewModelScorer wraps a provider as a Scorer using the named judge model.
func NewModelScorer(provider Provider, model string) *ModelScorer {
	return &ModelScorer{provider: provider, model: model}
}

func (s *ModelScorer) Compare(task, a, b string) int {
	// Pairwise model calls inside tournament brackets are too slow to be
	// worth their cost; lexical comparison keeps brackets cheap.
	return s.fallback.Compare(task, a, b)
}

func (s *ModelScorer) Judge(ctx context.Context, task, candidate string, examples []Example, objectives []string) (map[string]float64, error) {
	prompt := buildJudgePrompt(task, candidate, examples, objectives)
	raw, err := s.provider.Complete(ctx, prompt, s.model)
	if err != nil {
		return s.fallback.Judge(ctx, task, candidate, examples, objectives)
	}

	var parsed struct {
		Scores map[string]float64 `json:"scores"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil || len(parsed.Scores) == 0 {
		return s.fallback.Judge(ctx, task, candidate, examples, objectives)
	}
	for name, v := range parsed.Scores {
		parsed.Scores[name] = clampScore(v)
	}
	return parsed.Scores, nil
}

func buildJudgePrompt(task, candidate string, examples []Example, objectives []string) string {
	var buf bytes.Buffer
	buf.WriteString("You are a strict judge. Score the candidate answer for each objective (0-10).\n")
	buf.WriteString(`Return JSON: {"scores":{...},"rationale":"..."}.` + "\n")
	buf.WriteString("Objectives: ")
	if len(objectives) == 0 {
		buf.WriteString("brevity, diversity, coverage")
	} else {
		for i, o := range objectives {
			if i > 0 {
				buf.WriteString(", ")
			}
			buf.WriteString(o)
		}
	}
	buf.WriteString(".\nPrompt: " + task)
	buf.WriteString("\nCandidate: " + candidate)
	if len(examples) > 0 {
		buf.WriteString("\nExamples: ")
		for i, ex := range examples {
			if i > 0 {
				buf.WriteString("; ")
			}
			buf.WriteString("input: " + ex.Input + ", expected: " + ex.Expected)
		}
		buf.WriteString(".\nCoverage should reflect how well candidate addresses prompt and examples.")
	}
	return buf.String()
}
