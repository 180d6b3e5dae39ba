package driver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPProviderComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"scores\":{\"brevity\":7}}"}}]}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, "secret")
	out, err := p.Complete(context.Background(), "judge this", "test-model")
	require.NoError(t, err)
	assert.Equal(t, `{"scores":{"brevity":7}}`, out)
}

func TestHTTPProviderErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, "")
	_, err := p.Complete(context.Background(), "judge this", "test-model")
	assert.Error(t, err)
}

func TestModelScorerParsesScores(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":"{\"scores\":{\"brevity\":12,\"coverage\":3}}"}}]}`))
	}))
	defer srv.Close()

	s := NewModelScorer(NewHTTPProvider(srv.URL, ""), "judge-model")
	scores, err := s.Judge(context.Background(), "task", "candidate", nil, []string{"brevity", "coverage"})
	require.NoError(t, err)
	assert.Equal(t, 10.0, scores["brevity"], "scores clamp to 0..10")
	assert.Equal(t, 3.0, scores["coverage"])
}

func TestModelScorerFallsBackOnGarbage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":"not json at all"}}]}`))
	}))
	defer srv.Close()

	s := NewModelScorer(NewHTTPProvider(srv.URL, ""), "judge-model")
	scores, err := s.Judge(context.Background(), "task words", "candidate with task words", nil, []string{"brevity"})
	require.NoError(t, err)
	assert.Contains(t, scores, "brevity")
}
