package accuracy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/mwiater/manara/internal/rag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAsker struct {
	replies map[string]rag.Reply
	calls   atomic.Int32
}

func (s *stubAsker) Ask(_ context.Context, query string, history []rag.Message) rag.Reply {
	s.calls.Add(1)
	if r, ok := s.replies[query]; ok {
		return r
	}
	return rag.Reply{Text: "not found", Kind: rag.KindNotFound}
}

func writeSuite(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "suite.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadSuite(t *testing.T) {
	suite, err := LoadSuite(writeSuite(t, `{"tests":[{"id":1,"question":"fees?","expect_kind":"answered"}]}`))
	require.NoError(t, err)
	require.Len(t, suite.Tests, 1)
	assert.Equal(t, rag.KindAnswered, suite.Tests[0].ExpectKind)
}

func TestLoadSuiteRejectsBadSuites(t *testing.T) {
	_, err := LoadSuite(writeSuite(t, `{"tests":[]}`))
	assert.ErrorIs(t, err, ErrEmptySuite)

	_, err = LoadSuite(writeSuite(t, `{"tests":[{"id":1,"question":"  "}]}`))
	assert.ErrorContains(t, err, "question is empty")

	_, err = LoadSuite(writeSuite(t, `{"tests":[{"id":1,"question":"a"},{"id":1,"question":"b"}]}`))
	assert.ErrorContains(t, err, "duplicate id 1")

	_, err = LoadSuite(writeSuite(t, `{`))
	assert.ErrorContains(t, err, "parse accuracy suite")

	_, err = LoadSuite(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestEvaluate(t *testing.T) {
	reply := rag.Reply{
		Text: "Tuition is 45,000 AED per year.",
		Kind: rag.KindAnswered,
		Passages: []rag.Passage{
			{Source: "fees.txt"}, {Source: "fees.txt"}, {Source: "Programs.html"},
		},
	}

	ok, failures := Evaluate(Case{
		ExpectKind:     rag.KindAnswered,
		ExpectContains: []string{"45,000 aed"},
		ExpectSources:  []string{"programs.html"},
	}, reply)
	assert.True(t, ok)
	assert.Empty(t, failures)

	ok, failures = Evaluate(Case{
		ExpectKind:     rag.KindNotFound,
		ExpectContains: []string{"scholarship"},
		ExpectSources:  []string{"library.txt"},
	}, reply)
	assert.False(t, ok)
	assert.Len(t, failures, 3)
}

func TestEvaluateTreatsErrorsAsIncorrectByDefault(t *testing.T) {
	ok, failures := Evaluate(Case{}, rag.Reply{Kind: rag.KindError})
	assert.False(t, ok)
	assert.Equal(t, []string{"reply is an error"}, failures)

	ok, _ = Evaluate(Case{ExpectKind: rag.KindError}, rag.Reply{Kind: rag.KindError})
	assert.True(t, ok)
}

func TestRunKeepsOrderAndWritesResults(t *testing.T) {
	asker := &stubAsker{replies: map[string]rag.Reply{
		"hi":    {Text: "Hello!", Kind: rag.KindGreeting},
		"fees?": {Text: "45,000 AED", Kind: rag.KindAnswered, Passages: []rag.Passage{{Source: "fees.txt"}}},
		"boom":  {Text: "sorry", Kind: rag.KindError, Err: errors.New("embed: 503")},
	}}
	suite := Suite{Tests: []Case{
		{ID: 1, Question: "hi", Category: "smalltalk", ExpectKind: rag.KindGreeting},
		{ID: 2, Question: "fees?", Category: "fees", ExpectSources: []string{"fees.txt"}},
		{ID: 3, Question: "boom", Category: "fees"},
		{ID: 4, Question: "parking?"},
	}}
	resultsPath := filepath.Join(t.TempDir(), "nested", "results.jsonl")
	var out bytes.Buffer

	results, summary, err := Run(context.Background(), asker, suite, Options{Workers: 3, ResultsPath: resultsPath, Out: &out})
	require.NoError(t, err)
	assert.Equal(t, int32(4), asker.calls.Load())

	require.Len(t, results, 4)
	for i, r := range results {
		assert.Equal(t, suite.Tests[i].ID, r.CaseID)
	}
	assert.True(t, results[0].Correct)
	assert.True(t, results[1].Correct)
	assert.Equal(t, []string{"fees.txt"}, results[1].Sources)
	assert.False(t, results[2].Correct)
	assert.Equal(t, "embed: 503", results[2].Error)
	assert.True(t, results[3].Correct, "no expectations only rules out errors")

	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 3, summary.Correct)
	assert.InDelta(t, 0.75, summary.Accuracy, 1e-9)
	assert.Equal(t, CategoryScore{Total: 2, Correct: 1}, summary.ByCategory["fees"])
	assert.Equal(t, CategoryScore{Total: 1, Correct: 1}, summary.ByCategory["uncategorized"])
	assert.Equal(t, 1, summary.ByKind[rag.KindError])

	assert.Contains(t, out.String(), "[4/4]")
	assert.Contains(t, out.String(), "reply is an error")

	data, err := os.ReadFile(resultsPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 4)
	var first Result
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.NotZero(t, first.CaseID)
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := Run(ctx, &stubAsker{}, Suite{Tests: []Case{{ID: 1, Question: "hi"}}}, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunRejectsEmptySuite(t *testing.T) {
	_, _, err := Run(context.Background(), &stubAsker{}, Suite{}, Options{})
	assert.ErrorIs(t, err, ErrEmptySuite)
}

func TestWriteSummary(t *testing.T) {
	var out bytes.Buffer
	WriteSummary(&out, Summarize([]Result{
		{Kind: rag.KindAnswered, Category: "fees", Correct: true, DurationMs: 10},
		{Kind: rag.KindNotFound, Category: "admissions", DurationMs: 30},
	}))
	text := out.String()
	assert.Contains(t, text, "Accuracy: 1/2 (50.0%), avg 20ms")
	assert.Contains(t, text, "answered  1")
	assert.Less(t, strings.Index(text, "[admissions] 0/1"), strings.Index(text, "[fees] 1/1"))
}
