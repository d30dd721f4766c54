package accuracy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"golang.org/x/sync/errgroup"

	"github.com/mwiater/manara/internal/logging"
	"github.com/mwiater/manara/internal/rag"
)

// ErrEmptySuite is returned when a suite file has no runnable cases.
var ErrEmptySuite = errors.New("accuracy suite has no tests")

// Asker answers one question without history.
type Asker interface {
	Ask(ctx context.Context, query string, history []rag.Message) rag.Reply
}

// Options tunes a run.
type Options struct {
	// Workers bounds concurrent questions. Values below 1 mean 1.
	Workers int
	// ResultsPath, when set, receives one JSON object per case.
	ResultsPath string
	// Out receives progress lines. Nil discards them.
	Out io.Writer
}

// LoadSuite reads and validates a suite file.
func LoadSuite(path string) (Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Suite{}, fmt.Errorf("read accuracy suite: %w", err)
	}
	var suite Suite
	if err := json.Unmarshal(data, &suite); err != nil {
		return Suite{}, fmt.Errorf("parse accuracy suite %s: %w", path, err)
	}
	if len(suite.Tests) == 0 {
		return Suite{}, ErrEmptySuite
	}
	seen := make(map[int]struct{}, len(suite.Tests))
	for i, c := range suite.Tests {
		if strings.TrimSpace(c.Question) == "" {
			return Suite{}, fmt.Errorf("test %d: question is empty", i)
		}
		if _, dup := seen[c.ID]; dup {
			return Suite{}, fmt.Errorf("test %d: duplicate id %d", i, c.ID)
		}
		seen[c.ID] = struct{}{}
	}
	return suite, nil
}

// Run asks every case in the suite and scores the replies. Results keep the
// suite's order regardless of completion order.
func Run(ctx context.Context, asker Asker, suite Suite, opts Options) ([]Result, Summary, error) {
	if len(suite.Tests) == 0 {
		return nil, Summary{}, ErrEmptySuite
	}
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	var sink *os.File
	if opts.ResultsPath != "" {
		if err := os.MkdirAll(filepath.Dir(opts.ResultsPath), 0o755); err != nil {
			return nil, Summary{}, fmt.Errorf("create results dir: %w", err)
		}
		f, err := os.OpenFile(opts.ResultsPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			return nil, Summary{}, fmt.Errorf("open results file: %w", err)
		}
		defer f.Close()
		sink = f
	}

	results := make([]Result, len(suite.Tests))
	total := len(suite.Tests)
	var (
		mu   sync.Mutex
		done int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, c := range suite.Tests {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res := runCase(gctx, asker, c)

			mu.Lock()
			defer mu.Unlock()
			results[i] = res
			done++
			mark := color.GreenString("correct")
			if !res.Correct {
				mark = color.RedString("incorrect")
			}
			fmt.Fprintf(out, "[%d/%d] #%d %s - Result: %s kind=%s (%dms)\n", done, total, c.ID, c.Question, mark, res.Kind, res.DurationMs)
			for _, f := range res.Failures {
				fmt.Fprintf(out, "        %s\n", f)
			}
			if sink != nil {
				line, err := json.Marshal(res)
				if err != nil {
					return fmt.Errorf("encode result %d: %w", c.ID, err)
				}
				if _, err := sink.Write(append(line, '\n')); err != nil {
					return fmt.Errorf("write result %d: %w", c.ID, err)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, Summary{}, err
	}
	return results, Summarize(results), nil
}

func runCase(ctx context.Context, asker Asker, c Case) Result {
	start := time.Now()
	reply := asker.Ask(ctx, c.Question, nil)
	elapsed := time.Since(start)

	correct, failures := Evaluate(c, reply)
	res := Result{
		Timestamp:  start.Format(time.RFC3339),
		CaseID:     c.ID,
		Question:   c.Question,
		Category:   c.Category,
		Answer:     reply.Text,
		Kind:       reply.Kind,
		Sources:    sources(reply.Passages),
		Correct:    correct,
		Failures:   failures,
		DurationMs: elapsed.Milliseconds(),
	}
	if reply.Err != nil {
		res.Error = reply.Err.Error()
	}
	logging.LogEvent("accuracy case=%d kind=%s correct=%t duration=%s", c.ID, reply.Kind, correct, elapsed)
	return res
}

// Evaluate checks a reply against a case's expectations and returns the
// reasons it failed, if any.
func Evaluate(c Case, reply rag.Reply) (bool, []string) {
	var failures []string
	if c.ExpectKind != "" {
		if reply.Kind != c.ExpectKind {
			failures = append(failures, fmt.Sprintf("kind %q, want %q", reply.Kind, c.ExpectKind))
		}
	} else if reply.Kind == rag.KindError {
		failures = append(failures, "reply is an error")
	}

	answer := strings.ToLower(reply.Text)
	for _, want := range c.ExpectContains {
		if !strings.Contains(answer, strings.ToLower(want)) {
			failures = append(failures, fmt.Sprintf("answer missing %q", want))
		}
	}

	have := make(map[string]struct{}, len(reply.Passages))
	for _, s := range sources(reply.Passages) {
		have[strings.ToLower(s)] = struct{}{}
	}
	for _, want := range c.ExpectSources {
		if _, ok := have[strings.ToLower(want)]; !ok {
			failures = append(failures, fmt.Sprintf("source %q not retrieved", want))
		}
	}
	return len(failures) == 0, failures
}

// Summarize tallies results by kind and category.
func Summarize(results []Result) Summary {
	s := Summary{
		Total:      len(results),
		ByKind:     make(map[rag.Kind]int),
		ByCategory: make(map[string]CategoryScore),
	}
	var totalMs int64
	for _, r := range results {
		s.ByKind[r.Kind]++
		cat := r.Category
		if cat == "" {
			cat = "uncategorized"
		}
		score := s.ByCategory[cat]
		score.Total++
		if r.Correct {
			s.Correct++
			score.Correct++
		}
		s.ByCategory[cat] = score
		totalMs += r.DurationMs
	}
	if s.Total > 0 {
		s.Accuracy = float64(s.Correct) / float64(s.Total)
		s.AvgMs = float64(totalMs) / float64(s.Total)
	}
	return s
}

// WriteSummary prints a short report of a run.
func WriteSummary(w io.Writer, s Summary) {
	fmt.Fprintf(w, "Accuracy: %d/%d (%.1f%%), avg %.0fms\n", s.Correct, s.Total, s.Accuracy*100, s.AvgMs)
	for _, k := range []rag.Kind{rag.KindAnswered, rag.KindNotFound, rag.KindGreeting, rag.KindError} {
		if n := s.ByKind[k]; n > 0 {
			fmt.Fprintf(w, "  %-9s %d\n", k, n)
		}
	}
	cats := make([]string, 0, len(s.ByCategory))
	for cat := range s.ByCategory {
		cats = append(cats, cat)
	}
	sort.Strings(cats)
	for _, cat := range cats {
		score := s.ByCategory[cat]
		fmt.Fprintf(w, "  [%s] %d/%d\n", cat, score.Correct, score.Total)
	}
}

func sources(passages []rag.Passage) []string {
	var out []string
	seen := make(map[string]struct{}, len(passages))
	for _, p := range passages {
		if _, ok := seen[p.Source]; ok {
			continue
		}
		seen[p.Source] = struct{}{}
		out = append(out, p.Source)
	}
	return out
}
