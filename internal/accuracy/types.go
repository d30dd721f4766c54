// accuracy/types.go
package accuracy

import "github.com/mwiater/manara/internal/rag"

// Suite defines the accuracy test cases loaded from JSON.
type Suite struct {
	Tests []Case `json:"tests"`
}

// Case defines a single question and what a good reply looks like. Every
// expectation is optional; a case with none only requires a non-error reply.
type Case struct {
	ID             int      `json:"id"`
	Question       string   `json:"question"`
	Category       string   `json:"category,omitempty"`
	ExpectKind     rag.Kind `json:"expect_kind,omitempty"`
	ExpectContains []string `json:"expect_contains,omitempty"`
	ExpectSources  []string `json:"expect_sources,omitempty"`
}

// Result records a single reply and its correctness.
type Result struct {
	Timestamp  string   `json:"timestamp"`
	CaseID     int      `json:"caseId"`
	Question   string   `json:"question"`
	Category   string   `json:"category,omitempty"`
	Answer     string   `json:"answer"`
	Kind       rag.Kind `json:"kind"`
	Sources    []string `json:"sources,omitempty"`
	Correct    bool     `json:"correct"`
	Failures   []string `json:"failures,omitempty"`
	DurationMs int64    `json:"duration_ms"`
	Error      string   `json:"error,omitempty"`
}

// CategoryScore is the per-category tally of a run.
type CategoryScore struct {
	Total   int `json:"total"`
	Correct int `json:"correct"`
}

// Summary aggregates a run.
type Summary struct {
	Total      int                      `json:"total"`
	Correct    int                      `json:"correct"`
	Accuracy   float64                  `json:"accuracy"`
	ByKind     map[rag.Kind]int         `json:"by_kind"`
	ByCategory map[string]CategoryScore `json:"by_category"`
	AvgMs      float64                  `json:"avg_ms"`
}
