package rerank

import (
	"context"
	"math"
	"regexp"
	"strings"
)

var wordRe = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}\p{N}]+)*`)

// Lexical scores passages by the Ochiai coefficient between the query's and
// the passage's word sets. It needs no model and works offline.
type Lexical struct{}

// NewLexical returns a lexical reranker.
func NewLexical() *Lexical { return &Lexical{} }

// Name identifies the backend in logs and metrics.
func (*Lexical) Name() string { return "lexical" }

// Rerank returns scores in [0, 1], one per passage.
func (*Lexical) Rerank(ctx context.Context, query string, passages []string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q := tokenSet(query)
	scores := make([]float64, len(passages))
	for i, p := range passages {
		scores[i] = ochiai(q, tokenSet(p))
	}
	return scores, nil
}

func tokenSet(s string) map[string]struct{} {
	tokens := wordRe.FindAllString(strings.ToLower(s), -1)
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// ochiai is |A∩B| / sqrt(|A|·|B|).
func ochiai(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	return float64(inter) / math.Sqrt(float64(len(a))*float64(len(b)))
}
