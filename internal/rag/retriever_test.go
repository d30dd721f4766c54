package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/mwiater/manara/internal/providers/rerank"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var campusChunks = []Chunk{
	{Text: "Tuition is 45,000 AED per year for the Diploma program.", Source: "fees.txt"},
	{Text: "The campus library opens at 8am on weekdays.", Source: "library.txt"},
	{Text: "Admission requires a high school certificate and an interview.", Source: "admissions.txt"},
	{Text: "Campuses are located in Abu Dhabi, Al Ain and Fujairah.", Source: "locations.html"},
}

func TestRetrieveFewerThanK(t *testing.T) {
	e := newBagEmbedder()
	r := NewRetriever(buildTestIndex(e, campusChunks...), e, nil, nil)

	passages, err := r.Retrieve(context.Background(), "Diploma tuition", 30, 10)
	require.NoError(t, err)
	require.Len(t, passages, len(campusChunks), "padding rows are dropped")
	for _, p := range passages {
		assert.NotEmpty(t, p.Text)
		assert.Equal(t, p.Similarity, p.Score, "without a reranker the similarity is the score")
	}
	assert.Equal(t, "fees.txt", passages[0].Source)
}

func TestRetrieveRerankReplacesScoreAndLimits(t *testing.T) {
	e := newBagEmbedder()
	rr := &scriptedReranker{scores: map[string]float64{
		campusChunks[0].Text: 0.2,
		campusChunks[1].Text: 0.9,
		campusChunks[2].Text: 0.2,
		campusChunks[3].Text: -3,
	}}
	r := NewRetriever(buildTestIndex(e, campusChunks...), e, rr, nil)

	passages, err := r.Retrieve(context.Background(), "Diploma tuition", 30, 3)
	require.NoError(t, err)
	require.Len(t, passages, 3)
	assert.Equal(t, "library.txt", passages[0].Source)
	assert.Equal(t, 0.9, passages[0].Score)
	for i := 1; i < len(passages); i++ {
		assert.GreaterOrEqual(t, passages[i-1].Score, passages[i].Score)
	}
	// Equal rerank scores keep their similarity order.
	assert.Equal(t, "fees.txt", passages[1].Source)
	assert.Equal(t, "admissions.txt", passages[2].Source)
	assert.Greater(t, passages[1].Similarity, passages[1].Score)
}

func TestRetrieveEmptyIndex(t *testing.T) {
	e := newBagEmbedder()
	rr := &scriptedReranker{}
	r := NewRetriever(buildTestIndex(e), e, rr, nil)

	passages, err := r.Retrieve(context.Background(), "anything", 30, 5)
	require.NoError(t, err)
	assert.Empty(t, passages)
	assert.Zero(t, rr.calls, "reranker is not called without candidates")
}

func TestRetrieveStageErrors(t *testing.T) {
	e := newBagEmbedder()
	idx := buildTestIndex(e, campusChunks...)

	e.err = errors.New("embedding backend down")
	_, err := NewRetriever(idx, e, nil, nil).Retrieve(context.Background(), "fees", 30, 5)
	assert.ErrorIs(t, err, ErrEmbed)

	e.err = nil
	rr := &scriptedReranker{err: errors.New("reranker down")}
	_, err = NewRetriever(idx, e, rr, nil).Retrieve(context.Background(), "fees", 30, 5)
	assert.ErrorIs(t, err, ErrRerank)

	small := &bagEmbedder{dim: 8, model: "bag-8"}
	_, err = NewRetriever(idx, small, nil, nil).Retrieve(context.Background(), "fees", 30, 5)
	assert.ErrorIs(t, err, ErrSearch)
}

func TestRetrieveWithLexicalReranker(t *testing.T) {
	e := newBagEmbedder()
	r := NewRetriever(buildTestIndex(e, campusChunks...), e, rerank.NewLexical(), nil)

	passages, err := r.Retrieve(context.Background(), "How much does the Diploma cost?", 30, 5)
	require.NoError(t, err)
	require.NotEmpty(t, passages)
	assert.Equal(t, "fees.txt", passages[0].Source)
}
