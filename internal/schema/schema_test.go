package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnswerSchema(t *testing.T) {
	def := Answer()

	require.NoError(t, def.Validate([]byte(`{"query":"What are the fees?"}`)))
	require.NoError(t, def.Validate([]byte(`{"query":"And parking?","history":[{"role":"user","content":"hi"},{"role":"assistant","content":"hello"}]}`)))

	for name, doc := range map[string]string{
		"missing query": `{}`,
		"empty query":   `{"query":""}`,
		"wrong type":    `{"query":42}`,
		"bad role":      `{"query":"q","history":[{"role":"system","content":"x"}]}`,
		"no content":    `{"query":"q","history":[{"role":"user"}]}`,
		"not json":      `{"query":`,
	} {
		err := def.Validate([]byte(doc))
		assert.ErrorIs(t, err, ErrInvalid, name)
	}
}

func TestRetrieveSchema(t *testing.T) {
	def := Retrieve()
	require.NoError(t, def.Validate([]byte(`{"query":"library hours","k":10,"topN":3}`)))

	err := def.Validate([]byte(`{"query":"library hours","topN":0}`))
	require.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "topN")

	assert.ErrorIs(t, def.Validate([]byte(`{"query":"x","k":2.5}`)), ErrInvalid)
}

func TestToolSchemas(t *testing.T) {
	assert.Equal(t, "ask", AskTool().Name)
	assert.Equal(t, "search_documents", SearchDocumentsTool().Name)

	require.NoError(t, SearchDocumentsTool().ValidateValue(map[string]any{"query": "fees", "top_n": 3}))
	assert.ErrorIs(t, SearchDocumentsTool().ValidateValue(map[string]any{"top_n": 3}), ErrInvalid)
	assert.ErrorIs(t, AskTool().ValidateValue(map[string]any{"query": ""}), ErrInvalid)
}

func TestRawParameters(t *testing.T) {
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(AskTool().RawParameters(), &decoded))
	assert.Equal(t, "object", decoded["type"])
	assert.Equal(t, []any{"query"}, decoded["required"])
}
