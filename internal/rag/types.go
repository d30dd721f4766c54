package rag

// Chunk is one unit of retrieval: an excerpt of a source document.
type Chunk struct {
	Text   string
	Source string
}

// Passage is a retrieved chunk with its relevance scores.
type Passage struct {
	Text   string  `json:"text"`
	Source string  `json:"source"`
	Score  float64 `json:"score"`
	// Similarity is the inner-product score from vector search. Score starts
	// equal to it and is replaced by the reranker when one is configured.
	Similarity float64 `json:"similarity"`
}

// Role values accepted in a conversation history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a caller-owned conversation history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Kind classifies how an answer was produced.
type Kind string

const (
	KindGreeting Kind = "greeting"
	KindNotFound Kind = "notfound"
	KindAnswered Kind = "answered"
	KindError    Kind = "error"
)

// Reply is the full outcome of one query.
type Reply struct {
	Text     string
	Kind     Kind
	Passages []Passage
	// Err is the failure behind a notfound or error reply, if any.
	Err error
}
