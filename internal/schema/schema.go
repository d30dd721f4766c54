// Package schema describes the JSON arguments accepted by the HTTP API and
// the MCP tools, and validates request documents against them.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrInvalid marks a document that does not satisfy its schema.
var ErrInvalid = errors.New("invalid arguments")

// Definition names an operation and the JSON schema of its arguments.
type Definition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// RawParameters returns the parameter schema as JSON.
func (d Definition) RawParameters() json.RawMessage {
	raw, err := json.Marshal(d.Parameters)
	if err != nil {
		// Parameters are literal maps of JSON types.
		panic(fmt.Sprintf("schema %s: %v", d.Name, err))
	}
	return raw
}

// Validate checks doc against the definition's parameter schema. A document
// that fails validation returns an error wrapping ErrInvalid that lists every
// violation.
func (d Definition) Validate(doc []byte) error {
	schemaLoader := gojsonschema.NewGoLoader(d.Parameters)
	documentLoader := gojsonschema.NewBytesLoader(doc)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		// Malformed JSON lands here as well as broken schemas.
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if result.Valid() {
		return nil
	}

	var errs []string
	for _, desc := range result.Errors() {
		errs = append(errs, desc.String())
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(errs, ", "))
}

// ValidateValue marshals v and validates the result.
func (d Definition) ValidateValue(v any) error {
	doc, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return d.Validate(doc)
}

// historySchema matches a list of user and assistant turns.
var historySchema = map[string]any{
	"type":     "array",
	"maxItems": 100,
	"items": map[string]any{
		"type": "object",
		"properties": map[string]any{
			"role":    map[string]any{"type": "string", "enum": []string{"user", "assistant"}},
			"content": map[string]any{"type": "string"},
		},
		"required": []string{"role", "content"},
	},
}

// Answer describes a question with optional conversation history.
func Answer() Definition {
	return Definition{
		Name:        "answer",
		Description: "Answer a question about ATS from the indexed documents.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The question to answer.",
					"minLength":   1,
					"maxLength":   4000,
				},
				"history": historySchema,
			},
			"required": []string{"query"},
		},
	}
}

// Retrieve describes a passage lookup.
func Retrieve() Definition {
	return Definition{
		Name:        "retrieve",
		Description: "Return the passages most relevant to a query.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The text to search for.",
					"minLength":   1,
					"maxLength":   4000,
				},
				"k": map[string]any{
					"type":        "integer",
					"description": "Size of the candidate pool.",
					"minimum":     1,
					"maximum":     200,
				},
				"topN": map[string]any{
					"type":        "integer",
					"description": "Number of passages to return.",
					"minimum":     1,
					"maximum":     50,
				},
			},
			"required": []string{"query"},
		},
	}
}

// AskTool describes the MCP ask tool.
func AskTool() Definition {
	return Definition{
		Name:        "ask",
		Description: "Ask the ATS assistant a question. Answers come only from the indexed ATS documents.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The question, in English or Arabic.",
					"minLength":   1,
				},
			},
			"required": []string{"query"},
		},
	}
}

// SearchDocumentsTool describes the MCP search_documents tool.
func SearchDocumentsTool() Definition {
	return Definition{
		Name:        "search_documents",
		Description: "Search the indexed ATS documents and return the best matching passages with their sources.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The text to search for.",
					"minLength":   1,
				},
				"top_n": map[string]any{
					"type":        "integer",
					"description": "Number of passages to return (default 5).",
					"minimum":     1,
					"maximum":     50,
				},
			},
			"required": []string{"query"},
		},
	}
}
