package rag

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// Fixed replies.
const (
	GreetingReply = "Hello, my name is Manara. I'm a friendly bilingual assistant for Applied Technology Schools (ATS) in UAE. I'm here to help with any questions you may have about ATS. How can I assist you today?"
	NotFoundReply = "I am sorry, but I cannot find the answer to your question in the provided documents. Please try asking about admissions, fees, curriculum, locations, or other ATS-related topics."
)

// SystemPrompt accompanies every generation call. Answers are restricted to the supplied context.
const SystemPrompt = GreetingReply + " " +
	"Your SOLE purpose is to answer questions based **EXCLUSIVELY** on the provided context. " +
	"Be friendly, warm, and helpful in your responses. " +
	"If the context does not contain the answer, respond with a polite statement like 'I'm sorry, but I don't have that information available. Please try asking about admissions, fees, curriculum, locations, or other ATS-related topics.' " +
	"Keep answers concise, between 2-4 sentences, and in the same language as the user's question. " +
	"**CRITICAL**: Do NOT mention any file names, sources, or document references in your answer. Never say 'according to [filename]' or 'in the [filename] file'. " +
	"**STRICT RULE**: Do NOT invent, guess, or use any external knowledge. Only use the provided context. " +
	"Provide the answer directly without any introductory phrases or reasoning. " +
	"For tabular data (like menus), present the information in a clear, natural way without showing the raw table format."

const answerInstructions = "Based on the context above, provide a direct and helpful answer to the question. " +
	"Be friendly and conversational. " +
	"Use the information provided to synthesize a comprehensive response. " +
	"Keep it brief (2-4 sentences). Do not show your reasoning process. " +
	"Answer in the same language as the question. " +
	"NEVER mention file names, sources, or where the information came from. " +
	"If the context does not contain enough information, politely state that you cannot find the answer."

var greetingKeywords = []string{"hello", "hi", "hey", "good morning", "good afternoon", "good evening", "greetings", "howdy"}

// IsGreeting reports whether query is a short greeting: at most three words
// containing one of the greeting keywords as a case-insensitive substring.
func IsGreeting(query string) bool {
	if len(strings.Fields(query)) > 3 {
		return false
	}
	lower := strings.ToLower(query)
	for _, kw := range greetingKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// ErrorReply is the apology returned when a query cannot be processed.
func ErrorReply(err error) string {
	return fmt.Sprintf("I encountered an error while processing your request. Please try again. Error: %v", err)
}

// BuildPrompt embeds the context block and the raw query in the user prompt.
func BuildPrompt(query, context string) string {
	return "Context information:\n" + context + "\n\n" +
		"Question: " + query + "\n\n" +
		answerInstructions
}

// ScrubSources removes every passage source identifier from text, ignoring
// case. Sources in sub-directories are removed both as the full relative path
// and as the bare file name.
func ScrubSources(text string, passages []Passage) string {
	seen := make(map[string]bool)
	changed := false
	for _, p := range passages {
		src := strings.TrimSpace(p.Source)
		if src == "" {
			continue
		}
		for _, name := range []string{src, path.Base(src)} {
			if seen[name] {
				continue
			}
			seen[name] = true
			re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(name))
			if re.MatchString(text) {
				text = re.ReplaceAllString(text, "")
				changed = true
			}
		}
	}
	if !changed {
		return text
	}
	return tidy(text)
}

var (
	repeatedSpaces  = regexp.MustCompile(`[ \t]{2,}`)
	spaceBeforeMark = regexp.MustCompile(`[ \t]+([.,;:!?،؟])`)
	emptyBrackets   = regexp.MustCompile(`\(\s*\)|\[\s*\]|"\s*"|'\s*'`)
)

func tidy(text string) string {
	text = emptyBrackets.ReplaceAllString(text, "")
	text = spaceBeforeMark.ReplaceAllString(text, "$1")
	text = repeatedSpaces.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
