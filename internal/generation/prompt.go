package generation

import (
	"fmt"
	"strings"
)

// Persona of the answering stage.
const (
	Role      = "Answer Generator"
	Goal      = "Generate a clear and concise answer based on the retrieved document chunks."
	Backstory = "You are an HR specialist who can summarize policy information accurately."

	expectedOutput = "A well-structured and concise answer to the user's query from the knowledge base."
)

// DefaultAnswerWords is the advisory answer length written into the task.
const DefaultAnswerWords = 1000

// SystemPrompt describes the persona.
func SystemPrompt() string {
	return fmt.Sprintf("You are the %s. %s\nYour goal: %s\nAnswer only from the provided document chunks and say so when they do not contain the answer.",
		Role, Backstory, Goal)
}

// TaskPrompt is the user turn: the task with its word budget, the retrieved
// context and the expected output.
func TaskPrompt(query, context string, words int) string {
	if words <= 0 {
		words = DefaultAnswerWords
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Generate a clear and concise answer based on the retrieved document chunks (up to %d words) for the query: %s\n\n", words, query)
	b.WriteString("Retrieved document chunks:\n")
	b.WriteString(context)
	b.WriteString("\n\nExpected output: ")
	b.WriteString(expectedOutput)
	return b.String()
}
