package openai

import (
	"strings"

	"github.com/tmc/langchaingo/prompts"
)

const systemPrompt = `You are a question answering assistant. Answer using only the provided context.
If the context does not contain the answer, say that you don't know. Keep answers short and factual.`

// questionPrompt stuffs all retained chunks into a single request.
var questionPrompt = prompts.NewPromptTemplate(`Use the following pieces of context to answer the question at the end.

Context:
{{.context}}

Question: {{.question}}
Helpful answer:`, []string{"context", "question"})

// extractPrompt condenses one chunk to the parts relevant to the question.
var extractPrompt = prompts.NewPromptTemplate(`Use the following portion of a long document to see if any of the text is relevant to answer the question.
Return any relevant text verbatim. If nothing is relevant, return an empty response.

{{.context}}

Question: {{.question}}
Relevant text, if any:`, []string{"context", "question"})

// combinePrompt answers from the extracts produced by extractPrompt.
var combinePrompt = prompts.NewPromptTemplate(`Given the following extracted parts of a long document and a question, create a final answer.
If you don't know the answer, just say that you don't know. Don't try to make up an answer.

Extracts:
{{.context}}

Question: {{.question}}
Final answer:`, []string{"context", "question"})

// contextSeparator joins chunk texts inside a prompt.
const contextSeparator = "\n\n"

func joinContext(texts []string) string {
	return strings.Join(texts, contextSeparator)
}
