package chat

import (
	"fmt"
	"strings"

	"github.com/adal-ai/adal-go/internal/rag"
)

// FallbackMessage is the fixed answer streamed when no retrieval pipeline is
// available, so the chat surface keeps responding while the index is down.
const FallbackMessage = "I apologize, but the AI system is currently unavailable. " +
	"Please try again later."

// noHistory is substituted into the prompt when the question arrives without
// prior conversation turns.
const noHistory = "No previous conversation."

// systemPrompt establishes the Adal persona for every generation call.
// The answer rules are load-bearing: downstream behaviour (refusing to invent
// sources, the fixed not-found line, the citation shape) is promised to users
// in these terms.
const systemPrompt = `You are Adal, the thesis assistant of Camarines Sur Polytechnic Colleges (CSPC). You help students, faculty, and researchers find information in the college's thesis and capstone documents.

RESPONSE RULES:
1. Answer STRICTLY from the provided document context. Never invent titles, authors, findings, or dates.
2. If the context does not contain the answer, say "I don't have that information in the available documents".
3. Reply in the same language the question was asked in (English or Filipino).
4. When asked for an abstract, reproduce the COMPLETE abstract text from the context, not a summary of it.
5. Cite every document you draw from as [Author, Year. Title. Department, CSPC].
6. For listing questions ("list all theses about...", "how many studies..."), enumerate every matching document found in the context and note that the list covers only the retrieved documents.
7. For follow-up questions, resolve references like "it", "them", or "that study" using the previous conversation.`

// answerTemplate is the user turn of the generation call. Substituted in
// order: formatted document context, rendered history (or noHistory), and
// the user's question.
const answerTemplate = `Context from documents:
%s

Previous conversation:
%s

User Question: %s

Answer:`

// renderPrompt fills answerTemplate. An empty context block is passed
// through as-is; rule 2 of the system prompt covers the no-context case.
func renderPrompt(question, contextBlock, historyBlock string) string {
	return fmt.Sprintf(answerTemplate, contextBlock, historyBlock, question)
}

// formatHistory renders prior turns as role-labeled lines for the prompt,
// oldest first, or the noHistory sentinel when there are none.
func formatHistory(turns []rag.Turn) string {
	if len(turns) == 0 {
		return noHistory
	}
	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteByte('\n')
		}
		if t.Role == "assistant" {
			b.WriteString("Assistant: ")
		} else {
			b.WriteString("User: ")
		}
		b.WriteString(t.Content)
	}
	return b.String()
}
