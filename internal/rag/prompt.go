package rag

import (
	"strings"

	"github.com/jdai-labs/marketbot/internal/index"
	"github.com/jdai-labs/marketbot/internal/session"
)

// PromptVersion identifies the rendered prompt layout. Bump when the
// template changes so regressions in answer quality can be correlated with
// prompt revisions.
const PromptVersion = 1

// DefaultPersona is the assistant's voice when config does not override it.
const DefaultPersona = `You are a helpful AI assistant for JD AI Marketing Solutions, a company that helps small businesses implement AI solutions.

Use the following pieces of context to answer the question at the end. If you don't know the answer or the information is not in the context, politely say that you don't have that specific information and offer to help with something else related to JD AI Marketing Solutions.

Be friendly, professional, and concise. When discussing our services, be enthusiastic but not pushy. Always prioritize providing value to the user.`

// emptyContextNotice replaces the context block when retrieval found
// nothing, instructing the model to admit the gap instead of guessing.
const emptyContextNotice = "No relevant reference material was found for this question. Say that you cannot find relevant information for it; do not guess."

// PromptData is everything the renderer needs. Rendering is a pure function
// of this struct, so tests assert on exact output without a template engine.
type PromptData struct {
	Persona string
	Chunks  []index.Result
	History []session.Turn
	Message string
}

// RenderPrompt builds the generation prompt: persona, retrieved context,
// conversation history, then the current question.
func RenderPrompt(d PromptData) string {
	persona := d.Persona
	if persona == "" {
		persona = DefaultPersona
	}

	var b strings.Builder
	b.WriteString(persona)
	b.WriteString("\n\nContext:\n")
	if len(d.Chunks) == 0 {
		b.WriteString(emptyContextNotice)
	} else {
		for i, c := range d.Chunks {
			if i > 0 {
				b.WriteString("\n\n")
			}
			b.WriteString(c.Text)
		}
	}

	if len(d.History) > 0 {
		b.WriteString("\n\nConversation so far:\n")
		for _, t := range d.History {
			switch t.Role {
			case session.RoleAssistant:
				b.WriteString("Assistant: ")
			default:
				b.WriteString("User: ")
			}
			b.WriteString(t.Content)
			b.WriteString("\n")
		}
	}

	b.WriteString("\nQuestion: ")
	b.WriteString(d.Message)
	b.WriteString("\n\nHelpful Answer:")
	return b.String()
}
