package rag

import (
	"strings"
	"testing"

	"github.com/jdai-labs/marketbot/internal/index"
	"github.com/jdai-labs/marketbot/internal/session"
)

func TestRenderDefaultPersona(t *testing.T) {
	got := RenderPrompt(PromptData{Message: "hello"})
	if !strings.Contains(got, "JD AI Marketing Solutions") {
		t.Error("default persona missing")
	}
	if !strings.HasSuffix(got, "Helpful Answer:") {
		t.Errorf("prompt does not end with the answer cue: %q", got[len(got)-40:])
	}
}

func TestRenderPersonaOverride(t *testing.T) {
	got := RenderPrompt(PromptData{Persona: "You are a terse bot.", Message: "hi"})
	if !strings.HasPrefix(got, "You are a terse bot.") {
		t.Error("persona override not applied")
	}
	if strings.Contains(got, "JD AI Marketing Solutions") {
		t.Error("default persona leaked despite override")
	}
}

func TestRenderContextChunks(t *testing.T) {
	got := RenderPrompt(PromptData{
		Chunks: []index.Result{
			{Text: "First chunk."},
			{Text: "Second chunk."},
		},
		Message: "q",
	})
	if !strings.Contains(got, "First chunk.\n\nSecond chunk.") {
		t.Errorf("chunks not joined by blank line:\n%s", got)
	}
}

func TestRenderEmptyContext(t *testing.T) {
	got := RenderPrompt(PromptData{Message: "q"})
	if !strings.Contains(got, "cannot find relevant information") {
		t.Error("empty retrieval must instruct the model to say so, not guess")
	}
}

func TestRenderHistory(t *testing.T) {
	got := RenderPrompt(PromptData{
		History: []session.Turn{
			{Role: session.RoleUser, Content: "What do you offer?"},
			{Role: session.RoleAssistant, Content: "Chatbots and automation."},
		},
		Message: "How much does that cost?",
	})

	if !strings.Contains(got, "User: What do you offer?\n") {
		t.Error("user turn missing from history block")
	}
	if !strings.Contains(got, "Assistant: Chatbots and automation.\n") {
		t.Error("assistant turn missing from history block")
	}
	// History must precede the current question.
	if strings.Index(got, "What do you offer?") > strings.Index(got, "How much does that cost?") {
		t.Error("history rendered after the current question")
	}
}

func TestRenderNoHistoryBlockWhenEmpty(t *testing.T) {
	got := RenderPrompt(PromptData{Message: "q"})
	if strings.Contains(got, "Conversation so far") {
		t.Error("history block rendered for empty history")
	}
}

func TestRenderDeterministic(t *testing.T) {
	d := PromptData{
		Chunks:  []index.Result{{Text: "c"}},
		History: []session.Turn{{Role: session.RoleUser, Content: "h"}},
		Message: "m",
	}
	if RenderPrompt(d) != RenderPrompt(d) {
		t.Error("two renders of the same data diverged")
	}
}
