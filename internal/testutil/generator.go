package testutil

import (
	"context"
	"strings"
	"sync"
)

// MockGenerator implements llm.Generator with canned responses and full
// call capture, so tests can assert on the rendered prompts the engine
// actually sent.
type MockGenerator struct {
	// Response is returned when no pattern matches. Default: "ok".
	Response string

	// Err, when set, is returned by every Generate call.
	Err error

	mu        sync.Mutex
	responses map[string]string // substring of prompt -> response
	prompts   []string
}

// RespondWhen returns response for any prompt containing substr.
func (m *MockGenerator) RespondWhen(substr, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.responses == nil {
		m.responses = make(map[string]string)
	}
	m.responses[substr] = response
}

// Generate records the prompt and returns the matching canned response.
func (m *MockGenerator) Generate(_ context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	responses := m.responses
	m.mu.Unlock()

	if m.Err != nil {
		return "", m.Err
	}

	for substr, resp := range responses {
		if strings.Contains(prompt, substr) {
			return resp, nil
		}
	}
	if m.Response != "" {
		return m.Response, nil
	}
	return "ok", nil
}

// Calls returns how many times Generate was invoked.
func (m *MockGenerator) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// LastPrompt returns the most recent prompt, or "" if none.
func (m *MockGenerator) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return ""
	}
	return m.prompts[len(m.prompts)-1]
}

// Prompts returns a copy of every recorded prompt, in call order.
func (m *MockGenerator) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.prompts))
	copy(out, m.prompts)
	return out
}
