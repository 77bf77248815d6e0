package llm

import (
	"context"
	"fmt"
	"sync"
)

// MockClient implements Client for testing. Responses and errors are consumed
// in order; when the script runs out, the last entry repeats.
type MockClient struct {
	ModelName string

	mu     sync.Mutex
	script []mockTurn
	calls  int

	// Requests records every request received, for assertions.
	Requests []CompletionRequest
}

type mockTurn struct {
	resp *CompletionResponse
	err  error
}

// NewMockClient creates an empty mock; queue turns with Reply/Fail.
func NewMockClient(model string) *MockClient {
	return &MockClient{ModelName: model}
}

// Reply queues a successful response.
func (m *MockClient) Reply(resp *CompletionResponse) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, mockTurn{resp: resp})
	return m
}

// ReplyText queues a plain-text response.
func (m *MockClient) ReplyText(text string) *MockClient {
	return m.Reply(&CompletionResponse{Content: text, Model: m.ModelName, FinishReason: "stop"})
}

// Fail queues an error.
func (m *MockClient) Fail(err error) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, mockTurn{err: err})
	return m
}

func (m *MockClient) Complete(_ context.Context, req CompletionRequest) (*CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	m.Requests = append(m.Requests, req)

	if len(m.script) == 0 {
		return nil, fmt.Errorf("mock client %s has no scripted turns", m.ModelName)
	}
	idx := m.calls - 1
	if idx >= len(m.script) {
		idx = len(m.script) - 1
	}
	turn := m.script[idx]
	if turn.err != nil {
		return nil, turn.err
	}
	return turn.resp, nil
}

func (m *MockClient) Model() string {
	return m.ModelName
}

// Calls returns how many completions were requested.
func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
