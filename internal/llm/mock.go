package llm

import (
	"context"
	"sync"

	"github.com/vintera/labelforge/internal/fault"
)

// MockClient replays scripted responses in order and records every
// prompt it receives. It backs offline runs and tests.
type MockClient struct {
	mu        sync.Mutex
	responses []string
	images    [][]byte
	errs      []error

	// Prompts records every Generate request in call order.
	Prompts []GenerateRequest
}

// NewMockClient creates an empty mock; script it with Queue* calls.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// QueueResponse appends a scripted text response.
func (m *MockClient) QueueResponse(text string) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, text)
	m.errs = append(m.errs, nil)
	return m
}

// QueueError appends a scripted failure.
func (m *MockClient) QueueError(err error) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, "")
	m.errs = append(m.errs, err)
	return m
}

// QueueImage appends a scripted image-generation result.
func (m *MockClient) QueueImage(data []byte) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.images = append(m.images, data)
	return m
}

// Generate returns the next scripted response.
func (m *MockClient) Generate(_ context.Context, req GenerateRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Prompts = append(m.Prompts, req)

	if len(m.responses) == 0 {
		return "", fault.New(fault.KindProcessing, false, "mock client has no scripted response")
	}
	text, err := m.responses[0], m.errs[0]
	m.responses = m.responses[1:]
	m.errs = m.errs[1:]
	if err != nil {
		return "", err
	}
	return text, nil
}

// GenerateImage returns the next scripted image.
func (m *MockClient) GenerateImage(_ context.Context, _ ImageRequest) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.images) == 0 {
		return nil, fault.New(fault.KindProcessing, false, "mock client has no scripted image")
	}
	data := m.images[0]
	m.images = m.images[1:]
	return data, nil
}

// Calls reports how many Generate calls the mock has served.
func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Prompts)
}
