package geocoder

import (
	"context"
	"strings"
	"sync"
)

// MockClient 按名称返回预置结果
type MockClient struct {
	mu     sync.Mutex
	Places map[string]*Place
	Calls  []string

	// Err 非空时每次调用都返回它
	Err error
	// Delay 模拟慢上游，会被 ctx 取消
	Delay <-chan struct{}
}

func NewMockClient() *MockClient {
	return &MockClient{Places: make(map[string]*Place)}
}

func (m *MockClient) Provider() string { return "mock" }

func (m *MockClient) Resolve(ctx context.Context, name, city string) (*Place, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, name)
	delay, err := m.Delay, m.Err
	place := m.Places[strings.ToLower(name)]
	m.mu.Unlock()

	if delay != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-delay:
		}
	}
	if err != nil {
		return nil, err
	}
	if place == nil {
		return nil, nil
	}
	p := *place
	return &p, nil
}

// Add 预置一个结果，名称忽略大小写
func (m *MockClient) Add(name string, place *Place) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Places[strings.ToLower(name)] = place
}

func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
