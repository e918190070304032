package structurer

import (
	"context"
	"sync"
)

// Mock implements Engine for testing.
type Mock struct {
	// StructureFunc is called when Structure is invoked.
	StructureFunc func(ctx context.Context, jpeg []byte) (*Page, error)

	mu    sync.Mutex
	calls int
}

// NewMock creates a mock engine that returns a single-task page.
func NewMock() *Mock {
	return &Mock{
		StructureFunc: func(ctx context.Context, jpeg []byte) (*Page, error) {
			return &Page{Tasks: []Task{
				{Name: "Mock task", Status: StatusNotStarted, Order: 1},
			}}, nil
		},
	}
}

// Structure records the call and delegates to StructureFunc.
func (m *Mock) Structure(ctx context.Context, jpeg []byte) (*Page, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return m.StructureFunc(ctx, jpeg)
}

// Calls returns how many times Structure was invoked.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
