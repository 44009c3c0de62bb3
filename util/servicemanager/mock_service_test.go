package servicemanager

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// MockService records its lifecycle calls and lets tests script Init, Stop and Health.
type MockService struct {
	name string

	mu           sync.Mutex
	initErr      error
	startDelay   time.Duration
	startErr     error
	stopErr      error
	healthStatus int
	healthErr    error
	initCalled   bool
	startCalled  bool
	stopCalled   bool
	skipReady    bool
	stopLog      *[]string
}

func NewMockService(name string) *MockService {
	return &MockService{name: name, healthStatus: http.StatusOK}
}

func (m *MockService) SetInitError(err error) {
	m.initErr = err
}

func (m *MockService) SetStartBehavior(delay time.Duration, err error) {
	m.startDelay = delay
	m.startErr = err
}

func (m *MockService) SetStopBehavior(err error) {
	m.stopErr = err
}

func (m *MockService) SetHealthBehavior(status int, err error) {
	m.healthStatus = status
	m.healthErr = err
}

func (m *MockService) Init(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.initCalled = true

	return m.initErr
}

func (m *MockService) Start(ctx context.Context, readyCh chan<- struct{}) error {
	m.mu.Lock()
	m.startCalled = true
	m.mu.Unlock()

	if m.startDelay > 0 {
		select {
		case <-time.After(m.startDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if m.startErr != nil {
		return m.startErr
	}

	if !m.skipReady {
		close(readyCh)
	}

	<-ctx.Done()

	return nil
}

func (m *MockService) Stop(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopCalled = true

	if m.stopLog != nil {
		*m.stopLog = append(*m.stopLog, m.name)
	}

	return m.stopErr
}

func (m *MockService) Health(_ context.Context, _ bool) (int, string, error) {
	return m.healthStatus, `{"name":"` + m.name + `"}`, m.healthErr
}

func (m *MockService) called() (initCalled, startCalled, stopCalled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.initCalled, m.startCalled, m.stopCalled
}
