package application_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/aliuygur/instol-panel/internal/application"
	"github.com/aliuygur/instol-panel/internal/domain/model"
	"github.com/aliuygur/instol-panel/internal/domain/port/driven"
)

// --- Mock implementations ---

// mockAPI is a hand-rolled ProvisioningClient. Each method delegates to its
// func field when set and records the call for assertions.
type mockAPI struct {
	mu sync.Mutex

	checkSubdomain func(ctx context.Context, subdomain string) (driven.SubdomainCheck, error)
	createInstance func(ctx context.Context, subdomain, region string) (model.Instance, error)
	listInstances  func(ctx context.Context) ([]model.Instance, error)
	deleteInstance func(ctx context.Context, id string) error
	logout         func(ctx context.Context) error

	checkCalls  []string
	createCalls []createCall
	listCalls   int
	deleteCalls []string
	logoutCalls int
}

type createCall struct {
	Subdomain string
	Region    string
}

func (m *mockAPI) CheckSubdomain(ctx context.Context, subdomain string) (driven.SubdomainCheck, error) {
	m.mu.Lock()
	m.checkCalls = append(m.checkCalls, subdomain)
	fn := m.checkSubdomain
	m.mu.Unlock()

	if fn == nil {
		return driven.SubdomainCheck{Available: true}, nil
	}
	return fn(ctx, subdomain)
}

func (m *mockAPI) CreateInstance(ctx context.Context, subdomain, region string) (model.Instance, error) {
	m.mu.Lock()
	m.createCalls = append(m.createCalls, createCall{Subdomain: subdomain, Region: region})
	fn := m.createInstance
	m.mu.Unlock()

	if fn == nil {
		return model.Instance{ID: "new", URL: "https://" + subdomain + ".instol.cloud", Status: "provisioning"}, nil
	}
	return fn(ctx, subdomain, region)
}

func (m *mockAPI) ListInstances(ctx context.Context) ([]model.Instance, error) {
	m.mu.Lock()
	m.listCalls++
	fn := m.listInstances
	m.mu.Unlock()

	if fn == nil {
		return nil, nil
	}
	return fn(ctx)
}

func (m *mockAPI) DeleteInstance(ctx context.Context, id string) error {
	m.mu.Lock()
	m.deleteCalls = append(m.deleteCalls, id)
	fn := m.deleteInstance
	m.mu.Unlock()

	if fn == nil {
		return nil
	}
	return fn(ctx, id)
}

func (m *mockAPI) Logout(ctx context.Context) error {
	m.mu.Lock()
	m.logoutCalls++
	fn := m.logout
	m.mu.Unlock()

	if fn == nil {
		return nil
	}
	return fn(ctx)
}

func (m *mockAPI) checkCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.checkCalls)
}

func (m *mockAPI) createCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.createCalls)
}

func (m *mockAPI) listCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listCalls
}

// mockStore is an in-memory CredentialStore with injectable failures.
type mockStore struct {
	mu     sync.Mutex
	values map[string]string

	getErr    error
	setErr    error
	deleteErr error
}

func newMockStore() *mockStore {
	return &mockStore{values: map[string]string{}}
}

func (s *mockStore) Get(_ context.Context, slot string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return "", s.getErr
	}
	return s.values[slot], nil
}

func (s *mockStore) Set(_ context.Context, slot, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return s.setErr
	}
	s.values[slot] = value
	return nil
}

// value reads a slot under the lock; for assertions racing a background
// probe.
func (s *mockStore) value(slot string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[slot]
}

func (s *mockStore) Delete(_ context.Context, slot string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.values, slot)
	return nil
}

// --- Construction helpers ---

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestSession builds a SessionManager over a fresh store with the given
// token already persisted (empty means logged out).
func newTestSession(t *testing.T, token string) (*application.SessionManager, *mockStore) {
	t.Helper()
	store := newMockStore()
	if token != "" {
		store.values[driven.CredentialSlotSession] = token
	}
	return application.NewSessionManager(store, testLogger()), store
}

// newTestInstanceService wires an InstanceService over the given mock API
// with a short probe quiet period so tests don't wait on wall-clock
// debounce.
func newTestInstanceService(t *testing.T, api *mockAPI) (*application.InstanceService, *mockStore) {
	t.Helper()
	session, store := newTestSession(t, "tok-123")
	session.BindAPI(api)
	svc := application.NewInstanceServiceWithQuietPeriod(api, session, 10*time.Millisecond, testLogger())
	return svc, store
}
