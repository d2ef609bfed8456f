package application_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aliuygur/instol-panel/internal/application"
	"github.com/aliuygur/instol-panel/internal/domain/model"
	"github.com/aliuygur/instol-panel/internal/domain/port/driven"
)

var testInstances = []model.Instance{
	{ID: "inst-1", URL: "https://myapp.instol.cloud", Status: "running"},
	{ID: "inst-2", URL: "https://other.instol.cloud", Status: "provisioning"},
}

// refreshed loads a listing into the service so confirmation tests have
// instances to operate on.
func refreshed(t *testing.T, svc *application.InstanceService, api *mockAPI, instances []model.Instance) {
	t.Helper()
	api.mu.Lock()
	api.listInstances = func(context.Context) ([]model.Instance, error) { return instances, nil }
	api.mu.Unlock()
	_, err := svc.Refresh(context.Background())
	require.NoError(t, err)
}

func TestCreate_NoCandidate(t *testing.T) {
	api := &mockAPI{}
	svc, _ := newTestInstanceService(t, api)

	_, err := svc.Create(context.Background(), "eu-central")

	assert.ErrorIs(t, err, application.ErrNoSubdomain)
	assert.Zero(t, api.createCallCount())
}

func TestCreate_KnownUnavailable(t *testing.T) {
	api := &mockAPI{
		checkSubdomain: func(_ context.Context, _ string) (driven.SubdomainCheck, error) {
			return driven.SubdomainCheck{Available: false, Message: "taken"}, nil
		},
	}
	svc, _ := newTestInstanceService(t, api)
	ctx := context.Background()

	svc.SetCandidate(ctx, "myapp")
	require.Eventually(t, func() bool {
		return svc.Availability().State == model.AvailabilityUnavailable
	}, time.Second, eventuallyTick)

	_, err := svc.Create(ctx, "eu-central")

	assert.ErrorIs(t, err, application.ErrSubdomainUnavailable)
	assert.Zero(t, api.createCallCount())
}

func TestCreate_UnknownAvailabilityAllowed(t *testing.T) {
	api := &mockAPI{}
	session, _ := newTestSession(t, "tok-123")
	session.BindAPI(api)
	// Long quiet period: the probe never fires, availability stays unknown.
	svc := application.NewInstanceServiceWithQuietPeriod(api, session, time.Hour, testLogger())
	ctx := context.Background()

	svc.SetCandidate(ctx, "myapp")
	route, err := svc.Create(ctx, "us-east")

	require.NoError(t, err)
	assert.Equal(t, model.RouteDashboard, route)
	require.Len(t, api.createCalls, 1, "the server is the final arbiter for unknown availability")
	assert.Equal(t, createCall{Subdomain: "myapp", Region: "us-east"}, api.createCalls[0])
}

func TestCreate_DuplicateSubmission(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	api := &mockAPI{
		createInstance: func(_ context.Context, subdomain, _ string) (model.Instance, error) {
			close(started)
			<-release
			return model.Instance{ID: "new", URL: "https://" + subdomain + ".instol.cloud"}, nil
		},
	}
	session, _ := newTestSession(t, "tok-123")
	session.BindAPI(api)
	svc := application.NewInstanceServiceWithQuietPeriod(api, session, time.Hour, testLogger())
	ctx := context.Background()

	svc.SetCandidate(ctx, "myapp")

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		_, firstErr = svc.Create(ctx, "eu-central")
	}()

	<-started
	_, secondErr := svc.Create(ctx, "eu-central")
	close(release)
	wg.Wait()

	require.NoError(t, firstErr)
	assert.ErrorIs(t, secondErr, application.ErrCreateInFlight)
	assert.Equal(t, 1, api.createCallCount(), "one user action, one request")
}

func TestCreate_Unauthorized(t *testing.T) {
	api := &mockAPI{
		createInstance: func(context.Context, string, string) (model.Instance, error) {
			return model.Instance{}, driven.ErrUnauthorized
		},
	}
	session, store := newTestSession(t, "tok-123")
	session.BindAPI(api)
	svc := application.NewInstanceServiceWithQuietPeriod(api, session, time.Hour, testLogger())
	ctx := context.Background()

	svc.SetCandidate(ctx, "myapp")
	route, err := svc.Create(ctx, "eu-central")

	assert.ErrorIs(t, err, driven.ErrUnauthorized)
	assert.Equal(t, model.RouteLogin, route)
	assert.Empty(t, store.values)
}

func TestCreate_ValidationErrorKeepsForm(t *testing.T) {
	api := &mockAPI{
		createInstance: func(context.Context, string, string) (model.Instance, error) {
			return model.Instance{}, &driven.ValidationError{Message: "subdomain already exists"}
		},
	}
	session, _ := newTestSession(t, "tok-123")
	session.BindAPI(api)
	svc := application.NewInstanceServiceWithQuietPeriod(api, session, time.Hour, testLogger())
	ctx := context.Background()

	svc.SetCandidate(ctx, "myapp")
	route, err := svc.Create(ctx, "eu-central")

	var verr *driven.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "subdomain already exists", verr.Message)
	assert.Equal(t, model.RouteNone, route)
	assert.Equal(t, "myapp", svc.Availability().Candidate, "a rejected creation keeps the form state")

	// The flag is released: a retry goes through.
	api.mu.Lock()
	api.createInstance = nil
	api.mu.Unlock()
	route, err = svc.Create(ctx, "eu-central")
	require.NoError(t, err)
	assert.Equal(t, model.RouteDashboard, route)
}

func TestRefresh_FullReplace(t *testing.T) {
	api := &mockAPI{}
	svc, _ := newTestInstanceService(t, api)

	refreshed(t, svc, api, testInstances)
	assert.Equal(t, testInstances, svc.Instances())

	// The server no longer reports inst-2; the local view must drop it.
	refreshed(t, svc, api, testInstances[:1])
	assert.Equal(t, testInstances[:1], svc.Instances())

	// An empty listing replaces everything.
	refreshed(t, svc, api, nil)
	assert.Empty(t, svc.Instances())
}

func TestRefresh_FailureKeepsPriorListing(t *testing.T) {
	api := &mockAPI{}
	svc, _ := newTestInstanceService(t, api)
	refreshed(t, svc, api, testInstances)

	api.mu.Lock()
	api.listInstances = func(context.Context) ([]model.Instance, error) {
		return nil, errors.New("gateway timeout")
	}
	api.mu.Unlock()

	route, err := svc.Refresh(context.Background())

	require.Error(t, err)
	assert.Equal(t, model.RouteNone, route)
	assert.Equal(t, testInstances, svc.Instances(), "failed refresh must not clobber the listing")
}

func TestRefresh_Unauthorized(t *testing.T) {
	api := &mockAPI{
		listInstances: func(context.Context) ([]model.Instance, error) {
			return nil, driven.ErrUnauthorized
		},
	}
	svc, store := newTestInstanceService(t, api)

	route, err := svc.Refresh(context.Background())

	assert.ErrorIs(t, err, driven.ErrUnauthorized)
	assert.Equal(t, model.RouteLogin, route)
	assert.Empty(t, store.value(driven.CredentialSlotSession))
}

func TestOpenDeleteConfirmation_UnknownInstance(t *testing.T) {
	api := &mockAPI{}
	svc, _ := newTestInstanceService(t, api)
	refreshed(t, svc, api, testInstances)

	_, err := svc.OpenDeleteConfirmation("inst-999")

	assert.ErrorIs(t, err, application.ErrUnknownInstance)
	assert.False(t, svc.Confirmation().Open)
}

func TestConfirmation_ArmsOnlyOnExactMatch(t *testing.T) {
	api := &mockAPI{}
	svc, _ := newTestInstanceService(t, api)
	refreshed(t, svc, api, testInstances)

	state, err := svc.OpenDeleteConfirmation("inst-1")
	require.NoError(t, err)
	assert.True(t, state.Open)
	assert.Equal(t, "inst-1", state.Instance.ID)
	assert.False(t, state.Armed, "empty typed text never arms")

	tests := []struct {
		typed string
		armed bool
	}{
		{"myap", false},
		{"MyApp", false},
		{"myapp ", false},
		{" myapp", false},
		{"myapp.instol.cloud", false},
		{"myapp", true},
	}
	for _, tt := range tests {
		state, err = svc.SetConfirmationText(tt.typed)
		require.NoError(t, err)
		assert.Equal(t, tt.armed, state.Armed, "typed %q", tt.typed)
	}
}

func TestConfirmation_ReplacedByOtherInstance(t *testing.T) {
	api := &mockAPI{}
	svc, _ := newTestInstanceService(t, api)
	refreshed(t, svc, api, testInstances)

	_, err := svc.OpenDeleteConfirmation("inst-1")
	require.NoError(t, err)
	_, err = svc.SetConfirmationText("myapp")
	require.NoError(t, err)

	state, err := svc.OpenDeleteConfirmation("inst-2")
	require.NoError(t, err)

	assert.Equal(t, "inst-2", state.Instance.ID)
	assert.Empty(t, state.Typed, "typed text never carries across instances")
	assert.False(t, state.Armed)
}

func TestConfirmation_Cancel(t *testing.T) {
	api := &mockAPI{}
	svc, _ := newTestInstanceService(t, api)
	refreshed(t, svc, api, testInstances)

	_, err := svc.OpenDeleteConfirmation("inst-1")
	require.NoError(t, err)

	svc.CancelDeleteConfirmation()

	assert.False(t, svc.Confirmation().Open)
	_, err = svc.SetConfirmationText("myapp")
	assert.ErrorIs(t, err, application.ErrNoConfirmation)
}

func TestExecuteDelete_NoConfirmation(t *testing.T) {
	api := &mockAPI{}
	svc, _ := newTestInstanceService(t, api)

	_, err := svc.ExecuteDelete(context.Background())

	assert.ErrorIs(t, err, application.ErrNoConfirmation)
	assert.Empty(t, api.deleteCalls)
}

func TestExecuteDelete_NotArmed(t *testing.T) {
	api := &mockAPI{}
	svc, _ := newTestInstanceService(t, api)
	refreshed(t, svc, api, testInstances)

	_, err := svc.OpenDeleteConfirmation("inst-1")
	require.NoError(t, err)
	_, err = svc.SetConfirmationText("MyApp")
	require.NoError(t, err)

	_, err = svc.ExecuteDelete(context.Background())

	assert.ErrorIs(t, err, application.ErrConfirmationMismatch)
	assert.Empty(t, api.deleteCalls, "an unarmed confirmation never reaches the network")
	assert.True(t, svc.Confirmation().Open)
}

func TestExecuteDelete_Success(t *testing.T) {
	api := &mockAPI{}
	svc, _ := newTestInstanceService(t, api)
	refreshed(t, svc, api, testInstances)

	_, err := svc.OpenDeleteConfirmation("inst-1")
	require.NoError(t, err)
	_, err = svc.SetConfirmationText("myapp")
	require.NoError(t, err)

	// After deletion the server reports only the surviving instance.
	api.mu.Lock()
	api.listInstances = func(context.Context) ([]model.Instance, error) {
		return testInstances[1:], nil
	}
	api.mu.Unlock()

	route, err := svc.ExecuteDelete(context.Background())

	require.NoError(t, err)
	assert.Equal(t, model.RouteNone, route)
	assert.Equal(t, []string{"inst-1"}, api.deleteCalls)
	assert.False(t, svc.Confirmation().Open, "successful deletion closes the confirmation")
	assert.Equal(t, testInstances[1:], svc.Instances(), "listing is re-fetched after deletion")
}

func TestExecuteDelete_FailureKeepsConfirmationOpen(t *testing.T) {
	api := &mockAPI{
		deleteInstance: func(context.Context, string) error {
			return errors.New("backend error")
		},
	}
	svc, _ := newTestInstanceService(t, api)
	refreshed(t, svc, api, testInstances)

	_, err := svc.OpenDeleteConfirmation("inst-1")
	require.NoError(t, err)
	_, err = svc.SetConfirmationText("myapp")
	require.NoError(t, err)

	_, err = svc.ExecuteDelete(context.Background())

	require.Error(t, err)
	state := svc.Confirmation()
	assert.True(t, state.Open, "failed deletion keeps the confirmation for retry")
	assert.True(t, state.Armed)
}

func TestExecuteDelete_Unauthorized(t *testing.T) {
	api := &mockAPI{
		deleteInstance: func(context.Context, string) error {
			return driven.ErrUnauthorized
		},
	}
	svc, store := newTestInstanceService(t, api)
	refreshed(t, svc, api, testInstances)

	_, err := svc.OpenDeleteConfirmation("inst-1")
	require.NoError(t, err)
	_, err = svc.SetConfirmationText("myapp")
	require.NoError(t, err)

	route, err := svc.ExecuteDelete(context.Background())

	assert.ErrorIs(t, err, driven.ErrUnauthorized)
	assert.Equal(t, model.RouteLogin, route)
	assert.Empty(t, store.value(driven.CredentialSlotSession))
}
