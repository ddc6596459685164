package navigator_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/wayfinder/api/schemas"
	"github.com/xkilldash9x/wayfinder/internal/config"
	"github.com/xkilldash9x/wayfinder/internal/contextgraph"
	"github.com/xkilldash9x/wayfinder/internal/exposure"
	"github.com/xkilldash9x/wayfinder/internal/navigator"
	"github.com/xkilldash9x/wayfinder/internal/pathfinder"
)

// fixture wires a navigator against the standard three-context test graph:
// home -> a via nav-a, a -> b via nav-b, with "target" living in b.
type fixture struct {
	graph    *contextgraph.Graph
	registry *exposure.Registry
	invoker  *fakeInvoker
	nav      *navigator.Navigator
}

// fakeInvoker records invocations and moves the graph along the matching
// edge, mimicking a UI that honors its navigation controls.
type fakeInvoker struct {
	mu       sync.Mutex
	graph    *contextgraph.Graph
	invoked  []string
	failWith error
	// silent suppresses the context change, simulating a navigation control
	// that does nothing when clicked.
	silent bool
}

func (f *fakeInvoker) Invoke(ctx context.Context, toolID string) error {
	f.mu.Lock()
	f.invoked = append(f.invoked, toolID)
	failWith, silent := f.failWith, f.silent
	f.mu.Unlock()

	if failWith != nil {
		return failWith
	}
	if silent {
		return nil
	}
	current := f.graph.CurrentContext()
	for _, e := range f.graph.Edges() {
		if e.From == current && e.NavigationToolID == toolID {
			f.graph.SetCurrentContext(e.To)
			return nil
		}
	}
	return nil
}

func (f *fakeInvoker) invocations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.invoked...)
}

func newFixture(t *testing.T) *fixture {
	logger := zaptest.NewLogger(t)

	graph := contextgraph.New(logger)
	graph.RegisterContext(schemas.NavigationContext{ID: "home"})
	graph.RegisterContext(schemas.NavigationContext{ID: "a"})
	graph.RegisterContext(schemas.NavigationContext{ID: "b"})
	graph.RegisterEdge(schemas.NavigationEdge{From: "home", To: "a", NavigationToolID: "nav-a", Cost: 1})
	graph.RegisterEdge(schemas.NavigationEdge{From: "a", To: "b", NavigationToolID: "nav-b", Cost: 1})
	graph.RegisterTool("target", "b")
	graph.RegisterTool("nav-a", "home")
	graph.RegisterTool("nav-b", "a")
	graph.SetCurrentContext("home")

	registry := exposure.NewRegistry(logger, nil)
	t.Cleanup(registry.Close)

	invoker := &fakeInvoker{graph: graph}

	cfg := config.NavigationConfig{
		MaxDepth:          10,
		StepEstimate:      500 * time.Millisecond,
		ReadinessTimeout:  200 * time.Millisecond,
		TransitionTimeout: 200 * time.Millisecond,
	}
	nav, err := navigator.New(cfg, logger, graph, pathfinder.New(logger, cfg.StepEstimate), registry, invoker, nil)
	require.NoError(t, err)

	return &fixture{graph: graph, registry: registry, invoker: invoker, nav: nav}
}

// markInteractable records an interactable state for the given controls.
func (f *fixture) markInteractable(toolIDs ...string) {
	for _, id := range toolIDs {
		f.registry.HandleStateChange(schemas.ToolStateEvent{
			ID:        uuid.New().String(),
			ToolID:    id,
			State:     schemas.StateInteractable,
			Timestamp: time.Now().UTC(),
			Metadata:  schemas.StateMetadata{Reason: "control is interactable"},
		})
	}
}

func navErrCode(t *testing.T, err error) navigator.FailureCode {
	t.Helper()
	var navErr *navigator.NavigationError
	require.ErrorAs(t, err, &navErr)
	return navErr.Code
}

func TestNew_RejectsNilDependencies(t *testing.T) {
	_, err := navigator.New(config.NavigationConfig{}, nil, nil, nil, nil, nil, nil)
	assert.Error(t, err)
}

func TestEnsureReady_EndToEnd(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(t)
	f.markInteractable("nav-a", "nav-b", "target")

	err := f.nav.EnsureReady(context.Background(), "target")
	require.NoError(t, err)

	// The navigator must have walked home -> a -> b in order.
	assert.Equal(t, []string{"nav-a", "nav-b"}, f.invoker.invocations())
	assert.Equal(t, "b", f.graph.CurrentContext())
}

func TestEnsureReady_AlreadyThere(t *testing.T) {
	f := newFixture(t)
	f.graph.SetCurrentContext("b")
	f.markInteractable("target")

	err := f.nav.EnsureReady(context.Background(), "target")
	require.NoError(t, err)

	// No navigation happens when the target's context is current.
	assert.Empty(t, f.invoker.invocations())
}

func TestEnsureReady_ToolNotFound(t *testing.T) {
	f := newFixture(t)

	err := f.nav.EnsureReady(context.Background(), "ghost")
	assert.Equal(t, navigator.FailToolNotFound, navErrCode(t, err))
	assert.Empty(t, f.invoker.invocations(), "nothing is invoked for an unknown tool")
}

func TestEnsureReady_Unreachable(t *testing.T) {
	f := newFixture(t)
	// Context c is isolated: no incoming edges.
	f.graph.RegisterContext(schemas.NavigationContext{ID: "c"})
	f.graph.RegisterTool("stranded", "c")
	f.markInteractable("stranded")

	err := f.nav.EnsureReady(context.Background(), "stranded")
	assert.Equal(t, navigator.FailNoPath, navErrCode(t, err))
	assert.Empty(t, f.invoker.invocations(), "no invocation is attempted without a path")
}

func TestEnsureReady_NavControlNotReady(t *testing.T) {
	f := newFixture(t)
	// nav-a stays disabled for the whole wait.
	f.registry.HandleStateChange(schemas.ToolStateEvent{
		ID:        uuid.New().String(),
		ToolID:    "nav-a",
		State:     schemas.StateVisible,
		Timestamp: time.Now().UTC(),
		Metadata:  schemas.StateMetadata{Reason: "control is visible but disabled"},
	})

	err := f.nav.EnsureReady(context.Background(), "target")

	var navErr *navigator.NavigationError
	require.ErrorAs(t, err, &navErr)
	assert.Equal(t, navigator.FailNavControlNotReady, navErr.Code)
	assert.Equal(t, "nav-a", navErr.ToolID)
	assert.Equal(t, schemas.StateVisible, navErr.LastState)
	assert.Equal(t, "control is visible but disabled", navErr.Reason)
	assert.Empty(t, f.invoker.invocations())
}

func TestEnsureReady_NavigationNoEffect(t *testing.T) {
	f := newFixture(t)
	f.markInteractable("nav-a", "nav-b", "target")
	f.invoker.silent = true

	err := f.nav.EnsureReady(context.Background(), "target")
	assert.Equal(t, navigator.FailNoEffect, navErrCode(t, err))
	assert.Equal(t, []string{"nav-a"}, f.invoker.invocations(), "failure happens on the first step")
}

func TestEnsureReady_CallerCancellation(t *testing.T) {
	f := newFixture(t)
	// nav-a never becomes ready; the caller gives up mid-wait.
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- f.nav.EnsureReady(ctx, "target")
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		// Cancellation is reported as such, not as a readiness timeout.
		assert.Equal(t, navigator.FailCancelled, navErrCode(t, err))
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("navigator did not return after context cancellation")
	}
}

func TestEnsureReady_CancellationDuringTargetWait(t *testing.T) {
	f := newFixture(t)
	f.graph.SetCurrentContext("b")
	// target stays below interactable for the whole wait.
	f.registry.HandleStateChange(schemas.ToolStateEvent{
		ID:        uuid.New().String(),
		ToolID:    "target",
		State:     schemas.StateVisible,
		Timestamp: time.Now().UTC(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- f.nav.EnsureReady(ctx, "target")
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.Equal(t, navigator.FailCancelled, navErrCode(t, err))
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("navigator did not return after context cancellation")
	}
}

func TestEnsureReady_InvocationFailure(t *testing.T) {
	f := newFixture(t)
	f.markInteractable("nav-a", "nav-b", "target")
	f.invoker.failWith = errors.New("boom")

	err := f.nav.EnsureReady(context.Background(), "target")
	assert.Equal(t, navigator.FailInvocation, navErrCode(t, err))
}

func TestEnsureReady_TargetNotReady(t *testing.T) {
	f := newFixture(t)
	f.markInteractable("nav-a", "nav-b")
	// target exists but is stuck loading.
	f.registry.HandleStateChange(schemas.ToolStateEvent{
		ID:        uuid.New().String(),
		ToolID:    "target",
		State:     schemas.StateExposed,
		Timestamp: time.Now().UTC(),
		Metadata:  schemas.StateMetadata{Reason: "control is exposed but busy or loading"},
	})

	err := f.nav.EnsureReady(context.Background(), "target")

	var navErr *navigator.NavigationError
	require.ErrorAs(t, err, &navErr)
	assert.Equal(t, navigator.FailTargetNotReady, navErr.Code)
	assert.Equal(t, schemas.StateExposed, navErr.LastState)
	assert.Contains(t, navErr.Error(), "EXPOSED")
}

func TestEnsureReady_TargetNeverObserved(t *testing.T) {
	f := newFixture(t)
	f.graph.SetCurrentContext("b")

	err := f.nav.EnsureReady(context.Background(), "target")

	var navErr *navigator.NavigationError
	require.ErrorAs(t, err, &navErr)
	assert.Equal(t, navigator.FailTargetNotReady, navErr.Code)
	assert.Equal(t, schemas.StateNotPresent, navErr.LastState)
	assert.Equal(t, "no state ever observed", navErr.Reason)
}

func TestEnsureReady_AccessibleSatisfiesInteractable(t *testing.T) {
	f := newFixture(t)
	f.graph.SetCurrentContext("b")
	f.registry.HandleStateChange(schemas.ToolStateEvent{
		ID:        uuid.New().String(),
		ToolID:    "target",
		State:     schemas.StateAccessible,
		Timestamp: time.Now().UTC(),
	})

	assert.NoError(t, f.nav.EnsureReady(context.Background(), "target"))
}

func TestLocate(t *testing.T) {
	f := newFixture(t)

	location, err := f.nav.Locate("target")
	require.NoError(t, err)
	assert.Equal(t, "b", location.ContextID)
	assert.True(t, location.CurrentlyReachable)
	assert.Len(t, location.NavigationSteps, 2)
	assert.Equal(t, 1000*time.Millisecond, location.EstimatedDuration)
}

func TestLocate_Unreachable(t *testing.T) {
	f := newFixture(t)
	f.graph.RegisterContext(schemas.NavigationContext{ID: "c"})
	f.graph.RegisterTool("stranded", "c")

	location, err := f.nav.Locate("stranded")
	require.NoError(t, err)
	assert.Equal(t, "c", location.ContextID)
	assert.False(t, location.CurrentlyReachable)
	assert.Empty(t, location.NavigationSteps)
}

func TestLocate_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.nav.Locate("ghost")
	assert.Equal(t, navigator.FailToolNotFound, navErrCode(t, err))
}

// recordingJournal captures navigation outcomes.
type recordingJournal struct {
	mu       sync.Mutex
	outcomes []schemas.NavigationOutcome
}

func (j *recordingJournal) AppendStateEvents(ctx context.Context, events []schemas.ToolStateEvent) error {
	return nil
}

func (j *recordingJournal) AppendOutcome(ctx context.Context, outcome schemas.NavigationOutcome) error {
	j.mu.Lock()
	j.outcomes = append(j.outcomes, outcome)
	j.mu.Unlock()
	return nil
}

func TestEnsureReady_JournalsOutcome(t *testing.T) {
	logger := zaptest.NewLogger(t)
	graph := contextgraph.New(logger)
	graph.RegisterContext(schemas.NavigationContext{ID: "home"})
	graph.RegisterContext(schemas.NavigationContext{ID: "a"})
	graph.RegisterEdge(schemas.NavigationEdge{From: "home", To: "a", NavigationToolID: "nav-a"})
	graph.RegisterTool("target", "a")
	graph.SetCurrentContext("home")

	registry := exposure.NewRegistry(logger, nil)
	t.Cleanup(registry.Close)

	journal := &recordingJournal{}
	invoker := &fakeInvoker{graph: graph}
	cfg := config.NavigationConfig{
		MaxDepth:          10,
		ReadinessTimeout:  200 * time.Millisecond,
		TransitionTimeout: 200 * time.Millisecond,
	}
	nav, err := navigator.New(cfg, logger, graph, pathfinder.New(logger, 0), registry, invoker, journal)
	require.NoError(t, err)

	registry.HandleStateChange(schemas.ToolStateEvent{
		ID: uuid.New().String(), ToolID: "nav-a", State: schemas.StateInteractable, Timestamp: time.Now().UTC(),
	})
	registry.HandleStateChange(schemas.ToolStateEvent{
		ID: uuid.New().String(), ToolID: "target", State: schemas.StateInteractable, Timestamp: time.Now().UTC(),
	})

	require.NoError(t, nav.EnsureReady(context.Background(), "target"))

	journal.mu.Lock()
	defer journal.mu.Unlock()
	require.Len(t, journal.outcomes, 1)
	outcome := journal.outcomes[0]
	assert.True(t, outcome.Succeeded)
	assert.Equal(t, "target", outcome.ToolID)
	assert.Equal(t, "home", outcome.FromContext)
	assert.Equal(t, "a", outcome.ToContext)
	assert.Equal(t, 1, outcome.StepsTaken)
	assert.NotEmpty(t, outcome.AttemptID)
}
