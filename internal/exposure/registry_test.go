package exposure_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/wayfinder/api/schemas"
	"github.com/xkilldash9x/wayfinder/internal/exposure"
)

func newTestRegistry(t *testing.T) *exposure.Registry {
	return exposure.NewRegistry(zaptest.NewLogger(t), nil)
}

func stateEvent(toolID string, state schemas.ExposureState) schemas.ToolStateEvent {
	return schemas.ToolStateEvent{
		ID:        uuid.New().String(),
		ToolID:    toolID,
		State:     state,
		Timestamp: time.Now().UTC(),
		Metadata:  schemas.StateMetadata{Reason: "test"},
	}
}

func TestRegistry_StoresLatestState(t *testing.T) {
	r := newTestRegistry(t)

	r.HandleStateChange(stateEvent("save", schemas.StateVisible))
	r.HandleStateChange(stateEvent("save", schemas.StateInteractable))

	event, ok := r.ToolState("save")
	require.True(t, ok)
	assert.Equal(t, schemas.StateInteractable, event.State)

	_, ok = r.ToolState("unknown")
	assert.False(t, ok)
}

func TestRegistry_ToolsByState(t *testing.T) {
	r := newTestRegistry(t)

	r.HandleStateChange(stateEvent("a", schemas.StateVisible))
	r.HandleStateChange(stateEvent("b", schemas.StateInteractable))
	r.HandleStateChange(stateEvent("c", schemas.StateAccessible))

	assert.ElementsMatch(t, []string{"a"}, r.ToolsByState(schemas.StateVisible))
	// InteractableTools is ordinal: accessible controls count too.
	assert.ElementsMatch(t, []string{"b", "c"}, r.InteractableTools())
}

func TestRegistry_Subscribe(t *testing.T) {
	r := newTestRegistry(t)

	var mu sync.Mutex
	var perTool, all []schemas.ExposureState

	unsubTool := r.Subscribe("save", func(event schemas.ToolStateEvent) {
		mu.Lock()
		perTool = append(perTool, event.State)
		mu.Unlock()
	})
	unsubAll := r.Subscribe("", func(event schemas.ToolStateEvent) {
		mu.Lock()
		all = append(all, event.State)
		mu.Unlock()
	})

	r.HandleStateChange(stateEvent("save", schemas.StateVisible))
	r.HandleStateChange(stateEvent("other", schemas.StatePresent))

	mu.Lock()
	assert.Equal(t, []schemas.ExposureState{schemas.StateVisible}, perTool)
	assert.Equal(t, []schemas.ExposureState{schemas.StateVisible, schemas.StatePresent}, all)
	mu.Unlock()

	unsubTool()
	unsubAll()

	r.HandleStateChange(stateEvent("save", schemas.StateInteractable))
	mu.Lock()
	assert.Len(t, perTool, 1, "unsubscribed callbacks must not fire")
	assert.Len(t, all, 2)
	mu.Unlock()
}

func TestRegistry_WaitForState_AlreadySatisfied(t *testing.T) {
	r := newTestRegistry(t)
	r.HandleStateChange(stateEvent("save", schemas.StateAccessible))

	// Ordinal comparison: ACCESSIBLE satisfies a wait for INTERACTABLE.
	start := time.Now()
	ok := r.WaitForState(context.Background(), "save", schemas.StateInteractable, time.Second)
	assert.True(t, ok)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestRegistry_WaitForState_WakesOnQualifyingEvent(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := newTestRegistry(t)
	r.HandleStateChange(stateEvent("save", schemas.StateVisible))

	done := make(chan bool)
	go func() {
		done <- r.WaitForState(context.Background(), "save", schemas.StateInteractable, 2*time.Second)
	}()

	time.Sleep(20 * time.Millisecond)
	// A higher state than requested still qualifies.
	r.HandleStateChange(stateEvent("save", schemas.StateAccessible))

	select {
	case ok := <-done:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("waiter did not wake on a qualifying event")
	}
}

func TestRegistry_WaitForState_TimesOutBelowThreshold(t *testing.T) {
	r := newTestRegistry(t)
	r.HandleStateChange(stateEvent("save", schemas.StateVisible))

	done := make(chan bool)
	go func() {
		done <- r.WaitForState(context.Background(), "save", schemas.StateInteractable, 100*time.Millisecond)
	}()

	// Non-qualifying churn below the threshold must not wake the waiter.
	r.HandleStateChange(stateEvent("save", schemas.StatePresent))
	r.HandleStateChange(stateEvent("save", schemas.StateVisible))

	assert.False(t, <-done)
}

func TestRegistry_WaitForState_ContextCancellation(t *testing.T) {
	r := newTestRegistry(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan bool)
	go func() {
		done <- r.WaitForState(ctx, "save", schemas.StateInteractable, 5*time.Second)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("waiter did not return after context cancellation")
	}
}

// recordingJournal captures journaled batches.
type recordingJournal struct {
	mu      sync.Mutex
	events  []schemas.ToolStateEvent
	flushed chan struct{}
}

func (j *recordingJournal) AppendStateEvents(ctx context.Context, events []schemas.ToolStateEvent) error {
	j.mu.Lock()
	j.events = append(j.events, events...)
	j.mu.Unlock()
	select {
	case j.flushed <- struct{}{}:
	default:
	}
	return nil
}

func (j *recordingJournal) AppendOutcome(ctx context.Context, outcome schemas.NavigationOutcome) error {
	return nil
}

func TestRegistry_JournalFlushOnClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	journal := &recordingJournal{flushed: make(chan struct{}, 1)}
	r := exposure.NewRegistry(zaptest.NewLogger(t), journal)

	r.HandleStateChange(stateEvent("a", schemas.StateVisible))
	r.HandleStateChange(stateEvent("b", schemas.StateInteractable))

	r.Close()
	// Close is idempotent.
	r.Close()

	journal.mu.Lock()
	defer journal.mu.Unlock()
	assert.Len(t, journal.events, 2)
}

func TestRegistry_Snapshot(t *testing.T) {
	r := newTestRegistry(t)
	r.HandleStateChange(stateEvent("a", schemas.StateVisible))
	r.HandleStateChange(stateEvent("b", schemas.StateInteractable))

	snapshot := r.Snapshot()
	assert.Len(t, snapshot, 2)
}
