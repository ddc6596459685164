// File: internal/exposure/registry.go
package exposure

import (
	"context"
	"sync"
	"time"

	"github.com/xkilldash9x/wayfinder/api/schemas"
	"go.uber.org/zap"
)

// Callback receives every state change for the subscribed control id(s).
type Callback func(event schemas.ToolStateEvent)

// journalBatchSize caps how many buffered events go into one journal write.
const journalBatchSize = 64

// journalFlushInterval bounds how stale a buffered event may get before it is
// written out even when the batch is not full.
const journalFlushInterval = 2 * time.Second

// Registry is the process-wide store of the latest exposure state per control
// id, a notification hub for state changes, and the bounded-wait primitive
// the navigator builds on. Construct one per application and pass it by
// reference; there is no global instance.
type Registry struct {
	logger *zap.Logger

	mu       sync.RWMutex
	states   map[string]schemas.ToolStateEvent
	subs     map[string]map[int]Callback
	wildcard map[int]Callback
	nextSub  int

	// Journal plumbing. A nil journal disables persistence; events then skip
	// the buffer entirely.
	journalCh chan schemas.ToolStateEvent
	flushDone chan struct{}
	closeOnce sync.Once
}

// NewRegistry creates a registry. journal may be nil to disable persistence.
func NewRegistry(logger *zap.Logger, journal schemas.Journal) *Registry {
	r := &Registry{
		logger:   logger.Named("exposure_registry"),
		states:   make(map[string]schemas.ToolStateEvent),
		subs:     make(map[string]map[int]Callback),
		wildcard: make(map[int]Callback),
	}
	if journal != nil {
		r.journalCh = make(chan schemas.ToolStateEvent, 1024)
		r.flushDone = make(chan struct{})
		go r.flushLoop(journal)
	}
	return r
}

// HandleStateChange overwrites the stored state for the event's control and
// notifies subscribers keyed to that id, then wildcard subscribers. Events
// for a given control id must be delivered by a single producer at a time;
// that is what preserves per-id notification order.
func (r *Registry) HandleStateChange(event schemas.ToolStateEvent) {
	r.mu.Lock()
	r.states[event.ToolID] = event

	// Copy the callback sets so notification happens outside the lock.
	var callbacks []Callback
	for _, cb := range r.subs[event.ToolID] {
		callbacks = append(callbacks, cb)
	}
	for _, cb := range r.wildcard {
		callbacks = append(callbacks, cb)
	}
	r.mu.Unlock()

	for _, cb := range callbacks {
		cb(event)
	}

	if r.journalCh != nil {
		select {
		case r.journalCh <- event:
		default:
			r.logger.Warn("Journal buffer full; dropping event",
				zap.String("tool", event.ToolID), zap.String("state", event.State.String()))
		}
	}
}

// ToolState returns the latest recorded event for a control, if any.
func (r *Registry) ToolState(toolID string) (schemas.ToolStateEvent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	event, ok := r.states[toolID]
	return event, ok
}

// ToolsByState returns the ids of all controls whose latest state equals the
// given state.
func (r *Registry) ToolsByState(state schemas.ExposureState) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []string
	for id, event := range r.states {
		if event.State == state {
			ids = append(ids, id)
		}
	}
	return ids
}

// InteractableTools returns the ids of all controls that can be invoked right
// now, including those classified accessible.
func (r *Registry) InteractableTools() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []string
	for id, event := range r.states {
		if event.State.AtLeast(schemas.StateInteractable) {
			ids = append(ids, id)
		}
	}
	return ids
}

// Snapshot returns the latest event for every known control.
func (r *Registry) Snapshot() []schemas.ToolStateEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	events := make([]schemas.ToolStateEvent, 0, len(r.states))
	for _, event := range r.states {
		events = append(events, event)
	}
	return events
}

// Subscribe registers a callback for every state change of the given control,
// or for every control when toolID is empty. The returned function removes
// the subscription.
func (r *Registry) Subscribe(toolID string, cb Callback) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextSub
	r.nextSub++

	if toolID == "" {
		r.wildcard[id] = cb
	} else {
		if r.subs[toolID] == nil {
			r.subs[toolID] = make(map[int]Callback)
		}
		r.subs[toolID][id] = cb
	}

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if toolID == "" {
			delete(r.wildcard, id)
			return
		}
		delete(r.subs[toolID], id)
		if len(r.subs[toolID]) == 0 {
			delete(r.subs, toolID)
		}
	}
}

// WaitForState blocks until the control's state satisfies the target
// threshold, the timeout elapses, or ctx is cancelled. The comparison is
// ordinal: waiting for INTERACTABLE also succeeds when the control reaches
// ACCESSIBLE. Timing out returns false and never an error, since "tool never
// becomes ready" is a routine application condition.
func (r *Registry) WaitForState(ctx context.Context, toolID string, target schemas.ExposureState, timeout time.Duration) bool {
	// Subscribe before checking the current state so a transition between
	// the check and the wait cannot be missed.
	qualified := make(chan struct{}, 1)
	unsubscribe := r.Subscribe(toolID, func(event schemas.ToolStateEvent) {
		if event.State.AtLeast(target) {
			select {
			case qualified <- struct{}{}:
			default:
			}
		}
	})
	defer unsubscribe()

	if event, ok := r.ToolState(toolID); ok && event.State.AtLeast(target) {
		return true
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	select {
	case <-qualified:
		return true
	case <-deadline.C:
		return false
	case <-ctx.Done():
		return false
	}
}

// Close stops the journal flusher and drains any buffered events. Safe to
// call on a registry without a journal, and safe to call more than once.
func (r *Registry) Close() {
	r.closeOnce.Do(func() {
		if r.journalCh == nil {
			return
		}
		close(r.journalCh)
		<-r.flushDone
	})
}

// flushLoop batches buffered events into journal writes.
func (r *Registry) flushLoop(journal schemas.Journal) {
	defer close(r.flushDone)

	ticker := time.NewTicker(journalFlushInterval)
	defer ticker.Stop()

	batch := make([]schemas.ToolStateEvent, 0, journalBatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := journal.AppendStateEvents(ctx, batch); err != nil {
			r.logger.Warn("Failed to journal state events", zap.Int("count", len(batch)), zap.Error(err))
		}
		cancel()
		batch = batch[:0]
	}

	for {
		select {
		case event, ok := <-r.journalCh:
			if !ok {
				flush()
				return
			}
			batch = append(batch, event)
			if len(batch) >= journalBatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
