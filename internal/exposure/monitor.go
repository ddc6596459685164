// File: internal/exposure/monitor.go
package exposure

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/xkilldash9x/wayfinder/api/schemas"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultObstructionThreshold is the minimum unobstructed fraction for a
// visible control to count as exposed.
const DefaultObstructionThreshold = 0.5

// EventSink receives exposure transitions. The Registry is the production
// implementation.
type EventSink interface {
	HandleStateChange(event schemas.ToolStateEvent)
}

// Classify computes the exposure state for a single observation, together
// with the reason for the classification and any known blockers. The branches
// are evaluated strictly in readiness order, so the reason always names the
// first thing standing in the way.
func Classify(obs schemas.Observation, obstructionThreshold float64) (schemas.ExposureState, schemas.StateMetadata) {
	if obstructionThreshold <= 0 {
		obstructionThreshold = DefaultObstructionThreshold
	}

	meta := schemas.StateMetadata{}

	if !obs.Attached {
		meta.Reason = "control is not attached to the render tree"
		return schemas.StateNotPresent, meta
	}

	rect := obs.Rect
	meta.Position = &rect

	if obs.Hidden || rect.Width <= 0 || rect.Height <= 0 {
		meta.Reason = "control is attached but has no visible extent"
		meta.Blockers = append(meta.Blockers, "hidden")
		return schemas.StatePresent, meta
	}

	if obs.Disabled {
		meta.Reason = "control is visible but disabled"
		meta.Blockers = append(meta.Blockers, "disabled")
		return schemas.StateVisible, meta
	}

	if obs.VisibleFraction < obstructionThreshold {
		meta.Reason = "control is visible but obstructed by an overlay"
		meta.Blockers = append(meta.Blockers, "obstructed")
		return schemas.StateVisible, meta
	}

	if obs.Busy {
		meta.Reason = "control is exposed but busy or loading"
		meta.Blockers = append(meta.Blockers, "busy")
		return schemas.StateExposed, meta
	}

	if obs.AccessibleName {
		meta.Reason = "control is interactable and exposes an accessible name"
		return schemas.StateAccessible, meta
	}

	meta.Reason = "control is interactable"
	return schemas.StateInteractable, meta
}

// Monitor continuously classifies a single control's readiness and emits a
// ToolStateEvent on every transition. Repeated identical observations emit
// nothing.
type Monitor struct {
	logger    *zap.Logger
	toolID    string
	control   schemas.ObservableControl
	sink      EventSink
	threshold float64

	last    schemas.ExposureState
	hasLast bool
}

// NewMonitor creates a monitor for one control. A non-positive threshold
// falls back to the default.
func NewMonitor(logger *zap.Logger, toolID string, control schemas.ObservableControl, sink EventSink, obstructionThreshold float64) *Monitor {
	if obstructionThreshold <= 0 {
		obstructionThreshold = DefaultObstructionThreshold
	}
	return &Monitor{
		logger:    logger.Named("exposure").With(zap.String("tool", toolID)),
		toolID:    toolID,
		control:   control,
		sink:      sink,
		threshold: obstructionThreshold,
	}
}

// Observe takes a single observation, classifies it, and emits an event if
// the state changed since the previous observation. The first observation
// always emits.
func (m *Monitor) Observe(ctx context.Context) (schemas.ExposureState, error) {
	obs, err := m.control.Observe(ctx)
	if err != nil {
		return schemas.StateNotPresent, err
	}
	return m.Apply(obs), nil
}

// Apply classifies an already-captured observation. Split out from Observe so
// push-style platforms can feed observations directly.
func (m *Monitor) Apply(obs schemas.Observation) schemas.ExposureState {
	state, meta := Classify(obs, m.threshold)

	if m.hasLast && state == m.last {
		return state
	}
	m.last = state
	m.hasLast = true

	event := schemas.ToolStateEvent{
		ID:        uuid.New().String(),
		ToolID:    m.toolID,
		State:     state,
		Timestamp: time.Now().UTC(),
		Metadata:  meta,
	}
	m.logger.Debug("Exposure transition",
		zap.String("state", state.String()), zap.String("reason", meta.Reason))
	m.sink.HandleStateChange(event)
	return state
}

// Run samples the control at the given interval until ctx is cancelled.
// Observation errors are logged and treated as "not attached" rather than
// terminating the loop, since a control vanishing mid-session is routine.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	limiter := rate.NewLimiter(rate.Every(interval), 1)

	for {
		if err := limiter.Wait(ctx); err != nil {
			return
		}
		obs, err := m.control.Observe(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.logger.Debug("Observation failed; treating control as absent", zap.Error(err))
			obs = schemas.Observation{}
		}
		m.Apply(obs)
	}
}
