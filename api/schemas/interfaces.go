package schemas

import (
	"context"
)

// -- Observation Boundary --

// Observation is a platform-independent snapshot of a single control's
// rendered representation. Probes produce these; the exposure state machine
// classifies them. A zero-value Observation describes a control that is not
// attached to any render tree.
type Observation struct {
	// Attached reports whether the control exists in the render tree at all.
	Attached bool
	// Rect is the control's bounding rectangle. A zero-area rect means the
	// control has no visible extent.
	Rect Rect
	// VisibleFraction is the unobstructed portion of the rect, 0.0 to 1.0.
	VisibleFraction float64
	// Hidden reports a hiding attribute or style (hidden, display:none).
	Hidden bool
	// Disabled reports disabled or aria-disabled="true".
	Disabled bool
	// Busy reports a busy or loading marker (aria-busy="true", spinner class).
	Busy bool
	// AccessibleName reports whether the control exposes a non-empty
	// accessible name (label, aria-label, text content).
	AccessibleName bool
}

// ObservableControl abstracts the platform mechanism that watches a single
// rendered control. Implementations include parsed-HTML snapshots and a live
// browser probe; tests use synthetic observations.
type ObservableControl interface {
	// Observe returns the control's current snapshot.
	Observe(ctx context.Context) (Observation, error)
}

// -- Execution Boundary --

// Invoker performs the actual invocation of a control (click, method call,
// form submit). The navigator guarantees it never calls Invoke before the
// control has been confirmed interactable.
type Invoker interface {
	Invoke(ctx context.Context, toolID string) error
}

// -- Metadata Boundary --

// ToolDescriptor is the metadata the embedding application supplies per
// control. LocationHint feeds convention-based context detection and may be
// empty.
type ToolDescriptor struct {
	ToolID               string `json:"tool_id"`
	LocationHint         string `json:"location_hint,omitempty"`
	RequiresConfirmation bool   `json:"requires_confirmation,omitempty"`
}

// -- Persistence Boundary --

// Journal is an optional append-only sink for exposure events and navigation
// outcomes. A nil Journal disables persistence entirely.
type Journal interface {
	AppendStateEvents(ctx context.Context, events []ToolStateEvent) error
	AppendOutcome(ctx context.Context, outcome NavigationOutcome) error
}
