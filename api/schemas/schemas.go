package schemas

import (
	"time"
)

// -- Context Graph Data Model --

// RootContextID is the id of the default context every graph starts with.
// Controls whose context cannot be detected are assigned here.
const RootContextID = "global"

// NavigationContext is a named node in the application's reachable-state
// graph: a page, tab, modal, or panel in which a specific subset of controls
// is available. The parent chain forms a tree for display hierarchy only; it
// is independent of the navigation-edge graph, which may contain cycles.
type NavigationContext struct {
	ID            string   `json:"id"`
	DisplayName   string   `json:"display_name"`
	ParentID      string   `json:"parent_id,omitempty"`
	ChildIDs      []string `json:"child_ids,omitempty"`
	MemberToolIDs []string `json:"member_tool_ids,omitempty"`
}

// NavigationEdge is a directed, weighted transition between two contexts,
// triggered by invoking a specific control. Edges are immutable once
// registered.
type NavigationEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
	// NavigationToolID identifies the control whose invocation is expected to
	// cause the transition.
	NavigationToolID string  `json:"navigation_tool_id"`
	Cost             float64 `json:"cost"`
}

// NavigationPath is the computed answer to "how do I get from A to B".
// A path with zero steps and zero cost is valid and means "already there".
type NavigationPath struct {
	From              string           `json:"from"`
	To                string           `json:"to"`
	Steps             []NavigationEdge `json:"steps"`
	TotalCost         float64          `json:"total_cost"`
	EstimatedDuration time.Duration    `json:"estimated_duration"`
}

// -- Exposure Data Model --

// Rect is an element's bounding rectangle in CSS pixels.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// StateMetadata carries the observation details behind a state classification.
type StateMetadata struct {
	// Reason is a human-readable explanation of the classification branch taken.
	Reason string `json:"reason,omitempty"`
	// Blockers lists what prevents the control from being interactable, when known.
	Blockers []string `json:"blockers,omitempty"`
	Position *Rect    `json:"position,omitempty"`
	// Confidence is only meaningful for derived facts such as detected contexts.
	Confidence float64 `json:"confidence,omitempty"`
}

// ToolStateEvent records an observed exposure transition for a single control.
type ToolStateEvent struct {
	ID        string        `json:"id"`
	ToolID    string        `json:"tool_id"`
	State     ExposureState `json:"state"`
	Timestamp time.Time     `json:"timestamp"`
	Metadata  StateMetadata `json:"metadata,omitempty"`
}

// -- Derived Records --

// ToolLocation joins a control's context membership to navigability facts
// computed from the current context.
type ToolLocation struct {
	ToolID             string           `json:"tool_id"`
	ContextID          string           `json:"context_id"`
	CurrentlyReachable bool             `json:"currently_reachable"`
	NavigationSteps    []NavigationEdge `json:"navigation_steps,omitempty"`
	EstimatedDuration  time.Duration    `json:"estimated_duration,omitempty"`
}

// DetectedContext is the outcome of a context-detection strategy.
type DetectedContext struct {
	ContextID  string  `json:"context_id"`
	Strategy   string  `json:"strategy"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason,omitempty"`
}

// -- Navigation Outcomes --

// NavigationOutcome summarizes one navigator run, suitable for journaling.
type NavigationOutcome struct {
	AttemptID   string        `json:"attempt_id"`
	ToolID      string        `json:"tool_id"`
	FromContext string        `json:"from_context"`
	ToContext   string        `json:"to_context"`
	StepsTaken  int           `json:"steps_taken"`
	Succeeded   bool          `json:"succeeded"`
	FailureCode string        `json:"failure_code,omitempty"`
	Duration    time.Duration `json:"duration"`
	StartedAt   time.Time     `json:"started_at"`
}
