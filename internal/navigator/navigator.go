// File: internal/navigator/navigator.go
// Description: Composes the path finder and the exposure registry into the
// end-to-end sequence that makes "invoke this control, wherever it lives"
// possible. It is injected with its collaborators, making it decoupled and
// testable.
package navigator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/wayfinder/api/schemas"
	"github.com/xkilldash9x/wayfinder/internal/config"
	"github.com/xkilldash9x/wayfinder/internal/contextgraph"
	"github.com/xkilldash9x/wayfinder/internal/exposure"
	"github.com/xkilldash9x/wayfinder/internal/pathfinder"
)

// FailureCode distinguishes the ways a navigation attempt can fail. All of
// them are recoverable conditions reported to the caller; none crash the
// hosting process.
type FailureCode string

const (
	// FailToolNotFound means the control has no registered context mapping at
	// all. This is the one case treated as a caller configuration error, so
	// callers can tell "never configured" apart from "not currently reachable".
	FailToolNotFound FailureCode = "TOOL_NOT_FOUND"
	// FailNoPath means no edge sequence connects the current context to the
	// control's context. Depth-limit exhaustion reports the same code.
	FailNoPath FailureCode = "NO_PATH"
	// FailNavControlNotReady means a navigation step's control never became
	// interactable within the readiness timeout.
	FailNavControlNotReady FailureCode = "NAV_CONTROL_NOT_READY"
	// FailInvocation means the external executor returned an error.
	FailInvocation FailureCode = "INVOCATION_FAILED"
	// FailNoEffect means a navigation control was invoked but the context
	// never changed to the edge's target.
	FailNoEffect FailureCode = "NAVIGATION_NO_EFFECT"
	// FailTargetNotReady means navigation succeeded but the target control
	// never became interactable.
	FailTargetNotReady FailureCode = "TARGET_NOT_READY"
	// FailCancelled means the caller's context was cancelled mid-attempt. It
	// wraps the context error and says nothing about the controls involved.
	FailCancelled FailureCode = "CANCELLED"
)

// NavigationError is the typed failure result of a navigation attempt. It
// carries the last known exposure state and reason so callers can distinguish
// "control doesn't exist" from "control exists but is disabled or loading".
type NavigationError struct {
	Code      FailureCode
	ToolID    string
	LastState schemas.ExposureState
	Reason    string
	Err       error
}

func (e *NavigationError) Error() string {
	msg := fmt.Sprintf("navigation failed (%s) for tool %q", e.Code, e.ToolID)
	if e.Code == FailTargetNotReady || e.Code == FailNavControlNotReady {
		msg += fmt.Sprintf(": state = %s", e.LastState)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *NavigationError) Unwrap() error { return e.Err }

// Navigator orchestrates readiness-aware navigation to a target control.
type Navigator struct {
	cfg      config.NavigationConfig
	logger   *zap.Logger
	graph    *contextgraph.Graph
	finder   *pathfinder.Finder
	registry *exposure.Registry
	invoker  schemas.Invoker
	journal  schemas.Journal
}

// New creates a Navigator with its dependencies provided explicitly. journal
// may be nil; everything else is required.
func New(
	cfg config.NavigationConfig,
	logger *zap.Logger,
	graph *contextgraph.Graph,
	finder *pathfinder.Finder,
	registry *exposure.Registry,
	invoker schemas.Invoker,
	journal schemas.Journal,
) (*Navigator, error) {
	if logger == nil || graph == nil || finder == nil || registry == nil || invoker == nil {
		return nil, fmt.Errorf("cannot initialize navigator with nil dependencies")
	}
	if cfg.ReadinessTimeout <= 0 {
		cfg.ReadinessTimeout = 10 * time.Second
	}
	if cfg.TransitionTimeout <= 0 {
		cfg.TransitionTimeout = 10 * time.Second
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = pathfinder.DefaultMaxDepth
	}
	return &Navigator{
		cfg:      cfg,
		logger:   logger.Named("navigator"),
		graph:    graph,
		finder:   finder,
		registry: registry,
		invoker:  invoker,
		journal:  journal,
	}, nil
}

// Locate reports where a control lives and whether it is reachable from the
// current context, without executing any navigation.
func (n *Navigator) Locate(toolID string) (schemas.ToolLocation, error) {
	contextID, ok := n.graph.ToolContext(toolID)
	if !ok {
		return schemas.ToolLocation{}, &NavigationError{
			Code:   FailToolNotFound,
			ToolID: toolID,
			Reason: "control not found in any context",
		}
	}

	location := schemas.ToolLocation{ToolID: toolID, ContextID: contextID}

	current := n.graph.CurrentContext()
	path := n.finder.ComputePath(n.graph, current, contextID, pathfinder.Options{MaxDepth: n.cfg.MaxDepth})
	if path == nil {
		return location, nil
	}

	location.CurrentlyReachable = true
	location.NavigationSteps = path.Steps
	location.EstimatedDuration = path.EstimatedDuration
	return location, nil
}

// EnsureReady navigates to the target control's context if necessary and
// waits until the control is interactable. On success the caller may invoke
// the control; the actual invocation of the target's behavior is the
// caller's responsibility.
func (n *Navigator) EnsureReady(ctx context.Context, toolID string) error {
	started := time.Now().UTC()
	fromContext := n.graph.CurrentContext()

	steps, err := n.ensureReady(ctx, toolID)
	n.recordOutcome(toolID, fromContext, started, steps, err)
	return err
}

func (n *Navigator) ensureReady(ctx context.Context, toolID string) (int, error) {
	contextID, ok := n.graph.ToolContext(toolID)
	if !ok {
		return 0, &NavigationError{
			Code:   FailToolNotFound,
			ToolID: toolID,
			Reason: "control not found in any context",
		}
	}

	steps := 0
	current := n.graph.CurrentContext()
	if current != contextID {
		taken, err := n.navigate(ctx, toolID, current, contextID)
		steps = taken
		if err != nil {
			return steps, err
		}
	} else {
		n.logger.Debug("Already in target context; skipping navigation",
			zap.String("tool", toolID), zap.String("context", contextID))
	}

	// Final readiness wait on the target itself.
	if !n.registry.WaitForState(ctx, toolID, schemas.StateInteractable, n.cfg.ReadinessTimeout) {
		if err := ctx.Err(); err != nil {
			return steps, &NavigationError{Code: FailCancelled, ToolID: toolID, Err: err}
		}
		state, reason := n.lastKnown(toolID)
		return steps, &NavigationError{
			Code:      FailTargetNotReady,
			ToolID:    toolID,
			LastState: state,
			Reason:    reason,
		}
	}

	n.logger.Info("Target control ready",
		zap.String("tool", toolID), zap.String("context", contextID))
	return steps, nil
}

// navigate computes and executes the edge sequence from the current context
// to the target context. Each step waits for the step's navigation control,
// invokes it, and confirms the context actually changed before proceeding.
func (n *Navigator) navigate(ctx context.Context, toolID, from, to string) (int, error) {
	path := n.finder.ComputePath(n.graph, from, to, pathfinder.Options{MaxDepth: n.cfg.MaxDepth})
	if path == nil {
		return 0, &NavigationError{
			Code:   FailNoPath,
			ToolID: toolID,
			Reason: fmt.Sprintf("no reachable path from %q to %q", from, to),
		}
	}

	n.logger.Info("Executing navigation path",
		zap.String("tool", toolID),
		zap.String("from", from), zap.String("to", to),
		zap.Int("steps", len(path.Steps)),
		zap.Float64("cost", path.TotalCost),
		zap.Duration("estimated", path.EstimatedDuration))

	taken := 0
	for _, step := range path.Steps {
		if !n.registry.WaitForState(ctx, step.NavigationToolID, schemas.StateInteractable, n.cfg.ReadinessTimeout) {
			if err := ctx.Err(); err != nil {
				return taken, &NavigationError{Code: FailCancelled, ToolID: step.NavigationToolID, Err: err}
			}
			state, reason := n.lastKnown(step.NavigationToolID)
			return taken, &NavigationError{
				Code:      FailNavControlNotReady,
				ToolID:    step.NavigationToolID,
				LastState: state,
				Reason:    reason,
			}
		}

		if err := n.invoker.Invoke(ctx, step.NavigationToolID); err != nil {
			return taken, &NavigationError{
				Code:   FailInvocation,
				ToolID: step.NavigationToolID,
				Err:    err,
			}
		}

		if !n.graph.WaitForContextChange(ctx, step.To, n.cfg.TransitionTimeout) {
			if err := ctx.Err(); err != nil {
				return taken, &NavigationError{Code: FailCancelled, ToolID: step.NavigationToolID, Err: err}
			}
			return taken, &NavigationError{
				Code:   FailNoEffect,
				ToolID: step.NavigationToolID,
				Reason: fmt.Sprintf("navigation did not take effect; expected context %q", step.To),
			}
		}

		taken++
		n.logger.Debug("Navigation step complete",
			zap.String("via", step.NavigationToolID), zap.String("context", step.To))
	}

	return taken, nil
}

// lastKnown fetches the last recorded state and reason for a control.
func (n *Navigator) lastKnown(toolID string) (schemas.ExposureState, string) {
	event, ok := n.registry.ToolState(toolID)
	if !ok {
		return schemas.StateNotPresent, "no state ever observed"
	}
	return event.State, event.Metadata.Reason
}

// recordOutcome journals the attempt when a journal is configured.
func (n *Navigator) recordOutcome(toolID, fromContext string, started time.Time, steps int, navErr error) {
	if n.journal == nil {
		return
	}

	outcome := schemas.NavigationOutcome{
		AttemptID:   uuid.New().String(),
		ToolID:      toolID,
		FromContext: fromContext,
		ToContext:   n.graph.CurrentContext(),
		StepsTaken:  steps,
		Succeeded:   navErr == nil,
		Duration:    time.Since(started),
		StartedAt:   started,
	}
	if navErr != nil {
		if ne, ok := navErr.(*NavigationError); ok {
			outcome.FailureCode = string(ne.Code)
		} else {
			outcome.FailureCode = string(FailInvocation)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := n.journal.AppendOutcome(ctx, outcome); err != nil {
		n.logger.Warn("Failed to journal navigation outcome", zap.Error(err))
	}
}
