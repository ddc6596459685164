// File: internal/contextgraph/graph.go
package contextgraph

import (
	"context"
	"sync"
	"time"

	"github.com/xkilldash9x/wayfinder/api/schemas"
	"go.uber.org/zap"
)

// Graph maintains the set of navigation contexts, the directed edges between
// them, and the mapping from controls to the context they belong to. It also
// tracks which context the application is presently in.
//
// Registration against an unknown context is a configuration warning, not an
// error: navigation graphs are built incrementally as a UI mounts, so the
// graph logs and ignores the call rather than failing the caller.
type Graph struct {
	logger *zap.Logger

	mu           sync.RWMutex
	contexts     map[string]*schemas.NavigationContext
	edges        []schemas.NavigationEdge
	toolContexts map[string]string
	current      string
	// changed is closed and replaced whenever the current context moves.
	// Waiters grab the channel under the lock and select on it.
	changed chan struct{}
}

// New creates a graph seeded with the root context, which is also the
// starting current context.
func New(logger *zap.Logger) *Graph {
	g := &Graph{
		logger:       logger.Named("contextgraph"),
		contexts:     make(map[string]*schemas.NavigationContext),
		toolContexts: make(map[string]string),
		changed:      make(chan struct{}),
	}
	g.contexts[schemas.RootContextID] = &schemas.NavigationContext{
		ID:          schemas.RootContextID,
		DisplayName: "Global",
	}
	g.current = schemas.RootContextID
	return g
}

// RegisterContext inserts or updates a context. Re-registering an existing id
// updates it in place; the parent's child list never accumulates duplicates.
// A parent reference to an unknown context, or one that would create a cycle
// in the parent chain, is dropped with a warning.
func (g *Graph) RegisterContext(nc schemas.NavigationContext) {
	if nc.ID == "" {
		g.logger.Warn("Ignoring context registration with empty id")
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if nc.ParentID != "" {
		if _, ok := g.contexts[nc.ParentID]; !ok {
			g.logger.Warn("Context references unknown parent; dropping parent link",
				zap.String("context", nc.ID), zap.String("parent", nc.ParentID))
			nc.ParentID = ""
		} else if g.parentChainContains(nc.ParentID, nc.ID) {
			g.logger.Warn("Context parent link would create a cycle; dropping parent link",
				zap.String("context", nc.ID), zap.String("parent", nc.ParentID))
			nc.ParentID = ""
		}
	}

	existing, ok := g.contexts[nc.ID]
	if ok {
		// Update in place, preserving accumulated children and members unless
		// the caller supplied replacements.
		if nc.ChildIDs == nil {
			nc.ChildIDs = existing.ChildIDs
		}
		if nc.MemberToolIDs == nil {
			nc.MemberToolIDs = existing.MemberToolIDs
		}
		// Unlink from the previous parent if the parent changed.
		if existing.ParentID != "" && existing.ParentID != nc.ParentID {
			g.removeChild(existing.ParentID, nc.ID)
		}
	}

	stored := nc
	g.contexts[nc.ID] = &stored

	if nc.ParentID != "" {
		g.appendChild(nc.ParentID, nc.ID)
	}

	g.logger.Debug("Registered context", zap.String("id", nc.ID), zap.String("parent", nc.ParentID))
}

// parentChainContains walks the parent chain starting at startID and reports
// whether targetID appears in it. Callers must hold g.mu.
func (g *Graph) parentChainContains(startID, targetID string) bool {
	seen := make(map[string]bool)
	for id := startID; id != "" && !seen[id]; {
		if id == targetID {
			return true
		}
		seen[id] = true
		parent, ok := g.contexts[id]
		if !ok {
			return false
		}
		id = parent.ParentID
	}
	return false
}

func (g *Graph) appendChild(parentID, childID string) {
	parent, ok := g.contexts[parentID]
	if !ok {
		return
	}
	for _, id := range parent.ChildIDs {
		if id == childID {
			return
		}
	}
	parent.ChildIDs = append(parent.ChildIDs, childID)
}

func (g *Graph) removeChild(parentID, childID string) {
	parent, ok := g.contexts[parentID]
	if !ok {
		return
	}
	for i, id := range parent.ChildIDs {
		if id == childID {
			parent.ChildIDs = append(parent.ChildIDs[:i], parent.ChildIDs[i+1:]...)
			return
		}
	}
}

// RegisterEdge records a directed transition between two registered contexts.
// Both endpoints must already exist, exact duplicates are rejected, and a
// non-positive cost defaults to 1.
func (g *Graph) RegisterEdge(e schemas.NavigationEdge) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.contexts[e.From]; !ok {
		g.logger.Warn("Edge references unknown source context; ignoring",
			zap.String("from", e.From), zap.String("to", e.To))
		return
	}
	if _, ok := g.contexts[e.To]; !ok {
		g.logger.Warn("Edge references unknown target context; ignoring",
			zap.String("from", e.From), zap.String("to", e.To))
		return
	}

	if e.Cost <= 0 {
		e.Cost = 1
	}

	for _, existing := range g.edges {
		if existing.From == e.From && existing.To == e.To && existing.NavigationToolID == e.NavigationToolID {
			g.logger.Warn("Duplicate edge registration; ignoring",
				zap.String("from", e.From), zap.String("to", e.To),
				zap.String("tool", e.NavigationToolID))
			return
		}
	}

	g.edges = append(g.edges, e)
	g.logger.Debug("Registered edge",
		zap.String("from", e.From), zap.String("to", e.To),
		zap.String("tool", e.NavigationToolID), zap.Float64("cost", e.Cost))
}

// RegisterTool records the context a control belongs to. Membership is
// single-context and first-wins: a second registration for the same tool id
// under a different context is ignored with a warning.
func (g *Graph) RegisterTool(toolID, contextID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ctx, ok := g.contexts[contextID]
	if !ok {
		g.logger.Warn("Tool registered against unknown context; ignoring",
			zap.String("tool", toolID), zap.String("context", contextID))
		return
	}

	if existing, ok := g.toolContexts[toolID]; ok {
		if existing != contextID {
			g.logger.Warn("Tool already mapped to a context; keeping first registration",
				zap.String("tool", toolID),
				zap.String("existing", existing), zap.String("ignored", contextID))
		}
		return
	}

	g.toolContexts[toolID] = contextID
	ctx.MemberToolIDs = append(ctx.MemberToolIDs, toolID)
	g.logger.Debug("Registered tool", zap.String("tool", toolID), zap.String("context", contextID))
}

// ToolContext returns the context a control belongs to, if any.
func (g *Graph) ToolContext(toolID string) (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	id, ok := g.toolContexts[toolID]
	return id, ok
}

// Context returns a copy of the named context.
func (g *Graph) Context(id string) (schemas.NavigationContext, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	nc, ok := g.contexts[id]
	if !ok {
		return schemas.NavigationContext{}, false
	}
	out := *nc
	out.ChildIDs = append([]string(nil), nc.ChildIDs...)
	out.MemberToolIDs = append([]string(nil), nc.MemberToolIDs...)
	return out, true
}

// HasContext reports whether a context id is registered.
func (g *Graph) HasContext(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.contexts[id]
	return ok
}

// Edges returns a snapshot of all registered edges in registration order.
func (g *Graph) Edges() []schemas.NavigationEdge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]schemas.NavigationEdge(nil), g.edges...)
}

// CurrentContext returns the context the application is presently in.
func (g *Graph) CurrentContext() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.current
}

// SetCurrentContext moves the application to a registered context and wakes
// any waiters. Setting an unknown context id is rejected with a warning.
func (g *Graph) SetCurrentContext(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.contexts[id]; !ok {
		g.logger.Warn("Refusing to set unknown current context", zap.String("context", id))
		return
	}
	if g.current == id {
		return
	}

	g.current = id
	g.signalLocked()
	g.logger.Debug("Current context changed", zap.String("context", id))
}

// signalLocked wakes all context-change waiters. Callers must hold g.mu.
func (g *Graph) signalLocked() {
	close(g.changed)
	g.changed = make(chan struct{})
}

// WaitForContextChange blocks until the current context equals expectedID,
// the timeout elapses, or ctx is cancelled. It returns true only when the
// expected context was reached. Timing out is a routine outcome, not an
// error: navigation controls do not always take effect.
func (g *Graph) WaitForContextChange(ctx context.Context, expectedID string, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		g.mu.RLock()
		if g.current == expectedID {
			g.mu.RUnlock()
			return true
		}
		changed := g.changed
		g.mu.RUnlock()

		select {
		case <-changed:
			// Re-check the predicate; the change may be to a different context.
		case <-deadline.C:
			return false
		case <-ctx.Done():
			return false
		}
	}
}

// Clear resets the graph to a single root context, discarding all other
// contexts, edges, and tool mappings. Intended for test isolation.
func (g *Graph) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.contexts = map[string]*schemas.NavigationContext{
		schemas.RootContextID: {
			ID:          schemas.RootContextID,
			DisplayName: "Global",
		},
	}
	g.edges = nil
	g.toolContexts = make(map[string]string)
	g.current = schemas.RootContextID
	g.signalLocked()
	g.logger.Debug("Graph cleared")
}
