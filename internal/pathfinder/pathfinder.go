// File: internal/pathfinder/pathfinder.go
package pathfinder

import (
	"math"
	"time"

	"github.com/xkilldash9x/wayfinder/api/schemas"
	"go.uber.org/zap"
)

// DefaultMaxDepth bounds path length in hops when the caller does not
// override it, defending against pathological or misconfigured graphs.
const DefaultMaxDepth = 10

// DefaultStepEstimate is the fixed per-hop navigation latency used for
// duration estimates. It is a simplification, not derived from measured
// load times.
const DefaultStepEstimate = 500 * time.Millisecond

// GraphView is the read-only slice of the context graph the finder needs.
type GraphView interface {
	HasContext(id string) bool
	Edges() []schemas.NavigationEdge
}

// Options tunes a single path computation.
type Options struct {
	// MaxDepth bounds the number of hops; zero means DefaultMaxDepth.
	MaxDepth int
	// AvoidContexts lists context ids whose edges are never taken.
	AvoidContexts []string
}

// Finder computes lowest-cost navigation paths over a context graph snapshot.
type Finder struct {
	logger       *zap.Logger
	stepEstimate time.Duration
}

// New creates a Finder. A non-positive stepEstimate falls back to the default.
func New(logger *zap.Logger, stepEstimate time.Duration) *Finder {
	if stepEstimate <= 0 {
		stepEstimate = DefaultStepEstimate
	}
	return &Finder{
		logger:       logger.Named("pathfinder"),
		stepEstimate: stepEstimate,
	}
}

// ComputePath returns the lowest-total-cost sequence of edges connecting from
// and to, or nil if none exists within the depth bound. Ties between
// equal-cost candidates resolve by edge registration order. A depth-limit
// exhaustion is indistinguishable from "no path" by design.
func (f *Finder) ComputePath(graph GraphView, from, to string, opts Options) *schemas.NavigationPath {
	if !graph.HasContext(from) || !graph.HasContext(to) {
		f.logger.Debug("Path endpoints not registered",
			zap.String("from", from), zap.String("to", to))
		return nil
	}

	if from == to {
		return &schemas.NavigationPath{From: from, To: to, Steps: []schemas.NavigationEdge{}}
	}

	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	avoid := make(map[string]bool, len(opts.AvoidContexts))
	for _, id := range opts.AvoidContexts {
		avoid[id] = true
	}

	edges := graph.Edges()

	// Outgoing adjacency in registration order.
	outgoing := make(map[string][]schemas.NavigationEdge)
	for _, e := range edges {
		outgoing[e.From] = append(outgoing[e.From], e)
	}

	dist := map[string]float64{from: 0}
	prev := make(map[string]schemas.NavigationEdge)
	visited := make(map[string]bool)
	// discovered holds contexts in first-discovery order, which follows edge
	// registration order. Scanning it instead of the dist map keeps selection
	// among equal distances deterministic across runs.
	discovered := []string{from}

	for {
		// Select the unvisited context with the smallest tentative distance.
		current := ""
		best := math.Inf(1)
		for _, id := range discovered {
			if d := dist[id]; !visited[id] && d < best {
				current = id
				best = d
			}
		}
		if current == "" {
			// Nothing reachable remains.
			return nil
		}
		if current == to {
			break
		}
		visited[current] = true

		// Bound expansion by the hop count of the best-known path here.
		if f.depthOf(prev, from, current) >= maxDepth {
			continue
		}

		for _, e := range outgoing[current] {
			if visited[e.To] || avoid[e.To] {
				continue
			}
			candidate := best + e.Cost
			existing, known := dist[e.To]
			if !known {
				discovered = append(discovered, e.To)
			}
			if !known || candidate < existing {
				dist[e.To] = candidate
				prev[e.To] = e
			}
		}
	}

	// Reconstruct by walking predecessor edges back to the origin.
	var reversed []schemas.NavigationEdge
	for at := to; at != from; {
		e, ok := prev[at]
		if !ok {
			return nil
		}
		reversed = append(reversed, e)
		at = e.From
	}

	steps := make([]schemas.NavigationEdge, 0, len(reversed))
	total := 0.0
	for i := len(reversed) - 1; i >= 0; i-- {
		steps = append(steps, reversed[i])
		total += reversed[i].Cost
	}

	return &schemas.NavigationPath{
		From:              from,
		To:                to,
		Steps:             steps,
		TotalCost:         total,
		EstimatedDuration: time.Duration(len(steps)) * f.stepEstimate,
	}
}

// depthOf counts hops from origin to id along the predecessor chain.
func (f *Finder) depthOf(prev map[string]schemas.NavigationEdge, origin, id string) int {
	depth := 0
	for at := id; at != origin; {
		e, ok := prev[at]
		if !ok {
			break
		}
		depth++
		at = e.From
	}
	return depth
}
