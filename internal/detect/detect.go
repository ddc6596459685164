// File: internal/detect/detect.go
package detect

import (
	"strings"

	"github.com/xkilldash9x/wayfinder/api/schemas"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// ContextMarkerAttr is the attribute the embedding application may place on
// container elements to mark the navigation context they establish.
const ContextMarkerAttr = "data-nav-context"

// Strategy names reported in DetectedContext.
const (
	StrategyConvention = "convention"
	StrategyAmbient    = "ambient-scope"
	StrategyStructural = "structural-observation"
	StrategyFallback   = "global-fallback"
)

// Confidence scores per strategy. The location hint is explicit, so the
// convention strategy scores high; structural observation is an inference
// from markup and scores lower; the fallback barely qualifies.
const (
	confidenceConvention = 0.9
	confidenceAmbient    = 1.0
	confidenceStructural = 0.8
	confidenceFallback   = 0.3
)

// knownPathPrefixes are leading segments stripped from structural paths
// before deriving a context id.
var knownPathPrefixes = map[string]bool{
	"src":        true,
	"app":        true,
	"lib":        true,
	"components": true,
	"pages":      true,
	"views":      true,
}

// knownSegmentSuffixes are trailing decorations stripped from individual
// path segments.
var knownSegmentSuffixes = []string{
	".component", ".view", ".page", ".panel",
}

// ScopeProvider reports the ambient navigation scope established by an
// enclosing structural region, or "" when none is active. Wiring this up is
// the embedding application's responsibility; without it the ambient
// strategy yields nothing.
type ScopeProvider func() string

// ContextRegistry is the slice of the context graph the detector needs to
// auto-create contexts for dotted chains.
type ContextRegistry interface {
	RegisterContext(nc schemas.NavigationContext)
	HasContext(id string) bool
}

// LocationHints carries everything a caller knows about where a control
// lives. All fields are optional; absent hints degrade to later strategies.
type LocationHints struct {
	// Path is a hierarchical location descriptor such as a module or file
	// path, used by the convention strategy.
	Path string
	// Element is the control's rendered node, used by the structural
	// observation strategy to walk up for a context marker.
	Element *html.Node
}

// Detector assigns a context to a newly-registered control with zero
// required manual configuration, using a priority-ordered set of strategies.
// Callers are expected to register the returned context id as the tool's
// context.
type Detector struct {
	logger   *zap.Logger
	registry ContextRegistry
	scope    ScopeProvider
}

// New creates a detector. scope may be nil.
func New(logger *zap.Logger, registry ContextRegistry, scope ScopeProvider) *Detector {
	return &Detector{
		logger:   logger.Named("detect"),
		registry: registry,
		scope:    scope,
	}
}

// DetectToolContext tries each strategy in order and returns the first
// result. It never fails: when no strategy yields a context, the control is
// assigned to the root context with low confidence.
func (d *Detector) DetectToolContext(toolID string, hints LocationHints) schemas.DetectedContext {
	if result, ok := d.detectByConvention(hints.Path); ok {
		d.logger.Debug("Context detected from structural path",
			zap.String("tool", toolID), zap.String("context", result.ContextID))
		return result
	}

	if result, ok := d.detectByAmbientScope(); ok {
		d.logger.Debug("Context detected from ambient scope",
			zap.String("tool", toolID), zap.String("context", result.ContextID))
		return result
	}

	if result, ok := d.detectByStructure(hints.Element); ok {
		d.logger.Debug("Context detected from ancestor marker",
			zap.String("tool", toolID), zap.String("context", result.ContextID))
		return result
	}

	d.logger.Debug("Context auto-detection failed; assigning root context",
		zap.String("tool", toolID))
	return schemas.DetectedContext{
		ContextID:  schemas.RootContextID,
		Strategy:   StrategyFallback,
		Confidence: confidenceFallback,
		Reason:     "auto-detection failed",
	}
}

// detectByConvention derives a dotted context id from a structural path,
// auto-creating any missing intermediate contexts along the chain.
func (d *Detector) detectByConvention(path string) (schemas.DetectedContext, bool) {
	segments := normalizePath(path)
	if len(segments) == 0 {
		return schemas.DetectedContext{}, false
	}

	// Create the chain top-down so every context links to its parent.
	parentID := ""
	contextID := ""
	for _, segment := range segments {
		if contextID == "" {
			contextID = segment
		} else {
			contextID = contextID + "." + segment
		}
		if !d.registry.HasContext(contextID) {
			d.registry.RegisterContext(schemas.NavigationContext{
				ID:          contextID,
				DisplayName: segment,
				ParentID:    parentID,
			})
		}
		parentID = contextID
	}

	return schemas.DetectedContext{
		ContextID:  contextID,
		Strategy:   StrategyConvention,
		Confidence: confidenceConvention,
		Reason:     "derived from structural path " + path,
	}, true
}

// detectByAmbientScope uses the current navigation scope when the embedding
// application propagates one. A scope naming an unknown context is
// auto-created, same as the convention and structural strategies.
func (d *Detector) detectByAmbientScope() (schemas.DetectedContext, bool) {
	if d.scope == nil {
		return schemas.DetectedContext{}, false
	}
	scope := d.scope()
	if scope == "" {
		return schemas.DetectedContext{}, false
	}
	if !d.registry.HasContext(scope) {
		d.registry.RegisterContext(schemas.NavigationContext{
			ID:          scope,
			DisplayName: scope,
		})
	}
	return schemas.DetectedContext{
		ContextID:  scope,
		Strategy:   StrategyAmbient,
		Confidence: confidenceAmbient,
		Reason:     "ambient navigation scope",
	}, true
}

// detectByStructure walks upward from the control's element looking for the
// nearest ancestor carrying an explicit context marker.
func (d *Detector) detectByStructure(element *html.Node) (schemas.DetectedContext, bool) {
	for at := element; at != nil; at = at.Parent {
		if at.Type != html.ElementNode {
			continue
		}
		for _, attr := range at.Attr {
			if attr.Key == ContextMarkerAttr && attr.Val != "" {
				if !d.registry.HasContext(attr.Val) {
					d.registry.RegisterContext(schemas.NavigationContext{
						ID:          attr.Val,
						DisplayName: attr.Val,
					})
				}
				return schemas.DetectedContext{
					ContextID:  attr.Val,
					Strategy:   StrategyStructural,
					Confidence: confidenceStructural,
					Reason:     "ancestor context marker",
				}, true
			}
		}
	}
	return schemas.DetectedContext{}, false
}

// normalizePath strips known prefixes, the file extension, and per-segment
// suffixes, then lower-cases the remaining segments.
func normalizePath(path string) []string {
	path = strings.ReplaceAll(path, "\\", "/")
	raw := strings.Split(path, "/")

	var segments []string
	for i, segment := range raw {
		segment = strings.TrimSpace(strings.ToLower(segment))
		if segment == "" || segment == "." || segment == ".." {
			continue
		}
		if len(segments) == 0 && knownPathPrefixes[segment] {
			continue
		}
		// The final segment may carry a file extension and decorations.
		if i == len(raw)-1 {
			if dot := strings.LastIndex(segment, "."); dot > 0 {
				if ext := segment[dot:]; len(ext) <= 5 {
					segment = segment[:dot]
				}
			}
			for _, suffix := range knownSegmentSuffixes {
				segment = strings.TrimSuffix(segment, suffix)
			}
			if segment == "index" {
				continue
			}
		}
		if segment != "" {
			segments = append(segments, segment)
		}
	}
	return segments
}
