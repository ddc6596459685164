// File: internal/loader/loader.go
package loader

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/xkilldash9x/wayfinder/api/schemas"
	"github.com/xkilldash9x/wayfinder/internal/contextgraph"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ToolBinding maps a control to the context it belongs to.
type ToolBinding struct {
	ToolID       string `json:"tool_id"`
	ContextID    string `json:"context_id"`
	LocationHint string `json:"location_hint,omitempty"`
}

// GraphDefinition is the on-disk description of a context graph. Contexts
// must be listed parents-before-children; registration order is preserved.
type GraphDefinition struct {
	Contexts       []schemas.NavigationContext `json:"contexts"`
	Edges          []schemas.NavigationEdge    `json:"edges"`
	Tools          []ToolBinding               `json:"tools"`
	CurrentContext string                      `json:"current_context,omitempty"`
}

// ObservationStep scripts one exposure observation at a point in time.
type ObservationStep struct {
	AtMs        int                 `json:"at_ms"`
	ToolID      string              `json:"tool_id"`
	Observation ObservationSnapshot `json:"observation"`
}

// ObservationSnapshot mirrors schemas.Observation with JSON tags.
type ObservationSnapshot struct {
	Attached        bool         `json:"attached"`
	Rect            schemas.Rect `json:"rect"`
	VisibleFraction float64      `json:"visible_fraction"`
	Hidden          bool         `json:"hidden"`
	Disabled        bool         `json:"disabled"`
	Busy            bool         `json:"busy"`
	AccessibleName  bool         `json:"accessible_name"`
}

// ToObservation converts the snapshot to the schema type.
func (s ObservationSnapshot) ToObservation() schemas.Observation {
	return schemas.Observation{
		Attached:        s.Attached,
		Rect:            s.Rect,
		VisibleFraction: s.VisibleFraction,
		Hidden:          s.Hidden,
		Disabled:        s.Disabled,
		Busy:            s.Busy,
		AccessibleName:  s.AccessibleName,
	}
}

// Scenario is a graph plus a scripted timeline of observations, used by the
// simulate command to exercise the navigator without a browser.
type Scenario struct {
	Graph    GraphDefinition   `json:"graph"`
	Target   string            `json:"target"`
	Timeline []ObservationStep `json:"timeline"`
}

// LoadGraph reads and decodes a graph definition file.
func LoadGraph(path string) (*GraphDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read graph definition: %w", err)
	}
	var def GraphDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to decode graph definition: %w", err)
	}
	return &def, nil
}

// LoadScenario reads and decodes a simulation scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}
	var sc Scenario
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("failed to decode scenario: %w", err)
	}
	if sc.Target == "" {
		return nil, fmt.Errorf("scenario has no target tool")
	}
	return &sc, nil
}

// Apply registers the definition's contexts, edges, and tool bindings on the
// graph, then moves it to the declared current context when one is set.
func (d *GraphDefinition) Apply(g *contextgraph.Graph) {
	for _, nc := range d.Contexts {
		g.RegisterContext(nc)
	}
	for _, e := range d.Edges {
		g.RegisterEdge(e)
	}
	for _, t := range d.Tools {
		g.RegisterTool(t.ToolID, t.ContextID)
	}
	if d.CurrentContext != "" {
		g.SetCurrentContext(d.CurrentContext)
	}
}
