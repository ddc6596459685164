// File: internal/exposure/htmlprobe.go
package exposure

import (
	"context"
	"strconv"
	"strings"

	"github.com/xkilldash9x/wayfinder/api/schemas"
	"golang.org/x/net/html"
)

// ToolIDAttr is the stable identifying marker the embedding application
// places on a control's rendered element.
const ToolIDAttr = "data-tool-id"

// SnapshotFunc returns the current parsed render tree, or nil when nothing is
// rendered. The embedding application swaps snapshots as the UI changes.
type SnapshotFunc func() *html.Node

// HTMLProbe is an ObservableControl backed by parsed HTML snapshots. It reads
// the same attributes a browser would honor: hidden, disabled, aria-disabled,
// aria-busy, plus width/height for extent when present.
type HTMLProbe struct {
	toolID   string
	snapshot SnapshotFunc
}

// NewHTMLProbe creates a probe that locates its control by the data-tool-id
// marker in each snapshot.
func NewHTMLProbe(toolID string, snapshot SnapshotFunc) *HTMLProbe {
	return &HTMLProbe{toolID: toolID, snapshot: snapshot}
}

// Observe implements schemas.ObservableControl.
func (p *HTMLProbe) Observe(ctx context.Context) (schemas.Observation, error) {
	if err := ctx.Err(); err != nil {
		return schemas.Observation{}, err
	}

	root := p.snapshot()
	if root == nil {
		return schemas.Observation{}, nil
	}

	node := findByToolID(root, p.toolID)
	if node == nil {
		return schemas.Observation{}, nil
	}

	attrs := attrMap(node)
	obs := schemas.Observation{
		Attached:        true,
		Rect:            extentOf(attrs),
		VisibleFraction: 1.0,
		Hidden:          isHidden(node, attrs),
		Disabled:        attrs["disabled"] != "" || attrs["aria-disabled"] == "true",
		Busy:            attrs["aria-busy"] == "true",
		AccessibleName:  hasAccessibleName(node, attrs),
	}
	return obs, nil
}

// findByToolID walks the tree depth-first for the element carrying the marker.
func findByToolID(node *html.Node, toolID string) *html.Node {
	if node.Type == html.ElementNode {
		for _, attr := range node.Attr {
			if attr.Key == ToolIDAttr && attr.Val == toolID {
				return node
			}
		}
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if found := findByToolID(child, toolID); found != nil {
			return found
		}
	}
	return nil
}

func attrMap(node *html.Node) map[string]string {
	attrs := make(map[string]string, len(node.Attr))
	for _, attr := range node.Attr {
		// An attribute present without a value (bare "disabled") still counts.
		val := attr.Val
		if val == "" {
			val = attr.Key
		}
		attrs[attr.Key] = val
	}
	return attrs
}

// extentOf derives a bounding rect from width/height attributes. Snapshots
// carry no layout, so elements without explicit dimensions are assumed to
// occupy a minimal extent.
func extentOf(attrs map[string]string) schemas.Rect {
	rect := schemas.Rect{Width: 1, Height: 1}
	if w, err := strconv.ParseFloat(attrs["width"], 64); err == nil {
		rect.Width = w
	}
	if h, err := strconv.ParseFloat(attrs["height"], 64); err == nil {
		rect.Height = h
	}
	return rect
}

// isHidden honors the hidden attribute, type="hidden" inputs, and inline
// display:none styling, on the element or any ancestor.
func isHidden(node *html.Node, attrs map[string]string) bool {
	if _, ok := attrs["hidden"]; ok {
		return true
	}
	if strings.EqualFold(node.Data, "input") && attrs["type"] == "hidden" {
		return true
	}
	for at := node; at != nil; at = at.Parent {
		if at.Type != html.ElementNode {
			continue
		}
		for _, attr := range at.Attr {
			if attr.Key == "style" && strings.Contains(strings.ReplaceAll(attr.Val, " ", ""), "display:none") {
				return true
			}
			if attr.Key == "hidden" && at != node {
				return true
			}
		}
	}
	return false
}

// hasAccessibleName checks for an aria-label or non-empty text content.
func hasAccessibleName(node *html.Node, attrs map[string]string) bool {
	if strings.TrimSpace(attrs["aria-label"]) != "" {
		return true
	}
	return strings.TrimSpace(textContent(node)) != ""
}

func textContent(node *html.Node) string {
	if node.Type == html.TextNode {
		return node.Data
	}
	var sb strings.Builder
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		sb.WriteString(textContent(child))
	}
	return sb.String()
}
