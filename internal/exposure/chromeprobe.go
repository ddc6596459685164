// File: internal/exposure/chromeprobe.go
package exposure

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/xkilldash9x/wayfinder/api/schemas"
)

// chromeObserveJS inspects the live element in one round trip. It reports the
// same facts the snapshot probe derives from attributes, plus a real
// obstruction check via elementFromPoint at the element's center.
const chromeObserveJS = `(() => {
	const el = document.querySelector(%q);
	if (!el) {
		return { attached: false };
	}
	const rect = el.getBoundingClientRect();
	const style = window.getComputedStyle(el);
	const hidden = el.hidden || style.display === 'none' || style.visibility === 'hidden';

	let visibleFraction = 0;
	if (rect.width > 0 && rect.height > 0 && !hidden) {
		const cx = rect.left + rect.width / 2;
		const cy = rect.top + rect.height / 2;
		const top = document.elementFromPoint(cx, cy);
		visibleFraction = top && (top === el || el.contains(top) || top.contains(el)) ? 1 : 0;
	}

	const name = (el.getAttribute('aria-label') || el.textContent || '').trim();
	return {
		attached: true,
		rect: { x: rect.x, y: rect.y, width: rect.width, height: rect.height },
		visibleFraction: visibleFraction,
		hidden: hidden,
		disabled: el.disabled === true || el.getAttribute('aria-disabled') === 'true',
		busy: el.getAttribute('aria-busy') === 'true',
		accessibleName: name.length > 0,
	};
})()`

// chromeObservation mirrors the JSON shape produced by chromeObserveJS.
type chromeObservation struct {
	Attached        bool         `json:"attached"`
	Rect            schemas.Rect `json:"rect"`
	VisibleFraction float64      `json:"visibleFraction"`
	Hidden          bool         `json:"hidden"`
	Disabled        bool         `json:"disabled"`
	Busy            bool         `json:"busy"`
	AccessibleName  bool         `json:"accessibleName"`
}

// ChromeProbe is an ObservableControl that samples a live browser tab. The
// context passed to Observe must be a chromedp tab context.
type ChromeProbe struct {
	toolID string
}

// NewChromeProbe creates a probe for the element carrying the data-tool-id
// marker in the live page.
func NewChromeProbe(toolID string) *ChromeProbe {
	return &ChromeProbe{toolID: toolID}
}

// Observe implements schemas.ObservableControl.
func (p *ChromeProbe) Observe(ctx context.Context) (schemas.Observation, error) {
	selector := fmt.Sprintf("[%s=%q]", ToolIDAttr, p.toolID)
	expr := fmt.Sprintf(chromeObserveJS, selector)

	var out chromeObservation
	err := chromedp.Run(ctx, chromedp.Evaluate(expr, &out,
		func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithReturnByValue(true)
		}))
	if err != nil {
		return schemas.Observation{}, fmt.Errorf("failed to observe element %q: %w", p.toolID, err)
	}

	return schemas.Observation{
		Attached:        out.Attached,
		Rect:            out.Rect,
		VisibleFraction: out.VisibleFraction,
		Hidden:          out.Hidden,
		Disabled:        out.Disabled,
		Busy:            out.Busy,
		AccessibleName:  out.AccessibleName,
	}, nil
}
