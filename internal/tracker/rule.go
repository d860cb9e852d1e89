// Package tracker decides which heading of the child document is active for
// the current scroll position and reports transitions.
package tracker

import (
	"math"

	"go-live-docs/internal/contracts"
)

// Layout is a snapshot of the geometry the rule works on. All values are CSS
// pixels. FrameTop is the document-relative top of the frame inside the outer
// page, zero when the content is not nested. Heading tops are relative to the
// frame's own document.
type Layout struct {
	ScrollY        float64
	ViewportHeight float64
	DocumentHeight float64
	FrameTop       float64
	Headings       []contracts.HeadingOffset
}

// Rule holds the tunables of heading selection.
type Rule struct {
	// SweetSpot is the preferred distance of the active heading from the
	// viewport top.
	SweetSpot float64
	// IdealTop and IdealBottom bound the zone that short-circuits the scan.
	IdealTop    float64
	IdealBottom float64
	// LowerBound admits headings scrolled past the top by at most this much.
	LowerBound float64
	// BottomTolerance is how close to the end of the document counts as the end.
	BottomTolerance float64
}

// DefaultRule returns the standard tunables.
func DefaultRule() Rule {
	return Rule{
		SweetSpot:       100,
		IdealTop:        0,
		IdealBottom:     150,
		LowerBound:      -200,
		BottomTolerance: 50,
	}
}

// Select returns the id of the heading that should be active, or false when
// the layout gives no answer and the previous choice should stand.
func (r Rule) Select(l Layout) (string, bool) {
	if len(l.Headings) == 0 {
		return "", false
	}

	if l.ScrollY+l.ViewportHeight >= l.DocumentHeight-r.BottomTolerance {
		return l.Headings[len(l.Headings)-1].ID, true
	}

	best := -1
	bestDistance := math.Inf(1)
	for i, h := range l.Headings {
		pos := l.position(h)
		if pos < r.LowerBound || pos > l.ViewportHeight {
			continue
		}
		if pos >= r.IdealTop && pos <= r.IdealBottom {
			return h.ID, true
		}
		if d := math.Abs(pos - r.SweetSpot); d < bestDistance {
			best, bestDistance = i, d
		}
	}
	if best >= 0 {
		return l.Headings[best].ID, true
	}

	for _, h := range l.Headings {
		if pos := l.position(h); pos >= 0 && pos <= l.ViewportHeight {
			return h.ID, true
		}
	}
	return "", false
}

// position is the heading's offset from the top of the outer viewport.
func (l Layout) position(h contracts.HeadingOffset) float64 {
	return l.FrameTop + h.Top - l.ScrollY
}
