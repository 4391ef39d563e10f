// Package layout holds the geometry behind the desktop-style window chrome:
// keeping windows inside the viewport, stacking order and context menu placement.
package layout

import "sort"

const (
	DefaultMinWidth  = 240
	DefaultMinHeight = 160
	CascadeStep      = 32
	MaxZ             = 10000
)

type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type Size struct {
	W int `json:"w"`
	H int `json:"h"`
}

type Rect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Viewport is the visible area the client reports. A zero viewport disables clamping.
type Viewport struct {
	W int `json:"w"`
	H int `json:"h"`
}

func (v Viewport) Empty() bool {
	return v.W <= 0 || v.H <= 0
}

func (r Rect) Within(v Viewport) bool {
	return r.X >= 0 && r.Y >= 0 && r.X+r.W <= v.W && r.Y+r.H <= v.H
}

// ClampWindow sizes r to at least minSize and at most the viewport, then moves
// it so that it lies entirely inside the viewport.
func ClampWindow(r Rect, v Viewport, minSize Size) Rect {
	if minSize.W <= 0 {
		minSize.W = DefaultMinWidth
	}
	if minSize.H <= 0 {
		minSize.H = DefaultMinHeight
	}
	r.W = max(r.W, minSize.W)
	r.H = max(r.H, minSize.H)
	if v.Empty() {
		r.X = max(r.X, 0)
		r.Y = max(r.Y, 0)
		return r
	}
	// a viewport smaller than the minimum size wins over the minimum
	r.W = min(r.W, v.W)
	r.H = min(r.H, v.H)
	r.X = clamp(r.X, 0, v.W-r.W)
	r.Y = clamp(r.Y, 0, v.H-r.H)
	return r
}

// Cascade returns the default rect for a newly opened window: one step down and
// right of the last opened window, back at the origin when it would overflow.
func Cascade(existing []Rect, v Viewport, size Size) Rect {
	next := Rect{X: CascadeStep, Y: CascadeStep, W: size.W, H: size.H}
	if len(existing) > 0 {
		last := existing[len(existing)-1]
		next.X = last.X + CascadeStep
		next.Y = last.Y + CascadeStep
	}
	if !v.Empty() && (next.X+next.W > v.W || next.Y+next.H > v.H) {
		next.X = CascadeStep
		next.Y = CascadeStep
	}
	return ClampWindow(next, v, Size{})
}

// BringToFront returns new z values keyed by window key with key on top.
// Values are renumbered 1..n, preserving order, once the top would pass MaxZ.
func BringToFront(z map[string]int, key string) map[string]int {
	out := make(map[string]int, len(z)+1)
	top := 0
	for k, v := range z {
		out[k] = v
		if k != key && v > top {
			top = v
		}
	}
	if cur, ok := z[key]; ok && cur > top {
		return out
	}
	out[key] = top + 1
	if out[key] <= MaxZ {
		return out
	}
	return Normalize(out)
}

// Normalize renumbers z values 1..n keeping their relative order. Ties break by key.
func Normalize(z map[string]int) map[string]int {
	keys := make([]string, 0, len(z))
	for k := range z {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if z[keys[i]] == z[keys[j]] {
			return keys[i] < keys[j]
		}
		return z[keys[i]] < z[keys[j]]
	})
	out := make(map[string]int, len(keys))
	for i, k := range keys {
		out[k] = i + 1
	}
	return out
}

// PlaceMenu positions a context menu of the given size opened at p. The menu
// flips to the left of or above the cursor when it would overflow, and is kept
// at least margin pixels from every viewport edge.
func PlaceMenu(p Point, menu Size, v Viewport, margin int) Point {
	if margin < 0 {
		margin = 0
	}
	out := p
	if v.Empty() {
		return out
	}
	if out.X+menu.W > v.W-margin {
		out.X = p.X - menu.W
	}
	if out.Y+menu.H > v.H-margin {
		out.Y = p.Y - menu.H
	}
	out.X = clamp(out.X, margin, max(margin, v.W-margin-menu.W))
	out.Y = clamp(out.Y, margin, max(margin, v.H-margin-menu.H))
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
