package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClampWindowKeepsRectInsideViewport(t *testing.T) {
	vp := Viewport{W: 1280, H: 720}
	cases := []struct {
		name string
		in   Rect
	}{
		{"already inside", Rect{X: 100, Y: 100, W: 400, H: 300}},
		{"dragged off right", Rect{X: 1200, Y: 100, W: 400, H: 300}},
		{"dragged off bottom", Rect{X: 10, Y: 700, W: 400, H: 300}},
		{"negative origin", Rect{X: -50, Y: -80, W: 400, H: 300}},
		{"larger than viewport", Rect{X: 10, Y: 10, W: 5000, H: 5000}},
		{"below minimum", Rect{X: 10, Y: 10, W: 20, H: 20}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := ClampWindow(tc.in, vp, Size{})
			assert.True(t, out.Within(vp), "rect %+v escaped viewport", out)
			assert.GreaterOrEqual(t, out.W, DefaultMinWidth)
			assert.GreaterOrEqual(t, out.H, DefaultMinHeight)
		})
	}
}

func TestClampWindowLeavesInsideRectUntouched(t *testing.T) {
	in := Rect{X: 100, Y: 50, W: 400, H: 300}
	assert.Equal(t, in, ClampWindow(in, Viewport{W: 1280, H: 720}, Size{}))
}

func TestClampWindowTinyViewport(t *testing.T) {
	vp := Viewport{W: 200, H: 100}
	out := ClampWindow(Rect{X: 50, Y: 50, W: 400, H: 300}, vp, Size{})
	assert.Equal(t, Rect{X: 0, Y: 0, W: 200, H: 100}, out)
}

func TestClampWindowWithoutViewport(t *testing.T) {
	out := ClampWindow(Rect{X: -10, Y: 20, W: 900, H: 10}, Viewport{}, Size{W: 300, H: 200})
	assert.Equal(t, Rect{X: 0, Y: 20, W: 900, H: 200}, out)
}

func TestCascadeWrapsToOrigin(t *testing.T) {
	vp := Viewport{W: 800, H: 600}
	size := Size{W: 400, H: 300}

	first := Cascade(nil, vp, size)
	assert.Equal(t, Rect{X: CascadeStep, Y: CascadeStep, W: 400, H: 300}, first)

	second := Cascade([]Rect{first}, vp, size)
	assert.Equal(t, first.X+CascadeStep, second.X)
	assert.Equal(t, first.Y+CascadeStep, second.Y)

	far := Rect{X: 380, Y: 280, W: 400, H: 300}
	wrapped := Cascade([]Rect{far}, vp, size)
	assert.Equal(t, CascadeStep, wrapped.X)
	assert.Equal(t, CascadeStep, wrapped.Y)
}

func TestBringToFront(t *testing.T) {
	z := map[string]int{"chat": 1, "feed": 2, "settings": 3}

	out := BringToFront(z, "chat")
	assert.Equal(t, 4, out["chat"])
	assert.Equal(t, 3, out["settings"])

	again := BringToFront(out, "chat")
	assert.Equal(t, out, again, "top window should keep its z")

	opened := BringToFront(z, "profile")
	assert.Equal(t, 4, opened["profile"])
}

func TestBringToFrontRenumbersPastMaxZ(t *testing.T) {
	z := map[string]int{"chat": MaxZ - 1, "feed": MaxZ, "settings": 5}
	out := BringToFront(z, "settings")
	require.Len(t, out, 3)
	assert.Equal(t, 1, out["chat"])
	assert.Equal(t, 2, out["feed"])
	assert.Equal(t, 3, out["settings"])
}

func TestPlaceMenu(t *testing.T) {
	vp := Viewport{W: 1000, H: 800}
	menu := Size{W: 200, H: 150}

	assert.Equal(t, Point{X: 100, Y: 100}, PlaceMenu(Point{X: 100, Y: 100}, menu, vp, 8))

	flippedX := PlaceMenu(Point{X: 950, Y: 100}, menu, vp, 8)
	assert.Equal(t, 750, flippedX.X)
	assert.Equal(t, 100, flippedX.Y)

	flippedY := PlaceMenu(Point{X: 100, Y: 780}, menu, vp, 8)
	assert.Equal(t, 630, flippedY.Y)

	corner := PlaceMenu(Point{X: 150, Y: 100}, Size{W: 400, H: 150}, Viewport{W: 420, H: 800}, 8)
	assert.Equal(t, 8, corner.X, "menu wider than the space on both sides clamps to the margin")
}

func TestPlaceMenuStaysOnScreen(t *testing.T) {
	vp := Viewport{W: 640, H: 480}
	menu := Size{W: 180, H: 220}
	for x := 0; x <= vp.W; x += 40 {
		for y := 0; y <= vp.H; y += 40 {
			p := PlaceMenu(Point{X: x, Y: y}, menu, vp, 4)
			r := Rect{X: p.X, Y: p.Y, W: menu.W, H: menu.H}
			require.True(t, r.Within(vp), "menu at %d,%d placed off-screen: %+v", x, y, r)
		}
	}
}
