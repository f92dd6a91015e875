package poster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoveKeepsGrabOffset(t *testing.T) {
	s := newTestStore()
	id := s.AddImageLayer(testImage, 1)
	c := NewController(s)

	require.True(t, c.Begin(id, GestureMove, Point{X: 30, Y: 40}))
	phase, target := c.State()
	assert.Equal(t, Moving, phase)
	assert.Equal(t, id, target)

	require.True(t, c.Move(Point{X: -100, Y: 500}))
	l, _ := s.Layer(id)
	assert.Equal(t, -110.0, l.X)
	assert.Equal(t, 480.0, l.Y)

	c.End()
	c.End()
	phase, _ = c.State()
	assert.Equal(t, Idle, phase)
	assert.False(t, c.Move(Point{X: 0, Y: 0}))
}

func TestResizeImageKeepsAspect(t *testing.T) {
	s := newTestStore()
	id := s.AddImageLayer(testImage, 1.5)
	c := NewController(s)

	require.True(t, c.Begin(id, GestureResize, Point{}))
	for _, x := range []float64{320, 77.7, 500} {
		require.True(t, c.Move(Point{X: x, Y: 0}))
		l, _ := s.Layer(id)
		assert.InDelta(t, l.Width/1.5, l.Height, 1e-9)
		assert.InDelta(t, x-20, l.Width, 1e-9)
	}
}

func TestResizeNeverBelowFloor(t *testing.T) {
	tests := []struct {
		name   string
		aspect float64
		text   bool
	}{
		{name: "wide image", aspect: 4},
		{name: "tall image", aspect: 0.25},
		{name: "square image", aspect: 1},
		{name: "text", text: true},
	}
	pointers := []Point{{X: -500, Y: -500}, {X: 0, Y: 0}, {X: 21, Y: 21}, {X: 25, Y: 1000}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore()
			var id string
			if tt.text {
				id = s.AddTextLayer()
			} else {
				id = s.AddImageLayer(testImage, tt.aspect)
			}
			c := NewController(s)
			require.True(t, c.Begin(id, GestureResize, Point{}))
			for _, p := range pointers {
				c.Move(p)
				l, _ := s.Layer(id)
				assert.GreaterOrEqual(t, l.Width, MinSize)
				assert.GreaterOrEqual(t, l.Height, MinSize)
				if !tt.text {
					assert.InDelta(t, l.Width/tt.aspect, l.Height, 1e-9)
				}
			}
		})
	}
}

func TestResizeTextIsIndependent(t *testing.T) {
	s := newTestStore()
	id := s.AddTextLayer()
	c := NewController(s)

	require.True(t, c.Drag(id, GestureResize, Point{}, []Point{{X: 350, Y: 90}}))
	l, _ := s.Layer(id)
	assert.Equal(t, 300.0, l.Width)
	assert.Equal(t, 40.0, l.Height)
}

func TestLockedLayerRejectsGestures(t *testing.T) {
	for _, g := range []Gesture{GestureMove, GestureResize} {
		t.Run(g.String(), func(t *testing.T) {
			s := newTestStore()
			id := s.AddImageLayer(testImage, 1)
			s.SetLocked(id, true)
			before, _ := s.Layer(id)

			c := NewController(s)
			assert.False(t, c.Begin(id, g, Point{X: 25, Y: 25}))
			assert.False(t, c.Move(Point{X: 400, Y: 400}))
			assert.False(t, c.Drag(id, g, Point{}, []Point{{X: 400, Y: 400}}))

			after, _ := s.Layer(id)
			assert.Equal(t, before, after)
			phase, _ := c.State()
			assert.Equal(t, Idle, phase)
		})
	}
}

func TestLockedLayerStaysEditable(t *testing.T) {
	s := newTestStore()
	id := s.AddImageLayer(testImage, 1)
	s.SetLocked(id, true)
	require.True(t, s.UpdateLayer(id, Patch{X: ptr(300.0)}))
	l, _ := s.Layer(id)
	assert.Equal(t, 300.0, l.X)
}

func TestBeginReplacesActiveGesture(t *testing.T) {
	s := newTestStore()
	a := s.AddImageLayer(testImage, 1)
	b := s.AddTextLayer()
	c := NewController(s)

	require.True(t, c.Begin(a, GestureMove, Point{X: 20, Y: 20}))
	require.True(t, c.Begin(b, GestureResize, Point{}))
	phase, target := c.State()
	assert.Equal(t, Resizing, phase)
	assert.Equal(t, b, target)
	assert.Equal(t, b, s.SelectedID())

	c.Move(Point{X: 900, Y: 900})
	la, _ := s.Layer(a)
	assert.Equal(t, 20.0, la.X)
}

func TestDeletedLayerEndsGesture(t *testing.T) {
	s := newTestStore()
	id := s.AddImageLayer(testImage, 1)
	c := NewController(s)

	require.True(t, c.Begin(id, GestureMove, Point{}))
	s.DeleteLayer(id)
	assert.False(t, c.Move(Point{X: 1, Y: 1}))
	phase, _ := c.State()
	assert.Equal(t, Idle, phase)
}

func TestDragAlwaysEnds(t *testing.T) {
	s := newTestStore()
	id := s.AddImageLayer(testImage, 1)
	c := NewController(s)

	require.True(t, c.Drag(id, GestureMove, Point{X: 20, Y: 20}, []Point{{X: 40, Y: 40}, {X: 60, Y: 80}}))
	phase, _ := c.State()
	assert.Equal(t, Idle, phase)
	l, _ := s.Layer(id)
	assert.Equal(t, 60.0, l.X)
	assert.Equal(t, 80.0, l.Y)
}
