package poster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyLayout(t *testing.T) {
	size := Size{W: 1000, H: 1000}
	tests := []struct {
		name          string
		layout        Layout
		wantW, wantH  float64
		wantX, wantY  float64
		titleX, title float64
	}{
		{"center-main", LayoutCenterMain, 600, 400, 200, 300, 375, 100},
		{"side-by-side", LayoutSideBySide, 400, 266.6667, 50, 366.6667, 500, 400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore()
			other := s.AddImageLayer(testImage, 1)
			main := s.AddImageLayer(testImage, 1.5)
			s.UpdateLayer(main, Patch{MainProduct: ptr(true)})
			title := s.AddTextLayer()
			in := s.Layers()

			out := ApplyLayout(in, tt.layout, size)
			require.Len(t, out, 3)

			byID := map[string]Layer{}
			for _, l := range out {
				byID[l.ID] = l
			}
			m := byID[main]
			assert.InDelta(t, tt.wantW, m.Width, 0.01)
			assert.InDelta(t, tt.wantH, m.Height, 0.01)
			assert.InDelta(t, tt.wantX, m.X, 0.01)
			assert.InDelta(t, tt.wantY, m.Y, 0.01)

			tl := byID[title]
			assert.InDelta(t, tt.titleX, tl.X, 0.01)
			assert.InDelta(t, tt.title, tl.Y, 0.01)
			assert.Equal(t, 250.0, tl.Width)

			orig, _ := s.Layer(other)
			assert.Equal(t, orig, byID[other])
			assert.Equal(t, in, s.Layers(), "input is not modified")
		})
	}
}

func TestApplyLayoutFallbacks(t *testing.T) {
	size := Size{W: 1000, H: 1000}

	t.Run("first image is main", func(t *testing.T) {
		s := newTestStore()
		id := s.AddImageLayer(testImage, 1)
		s.ApplyLayout(LayoutCenterMain)
		l, _ := s.Layer(id)
		assert.Equal(t, 600.0, l.Width)
		assert.Equal(t, 600.0, l.Height)
	})

	t.Run("flagged text uses aspect fallback", func(t *testing.T) {
		in := []Layer{{ID: "t", Width: 100, Height: 40, MainProduct: true, Payload: &TextPayload{}}}
		out := ApplyLayout(in, LayoutSideBySide, size)
		assert.Equal(t, 400.0, out[0].Height)
		out = ApplyLayout(in, LayoutCenterMain, size)
		assert.Equal(t, 400.0, out[0].Height)
	})

	t.Run("freeform is identity", func(t *testing.T) {
		s := newTestStore()
		s.AddImageLayer(testImage, 1)
		s.AddTextLayer()
		in := s.Layers()
		assert.Equal(t, in, ApplyLayout(in, LayoutFreeform, size))
	})

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, ApplyLayout(nil, LayoutCenterMain, size))
	})
}

func TestParseLayout(t *testing.T) {
	l, err := ParseLayout("Center-Main")
	require.NoError(t, err)
	assert.Equal(t, LayoutCenterMain, l)

	l, err = ParseLayout("")
	require.NoError(t, err)
	assert.Equal(t, LayoutFreeform, l)

	_, err = ParseLayout("grid")
	assert.Error(t, err)
}
