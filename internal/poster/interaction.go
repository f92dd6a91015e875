package poster

import "math"

// Gesture is the kind of drag started on a layer.
type Gesture int

const (
	GestureMove Gesture = iota
	GestureResize
)

func (g Gesture) String() string {
	if g == GestureResize {
		return "resize"
	}
	return "move"
}

// ParseGesture maps "move"/"resize" to a Gesture.
func ParseGesture(value string) (Gesture, bool) {
	switch value {
	case "move":
		return GestureMove, true
	case "resize":
		return GestureResize, true
	}
	return 0, false
}

// Phase is the state of a Controller.
type Phase int

const (
	Idle Phase = iota
	Moving
	Resizing
)

func (p Phase) String() string {
	switch p {
	case Moving:
		return "moving"
	case Resizing:
		return "resizing"
	}
	return "idle"
}

// Point is a pointer position in viewport coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Controller turns pointer movement into geometry changes for at most one
// layer at a time. It is driven by the same goroutine that owns the Store.
type Controller struct {
	store   *Store
	phase   Phase
	layerID string
	offset  Point
}

func NewController(store *Store) *Controller {
	return &Controller{store: store}
}

// State reports the current phase and the layer it targets.
func (c *Controller) State() (Phase, string) {
	return c.phase, c.layerID
}

// Begin starts a gesture on id, replacing any gesture in progress. Locked
// and unknown layers are rejected and leave the controller idle.
func (c *Controller) Begin(id string, g Gesture, p Point) bool {
	c.End()

	i := c.store.index(id)
	if i < 0 || c.store.layers[i].Locked {
		return false
	}

	l := c.store.layers[i]
	c.layerID = id
	c.offset = Point{}
	switch g {
	case GestureResize:
		c.phase = Resizing
	default:
		c.phase = Moving
		c.offset = Point{X: p.X - l.X, Y: p.Y - l.Y}
	}
	c.store.selected = id
	return true
}

// Move updates the active layer. It reports false when idle or when the
// layer disappeared mid-gesture, in which case the gesture is ended.
func (c *Controller) Move(p Point) bool {
	if c.phase == Idle {
		return false
	}
	i := c.store.index(c.layerID)
	if i < 0 {
		c.End()
		return false
	}

	l := &c.store.layers[i]
	switch c.phase {
	case Moving:
		l.X = p.X - c.offset.X
		l.Y = p.Y - c.offset.Y
	case Resizing:
		l.Width, l.Height = resizeTo(*l, p)
	}
	return true
}

// End returns to Idle. Calling it while idle does nothing.
func (c *Controller) End() {
	c.phase = Idle
	c.layerID = ""
	c.offset = Point{}
}

// Drag runs a complete gesture over points and always ends it.
func (c *Controller) Drag(id string, g Gesture, start Point, points []Point) bool {
	if !c.Begin(id, g, start) {
		return false
	}
	defer c.End()
	for _, p := range points {
		if !c.Move(p) {
			return false
		}
	}
	return true
}

// resizeTo anchors the resize at the top-left corner. Image layers keep
// their aspect ratio; when the derived height would fall under the floor the
// height is floored and the width follows the ratio.
func resizeTo(l Layer, p Point) (float64, float64) {
	if img, ok := l.Image(); ok && validAspect(img.AspectRatio) {
		return imageSize(p.X-l.X, img.AspectRatio)
	}
	return math.Max(MinSize, p.X-l.X), math.Max(MinSize, p.Y-l.Y)
}
