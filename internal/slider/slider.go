// Package slider is the headless before/after comparison control. A renderer
// feeds it pointer events and reads back the split position.
package slider

import (
	"math"
	"sync"
	"time"
)

const (
	InitialPosition  = 50.0
	ClickMaxDuration = 200 * time.Millisecond
	ClickMaxDistance = 10.0
)

type Point struct {
	X, Y float64
}

// Rect is the container's horizontal extent in pixels.
type Rect struct {
	Left  float64
	Width float64
}

// Measurer reports the current container bounds.
type Measurer interface {
	Measure() Rect
}

type MeasureFunc func() Rect

func (f MeasureFunc) Measure() Rect { return f() }

// Window is the global event source the widget listens on while mounted.
type Window interface {
	OnPointerUp(fn func()) (detach func())
	OnResize(fn func()) (detach func())
}

type Option func(*Widget)

// WithClick sets the callback fired for a tap or short click.
func WithClick(fn func()) Option {
	return func(w *Widget) { w.onClick = fn }
}

func WithClock(now func() time.Time) Option {
	return func(w *Widget) { w.now = now }
}

type Widget struct {
	mu sync.Mutex

	measurer Measurer
	onClick  func()
	now      func() time.Time

	mounted  bool
	detach   []func()
	bounds   Rect
	position float64
	dragging bool

	start    Point
	last     Point
	startAt  time.Time
	startPos float64
}

func New(m Measurer, opts ...Option) *Widget {
	w := &Widget{
		measurer: m,
		now:      time.Now,
		position: InitialPosition,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Mount resets the view state, measures the container and attaches the
// global listeners.
func (w *Widget) Mount(win Window) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.unmountLocked()
	w.mounted = true
	w.position = InitialPosition
	w.dragging = false
	w.bounds = w.measurer.Measure()

	if win != nil {
		w.detach = append(w.detach,
			win.OnPointerUp(w.GlobalPointerUp),
			win.OnResize(w.Resized),
		)
	}
}

func (w *Widget) Unmount() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.unmountLocked()
}

func (w *Widget) unmountLocked() {
	for _, d := range w.detach {
		d()
	}
	w.detach = nil
	w.mounted = false
	w.dragging = false
}

func (w *Widget) PointerDown(p Point) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.mounted {
		return
	}
	// The page may have scrolled since the last measurement.
	w.bounds = w.measurer.Measure()
	w.dragging = true
	w.start = p
	w.last = p
	w.startAt = w.now()
	w.startPos = w.position
}

func (w *Widget) PointerMove(p Point) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.dragging {
		return
	}
	w.last = p
	if w.bounds.Width <= 0 {
		return
	}
	x := math.Max(0, math.Min(p.X-w.bounds.Left, w.bounds.Width))
	w.position = x / w.bounds.Width * 100
}

// PointerUp ends a drag at p. A short, nearly stationary press counts as a
// click: the split goes back to where it was and the click callback fires.
func (w *Widget) PointerUp(p Point) {
	w.release(p)
}

// TouchEnd carries no coordinates, so the last known touch point is used.
func (w *Widget) TouchEnd() {
	w.mu.Lock()
	last := w.last
	w.mu.Unlock()
	w.release(last)
}

func (w *Widget) release(p Point) {
	w.mu.Lock()
	if !w.dragging {
		w.mu.Unlock()
		return
	}
	w.dragging = false

	click := w.now().Sub(w.startAt) < ClickMaxDuration &&
		math.Hypot(p.X-w.start.X, p.Y-w.start.Y) < ClickMaxDistance
	if click {
		w.position = w.startPos
	}
	onClick := w.onClick
	w.mu.Unlock()

	if click && onClick != nil {
		onClick()
	}
}

// GlobalPointerUp stops a drag released outside the widget. It never counts
// as a click.
func (w *Widget) GlobalPointerUp() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.dragging = false
}

// ImageLoaded re-measures the container once an image has its final size.
func (w *Widget) ImageLoaded() {
	w.remeasure()
}

func (w *Widget) Resized() {
	w.remeasure()
}

func (w *Widget) remeasure() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.mounted {
		w.bounds = w.measurer.Measure()
	}
}

// Position is the split in percent of the container width.
func (w *Widget) Position() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.position
}

func (w *Widget) Dragging() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dragging
}

// ContainerWidth is the last measured width in pixels.
func (w *Widget) ContainerWidth() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.bounds.Width
}

// BeforeLayerWidth is the pixel width of the clipped "before" image.
func (w *Widget) BeforeLayerWidth() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.bounds.Width * w.position / 100
}
