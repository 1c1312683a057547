package model

// Rect is an axis-aligned rectangle anchored at its lower-left corner.
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// RectAround returns the square of side size centred on (x, y).
func RectAround(x, y, size float64) Rect {
	return Rect{X: x - size/2, Y: y - size/2, Width: size, Height: size}
}

func (r Rect) MaxX() float64 { return r.X + r.Width }
func (r Rect) MaxY() float64 { return r.Y + r.Height }

// CenterX returns the horizontal centre.
func (r Rect) CenterX() float64 { return r.X + r.Width/2 }

// CenterY returns the vertical centre.
func (r Rect) CenterY() float64 { return r.Y + r.Height/2 }

// Intersects reports whether the interiors of r and o overlap.
func (r Rect) Intersects(o Rect) bool {
	return r.X < o.MaxX() && o.X < r.MaxX() && r.Y < o.MaxY() && o.Y < r.MaxY()
}

// Contains reports whether the point lies inside r or on its boundary.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.MaxX() && y >= r.Y && y <= r.MaxY()
}

// Arc is a pie sector swept clockwise from Start by Extent radians.
// Extent is never negative.
type Arc struct {
	CenterX float64
	CenterY float64
	Radius  float64
	Start   float64
	Extent  float64
}
