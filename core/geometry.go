package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/signalsfoundry/robot-arena/model"
)

// Arena is the rectangular battlefield, anchored at the origin.
type Arena struct {
	Width  float64
	Height float64
}

// compassVec returns the unit vector for a compass heading (0 = +Y, clockwise).
func compassVec(heading float64) mgl64.Vec2 {
	return mgl64.Vec2{math.Sin(heading), math.Cos(heading)}
}

// compassAngle returns the compass bearing of d.
func compassAngle(d mgl64.Vec2) float64 {
	return math.Atan2(d.X(), d.Y())
}

// segmentIntersectsRect clips the segment p→q against r (Liang-Barsky).
func segmentIntersectsRect(p, q mgl64.Vec2, r model.Rect) bool {
	d := q.Sub(p)
	t0, t1 := 0.0, 1.0
	edges := [4][2]float64{
		{-d.X(), p.X() - r.X},
		{d.X(), r.MaxX() - p.X()},
		{-d.Y(), p.Y() - r.Y},
		{d.Y(), r.MaxY() - p.Y()},
	}
	for _, e := range edges {
		pe, qe := e[0], e[1]
		if pe == 0 {
			if qe < 0 {
				return false
			}
			continue
		}
		t := qe / pe
		if pe < 0 {
			if t > t1 {
				return false
			}
			if t > t0 {
				t0 = t
			}
		} else {
			if t < t0 {
				return false
			}
			if t < t1 {
				t1 = t
			}
		}
	}
	return t0 <= t1
}

// arcContainsAngle reports whether the compass angle lies in the sweep of a.
func arcContainsAngle(a model.Arc, angle float64) bool {
	return NormalAbsoluteAngle(angle-a.Start) <= a.Extent+nearDelta
}

// arcContainsPoint reports whether p lies inside the pie sector.
func arcContainsPoint(a model.Arc, p mgl64.Vec2) bool {
	d := p.Sub(mgl64.Vec2{a.CenterX, a.CenterY})
	dist := d.Len()
	if dist > a.Radius {
		return false
	}
	if dist == 0 {
		return true
	}
	return arcContainsAngle(a, compassAngle(d))
}

// ArcIntersectsRect reports whether the pie sector a overlaps r. A sector
// overlaps a rectangle when the rectangle holds its centre, a corner lies in
// the sector, a bounding radius crosses the rectangle, or the curved edge
// crosses one of the rectangle's sides.
func ArcIntersectsRect(a model.Arc, r model.Rect) bool {
	center := mgl64.Vec2{a.CenterX, a.CenterY}
	if r.Contains(center.X(), center.Y()) {
		return true
	}

	corners := rectCorners(r)
	for _, c := range corners {
		if arcContainsPoint(a, c) {
			return true
		}
	}

	start := center.Add(compassVec(a.Start).Mul(a.Radius))
	end := center.Add(compassVec(a.Start + a.Extent).Mul(a.Radius))
	if segmentIntersectsRect(center, start, r) || segmentIntersectsRect(center, end, r) {
		return true
	}

	for i := range corners {
		p, q := corners[i], corners[(i+1)%len(corners)]
		for _, hit := range segmentCircleHits(p, q, center, a.Radius) {
			if arcContainsAngle(a, compassAngle(hit.Sub(center))) {
				return true
			}
		}
	}
	return false
}

func rectCorners(r model.Rect) [4]mgl64.Vec2 {
	return [4]mgl64.Vec2{
		{r.X, r.Y},
		{r.MaxX(), r.Y},
		{r.MaxX(), r.MaxY()},
		{r.X, r.MaxY()},
	}
}

// segmentCircleHits returns the points where segment p→q crosses the circle.
func segmentCircleHits(p, q, center mgl64.Vec2, radius float64) []mgl64.Vec2 {
	d := q.Sub(p)
	f := p.Sub(center)
	a := d.Dot(d)
	if a == 0 {
		return nil
	}
	b := 2 * f.Dot(d)
	c := f.Dot(f) - radius*radius
	disc := b*b - 4*a*c
	if disc < 0 {
		return nil
	}
	root := math.Sqrt(disc)
	var hits []mgl64.Vec2
	for _, t := range [2]float64{(-b - root) / (2 * a), (-b + root) / (2 * a)} {
		if t >= 0 && t <= 1 {
			hits = append(hits, p.Add(d.Mul(t)))
		}
	}
	return hits
}
