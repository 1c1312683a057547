package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/signalsfoundry/robot-arena/model"
)

// scanArc builds the sector swept by the radar during the last step,
// taking the shorter way around when the sweep crosses north.
func (e *Engine) scanArc(b *Body) model.Arc {
	start := b.lastRadarHeading
	sweep := b.Status.RadarHeading - b.lastRadarHeading
	if sweep < -math.Pi {
		sweep += twoPi
	} else if sweep > math.Pi {
		sweep -= twoPi
	}
	if sweep < 0 {
		start += sweep
		sweep = -sweep
	}
	return model.Arc{
		CenterX: b.Status.X,
		CenterY: b.Status.Y,
		Radius:  e.rules.RadarScanRadius,
		Start:   NormalAbsoluteAngle(start),
		Extent:  sweep,
	}
}

func (e *Engine) scan(b *Body, bodies []*Body, emit func(model.Event)) {
	arc := e.scanArc(b)
	b.Status.ScanArc = arc
	for _, other := range bodies {
		if other == b || !other.Alive() {
			continue
		}
		if !ArcIntersectsRect(arc, other.Status.BoundingBox) {
			continue
		}
		d := mgl64.Vec2{other.Status.X - b.Status.X, other.Status.Y - b.Status.Y}
		emit(model.Event{
			Kind:     model.EventScanned,
			Agent:    b.Status.ID,
			Other:    other.Status.ID,
			Bearing:  NormalRelativeAngle(compassAngle(d) - b.Status.Heading),
			Distance: d.Len(),
			Heading:  other.Status.Heading,
			Velocity: other.Status.Velocity,
			Energy:   other.Status.Energy,
		})
	}
}
