package battle

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/signalsfoundry/robot-arena/core"
	"github.com/signalsfoundry/robot-arena/model"
	"github.com/signalsfoundry/robot-arena/roster"
)

const placementAttempts = 1000

type start struct {
	x, y, heading float64
}

// place chooses starting positions. Pinned coordinates are kept; the rest
// come from a generator seeded with seed, so the same roster and seed
// always produce the same layout. Random positions never overlap an
// earlier body.
func place(engine *core.Engine, participants []roster.Participant, seed int64) ([]start, error) {
	rng := rand.New(rand.NewSource(seed))
	arena := engine.Arena()
	size := engine.Rules().CollisionBoxSize
	half := size / 2

	out := make([]start, 0, len(participants))
	var taken []model.Rect
	for _, p := range participants {
		var st start
		placed := false
		for attempt := 0; attempt < placementAttempts && !placed; attempt++ {
			st = start{
				x:       half + rng.Float64()*(arena.Width-size),
				y:       half + rng.Float64()*(arena.Height-size),
				heading: rng.Float64() * 2 * math.Pi,
			}
			if p.Start.X != nil {
				st.x = *p.Start.X
			}
			if p.Start.Y != nil {
				st.y = *p.Start.Y
			}
			if p.Start.Heading != nil {
				st.heading = *p.Start.Heading
			}
			if p.Start.X != nil && p.Start.Y != nil {
				placed = true
				break
			}
			placed = free(model.RectAround(st.x, st.y, size), taken)
		}
		if !placed {
			return nil, fmt.Errorf("battle: no room to place %q in a %vx%v arena", p.Name, arena.Width, arena.Height)
		}
		st.x = math.Max(half, math.Min(arena.Width-half, st.x))
		st.y = math.Max(half, math.Min(arena.Height-half, st.y))
		taken = append(taken, model.RectAround(st.x, st.y, size))
		out = append(out, st)
	}
	return out, nil
}

func free(r model.Rect, taken []model.Rect) bool {
	for _, t := range taken {
		if r.Intersects(t) {
			return false
		}
	}
	return true
}
