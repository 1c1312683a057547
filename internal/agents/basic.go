package agents

import (
	"context"
	"math"

	"github.com/signalsfoundry/robot-arena/internal/proxy"
)

// SittingDuck never moves.
type SittingDuck struct{}

func (SittingDuck) Run(_ context.Context, r proxy.BasicRobot) error {
	for {
		if err := r.DoNothing(); err != nil {
			return err
		}
	}
}

// Walls drives around the arena along its edges with the gun pointing
// inwards, firing whenever the gun is cold.
type Walls struct{}

func (w *Walls) Run(_ context.Context, r proxy.BasicRobot) error {
	longest := math.Max(r.ArenaWidth(), r.ArenaHeight())

	// Face a wall, then drive up to it.
	if err := r.Turn(-math.Mod(r.Heading(), math.Pi/2)); err != nil {
		return err
	}
	if err := r.Move(longest); err != nil {
		return err
	}
	if err := r.TurnGun(math.Pi / 2); err != nil {
		return err
	}
	if err := r.Turn(math.Pi / 2); err != nil {
		return err
	}
	for {
		if err := r.Move(longest); err != nil {
			return err
		}
		if r.GunHeat() == 0 {
			if _, err := r.Fire(1); err != nil {
				return err
			}
		}
		if err := r.Turn(math.Pi / 2); err != nil {
			return err
		}
	}
}
