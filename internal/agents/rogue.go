package agents

import (
	"context"

	"github.com/signalsfoundry/robot-arena/internal/proxy"
)

// Stalled takes one turn and then blocks forever outside the proxy, so
// only a forced stop can end it.
type Stalled struct{}

func (Stalled) Run(_ context.Context, r proxy.BasicRobot) error {
	if err := r.DoNothing(); err != nil {
		return err
	}
	select {}
}

// Panicker panics on its third turn.
type Panicker struct{}

func (Panicker) Run(_ context.Context, r proxy.BasicRobot) error {
	for i := 0; i < 2; i++ {
		if err := r.DoNothing(); err != nil {
			return err
		}
	}
	panic("panicker gave up")
}
