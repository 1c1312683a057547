package agents

import (
	"context"
	"encoding/json"
	"errors"
	"math"

	"github.com/signalsfoundry/robot-arena/core"
	"github.com/signalsfoundry/robot-arena/internal/host"
	"github.com/signalsfoundry/robot-arena/internal/proxy"
	"github.com/signalsfoundry/robot-arena/model"
)

var errTier = errors.New("agent needs a higher capability tier")

// Spinner circles continuously and fires at whatever its radar sweeps.
type Spinner struct {
	r proxy.AdvancedRobot
}

func (s *Spinner) OnEvent(ev model.Event) {
	if ev.Kind != model.EventScanned || s.r == nil {
		return
	}
	power := 1.0
	if ev.Distance < 200 {
		power = 3
	}
	s.r.SetFire(power)
}

func (s *Spinner) Run(_ context.Context, r proxy.BasicRobot) error {
	adv, ok := r.(proxy.AdvancedRobot)
	if !ok {
		return errTier
	}
	s.r = adv
	adv.SetMaxVelocity(5)
	for {
		adv.SetTurnBody(core.Radians(10000))
		adv.SetMove(10000)
		adv.SetTurnGun(core.Radians(30))
		if err := adv.Execute(); err != nil {
			return err
		}
	}
}

// trackerMemory is what a Tracker keeps in its data directory between
// battles.
type trackerMemory struct {
	Battles int `json:"battles"`
	Shots   int `json:"shots"`
}

// Tracker locks its radar onto one opponent, leads it with the gun and
// keeps a small running record in its data directory.
type Tracker struct {
	env host.Env
	r   proxy.AdvancedRobot

	mem     trackerMemory
	locked  bool
	target  model.AgentID
	lastSaw int64
}

func (t *Tracker) OnEvent(ev model.Event) {
	switch ev.Kind {
	case model.EventScanned:
		if t.locked && ev.Other != t.target && ev.Tick-t.lastSaw < 10 {
			return
		}
		t.locked, t.target, t.lastSaw = true, ev.Other, ev.Tick
		t.aim(ev)
	case model.EventRobotDeath:
		if ev.Other == t.target {
			t.locked = false
		}
	}
}

// aim swings radar and gun onto the scanned agent and leads it by its
// current velocity.
func (t *Tracker) aim(ev model.Event) {
	r := t.r
	absolute := r.Heading() + ev.Bearing
	t.r.SetTurnRadar(core.NormalRelativeAngle(absolute-r.RadarHeading()) * 2)

	power := math.Min(3, math.Max(0.1, 400/ev.Distance))
	speed := core.BulletSpeed(power)
	ex := r.X() + math.Sin(absolute)*ev.Distance
	ey := r.Y() + math.Cos(absolute)*ev.Distance
	flight := ev.Distance / speed
	ex += math.Sin(ev.Heading) * ev.Velocity * flight
	ey += math.Cos(ev.Heading) * ev.Velocity * flight
	lead := math.Atan2(ex-r.X(), ey-r.Y())
	r.SetTurnGun(core.NormalRelativeAngle(lead - r.GunHeading()))

	if r.GunHeat() == 0 && math.Abs(r.GunTurnRemaining()) < core.Radians(10) {
		if r.SetFire(power) {
			t.mem.Shots++
		}
	}
	if ev.Distance > 150 {
		r.SetTurnBody(core.NormalRelativeAngle(ev.Bearing))
		r.SetMove(ev.Distance - 140)
	}
}

func (t *Tracker) Run(_ context.Context, r proxy.BasicRobot) error {
	adv, ok := r.(proxy.AdvancedRobot)
	if !ok {
		return errTier
	}
	t.r = adv
	t.load()
	t.mem.Battles++
	adv.SetAdjustGunForBodyTurn(true)
	adv.SetAdjustRadarForGunTurn(true)
	for {
		if !t.locked {
			adv.SetTurnRadar(core.Radians(45))
		}
		err := adv.Execute()
		if err != nil {
			t.save()
			return err
		}
		if t.locked && adv.Time()-t.lastSaw > 3 {
			t.locked = false
		}
	}
}

func (t *Tracker) load() {
	data, err := t.r.ReadDataFile("tracker.json")
	if err != nil {
		return
	}
	_ = json.Unmarshal(data, &t.mem)
}

func (t *Tracker) save() {
	data, err := json.Marshal(t.mem)
	if err != nil {
		return
	}
	w, err := t.r.DataFile("tracker.json")
	if err != nil {
		if t.env.Log != nil {
			t.env.Log.Debug(context.Background(), "tracker memory not saved")
		}
		return
	}
	defer w.Close()
	_, _ = w.Write(data)
}
