package proxy

// Standard adds stop/resume, forced scans and turn coupling on top of Basic.
type Standard struct {
	*Basic
}

// NewStandard wraps a basic tier.
func NewStandard(b *Basic) *Standard { return &Standard{Basic: b} }

// Stop halts movement and turning, remembering what was left, and waits
// until the body is at rest.
func (s *Standard) Stop() error {
	s.setStop(false)
	return s.executeUntil(func() bool { return s.Velocity() == 0 })
}

// Resume restores the motion saved by the last Stop.
func (s *Standard) Resume() error {
	s.setResume()
	return s.execute()
}

// Rescan forces a radar sweep this tick even when nothing moved.
func (s *Standard) Rescan() error {
	s.countSet()
	s.staged.Scan = true
	return s.execute()
}

func (s *Standard) SetAdjustGunForBodyTurn(adjust bool) {
	s.countSet()
	s.staged.AdjustGunForBodyTurn = adjust
}

func (s *Standard) SetAdjustRadarForBodyTurn(adjust bool) {
	s.countSet()
	s.staged.AdjustRadarForBodyTurn = adjust
}

func (s *Standard) SetAdjustRadarForGunTurn(adjust bool) {
	s.countSet()
	s.staged.AdjustRadarForGunTurn = adjust
}

// setStop saves the remaining motion unless a stop is already in effect
// and overwrite is false.
func (b *Basic) setStop(overwrite bool) {
	b.countSet()
	c := &b.staged
	if !c.Stopped || overwrite {
		c.Saved.Distance = c.DistanceRemaining
		c.Saved.Turn = c.TurnRemaining
		c.Saved.GunTurn = c.GunTurnRemaining
		c.Saved.RadarTurn = c.RadarTurnRemaining
	}
	c.Stopped = true
	c.DistanceRemaining = 0
	c.TurnRemaining = 0
	c.GunTurnRemaining = 0
	c.RadarTurnRemaining = 0
}

func (b *Basic) setResume() {
	b.countSet()
	c := &b.staged
	if !c.Stopped {
		return
	}
	c.Stopped = false
	c.DistanceRemaining = c.Saved.Distance
	c.MoveDirection = signOf(c.Saved.Distance)
	c.TurnRemaining = c.Saved.Turn
	c.GunTurnRemaining = c.Saved.GunTurn
	c.RadarTurnRemaining = c.Saved.RadarTurn
}
