// Package config loads battle descriptions from YAML.
//
// A battle file is validated against an embedded JSON Schema before it is
// decoded, then checked for the constraints a schema cannot express, such
// as duplicate agent names or an arena too small for a single robot.
package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/robot-arena/core"
	"github.com/signalsfoundry/robot-arena/internal/battle"
	"github.com/signalsfoundry/robot-arena/internal/host"
	"github.com/signalsfoundry/robot-arena/internal/proxy"
	"github.com/signalsfoundry/robot-arena/model"
	"github.com/signalsfoundry/robot-arena/roster"
	"github.com/signalsfoundry/robot-arena/timectrl"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid battle config")

// Pacing modes.
const (
	ModeRealTime    = "realtime"
	ModeAccelerated = "accelerated"
)

const schemaURL = "battle.schema.json"

//go:embed battle.schema.json
var schemaJSON []byte

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

// Battle is one battle file.
type Battle struct {
	Name     string  `yaml:"name"`
	Seed     int64   `yaml:"seed"`
	MaxTicks int64   `yaml:"max_ticks"`
	Arena    Arena   `yaml:"arena"`
	Pacing   Pacing  `yaml:"pacing"`
	Rules    Rules   `yaml:"rules"`
	Host     Host    `yaml:"host"`
	Agents   []Agent `yaml:"agents"`
}

type Arena struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

type Pacing struct {
	Mode string  `yaml:"mode"`
	TPS  float64 `yaml:"tps"`
}

// Rules overrides a subset of core.DefaultRules.
type Rules struct {
	GunCoolingRate  float64 `yaml:"gun_cooling_rate"`
	InactivityTurns int     `yaml:"inactivity_turns"`
	RadarScanRadius float64 `yaml:"radar_scan_radius"`
}

// Host holds the limits applied to every agent host.
type Host struct {
	// TurnTimeoutFactor scales the calibrated CPU unit. A fixed
	// TurnTimeoutMS takes precedence.
	TurnTimeoutFactor float64 `yaml:"turn_timeout_factor"`
	TurnTimeoutMS     int     `yaml:"turn_timeout_ms"`
	StartupTimeoutMS  int     `yaml:"startup_timeout_ms"`
	StopTimeoutMS     int     `yaml:"stop_timeout_ms"`
	SkipGraceTurns    int     `yaml:"skip_grace_turns"`
	MaxGetCalls       int64   `yaml:"max_get_calls"`
	MaxSetCalls       int64   `yaml:"max_set_calls"`
	DataDir           string  `yaml:"data_dir"`
	DataQuota         int64   `yaml:"data_quota"`
	MailboxCapacity   int     `yaml:"mailbox_capacity"`
}

// Agent is one entry of the battle. Heading is in degrees.
type Agent struct {
	Name    string   `yaml:"name"`
	Kind    string   `yaml:"kind"`
	Tier    string   `yaml:"tier"`
	Team    string   `yaml:"team"`
	Leader  bool     `yaml:"leader"`
	Droid   bool     `yaml:"droid"`
	X       *float64 `yaml:"x"`
	Y       *float64 `yaml:"y"`
	Heading *float64 `yaml:"heading"`
}

// Default returns a battle with every optional field filled in and no
// agents.
func Default() Battle {
	rules := core.DefaultRules()
	return Battle{
		Name:     "battle",
		MaxTicks: battle.DefaultMaxTicks,
		Arena:    Arena{Width: 800, Height: 600},
		Pacing:   Pacing{Mode: ModeRealTime, TPS: 30},
		Rules: Rules{
			GunCoolingRate:  rules.GunCoolingRate,
			InactivityTurns: rules.InactivityTurns,
			RadarScanRadius: rules.RadarScanRadius,
		},
		Host: Host{
			TurnTimeoutFactor: host.DefaultTurnTimeoutFactor,
			StartupTimeoutMS:  int(host.DefaultStartupTimeout / time.Millisecond),
			StopTimeoutMS:     int(host.DefaultStopTimeout / time.Millisecond),
			MaxGetCalls:       proxy.DefaultMaxGetCalls,
			MaxSetCalls:       proxy.DefaultMaxSetCalls,
			DataQuota:         proxy.DefaultDataQuota,
			MailboxCapacity:   proxy.DefaultMailboxCapacity,
		},
	}
}

// Load reads, validates and decodes the battle file at path.
func Load(path string) (Battle, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Battle{}, err
	}
	b, err := Parse(raw)
	if err != nil {
		return b, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}

// Parse validates and decodes a battle file held in memory.
func Parse(raw []byte) (Battle, error) {
	if err := validateSchema(raw); err != nil {
		return Battle{}, err
	}
	b := Default()
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&b); err != nil {
		return Battle{}, fmt.Errorf("battle.yaml: %w", err)
	}
	b.Normalize()
	if err := b.Validate(); err != nil {
		return b, err
	}
	return b, nil
}

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = err
			return
		}
		schema, schemaErr = c.Compile(schemaURL)
	})
	return schema, schemaErr
}

// validateSchema checks raw YAML against the battle schema. The document
// goes through JSON first so the validator sees JSON types only.
func validateSchema(raw []byte) error {
	s, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile battle schema: %w", err)
	}
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("battle.yaml: %w", err)
	}
	if doc == nil {
		return fmt.Errorf("%w: empty document", ErrInvalid)
	}
	js, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	var v any
	if err := json.Unmarshal(js, &v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// Normalize trims names and fills tiers left empty: team members get the
// team tier, everyone else the advanced tier.
func (b *Battle) Normalize() {
	b.Name = strings.TrimSpace(b.Name)
	b.Pacing.Mode = strings.ToLower(strings.TrimSpace(b.Pacing.Mode))
	for i := range b.Agents {
		a := &b.Agents[i]
		a.Name = strings.TrimSpace(a.Name)
		a.Kind = strings.TrimSpace(a.Kind)
		a.Team = strings.TrimSpace(a.Team)
		a.Tier = strings.ToLower(strings.TrimSpace(a.Tier))
		if a.Tier == "" {
			if a.Team != "" {
				a.Tier = proxy.TierTeam.String()
			} else {
				a.Tier = proxy.TierAdvanced.String()
			}
		}
	}
}

// Validate checks the constraints the schema cannot express.
func (b Battle) Validate() error {
	box := core.DefaultRules().CollisionBoxSize
	if b.Arena.Width < box || b.Arena.Height < box {
		return fmt.Errorf("%w: arena %vx%v is smaller than one robot", ErrInvalid, b.Arena.Width, b.Arena.Height)
	}
	if len(b.Agents) == 0 {
		return fmt.Errorf("%w: no agents", ErrInvalid)
	}
	seen := make(map[string]bool, len(b.Agents))
	for _, a := range b.Agents {
		if a.Name == "" || a.Kind == "" {
			return fmt.Errorf("%w: agent needs a name and a kind", ErrInvalid)
		}
		if seen[a.Name] {
			return fmt.Errorf("%w: duplicate agent name %q", ErrInvalid, a.Name)
		}
		seen[a.Name] = true
		if _, err := proxy.ParseTier(a.Tier); err != nil {
			return fmt.Errorf("%w: agent %q: %v", ErrInvalid, a.Name, err)
		}
		if a.X != nil && (*a.X < box/2 || *a.X > b.Arena.Width-box/2) {
			return fmt.Errorf("%w: agent %q starts outside the arena", ErrInvalid, a.Name)
		}
		if a.Y != nil && (*a.Y < box/2 || *a.Y > b.Arena.Height-box/2) {
			return fmt.Errorf("%w: agent %q starts outside the arena", ErrInvalid, a.Name)
		}
	}
	return nil
}

// Roster builds the participant roster in file order. Agent names double
// as agent IDs.
func (b Battle) Roster() (*roster.Roster, error) {
	r := roster.New()
	for _, a := range b.Agents {
		tier, err := proxy.ParseTier(a.Tier)
		if err != nil {
			return nil, fmt.Errorf("%w: agent %q: %v", ErrInvalid, a.Name, err)
		}
		p := roster.Participant{
			ID:     model.AgentID(a.Name),
			Name:   a.Name,
			Kind:   a.Kind,
			Tier:   tier,
			Team:   a.Team,
			Leader: a.Leader,
			Droid:  a.Droid,
			Start:  roster.Placement{X: a.X, Y: a.Y},
		}
		if a.Heading != nil {
			h := core.Radians(*a.Heading)
			p.Start.Heading = &h
		}
		if err := r.Add(p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
	}
	return r, nil
}

// CoreRules applies the rule overrides to the default rule set.
func (b Battle) CoreRules() core.Rules {
	rules := core.DefaultRules()
	if b.Rules.GunCoolingRate > 0 {
		rules.GunCoolingRate = b.Rules.GunCoolingRate
	}
	if b.Rules.RadarScanRadius > 0 {
		rules.RadarScanRadius = b.Rules.RadarScanRadius
	}
	rules.InactivityTurns = b.Rules.InactivityTurns
	return rules
}

// TurnTimeout resolves the per-tick synchronization timeout as a multiple
// of cpuUnit, the calibrated unit from host.CPUUnit. A fixed
// turn_timeout_ms overrides the scaling.
func (b Battle) TurnTimeout(cpuUnit time.Duration) time.Duration {
	if b.Host.TurnTimeoutMS > 0 {
		return time.Duration(b.Host.TurnTimeoutMS) * time.Millisecond
	}
	return host.TurnTimeout(cpuUnit, b.Host.TurnTimeoutFactor)
}

// BattleOptions converts the file into battle options. The caller sets
// the loader, logger and metrics.
func (b Battle) BattleOptions(cpuUnit time.Duration) battle.Options {
	mode := timectrl.RealTime
	var interval time.Duration
	if b.Pacing.Mode == ModeAccelerated {
		mode = timectrl.Accelerated
	} else if b.Pacing.TPS > 0 {
		interval = time.Duration(float64(time.Second) / b.Pacing.TPS)
	}
	return battle.Options{
		Arena:           core.Arena{Width: b.Arena.Width, Height: b.Arena.Height},
		Rules:           b.CoreRules(),
		MaxTicks:        b.MaxTicks,
		Seed:            b.Seed,
		Interval:        interval,
		Mode:            mode,
		TurnTimeout:     b.TurnTimeout(cpuUnit),
		StartupTimeout:  time.Duration(b.Host.StartupTimeoutMS) * time.Millisecond,
		StopTimeout:     time.Duration(b.Host.StopTimeoutMS) * time.Millisecond,
		SkipGraceTurns:  b.Host.SkipGraceTurns,
		MaxGetCalls:     b.Host.MaxGetCalls,
		MaxSetCalls:     b.Host.MaxSetCalls,
		DataDir:         b.Host.DataDir,
		DataQuota:       b.Host.DataQuota,
		MailboxCapacity: b.Host.MailboxCapacity,
	}
}
