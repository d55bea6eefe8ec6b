/*
Copyright © 2017 the FloodWave authors.
This file is part of FloodWave.

FloodWave is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

FloodWave is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with FloodWave.  If not, see <http://www.gnu.org/licenses/>.
*/

package floodwave

import (
	"context"
	"fmt"

	"github.com/ctessum/geom"
)

// Default scenario discretization.
const (
	DefaultDxKm      = 1.  // km
	DefaultDtSeconds = 60. // s
)

// Outcome status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ScenarioConfig describes one simulation scenario. Zero numeric fields
// fall back to the documented defaults; the series fields are required.
type ScenarioConfig struct {
	// RiverLengthKm is the length of the modeled reach [km].
	RiverLengthKm float64

	// SimulationHours is the simulated time to cover [h].
	SimulationHours float64

	// UpstreamFlow is the upstream inflow series [m³/s], one value per
	// timestep. A single value is held constant for the whole run.
	UpstreamFlow []float64

	// DownstreamLevel is the downstream water level series [m above the
	// bed datum], one value per timestep. A single value is held
	// constant for the whole run.
	DownstreamLevel []float64

	// LateralInflow optionally gives a constant lateral inflow for each
	// node, expressed as a depth rate [m/s].
	LateralInflow []float64

	// ManningRoughness is Manning's n [s/m^(1/3)]. Zero means the
	// default for a natural channel.
	ManningRoughness float64

	// BedSlope is the longitudinal bed slope [m/m], positive when the
	// bed falls in the downstream direction.
	BedSlope float64

	// InitialWaterLevel is the uniform starting water depth [m].
	InitialWaterLevel float64

	// BankHeight is the bank height above the local bed [m].
	BankHeight float64

	// DxKm is the node spacing [km]. Zero means the default of 1 km.
	DxKm float64

	// DtSeconds is the timestep [s]. Zero means the default of 60 s.
	DtSeconds float64

	// AutoTimestep chooses the timestep from the stability condition
	// applied to the initial state, overriding DtSeconds.
	AutoTimestep bool

	// Section optionally overrides the channel cross-section. When nil
	// the default trapezoid is used.
	Section CrossSection

	// CFLCeiling overrides the Courant ceiling when positive.
	CFLCeiling float64

	// StrictCFL stops the run instead of warning when the Courant
	// ceiling is exceeded.
	StrictCFL bool

	// Centerline optionally gives the map course of the river, ordered
	// from upstream to downstream.
	Centerline geom.LineString
}

// applyDefaults fills the unset numeric fields.
func (cfg *ScenarioConfig) applyDefaults() {
	if cfg.DxKm == 0 {
		cfg.DxKm = DefaultDxKm
	}
	if cfg.DtSeconds == 0 {
		cfg.DtSeconds = DefaultDtSeconds
	}
	if cfg.ManningRoughness == 0 {
		cfg.ManningRoughness = DefaultRoughness
	}
	if cfg.Section == nil {
		cfg.Section = TrapezoidSection{
			BottomWidth: DefaultBottomWidth,
			SideSlope:   DefaultSideSlope,
		}
	}
}

// check rejects configurations the solver cannot run. The reach geometry
// itself is checked later, when the reach is built.
func (cfg *ScenarioConfig) check() error {
	if cfg.SimulationHours <= 0 {
		return fmt.Errorf("floodwave: simulation duration must be positive but is %g h", cfg.SimulationHours)
	}
	if cfg.DtSeconds <= 0 {
		return fmt.Errorf("floodwave: timestep must be positive but is %g s", cfg.DtSeconds)
	}
	if cfg.InitialWaterLevel < 0 {
		return fmt.Errorf("floodwave: initial water level must be non-negative but is %g m", cfg.InitialWaterLevel)
	}
	if cfg.BankHeight <= 0 {
		return fmt.Errorf("floodwave: bank height must be positive but is %g m", cfg.BankHeight)
	}
	return nil
}

// SimulationOutcome is the complete description of one simulation run.
// Callers always receive an outcome, never a raw failure: an impossible
// configuration or an unexpected fault comes back with Status set to
// StatusError and the reason in Error.
type SimulationOutcome struct {
	// Status is StatusSuccess when the run produced results and
	// StatusError when it could not start or failed unexpectedly.
	Status string

	// Error describes what went wrong when Status is StatusError.
	Error string

	// Config echoes the scenario that was run, with defaults filled in
	// and, for an automatic timestep, the timestep that was chosen.
	Config ScenarioConfig

	// RunState is the state the run ended in and Termination the
	// explanatory message for a run that ended early.
	RunState    RunState
	Termination string

	// StepsRun is the number of recorded timesteps.
	StepsRun int

	// CFLMax is the worst Courant number seen during the run.
	CFLMax float64

	// Summary statistics over the recorded history.
	MaxWaterLevel   float64 // m
	MaxDischarge    float64 // m³/s
	MaxVelocity     float64 // m/s
	MaxFloodArea    float64 // m²
	MaxRiskLevel    int
	HighRiskAreaPct float64 // fraction of (step, node) pairs at or above RiskHigh

	// History holds the recorded time-by-node arrays together with the
	// timestamp and distance coordinates.
	History *Results

	// Warnings are the warnings accumulated during the run, and
	// Recommendations the advisory strings derived from how it went.
	Warnings        []string
	Recommendations []string
}

// failure fills in an error outcome.
func (o *SimulationOutcome) failure(msg string, advice ...string) *SimulationOutcome {
	o.Status = StatusError
	o.Error = msg
	o.Recommendations = append(o.Recommendations, advice...)
	return o
}

// adviceOnFault is attached to outcomes of runs that failed for reasons
// the solver could not attribute.
var adviceOnFault = []string{
	"reduce dt",
	"reduce dx",
	"check boundary conditions",
}

// Simulate runs one flood wave scenario from beginning to end and
// returns its outcome. Each call builds a fresh simulation domain, so
// concurrent calls are independent. The context is polled once per
// timestep; canceling it ends the run early with the results recorded so
// far.
func Simulate(ctx context.Context, cfg ScenarioConfig) (o *SimulationOutcome) {
	o = &SimulationOutcome{}

	defer func() {
		if r := recover(); r != nil {
			o.failure(fmt.Sprintf("unexpected fault: %v", r), adviceOnFault...)
		}
	}()

	cfg.applyDefaults()
	o.Config = cfg
	if err := cfg.check(); err != nil {
		return o.failure(err.Error())
	}

	bc, err := NewBoundaryConditions(cfg.UpstreamFlow, cfg.DownstreamLevel)
	if err != nil {
		return o.failure(err.Error())
	}
	bc.LateralInflow = cfg.LateralInflow

	fric := NewManning(cfg.ManningRoughness)
	reach := &ReachConfig{
		LengthKm:   cfg.RiverLengthKm,
		DxKm:       cfg.DxKm,
		BedSlope:   cfg.BedSlope,
		BankHeight: cfg.BankHeight,
		Centerline: cfg.Centerline,
	}

	initFuncs := []DomainManipulator{
		reach.RegularReach(cfg.Section, fric),
		InitialState(cfg.InitialWaterLevel, cfg.UpstreamFlow[0]/cfg.Section.Width()),
		ApplyLateralInflow(bc),
	}
	if cfg.AutoTimestep {
		initFuncs = append(initFuncs, SetTimestepCFL(0.9))
	}

	d := &FloodWave{
		InitFuncs: initFuncs,
		RunFuncs: []DomainManipulator{
			CancelCheck(ctx),
			StepsForDuration(cfg.SimulationHours),
			InjectBoundaries(bc),
			Calculations(AddLateralFlux()),
			Calculations(Continuity(), Momentum()),
			CheckStability(cfg.StrictCFL),
			RecordResults(),
		},
		CleanupFuncs: []DomainManipulator{
			FinalizeResults(),
		},
		Dt:         cfg.DtSeconds,
		CFLCeiling: cfg.CFLCeiling,
	}

	if err := d.Init(); err != nil {
		return o.failure(err.Error())
	}
	o.Config.DtSeconds = d.Dt
	if err := d.Run(); err != nil {
		return o.failure(err.Error(), adviceOnFault...)
	}
	if err := d.Cleanup(); err != nil {
		return o.failure(err.Error(), adviceOnFault...)
	}

	o.Status = StatusSuccess
	o.RunState = d.State()
	o.Termination = d.Termination()
	o.CFLMax = d.CFLMax()
	o.Warnings = d.Warnings()
	if r := d.History(); r != nil {
		o.History = r
		o.StepsRun = r.Steps()
		o.MaxWaterLevel = r.MaxWaterLevel()
		o.MaxDischarge = r.MaxDischarge()
		o.MaxVelocity = r.MaxVelocity()
		o.MaxFloodArea = r.MaxFloodArea()
		o.MaxRiskLevel = r.MaxRisk()
		o.HighRiskAreaPct = r.HighRiskFraction()
	}
	o.Recommendations = append(o.Recommendations, adviseOn(d, o.History)...)
	return o
}

// adviseOn derives advisory strings from how a run went.
func adviseOn(d *FloodWave, r *Results) []string {
	var advice []string
	if d.State() == StoppedUnstable {
		advice = append(advice, "rerun with a smaller timestep or a coarser node spacing")
	} else if d.CFLMax() > d.CFLCeiling {
		advice = append(advice, "reduce the timestep to bring the Courant number under the ceiling")
	}
	if r != nil {
		switch {
		case r.MaxRisk() >= RiskSevere:
			advice = append(advice, "expect overbank flooding; strengthen defenses along the flagged nodes")
		case r.MaxRisk() == RiskHigh:
			advice = append(advice, "the channel is near capacity; monitor the water level closely")
		}
	}
	return advice
}
