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
	"math"
	"runtime"
	"sync"
	"time"
)

// Version gives the version number of this version of FloodWave.
const Version = "0.4.1"

const (
	// DefaultCFLCeiling is the Courant number above which a timestep
	// is considered marginal for the explicit scheme.
	DefaultCFLCeiling = 0.5

	hoursPerSecond = 1. / 3600.
)

// DomainManipulator is a class of functions that operate on the entire
// simulation domain.
type DomainManipulator func(d *FloodWave) error

// NodeManipulator is a class of functions that operate on a single reach
// node, using the timestep Δt [s].
type NodeManipulator func(n *Node, Δt float64)

// RunState is the lifecycle state of a simulation.
type RunState int

// The states a simulation moves through. A run starts in Created, becomes
// Configured after initialization, Running during the time-marching loop,
// and ends in exactly one of the terminal states.
const (
	Created RunState = iota
	Configured
	Running
	Completed
	StoppedUnstable
	Canceled
)

func (s RunState) String() string {
	switch s {
	case Created:
		return "created"
	case Configured:
		return "configured"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case StoppedUnstable:
		return "stopped-unstable"
	case Canceled:
		return "canceled"
	default:
		return fmt.Sprintf("unknown state %d", int(s))
	}
}

// FloodWave is a holder for the instantaneous state of a flood wave
// simulation: the reach nodes, the timestep, and the functions that are
// run to initialize, advance, and finalize the simulation.
//
// One FloodWave owns one run. Concurrent simulations must each construct
// their own FloodWave; nothing here is shared.
type FloodWave struct {
	// InitFuncs are functions to be called in the given order
	// at the beginning of the simulation.
	InitFuncs []DomainManipulator

	// RunFuncs are functions to be called in the given order repeatedly
	// until "Done" is true.
	RunFuncs []DomainManipulator

	// CleanupFuncs are functions to be run in the given order after the
	// simulation has completed.
	CleanupFuncs []DomainManipulator

	// Dt is the simulation timestep [s].
	Dt float64

	// Done specifies whether the simulation is finished.
	Done bool

	// CFLCeiling is the maximum acceptable Courant number. If zero, it
	// is set to DefaultCFLCeiling during initialization.
	CFLCeiling float64

	nodes    []*Node
	dx       float64 // node spacing [m]
	section  CrossSection
	friction Manning
	bank     float64 // bank height above the local bed [m]

	state   RunState
	termMsg string

	step   int
	nsteps int
	t      float64 // simulated time since the start of the run [s]

	cflMax float64 // worst Courant number seen so far

	volIn, volOut float64 // cumulative boundary volumes [m³]

	results *Results

	warnMx   sync.Mutex
	warnings []string
}

// Init initializes the simulation by running the InitFuncs in order.
func (d *FloodWave) Init() error {
	for _, f := range d.InitFuncs {
		if err := f(d); err != nil {
			return err
		}
	}
	if d.CFLCeiling == 0 {
		d.CFLCeiling = DefaultCFLCeiling
	}
	d.state = Configured
	return nil
}

// Run advances the simulation by running the RunFuncs in order repeatedly
// until d.Done is true. The step counter and simulated time are advanced
// after each pass through the RunFuncs, so every RunFunc within one pass
// sees the same step number.
func (d *FloodWave) Run() error {
	d.state = Running
	for !d.Done {
		for _, f := range d.RunFuncs {
			if err := f(d); err != nil {
				return fmt.Errorf("floodwave: simulation step %d: %v", d.step, err)
			}
		}
		d.step++
		d.t += d.Dt
	}
	if d.state == Running {
		d.state = Completed
	}
	return nil
}

// Cleanup finalizes the simulation by running the CleanupFuncs in order.
func (d *FloodWave) Cleanup() error {
	for _, f := range d.CleanupFuncs {
		if err := f(d); err != nil {
			return err
		}
	}
	return nil
}

// Nodes returns the nodes of the reach, ordered from the upstream end to
// the downstream end.
func (d *FloodWave) Nodes() []*Node { return d.nodes }

// Dx returns the node spacing [m].
func (d *FloodWave) Dx() float64 { return d.dx }

// Section returns the channel cross-section shape shared by all nodes.
func (d *FloodWave) Section() CrossSection { return d.section }

// Friction returns the channel friction model.
func (d *FloodWave) Friction() Manning { return d.friction }

// BankHeight returns the bank height above the local bed [m].
func (d *FloodWave) BankHeight() float64 { return d.bank }

// State returns the lifecycle state of the simulation.
func (d *FloodWave) State() RunState { return d.state }

// Termination returns the explanatory message recorded when the run
// reached a terminal state early, or "" for a normal completion.
func (d *FloodWave) Termination() string { return d.termMsg }

// StepNumber returns the number of fully processed timesteps.
func (d *FloodWave) StepNumber() int { return d.step }

// NumSteps returns the total number of timesteps the run is budgeted for,
// or zero if no step limit has been set.
func (d *FloodWave) NumSteps() int { return d.nsteps }

// SimTime returns the simulated time since the beginning of the run [s].
func (d *FloodWave) SimTime() float64 { return d.t }

// CFLMax returns the worst Courant number observed so far in the run.
func (d *FloodWave) CFLMax() float64 { return d.cflMax }

// Warnings returns the warnings accumulated during the run.
func (d *FloodWave) Warnings() []string {
	d.warnMx.Lock()
	defer d.warnMx.Unlock()
	w := make([]string, len(d.warnings))
	copy(w, d.warnings)
	return w
}

// Warningf records a formatted warning message.
func (d *FloodWave) Warningf(format string, a ...interface{}) {
	d.warnMx.Lock()
	d.warnings = append(d.warnings, fmt.Sprintf(format, a...))
	d.warnMx.Unlock()
}

// Calculations returns a function that concurrently runs a series of
// calculations on all of the reach nodes, with a barrier at the end so
// that every node is finished before the next domain manipulator starts.
func Calculations(calculators ...NodeManipulator) DomainManipulator {

	nprocs := runtime.GOMAXPROCS(0)
	var wg sync.WaitGroup

	return func(d *FloodWave) error {
		wg.Add(nprocs)
		for pp := 0; pp < nprocs; pp++ {
			go func(pp int) {
				var n *Node
				for ii := pp; ii < len(d.nodes); ii += nprocs {
					n = d.nodes[ii]
					n.Lock()
					for _, f := range calculators {
						f(n, d.Dt)
					}
					n.Unlock()
				}
				wg.Done()
			}(pp)
		}
		wg.Wait()
		return nil
	}
}

// StepLimit returns a function that ends the simulation after numSteps
// timesteps have been processed.
func StepLimit(numSteps int) DomainManipulator {
	return func(d *FloodWave) error {
		if numSteps <= 0 {
			return fmt.Errorf("floodwave: invalid step limit %d", numSteps)
		}
		d.nsteps = numSteps
		if d.step+1 >= numSteps {
			d.Done = true
		}
		return nil
	}
}

// StepsForDuration returns a function that sets the step budget to
// cover the given simulated duration [h] and ends the simulation when
// the budget is used up. The budget is computed on the first call, so it
// works with a timestep that is only chosen during initialization.
func StepsForDuration(hours float64) DomainManipulator {
	return func(d *FloodWave) error {
		if d.nsteps == 0 {
			if d.Dt <= 0 {
				return fmt.Errorf("floodwave: timestep must be positive but is %g s", d.Dt)
			}
			d.nsteps = int(math.Ceil(hours * 3600 / d.Dt))
			if d.nsteps < 1 {
				d.nsteps = 1
			}
		}
		if d.step+1 >= d.nsteps {
			d.Done = true
		}
		return nil
	}
}

// CancelCheck returns a function that polls ctx once per timestep and
// moves the run to the Canceled state when the context is done, keeping
// the results recorded so far.
func CancelCheck(ctx context.Context) DomainManipulator {
	return func(d *FloodWave) error {
		select {
		case <-ctx.Done():
			d.state = Canceled
			d.termMsg = fmt.Sprintf("canceled at step %d: %v", d.step, ctx.Err())
			d.Done = true
		default:
		}
		return nil
	}
}

// RunPeriodically returns a function that runs f every period seconds of
// simulated time.
func RunPeriodically(period float64, f DomainManipulator) DomainManipulator {
	elapsed := 0.
	return func(d *FloodWave) error {
		elapsed += d.Dt
		if elapsed >= period {
			elapsed = 0
			return f(d)
		}
		return nil
	}
}

// SimulationStatus holds information about the progress of a run.
type SimulationStatus struct {
	// Step is the index of the current timestep and NSteps is the total
	// step budget (zero if no budget is set).
	Step, NSteps int

	// SimTime is the simulated time since the beginning of the run [s].
	SimTime float64

	// Walltime is the time since the beginning of the run, and
	// Δwalltime is the time the current step took.
	Walltime, Δwalltime time.Duration

	// CFL is the worst Courant number seen so far.
	CFL float64
}

func (s *SimulationStatus) String() string {
	return fmt.Sprintf("Step %-6d of %-6d  walltime=%6.3gh  Δwalltime=%4.2gs  "+
		"hour=%.3g  CFL=%.2f",
		s.Step, s.NSteps, s.Walltime.Hours(), s.Δwalltime.Seconds(),
		s.SimTime*hoursPerSecond, s.CFL)
}

// Log returns a function that sends simulation status information to c.
// If c is nil the returned function does nothing.
func Log(c chan *SimulationStatus) DomainManipulator {
	startTime := time.Now()
	stepTime := time.Now()

	return func(d *FloodWave) error {
		if c == nil {
			return nil
		}
		c <- &SimulationStatus{
			Step:      d.step,
			NSteps:    d.nsteps,
			SimTime:   d.t + d.Dt,
			Walltime:  time.Since(startTime),
			Δwalltime: time.Since(stepTime),
			CFL:       d.cflMax,
		}
		stepTime = time.Now()
		return nil
	}
}

// ConvergenceStatus reports how close the run is to a steady state by
// comparing the discharge leaving the downstream end of the reach with
// the discharge entering the upstream end.
type ConvergenceStatus struct {
	Step            int
	Inflow, Outflow float64 // [m³/s]
}

func (c ConvergenceStatus) String() string {
	return fmt.Sprintf("Step %d: inflow=%.4g m³/s, outflow=%.4g m³/s (ratio %.3f)",
		c.Step, c.Inflow, c.Outflow, c.Outflow/c.Inflow)
}

// SteadyStateCheck returns a function that periodically reports the
// inflow-outflow balance of the reach to c. It never ends the run; a
// flood simulation processes its full step budget regardless of whether
// the wave has passed. If c is nil the returned function does nothing.
func SteadyStateCheck(c chan ConvergenceStatus) DomainManipulator {

	const checkPeriod = 3600. // seconds of simulated time between reports

	timeSinceLastCheck := 0.

	return func(d *FloodWave) error {
		if c == nil {
			return nil
		}
		timeSinceLastCheck += d.Dt
		if timeSinceLastCheck < checkPeriod {
			return nil
		}
		timeSinceLastCheck = 0
		if len(d.nodes) == 0 {
			return nil
		}
		w := d.section.Width()
		c <- ConvergenceStatus{
			Step:    d.step,
			Inflow:  d.nodes[0].Qf * w,
			Outflow: d.nodes[len(d.nodes)-1].Qf * w,
		}
		return nil
	}
}
