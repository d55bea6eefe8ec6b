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
	"fmt"
	"math"
)

// CheckStability returns a function that guards the explicit scheme. It
// tracks the Courant number of the committed state and warns the first
// time it exceeds the ceiling; when strict is true the run is stopped at
// that point instead. A negative depth anywhere ends the run
// immediately, rewinding the reach to the last committed state so the
// results hold the final stable step.
func CheckStability(strict bool) DomainManipulator {

	cflWarned := false

	return func(d *FloodWave) error {
		vmax, hmax := 0., 0.
		for _, n := range d.nodes {
			if n.Hi > dryDepth {
				vmax = max(vmax, math.Abs(n.Qi/n.Hi))
			}
			hmax = max(hmax, n.Hi)
		}
		cfl := (vmax + math.Sqrt(g*hmax)) * d.Dt / d.dx
		d.cflMax = max(d.cflMax, cfl)
		if cfl > d.CFLCeiling {
			if !cflWarned {
				cflWarned = true
				d.Warningf("Courant number %.3g exceeds the ceiling %.3g at step %d; "+
					"reduce the timestep or increase the node spacing", cfl, d.CFLCeiling, d.step)
			}
			if strict {
				d.state = StoppedUnstable
				d.termMsg = fmt.Sprintf("stopped at step %d: Courant number %.3g exceeds the ceiling %.3g",
					d.step, cfl, d.CFLCeiling)
				d.Done = true
				return nil
			}
		}

		for _, n := range d.nodes {
			if n.Hf < 0 {
				bad, at := n.Hf, n
				for _, nn := range d.nodes {
					nn.Hf, nn.Qf = nn.Hi, nn.Qi
				}
				d.state = StoppedUnstable
				d.termMsg = fmt.Sprintf("stopped at step %d: depth %.4g m at node %d (%.3g km)",
					d.step, bad, at.Index, at.X)
				d.Done = true
				return nil
			}
		}
		return nil
	}
}

// SetTimestepCFL returns a function that sets the timestep from the
// Courant–Friedrichs–Lewy condition applied to the initial state, using
// the given fraction of the Courant ceiling as a safety margin.
func SetTimestepCFL(safety float64) DomainManipulator {
	return func(d *FloodWave) error {
		if safety <= 0 || safety > 1 {
			return fmt.Errorf("floodwave: CFL safety factor %g is outside (0, 1]", safety)
		}
		ceiling := d.CFLCeiling
		if ceiling == 0 {
			ceiling = DefaultCFLCeiling
		}
		d.Dt = math.Inf(1)
		for _, n := range d.nodes {
			v := 0.
			if n.Hf > dryDepth {
				v = math.Abs(n.Qf / n.Hf)
			}
			celerity := v + math.Sqrt(g*n.Hf)
			if celerity <= 0 {
				continue
			}
			d.Dt = amin(d.Dt, safety*ceiling*n.Dx/celerity)
		}
		if math.IsInf(d.Dt, 1) {
			return fmt.Errorf("floodwave: cannot choose a timestep for a dry, motionless reach")
		}
		return nil
	}
}
