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

	"github.com/ctessum/unit"
)

// BoundaryConditions holds the time series that force a simulation. Both
// series are indexed by timestep. A series with a single element is a
// constant boundary; a longer series that runs out before the simulation
// does holds its last value for the remaining steps.
type BoundaryConditions struct {
	// UpstreamFlow is the discharge entering the upstream end of the
	// reach [m³/s].
	UpstreamFlow []float64

	// DownstreamLevel is the water surface elevation at the downstream
	// end of the reach [m above the bed datum].
	DownstreamLevel []float64

	// LateralInflow optionally gives a constant lateral inflow for each
	// node, expressed as a depth rate [m/s]. It may be nil, or shorter
	// than the reach, in which case the remaining nodes get none.
	LateralInflow []float64
}

// NewBoundaryConditions creates boundary conditions from the given
// upstream discharge [m³/s] and downstream water level [m] series.
func NewBoundaryConditions(upstreamFlow, downstreamLevel []float64) (*BoundaryConditions, error) {
	if len(upstreamFlow) == 0 {
		return nil, fmt.Errorf("floodwave: the upstream flow series is empty")
	}
	if len(downstreamLevel) == 0 {
		return nil, fmt.Errorf("floodwave: the downstream level series is empty")
	}
	for i, q := range upstreamFlow {
		if q < 0 {
			return nil, fmt.Errorf("floodwave: upstream flow %d is %g m³/s; inflows must be non-negative", i, q)
		}
	}
	return &BoundaryConditions{
		UpstreamFlow:    upstreamFlow,
		DownstreamLevel: downstreamLevel,
	}, nil
}

// BoundaryConditionsFromUnits creates boundary conditions from
// dimensioned series, checking that the upstream series is a discharge
// and the downstream series is a length.
func BoundaryConditionsFromUnits(upstreamFlow, downstreamLevel []*unit.Unit) (*BoundaryConditions, error) {
	up := make([]float64, len(upstreamFlow))
	for i, u := range upstreamFlow {
		if err := u.Check(unit.Meter3PerSecond); err != nil {
			return nil, fmt.Errorf("floodwave: upstream flow %d: %v", i, err)
		}
		up[i] = u.Value()
	}
	down := make([]float64, len(downstreamLevel))
	for i, u := range downstreamLevel {
		if err := u.Check(unit.Meter); err != nil {
			return nil, fmt.Errorf("floodwave: downstream level %d: %v", i, err)
		}
		down[i] = u.Value()
	}
	return NewBoundaryConditions(up, down)
}

// Upstream returns the upstream discharge [m³/s] for the given timestep.
// held reports that the series ran out and its last value is being held.
func (b *BoundaryConditions) Upstream(step int) (v float64, held bool) {
	return seriesAt(b.UpstreamFlow, step)
}

// Downstream returns the downstream water level [m] for the given
// timestep. held reports that the series ran out and its last value is
// being held.
func (b *BoundaryConditions) Downstream(step int) (v float64, held bool) {
	return seriesAt(b.DownstreamLevel, step)
}

// seriesAt looks up the series value for a timestep. Single-element
// series are constants, so holding their value is not reported.
func seriesAt(s []float64, i int) (float64, bool) {
	switch {
	case len(s) == 0:
		return 0, false
	case i < 0:
		return s[0], false
	case i < len(s):
		return s[i], false
	default:
		return s[len(s)-1], len(s) > 1
	}
}

// ApplyLateralInflow returns a function that stores the per-node lateral
// inflow rates from bc on the reach nodes.
func ApplyLateralInflow(bc *BoundaryConditions) DomainManipulator {
	return func(d *FloodWave) error {
		for i, rate := range bc.LateralInflow {
			if i >= len(d.nodes) {
				return fmt.Errorf("floodwave: lateral inflow series has %d entries for %d nodes",
					len(bc.LateralInflow), len(d.nodes))
			}
			if rate < 0 {
				return fmt.Errorf("floodwave: lateral inflow at node %d is %g m/s; inflows must be non-negative", i, rate)
			}
			d.nodes[i].LatFlux = rate
		}
		return nil
	}
}
