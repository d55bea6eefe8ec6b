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

// This file implements an explicit finite-difference solution of the
// one-dimensional Saint-Venant equations. Depths and unit discharges are
// double-buffered: the "i" fields hold the committed state at the
// beginning of the timestep and the "f" fields accumulate the state for
// the end of it. AddLateralFlux commits the buffers, so it must run in
// its own Calculations barrier before the derivative calculations.

const (
	// g is the gravitational acceleration [m/s²].
	g = 9.81

	// dryDepth is the depth below which a node is treated as dry [m].
	dryDepth = 1.e-6
)

// InjectBoundaries returns a function that applies the boundary forcing
// for the current timestep: the upstream inflow becomes the unit
// discharge at the first node and the downstream water level becomes the
// depth at the last node. The two boundary unknowns the forcing leaves
// open, depth at the first node and discharge at the last, are copied
// from their interior neighbors with a zero-gradient assumption. A
// downstream level below the local bed is clamped to a dry boundary.
func InjectBoundaries(bc *BoundaryConditions) DomainManipulator {

	upWarned, downWarned, clampWarned := false, false, false

	return func(d *FloodWave) error {
		first := d.nodes[0]
		last := d.nodes[len(d.nodes)-1]
		w := d.section.Width()

		flow, held := bc.Upstream(d.step)
		if held && !upWarned {
			upWarned = true
			d.Warningf("upstream flow series ran out at step %d; holding %g m³/s for the remaining steps",
				d.step, flow)
		}
		first.Qf = flow / w
		first.Hf = first.down.Hf

		level, held := bc.Downstream(d.step)
		if held && !downWarned {
			downWarned = true
			d.Warningf("downstream level series ran out at step %d; holding %g m for the remaining steps",
				d.step, level)
		}
		depth := level - last.Z
		if depth < 0 {
			if !clampWarned {
				clampWarned = true
				d.Warningf("downstream level %g m at step %d is below the bed; clamping the boundary depth to zero",
					level, d.step)
			}
			depth = 0
		}
		last.Hf = depth
		last.Qf = last.up.Qf

		d.volIn += flow * d.Dt
		d.volOut += last.Qf * w * d.Dt
		return nil
	}
}

// AddLateralFlux returns a function that adds the lateral inflow
// accumulated over one timestep to a node and then commits the state
// buffers, so that the calculations that follow all read the same
// beginning-of-step values.
func AddLateralFlux() NodeManipulator {
	return func(n *Node, Δt float64) {
		n.Hf += n.LatFlux * Δt
		n.Hi = n.Hf
		n.Qi = n.Qf
	}
}

// Continuity returns a function that advances the water depth at a node
// from the divergence of the unit discharge at its neighbors.
func Continuity() NodeManipulator {
	return func(n *Node, Δt float64) {
		if n.Boundary() {
			return
		}
		n.Hf -= (n.down.Qi - n.up.Qi) / (2 * n.Dx) * Δt
	}
}

// Momentum returns a function that advances the unit discharge at a node
// from the advection, pressure, bed slope, and friction terms. Dry nodes
// carry no momentum and are skipped.
func Momentum() NodeManipulator {
	return func(n *Node, Δt float64) {
		if n.Boundary() || n.Hi <= dryDepth {
			return
		}

		adv := (advFlux(n.down.Qi, n.down.Hi) - advFlux(n.up.Qi, n.up.Hi)) / (2 * n.Dx)

		dhdx := (n.down.Hi - n.up.Hi) / (2 * n.Dx)
		dzdx := (n.down.Z - n.up.Z) / (2 * n.Dx)

		v := n.Qi / n.Hi
		r := n.Sec.Properties(n.Hi).HydraulicRadius
		sf := n.Fric.FrictionSlope(v, r)

		n.Qf -= (adv + g*n.Hi*(dhdx+dzdx) + g*n.Hi*sf) * Δt
	}
}

// advFlux is the momentum flux q²/h through a node, zero when the node
// is dry.
func advFlux(q, h float64) float64 {
	if h <= dryDepth {
		return 0
	}
	return q * q / h
}

// VolumeIn returns the cumulative volume that has entered the reach
// through the upstream boundary [m³].
func (d *FloodWave) VolumeIn() float64 { return d.volIn }

// VolumeOut returns the cumulative volume that has left the reach
// through the downstream boundary [m³].
func (d *FloodWave) VolumeOut() float64 { return d.volOut }

// StoredVolume returns the volume of water in the reach [m³] as the
// scheme accounts for it, with the depths taken over the reference
// channel width.
func (d *FloodWave) StoredVolume() float64 {
	w := d.section.Width()
	v := 0.
	for _, n := range d.nodes {
		v += n.Hf * w * n.Dx
	}
	return v
}

func max(vals ...float64) float64 {
	m := vals[0]
	for _, v := range vals {
		if v > m {
			m = v
		}
	}
	return m
}

func amin(vals ...float64) float64 {
	m := vals[0]
	for _, v := range vals {
		if v < m {
			m = v
		}
	}
	return m
}
