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

	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/floats"
)

// Results holds the recorded history of a simulation as dense
// time-by-node arrays. A run that ends early leaves the arrays truncated
// to the steps that were actually recorded.
type Results struct {
	// WaterLevel is the water surface elevation above the downstream
	// datum [m].
	WaterLevel *sparse.DenseArray

	// Depth is the water depth above the local bed [m].
	Depth *sparse.DenseArray

	// Discharge is the total discharge through the section [m³/s].
	Discharge *sparse.DenseArray

	// Velocity is the Manning velocity for the local depth and bed
	// slope [m/s].
	Velocity *sparse.DenseArray

	// FloodArea is the inundated cross-sectional area [m²].
	FloodArea *sparse.DenseArray

	// Risk is the flood risk category (1 through 4).
	Risk *sparse.DenseArray

	// Timestamps is the simulated time at the end of each recorded
	// step [s].
	Timestamps []float64

	// Distances is the distance of each node from the upstream end of
	// the reach [km].
	Distances []float64

	recorded int
}

func newResults(nsteps int, nodes []*Node) *Results {
	nn := len(nodes)
	r := &Results{
		WaterLevel: sparse.ZerosDense(nsteps, nn),
		Depth:      sparse.ZerosDense(nsteps, nn),
		Discharge:  sparse.ZerosDense(nsteps, nn),
		Velocity:   sparse.ZerosDense(nsteps, nn),
		FloodArea:  sparse.ZerosDense(nsteps, nn),
		Risk:       sparse.ZerosDense(nsteps, nn),
		Timestamps: make([]float64, nsteps),
		Distances:  make([]float64, nn),
	}
	for i, n := range nodes {
		r.Distances[i] = n.X
	}
	return r
}

// Steps returns the number of recorded timesteps.
func (r *Results) Steps() int { return r.recorded }

// NumNodes returns the number of nodes in each recorded row.
func (r *Results) NumNodes() int { return len(r.Distances) }

// MaxWaterLevel returns the highest recorded water surface
// elevation [m].
func (r *Results) MaxWaterLevel() float64 { return r.maxOf(r.WaterLevel) }

// MaxDepth returns the highest recorded water depth [m].
func (r *Results) MaxDepth() float64 { return r.maxOf(r.Depth) }

// MaxDischarge returns the highest recorded discharge [m³/s].
func (r *Results) MaxDischarge() float64 { return r.maxOf(r.Discharge) }

// MaxVelocity returns the highest recorded velocity [m/s].
func (r *Results) MaxVelocity() float64 { return r.maxOf(r.Velocity) }

// MaxFloodArea returns the highest recorded inundated area [m²].
func (r *Results) MaxFloodArea() float64 { return r.maxOf(r.FloodArea) }

// MaxRisk returns the highest recorded risk category.
func (r *Results) MaxRisk() int { return int(r.maxOf(r.Risk)) }

// HighRiskFraction returns the fraction of recorded (step, node) pairs
// at or above the high risk category.
func (r *Results) HighRiskFraction() float64 {
	n := r.recorded * r.NumNodes()
	if n == 0 {
		return 0
	}
	high := 0
	for _, v := range r.Risk.Elements[:n] {
		if v >= RiskHigh {
			high++
		}
	}
	return float64(high) / float64(n)
}

func (r *Results) maxOf(a *sparse.DenseArray) float64 {
	n := r.recorded * r.NumNodes()
	if n == 0 {
		return 0
	}
	return floats.Max(a.Elements[:n])
}

// truncate drops the rows of a run that ended before filling its step
// budget.
func (r *Results) truncate() {
	nn := r.NumNodes()
	if nn == 0 || r.recorded*nn == len(r.WaterLevel.Elements) {
		return
	}
	trim := func(a *sparse.DenseArray) *sparse.DenseArray {
		b := sparse.ZerosDense(r.recorded, nn)
		copy(b.Elements, a.Elements[:r.recorded*nn])
		return b
	}
	r.WaterLevel = trim(r.WaterLevel)
	r.Depth = trim(r.Depth)
	r.Discharge = trim(r.Discharge)
	r.Velocity = trim(r.Velocity)
	r.FloodArea = trim(r.FloodArea)
	r.Risk = trim(r.Risk)
	r.Timestamps = r.Timestamps[:r.recorded]
}

// History returns the results recorded so far, or nil before the first
// recorded step.
func (d *FloodWave) History() *Results { return d.results }

// RecordResults returns a function that appends the end-of-step state of
// every node to the result arrays. The arrays are allocated on the first
// call and sized by the step budget, so a step limit must already be in
// place. Nothing is recorded for a step that went unstable; the history
// then ends at the last stable step.
func RecordResults() DomainManipulator {

	overtopWarned := false

	return func(d *FloodWave) error {
		if d.state == StoppedUnstable {
			return nil
		}
		if d.results == nil {
			if d.nsteps <= 0 {
				return fmt.Errorf("floodwave: results cannot be recorded without a step budget")
			}
			d.results = newResults(d.nsteps, d.nodes)
		}
		r := d.results
		if r.recorded >= d.nsteps {
			return nil
		}
		t := r.recorded
		w := d.section.Width()
		for i, n := range d.nodes {
			risk := RiskLevel(n.Hf, d.bank)
			r.WaterLevel.Set(n.Z+n.Hf, t, i)
			r.Depth.Set(n.Hf, t, i)
			r.Discharge.Set(n.Qf*w, t, i)
			r.Velocity.Set(d.friction.Velocity(n.Qf, n.Hf, n.BedSlope(), n.Sec), t, i)
			r.FloodArea.Set(n.Sec.Properties(n.Hf).Area, t, i)
			r.Risk.Set(float64(risk), t, i)
			if risk == RiskSevere && !overtopWarned {
				overtopWarned = true
				d.Warningf("water overtops the bank at node %d (%.3g km) at hour %.3g",
					i, n.X, (d.t+d.Dt)*hoursPerSecond)
			}
		}
		r.Timestamps[t] = d.t + d.Dt
		r.recorded++
		return nil
	}
}

// FinalizeResults returns a function that truncates the result arrays of
// a run that ended early, so their first dimension matches the steps
// that were recorded.
func FinalizeResults() DomainManipulator {
	return func(d *FloodWave) error {
		if d.results != nil {
			d.results.truncate()
		}
		return nil
	}
}
