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
	"testing"
)

// workedReach builds the smallest legal reach: 3 nodes 1 km apart on a
// 1e-4 slope, so the bed elevations are 0.2, 0.1, and 0 m.
func workedReach(t *testing.T) *FloodWave {
	cfg := &ReachConfig{LengthKm: 2, DxKm: 1, BedSlope: 1e-4, BankHeight: 8}
	sec := NewTrapezoidSection(50, 2)
	fric := NewManning(0.035)

	d := &FloodWave{
		InitFuncs: []DomainManipulator{cfg.RegularReach(sec, fric)},
	}
	if err := d.Init(); err != nil {
		t.Fatal(err)
	}
	return d
}

func TestContinuity(t *testing.T) {
	d := workedReach(t)
	d.Dt = 10

	for i, n := range d.Nodes() {
		n.Hi, n.Hf = 2, 2
		n.Qi, n.Qf = 4+float64(i), 4+float64(i)
	}
	if err := Calculations(Continuity())(d); err != nil {
		t.Fatal(err)
	}

	nodes := d.Nodes()
	// dh/dt = -(6-4)/(2*1000), over 10 s.
	if absDifferent(nodes[1].Hf, 1.99, 1e-12) {
		t.Errorf("interior depth=%g m (it should equal 1.99)", nodes[1].Hf)
	}
	if nodes[0].Hf != 2 || nodes[2].Hf != 2 {
		t.Errorf("boundary depths are %g and %g m; continuity should not touch them",
			nodes[0].Hf, nodes[2].Hf)
	}
	// Depth updates read the committed discharges, not the in-progress
	// ones, so the advance is independent of Qf.
	for _, n := range nodes {
		if n.Qf != 4+float64(n.Index) {
			t.Errorf("node %d discharge=%g; continuity should not touch it", n.Index, n.Qf)
		}
	}
}

func TestMomentum(t *testing.T) {
	d := workedReach(t)
	d.Dt = 10

	for i, n := range d.Nodes() {
		n.Hi, n.Hf = 2, 2
		n.Qi, n.Qf = 4+float64(i), 4+float64(i)
	}
	if err := Calculations(Momentum())(d); err != nil {
		t.Fatal(err)
	}

	nodes := d.Nodes()
	sec := NewTrapezoidSection(50, 2)
	fric := NewManning(0.035)

	// Assemble the expected advance for the middle node by hand:
	// advection (36/2-16/2)/2000, no depth gradient, bed slope -1e-4,
	// and Manning friction at v=2.5 m/s.
	adv := (36./2. - 16./2.) / 2000.
	sf := fric.FrictionSlope(2.5, sec.Properties(2).HydraulicRadius)
	want := 5 - (adv+g*2*(-1e-4)+g*2*sf)*10

	if absDifferent(nodes[1].Qf, want, 1e-9) {
		t.Errorf("interior discharge=%g m²/s (it should equal %g)", nodes[1].Qf, want)
	}
	if absDifferent(nodes[1].Qf, 4.29962, 1e-3) {
		t.Errorf("interior discharge=%g m²/s (it should equal about 4.2996)", nodes[1].Qf)
	}
	if nodes[0].Qf != 4 || nodes[2].Qf != 6 {
		t.Errorf("boundary discharges are %g and %g; momentum should not touch them",
			nodes[0].Qf, nodes[2].Qf)
	}
	for _, n := range nodes {
		if n.Hf != 2 {
			t.Errorf("node %d depth=%g; momentum should not touch it", n.Index, n.Hf)
		}
	}
}

func TestMomentumBedSlopeAcceleration(t *testing.T) {
	cfg := &ReachConfig{LengthKm: 2, DxKm: 1, BedSlope: 0.001, BankHeight: 8}
	sec := NewTrapezoidSection(50, 2)
	fric := NewManning(0.035)

	d := &FloodWave{
		InitFuncs: []DomainManipulator{
			cfg.RegularReach(sec, fric),
			InitialState(2, 0),
		},
	}
	if err := d.Init(); err != nil {
		t.Fatal(err)
	}
	d.Dt = 10

	if err := Calculations(Momentum())(d); err != nil {
		t.Fatal(err)
	}
	// Still water on a falling bed accelerates downstream by g*h*S0*dt.
	want := g * 2 * 0.001 * 10
	if different(d.Nodes()[1].Qf, want, 1e-9) {
		t.Errorf("discharge=%g m²/s (it should equal %g)", d.Nodes()[1].Qf, want)
	}
}

func TestMomentumSkipsDryNodes(t *testing.T) {
	d := workedReach(t)
	d.Dt = 10

	for _, n := range d.Nodes() {
		n.Hi, n.Hf = 2, 2
		n.Qi, n.Qf = 5, 5
	}
	mid := d.Nodes()[1]
	mid.Hi, mid.Hf = 0, 0

	if err := Calculations(Momentum())(d); err != nil {
		t.Fatal(err)
	}
	if mid.Qf != 5 {
		t.Errorf("dry node discharge=%g; it should not change", mid.Qf)
	}
}

func TestAddLateralFlux(t *testing.T) {
	d := workedReach(t)
	d.Dt = 60

	for _, n := range d.Nodes() {
		n.Hf, n.Qf = 3, 7
		n.Hi, n.Qi = 0, 0 // stale values from the previous step
		n.LatFlux = 2e-5
	}
	if err := Calculations(AddLateralFlux())(d); err != nil {
		t.Fatal(err)
	}
	for _, n := range d.Nodes() {
		if absDifferent(n.Hf, 3.0012, 1e-12) {
			t.Errorf("node %d depth=%g m (it should equal 3.0012)", n.Index, n.Hf)
		}
		if n.Hi != n.Hf || n.Qi != n.Qf {
			t.Errorf("node %d state was not committed: Hi=%g Hf=%g Qi=%g Qf=%g",
				n.Index, n.Hi, n.Hf, n.Qi, n.Qf)
		}
	}
}

func TestInjectBoundaries(t *testing.T) {
	d := workedReach(t)
	d.Dt = 60

	for _, n := range d.Nodes() {
		n.Hi, n.Hf = 3, 3
		n.Qi, n.Qf = 9, 9
	}

	bc, err := NewBoundaryConditions([]float64{1000, 2000}, []float64{5, 4})
	if err != nil {
		t.Fatal(err)
	}
	inject := InjectBoundaries(bc)
	if err := inject(d); err != nil {
		t.Fatal(err)
	}

	nodes := d.Nodes()
	if absDifferent(nodes[0].Qf, 20, 1e-12) { // 1000 m³/s over 50 m
		t.Errorf("upstream discharge=%g m²/s (it should equal 20)", nodes[0].Qf)
	}
	if nodes[0].Hf != nodes[1].Hf {
		t.Errorf("upstream depth=%g; it should copy its neighbor's %g", nodes[0].Hf, nodes[1].Hf)
	}
	if absDifferent(nodes[2].Hf, 5, 1e-12) { // level 5 m over a bed at the datum
		t.Errorf("downstream depth=%g m (it should equal 5)", nodes[2].Hf)
	}
	if nodes[2].Qf != nodes[1].Qf {
		t.Errorf("downstream discharge=%g; it should copy its neighbor's %g", nodes[2].Qf, nodes[1].Qf)
	}
	if absDifferent(d.VolumeIn(), 60000, 1e-9) {
		t.Errorf("inflow volume=%g m³ (it should equal 60000)", d.VolumeIn())
	}
	if absDifferent(d.VolumeOut(), 9*50*60, 1e-9) {
		t.Errorf("outflow volume=%g m³ (it should equal %g)", d.VolumeOut(), 9.*50.*60.)
	}
	if len(d.Warnings()) != 0 {
		t.Errorf("unexpected warnings: %v", d.Warnings())
	}

	// Step beyond both series: the last values hold and each series
	// warns once.
	d.step = 5
	if err := inject(d); err != nil {
		t.Fatal(err)
	}
	if err := inject(d); err != nil {
		t.Fatal(err)
	}
	if absDifferent(nodes[0].Qf, 40, 1e-12) {
		t.Errorf("held upstream discharge=%g m²/s (it should equal 40)", nodes[0].Qf)
	}
	if absDifferent(nodes[2].Hf, 4, 1e-12) {
		t.Errorf("held downstream depth=%g m (it should equal 4)", nodes[2].Hf)
	}
	if w := d.Warnings(); len(w) != 2 {
		t.Errorf("got %d warnings, want one for each exhausted series: %v", len(w), w)
	}
}

func TestInjectBoundariesClampsDryDownstream(t *testing.T) {
	d := workedReach(t)
	d.Dt = 60

	bc, err := NewBoundaryConditions([]float64{1000}, []float64{-1})
	if err != nil {
		t.Fatal(err)
	}
	if err := InjectBoundaries(bc)(d); err != nil {
		t.Fatal(err)
	}
	last := d.Nodes()[2]
	if last.Hf != 0 {
		t.Errorf("downstream depth=%g m; a level below the bed should clamp to dry", last.Hf)
	}
	if len(d.Warnings()) != 1 {
		t.Errorf("got %d warnings, want 1: %v", len(d.Warnings()), d.Warnings())
	}
}

func TestManningEquilibrium(t *testing.T) {
	const numTimesteps = 5

	cfg := &ReachConfig{LengthKm: 10, DxKm: 1, BedSlope: 0.001, BankHeight: 15}
	sec := NewTrapezoidSection(50, 2)
	fric := NewManning(0.06)

	// The discrete steady state: 10 m of water flowing at the Manning
	// velocity for the bed slope, forced by matching boundaries.
	q := fric.Velocity(1, 10, 0.001, sec) * 10
	bc, err := NewBoundaryConditions([]float64{q * sec.Width()}, []float64{10})
	if err != nil {
		t.Fatal(err)
	}

	d := &FloodWave{
		InitFuncs: []DomainManipulator{
			cfg.RegularReach(sec, fric),
			InitialState(10, q),
		},
		RunFuncs: []DomainManipulator{
			InjectBoundaries(bc),
			Calculations(AddLateralFlux()),
			Calculations(Continuity(), Momentum()),
			StepLimit(numTimesteps),
		},
		Dt: 60,
	}
	if err := d.Init(); err != nil {
		t.Fatal(err)
	}
	if err := d.Run(); err != nil {
		t.Fatal(err)
	}

	for _, n := range d.Nodes() {
		if absDifferent(n.Hf, 10, 1e-9) {
			t.Errorf("node %d depth=%g m; the equilibrium should not drift", n.Index, n.Hf)
		}
		if absDifferent(n.Qf, q, 1e-9) {
			t.Errorf("node %d discharge=%g m²/s (it should stay %g)", n.Index, n.Qf, q)
		}
	}

	// What flows in flows out.
	if different(d.VolumeIn(), d.VolumeOut(), 1e-9) {
		t.Errorf("inflow volume=%g m³, outflow volume=%g m³; they should balance",
			d.VolumeIn(), d.VolumeOut())
	}
	// 10 m of water over a 50 m wide, 11 km long accounting span.
	if different(d.StoredVolume(), 5.5e6, 1e-9) {
		t.Errorf("stored volume=%g m³ (it should equal 5.5e6)", d.StoredVolume())
	}
}
