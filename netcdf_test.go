/*
Copyright © 2018 the FloodWave authors.
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
	"os"
	"path/filepath"
	"testing"

	"github.com/ctessum/cdf"
)

func TestResultsRoundTrip(t *testing.T) {
	cfg, sec, fric, _ := ReachTestData()

	d := &FloodWave{
		InitFuncs: []DomainManipulator{
			cfg.RegularReach(sec, fric),
			InitialState(5, 10),
		},
		RunFuncs: []DomainManipulator{
			StepLimit(3),
			RecordResults(),
		},
		Dt: 60,
	}
	if err := d.Init(); err != nil {
		t.Fatal(err)
	}
	if err := d.Run(); err != nil {
		t.Fatal(err)
	}

	fileName := filepath.Join(t.TempDir(), "results.nc")
	if err := WriteResults(fileName)(d); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(fileName)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	r, err := ReadResults(f)
	if err != nil {
		t.Fatal(err)
	}

	if r.Steps() != 3 || r.NumNodes() != 11 {
		t.Fatalf("read %d steps over %d nodes, want 3 over 11", r.Steps(), r.NumNodes())
	}
	for i, want := range []float64{60, 120, 180} {
		if absDifferent(r.Timestamps[i], want, 1e-4) {
			t.Errorf("timestamp %d is %g s, want %g", i, r.Timestamps[i], want)
		}
	}
	for i := range r.Distances {
		if absDifferent(r.Distances[i], float64(i), 1e-4) {
			t.Errorf("distance %d is %g km, want %g", i, r.Distances[i], float64(i))
		}
	}

	orig := d.History()
	// Writing squeezes the values to 32 bits, so compare loosely.
	for step := 0; step < 3; step++ {
		for i := 0; i < 11; i++ {
			if different(r.Depth.Get(step, i), orig.Depth.Get(step, i), 1e-6) {
				t.Errorf("depth at (%d, %d) is %g, want %g",
					step, i, r.Depth.Get(step, i), orig.Depth.Get(step, i))
			}
			if different(r.Velocity.Get(step, i), orig.Velocity.Get(step, i), 1e-6) {
				t.Errorf("velocity at (%d, %d) is %g, want %g",
					step, i, r.Velocity.Get(step, i), orig.Velocity.Get(step, i))
			}
		}
	}
	if r.Risk.Get(0, 0) != float64(RiskLow) {
		t.Errorf("risk at (0, 0) is %g, want %d", r.Risk.Get(0, 0), RiskLow)
	}
	if different(r.MaxWaterLevel(), orig.MaxWaterLevel(), 1e-6) {
		t.Errorf("max water level read back as %g, want %g", r.MaxWaterLevel(), orig.MaxWaterLevel())
	}
}

func TestWriteResultsWithoutHistory(t *testing.T) {
	d := new(FloodWave)
	if err := WriteResults(filepath.Join(t.TempDir(), "none.nc"))(d); err == nil {
		t.Error("writing a run without recorded results should fail")
	}
}

func TestReadResultsVersionMismatch(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "old.nc")

	h := cdf.NewHeader([]string{"time", "node"}, []int{1, 2})
	h.AddAttribute("", "data_version", "0.0.1")
	h.AddVariable("Time", []string{"time"}, []float32{0})
	h.Define()

	w, err := os.Create(fileName)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := cdf.Create(w, h); err != nil {
		t.Fatal(err)
	}
	if err := cdf.UpdateNumRecs(w); err != nil {
		t.Fatal(err)
	}
	w.Close()

	f, err := os.Open(fileName)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := ReadResults(f); err == nil {
		t.Error("a results file with a stale version should be rejected")
	}
}
