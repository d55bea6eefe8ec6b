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
	"strings"
	"testing"
)

// validationHistory builds a 2-step, 3-node history with a calm reach:
// levels up to 12 m, velocities up to 2 m/s, and a uniform 1000 m³/s.
func validationHistory() *Results {
	nodes := []*Node{{X: 0}, {X: 1}, {X: 2}}
	r := newResults(2, nodes)
	r.recorded = 2
	for step := 0; step < 2; step++ {
		for i := 0; i < 3; i++ {
			r.WaterLevel.Set(10+float64(step), step, i)
			r.Depth.Set(5, step, i)
			r.Discharge.Set(1000, step, i)
			r.Velocity.Set(2, step, i)
			r.Risk.Set(float64(RiskLow), step, i)
		}
	}
	r.WaterLevel.Set(12, 1, 2)
	return r
}

func TestValidateCleanResult(t *testing.T) {
	v := Validate(validationHistory(), ValidationThresholds{MaxWaterLevel: 15, MaxVelocity: 5})
	if !v.Valid {
		t.Errorf("a clean history should be valid; errors: %v", v.Errors)
	}
	if len(v.Errors) != 0 || len(v.Warnings) != 0 {
		t.Errorf("unexpected findings: errors=%v warnings=%v", v.Errors, v.Warnings)
	}
	if v.Score != 1 {
		t.Errorf("score=%g, want 1", v.Score)
	}
}

func TestValidateThresholds(t *testing.T) {
	r := validationHistory()

	v := Validate(r, ValidationThresholds{MaxWaterLevel: 11})
	if v.Valid || len(v.Errors) != 1 {
		t.Errorf("exceeding the level limit should be an error; got %+v", v)
	}
	if absDifferent(v.Score, 0.75, 1e-12) {
		t.Errorf("score=%g, want 0.75", v.Score)
	}

	v = Validate(r, ValidationThresholds{MaxWaterLevel: 11, MaxVelocity: 1})
	if len(v.Errors) != 2 {
		t.Errorf("got %d errors, want 2: %v", len(v.Errors), v.Errors)
	}
	if absDifferent(v.Score, 0.5, 1e-12) {
		t.Errorf("score=%g, want 0.5", v.Score)
	}

	// Zero thresholds disable the checks entirely.
	v = Validate(r, ValidationThresholds{})
	if !v.Valid || len(v.Errors) != 0 {
		t.Errorf("disabled thresholds should not flag anything: %+v", v)
	}
}

func TestValidateDischargeVariability(t *testing.T) {
	r := validationHistory()
	r.Discharge.Set(100, 1, 1)
	r.Discharge.Set(10, 1, 2)

	v := Validate(r, ValidationThresholds{})
	if !v.Valid {
		t.Errorf("variability is a warning, not an error: %+v", v)
	}
	if len(v.Warnings) != 1 || !strings.Contains(v.Warnings[0], "varies") {
		t.Errorf("warnings are %v", v.Warnings)
	}
	if absDifferent(v.Score, 0.9, 1e-12) {
		t.Errorf("score=%g, want 0.9", v.Score)
	}
}

func TestValidateOvertopping(t *testing.T) {
	r := validationHistory()
	r.Risk.Set(float64(RiskSevere), 1, 0)

	v := Validate(r, ValidationThresholds{})
	if !v.Valid {
		t.Errorf("overtopping is a warning, not an error: %+v", v)
	}
	if len(v.Warnings) != 1 || !strings.Contains(v.Warnings[0], "overtops") {
		t.Errorf("warnings are %v", v.Warnings)
	}
}

func TestValidateEmpty(t *testing.T) {
	for _, r := range []*Results{nil, newResults(2, []*Node{{X: 0}})} {
		v := Validate(r, ValidationThresholds{})
		if v.Valid || len(v.Errors) != 1 {
			t.Errorf("an empty history should be invalid: %+v", v)
		}
	}
}

func TestValidationScoreFloor(t *testing.T) {
	r := validationHistory()
	r.Discharge.Set(100, 1, 1)
	r.Discharge.Set(10, 1, 2)
	r.Risk.Set(float64(RiskSevere), 1, 0)

	v := Validate(r, ValidationThresholds{MaxWaterLevel: 11, MaxVelocity: 1})
	if absDifferent(v.Score, 0.3, 1e-12) { // 2 errors and 2 warnings
		t.Errorf("score=%g, want 0.3", v.Score)
	}
	if v.Score < 0 {
		t.Errorf("score=%g; it should never go negative", v.Score)
	}
}
