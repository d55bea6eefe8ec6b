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
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// ValidationThresholds are the limits a recorded history is checked
// against. A zero threshold disables its check.
type ValidationThresholds struct {
	// MaxWaterLevel is the highest acceptable water surface elevation
	// above the downstream datum [m].
	MaxWaterLevel float64

	// MaxVelocity is the highest acceptable flow velocity [m/s].
	MaxVelocity float64
}

// Validation holds the findings from checking a recorded history.
type Validation struct {
	// Errors are the findings severe enough to make the result invalid.
	Errors []string

	// Warnings are findings worth reporting that do not invalidate the
	// result.
	Warnings []string

	// Valid is true when no errors were found.
	Valid bool

	// Score summarizes the findings in [0, 1]: 1 for a clean result,
	// decaying with every error and warning.
	Score float64
}

// dischargeVariabilityLimit is the coefficient of variation of the
// final-step discharge above which the spatial discharge pattern is
// considered suspect.
const dischargeVariabilityLimit = 0.5

// Validate checks the recorded history r against the given thresholds.
// It only ever flags findings; a poor result comes back described, not
// as an error.
func Validate(r *Results, t ValidationThresholds) *Validation {
	v := new(Validation)

	if r == nil || r.recorded == 0 {
		v.Errors = append(v.Errors, "no results were recorded")
		return v.score()
	}

	if lvl := r.MaxWaterLevel(); t.MaxWaterLevel > 0 && lvl > t.MaxWaterLevel {
		v.Errors = append(v.Errors, fmt.Sprintf(
			"the highest water level %.4g m exceeds the limit %.4g m", lvl, t.MaxWaterLevel))
	}
	if vel := r.MaxVelocity(); t.MaxVelocity > 0 && vel > t.MaxVelocity {
		v.Errors = append(v.Errors, fmt.Sprintf(
			"the highest velocity %.4g m/s exceeds the limit %.4g m/s", vel, t.MaxVelocity))
	}

	nn := r.NumNodes()
	final := r.Discharge.Elements[(r.recorded-1)*nn : r.recorded*nn]
	if mean := stat.Mean(final, nil); mean > 0 {
		if cv := stat.StdDev(final, nil) / mean; cv > dischargeVariabilityLimit {
			v.Warnings = append(v.Warnings, fmt.Sprintf(
				"the final-step discharge varies strongly along the reach (coefficient of variation %.3g)", cv))
		}
	}

	if r.MaxRisk() >= RiskSevere {
		v.Warnings = append(v.Warnings, "the water overtops the bank during the run")
	}

	return v.score()
}

// score derives the validity flag and the summary score from the
// findings collected so far.
func (v *Validation) score() *Validation {
	v.Valid = len(v.Errors) == 0
	v.Score = math.Max(0, 1-0.25*float64(len(v.Errors))-0.1*float64(len(v.Warnings)))
	return v
}
