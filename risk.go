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

import "fmt"

// Flood risk categories for a node, derived from how close the water
// surface is to the top of the bank.
const (
	RiskLow      = 1 // water below 80% of the bank height
	RiskModerate = 2 // water between 80% and 95% of the bank height
	RiskHigh     = 3 // water within 5% of the bank height
	RiskSevere   = 4 // water more than 5% above the bank height
)

// RiskLevel categorizes the flood risk at a node from the ratio of the
// water depth to the bank height. A non-positive bank height means any
// water at all overtops.
func RiskLevel(depth, bankHeight float64) int {
	if bankHeight <= 0 {
		if depth > 0 {
			return RiskSevere
		}
		return RiskLow
	}
	ratio := depth / bankHeight
	switch {
	case ratio < 0.8:
		return RiskLow
	case ratio < 0.95:
		return RiskModerate
	case ratio <= 1.05:
		return RiskHigh
	default:
		return RiskSevere
	}
}

// RiskName returns the human-readable name of a risk category.
func RiskName(level int) string {
	switch level {
	case RiskLow:
		return "low"
	case RiskModerate:
		return "moderate"
	case RiskHigh:
		return "high"
	case RiskSevere:
		return "severe"
	default:
		return fmt.Sprintf("unknown risk level %d", level)
	}
}
