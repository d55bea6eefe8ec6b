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

import "math"

// Manning holds the Manning friction characteristics of a channel.
type Manning struct {
	// N is Manning's roughness coefficient [s/m^(1/3)].
	N float64
}

// NewManning creates a Manning friction model, falling back to the
// default roughness for a non-positive coefficient.
func NewManning(n float64) Manning {
	if n <= 0 {
		n = DefaultRoughness
	}
	return Manning{N: n}
}

// Velocity returns the Manning flow velocity [m/s] for the given water
// depth [m] and energy slope [m/m] in the cross-section sec. The sign of
// q sets the sign of the result; a non-positive depth or slope gives
// zero.
func (m Manning) Velocity(q, depth, slope float64, sec CrossSection) float64 {
	if depth <= 0 || slope <= 0 || m.N <= 0 {
		return 0
	}
	r := sec.Properties(depth).HydraulicRadius
	if r <= 0 {
		return 0
	}
	v := math.Pow(r, 2./3.) * math.Sqrt(slope) / m.N
	if q < 0 {
		return -v
	}
	return v
}

// FrictionSlope returns the slope of the energy grade line [m/m] caused
// by boundary friction, for the flow velocity v [m/s] and hydraulic
// radius r [m]. The result carries the sign of v so that friction always
// opposes the flow.
func (m Manning) FrictionSlope(v, r float64) float64 {
	if r <= 0 {
		return 0
	}
	return m.N * m.N * v * math.Abs(v) / math.Pow(r, 4./3.)
}
