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

// Default channel characteristics, used when a scenario does not
// specify its own.
const (
	DefaultBottomWidth = 50.   // m
	DefaultSideSlope   = 2.    // horizontal:vertical
	DefaultRoughness   = 0.035 // Manning's n for a natural channel
)

// SectionProperties holds the hydraulic properties of a channel
// cross-section at a given water depth.
type SectionProperties struct {
	// Depth is the water depth the properties were evaluated at [m].
	Depth float64

	// Area is the flow area [m²].
	Area float64

	// TopWidth is the width of the water surface [m].
	TopWidth float64

	// WettedPerimeter is the length of the channel boundary in contact
	// with the water [m].
	WettedPerimeter float64

	// HydraulicRadius is the flow area divided by the wetted
	// perimeter [m].
	HydraulicRadius float64
}

// CrossSection describes the shape of the channel at a node.
type CrossSection interface {
	// Properties returns the hydraulic properties of the section at the
	// given water depth [m]. Implementations must treat a negative
	// depth as zero.
	Properties(depth float64) SectionProperties

	// Width returns the bottom width of the section [m], which is the
	// width the unit discharge refers to.
	Width() float64
}

// TrapezoidSection is a channel cross-section with a flat bottom and
// banks that slope outward.
type TrapezoidSection struct {
	// BottomWidth is the width of the channel bottom [m].
	BottomWidth float64

	// SideSlope is the horizontal distance the bank moves outward for
	// each meter of rise.
	SideSlope float64
}

// NewTrapezoidSection creates a trapezoidal cross-section, falling back
// to the default bottom width and side slope for non-positive arguments.
func NewTrapezoidSection(bottomWidth, sideSlope float64) TrapezoidSection {
	if bottomWidth <= 0 {
		bottomWidth = DefaultBottomWidth
	}
	if sideSlope < 0 {
		sideSlope = DefaultSideSlope
	}
	return TrapezoidSection{BottomWidth: bottomWidth, SideSlope: sideSlope}
}

// Properties returns the hydraulic properties of the trapezoid at the
// given water depth.
func (s TrapezoidSection) Properties(depth float64) SectionProperties {
	if depth < 0 {
		depth = 0
	}
	top := s.BottomWidth + 2*s.SideSlope*depth
	area := (s.BottomWidth + top) * depth / 2
	perim := s.BottomWidth + 2*depth*math.Sqrt(1+s.SideSlope*s.SideSlope)
	p := SectionProperties{
		Depth:           depth,
		Area:            area,
		TopWidth:        top,
		WettedPerimeter: perim,
	}
	if perim > 0 {
		p.HydraulicRadius = area / perim
	}
	return p
}

// Width returns the bottom width of the trapezoid.
func (s TrapezoidSection) Width() float64 { return s.BottomWidth }

// RectangleSection is a channel cross-section with vertical banks. It is
// a TrapezoidSection with a side slope of zero, kept as its own type for
// scenario configuration.
type RectangleSection struct {
	// BottomWidth is the width of the channel [m].
	BottomWidth float64
}

// Properties returns the hydraulic properties of the rectangle at the
// given water depth.
func (s RectangleSection) Properties(depth float64) SectionProperties {
	return TrapezoidSection{BottomWidth: s.BottomWidth}.Properties(depth)
}

// Width returns the width of the rectangle.
func (s RectangleSection) Width() float64 { return s.BottomWidth }
