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
	"math"
	"sync"

	"github.com/ctessum/geom"
)

// Node is a holder for the local state of one computation point along
// the reach. Nodes are ordered from upstream to downstream, so "up" is
// the neighbor with the smaller index.
type Node struct {
	sync.RWMutex

	// Index is the position of the node in the reach, increasing in the
	// downstream direction.
	Index int

	// X is the distance from the upstream end of the reach [km].
	X float64

	// Z is the bed elevation above the downstream datum [m].
	Z float64

	// Loc is the map coordinate of the node.
	Loc geom.Point

	// Hi and Hf are the water depths at the beginning and end of the
	// current timestep [m].
	Hi, Hf float64

	// Qi and Qf are the unit discharges (discharge per meter of channel
	// width) at the beginning and end of the current timestep [m²/s].
	Qi, Qf float64

	// LatFlux is the lateral inflow to this node, expressed as a depth
	// rate [m/s].
	LatFlux float64

	// Dx is the spacing to the neighboring nodes [m].
	Dx float64

	// Sec is the channel cross-section at this node and Fric its
	// friction characteristics.
	Sec  CrossSection
	Fric Manning

	up, down *Node
}

// Up returns the upstream neighbor of this node, or nil at the upstream
// boundary.
func (n *Node) Up() *Node { return n.up }

// Down returns the downstream neighbor of this node, or nil at the
// downstream boundary.
func (n *Node) Down() *Node { return n.down }

// Boundary reports whether this node is at either end of the reach.
func (n *Node) Boundary() bool { return n.up == nil || n.down == nil }

// BedSlope returns the local bed slope [m/m], positive when the bed
// falls in the downstream direction. Interior nodes use a centered
// difference; the end nodes use a one-sided difference.
func (n *Node) BedSlope() float64 {
	switch {
	case n.up == nil && n.down == nil:
		return 0
	case n.up == nil:
		return (n.Z - n.down.Z) / n.Dx
	case n.down == nil:
		return (n.up.Z - n.Z) / n.Dx
	default:
		return (n.up.Z - n.down.Z) / (2 * n.Dx)
	}
}

// WaterLevel returns the water surface elevation above the downstream
// datum at the end of the current timestep [m].
func (n *Node) WaterLevel() float64 { return n.Z + n.Hf }

// String returns a summary of the node state for log messages.
func (n *Node) String() string {
	return fmt.Sprintf("node %d (%.3g km): h=%.4g m, q=%.4g m²/s",
		n.Index, n.X, n.Hf, n.Qf)
}

// ReachConfig is a holder for the configuration information for creating
// a regularly spaced river reach.
type ReachConfig struct {
	// LengthKm is the length of the modeled reach [km].
	LengthKm float64

	// DxKm is the spacing between computation nodes [km].
	DxKm float64

	// BedSlope is the longitudinal slope of the channel bed [m/m],
	// positive when the bed falls in the downstream direction.
	BedSlope float64

	// BankHeight is the height of the channel banks above the local
	// bed [m].
	BankHeight float64

	// Centerline optionally gives the map-coordinate course of the
	// river, ordered from upstream to downstream. When it is set, node
	// locations are interpolated along it; otherwise the nodes are laid
	// out on a straight eastward line from the origin.
	Centerline geom.LineString
}

// RegularReach returns a function that creates the computation nodes for
// the reach described by cfg, with the cross-section sec and the friction
// characteristics fric applied uniformly. The bed elevation decreases
// linearly in the downstream direction, with the datum at the downstream
// end.
func (cfg *ReachConfig) RegularReach(sec CrossSection, fric Manning) DomainManipulator {
	return func(d *FloodWave) error {
		if cfg.LengthKm <= 0 {
			return fmt.Errorf("floodwave: reach length must be positive but is %g km", cfg.LengthKm)
		}
		if cfg.DxKm <= 0 {
			return fmt.Errorf("floodwave: node spacing must be positive but is %g km", cfg.DxKm)
		}
		if cfg.BedSlope < 0 {
			return fmt.Errorf("floodwave: bed slope must be non-negative but is %g", cfg.BedSlope)
		}
		nn := int(cfg.LengthKm/cfg.DxKm) + 1
		if nn < 3 {
			return fmt.Errorf("floodwave: a %g km reach at %g km spacing has %d nodes; at least 3 are required",
				cfg.LengthKm, cfg.DxKm, nn)
		}
		dx := cfg.DxKm * 1000
		d.dx = dx
		d.section = sec
		d.friction = fric
		d.bank = cfg.BankHeight
		d.nodes = make([]*Node, nn)
		for i := range d.nodes {
			x := float64(i) * cfg.DxKm
			d.nodes[i] = &Node{
				Index: i,
				X:     x,
				Z:     cfg.BedSlope * (cfg.LengthKm - x) * 1000,
				Loc:   cfg.locate(x),
				Dx:    dx,
				Sec:   sec,
				Fric:  fric,
			}
		}
		for i, n := range d.nodes {
			if i > 0 {
				n.up = d.nodes[i-1]
			}
			if i < nn-1 {
				n.down = d.nodes[i+1]
			}
		}
		return nil
	}
}

// locate returns the map coordinate of the point x km downstream of the
// upstream end of the reach.
func (cfg *ReachConfig) locate(x float64) geom.Point {
	if len(cfg.Centerline) < 2 {
		return geom.Point{X: x * 1000}
	}
	total := 0.
	for i := 0; i < len(cfg.Centerline)-1; i++ {
		total += segLength(cfg.Centerline[i], cfg.Centerline[i+1])
	}
	want := x / cfg.LengthKm * total
	for i := 0; i < len(cfg.Centerline)-1; i++ {
		a, b := cfg.Centerline[i], cfg.Centerline[i+1]
		l := segLength(a, b)
		if want <= l || i == len(cfg.Centerline)-2 {
			frac := 0.
			if l > 0 {
				frac = math.Min(want/l, 1)
			}
			return geom.Point{
				X: a.X + (b.X-a.X)*frac,
				Y: a.Y + (b.Y-a.Y)*frac,
			}
		}
		want -= l
	}
	return cfg.Centerline[len(cfg.Centerline)-1]
}

func segLength(a, b geom.Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

// InitialState returns a function that sets a uniform starting depth and
// a uniform starting unit discharge at every node, so the reach begins
// in plausible motion rather than from rest.
func InitialState(depth, q float64) DomainManipulator {
	return func(d *FloodWave) error {
		if depth < 0 {
			return fmt.Errorf("floodwave: initial depth must be non-negative but is %g m", depth)
		}
		for _, n := range d.nodes {
			n.Hi, n.Hf = depth, depth
			n.Qi, n.Qf = q, q
		}
		return nil
	}
}
