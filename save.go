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
	"encoding/gob"
	"fmt"
	"io"

	"github.com/ctessum/geom"
)

func init() {
	gob.Register(TrapezoidSection{})
	gob.Register(RectangleSection{})
}

// reachState is the gob image of a reach: one record per node plus the
// reach-wide values that do not live on the nodes.
type reachState struct {
	Bank  float64
	Nodes []nodeState
}

type nodeState struct {
	Index   int
	X, Z    float64
	Loc     geom.Point
	Hi, Hf  float64
	Qi, Qf  float64
	LatFlux float64
	Dx      float64
	Sec     CrossSection
	Fric    Manning
}

// Save returns a function that writes the current reach state to w as a
// gob stream (format description at https://golang.org/pkg/encoding/gob/).
// A later run can Load the stream and pick the simulation up from a
// spun-up state instead of a flat initial water level.
func Save(w io.Writer) DomainManipulator {
	return func(d *FloodWave) error {
		s := reachState{Bank: d.bank, Nodes: make([]nodeState, len(d.nodes))}
		for i, n := range d.nodes {
			s.Nodes[i] = nodeState{
				Index:   n.Index,
				X:       n.X,
				Z:       n.Z,
				Loc:     n.Loc,
				Hi:      n.Hi,
				Hf:      n.Hf,
				Qi:      n.Qi,
				Qf:      n.Qf,
				LatFlux: n.LatFlux,
				Dx:      n.Dx,
				Sec:     n.Sec,
				Fric:    n.Fric,
			}
		}
		if err := gob.NewEncoder(w).Encode(s); err != nil {
			return fmt.Errorf("floodwave: saving reach state: %v", err)
		}
		return nil
	}
}

// Load returns a function that rebuilds the reach from a state
// previously written by Save. It takes the place of RegularReach and
// InitialState when initializing a new simulation; the boundary series
// of the new scenario start over at step zero.
func Load(r io.Reader) DomainManipulator {
	return func(d *FloodWave) error {
		var s reachState
		if err := gob.NewDecoder(r).Decode(&s); err != nil {
			return fmt.Errorf("floodwave: loading reach state: %v", err)
		}
		if len(s.Nodes) < 3 {
			return fmt.Errorf("floodwave: loaded reach has %d nodes; at least 3 are required", len(s.Nodes))
		}
		d.initFromState(s)
		return nil
	}
}

func (d *FloodWave) initFromState(s reachState) {
	d.bank = s.Bank
	d.nodes = make([]*Node, len(s.Nodes))
	for i, ns := range s.Nodes {
		d.nodes[i] = &Node{
			Index:   ns.Index,
			X:       ns.X,
			Z:       ns.Z,
			Loc:     ns.Loc,
			Hi:      ns.Hi,
			Hf:      ns.Hf,
			Qi:      ns.Qi,
			Qf:      ns.Qf,
			LatFlux: ns.LatFlux,
			Dx:      ns.Dx,
			Sec:     ns.Sec,
			Fric:    ns.Fric,
		}
	}
	for i, n := range d.nodes {
		if i > 0 {
			n.up = d.nodes[i-1]
		}
		if i < len(d.nodes)-1 {
			n.down = d.nodes[i+1]
		}
	}
	d.dx = d.nodes[0].Dx
	d.section = d.nodes[0].Sec
	d.friction = d.nodes[0].Fric
}
