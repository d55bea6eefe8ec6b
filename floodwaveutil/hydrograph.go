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

package floodwaveutil

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"strconv"
	"sync"

	"github.com/ctessum/requestcache"
	"github.com/hydromodel/floodwave"
	"github.com/tealeg/xlsx"
)

// A Hydrograph is a discharge time series observed or forecast at the
// upstream end of a reach. Times are seconds since the start of the
// simulation and must be strictly increasing; Flows are the corresponding
// discharges [m³/s].
type Hydrograph struct {
	Times, Flows []float64
}

var (
	hydrographCacheOnce sync.Once
	hydrographCache     *requestcache.Cache
)

type hydrographRequest struct {
	fileName, sheet string
}

// ReadHydrograph reads the hydrograph in the given worksheet of the given
// Excel file, utilizing a cache to avoid loading the same file more than
// once. Each data row holds a time [s] in its first column and a discharge
// [m³/s] in its second; a single leading header row is allowed.
func ReadHydrograph(fileName, sheet string) (*Hydrograph, error) {
	// Create a request cache to avoid loading files more than once.
	hydrographCacheOnce.Do(func() {
		hydrographCache = requestcache.NewCache(func(ctx context.Context, req interface{}) (interface{}, error) {
			r := req.(hydrographRequest)
			return readHydrographFile(r.fileName, r.sheet)
		}, runtime.GOMAXPROCS(-1), requestcache.Deduplicate(), requestcache.Memory(100))
	})
	// Get the hydrograph from the cache or read it.
	req := hydrographRequest{fileName: fileName, sheet: sheet}
	r := hydrographCache.NewRequest(context.Background(), req, fileName+"\x00"+sheet)
	hI, err := r.Result()
	if err != nil {
		return nil, err
	}
	return hI.(*Hydrograph), nil
}

func readHydrographFile(fileName, sheet string) (*Hydrograph, error) {
	f, err := xlsx.OpenFile(fileName)
	if err != nil {
		return nil, fmt.Errorf("floodwave: opening hydrograph file: %v", err)
	}
	s, ok := f.Sheet[sheet]
	if !ok {
		return nil, fmt.Errorf("floodwave: reading hydrograph; no sheet %s in %s", sheet, fileName)
	}

	h := new(Hydrograph)
	for j := 0; j < s.MaxRow; j++ {
		timeString := s.Cell(j, 0).Value
		if timeString == "" {
			continue
		}
		t, err := strconv.ParseFloat(timeString, 64)
		if err != nil {
			if j == 0 { // header row
				continue
			}
			return nil, fmt.Errorf("floodwave: reading hydrograph row %d: %v", j, err)
		}
		q, err := strconv.ParseFloat(s.Cell(j, 1).Value, 64)
		if err != nil {
			return nil, fmt.Errorf("floodwave: reading hydrograph row %d: %v", j, err)
		}
		if n := len(h.Times); n > 0 && t <= h.Times[n-1] {
			return nil, fmt.Errorf("floodwave: hydrograph times must be strictly increasing but row %d has %g after %g",
				j, t, h.Times[n-1])
		}
		if q < 0 {
			return nil, fmt.Errorf("floodwave: hydrograph row %d has discharge %g m³/s; inflows must be non-negative", j, q)
		}
		h.Times = append(h.Times, t)
		h.Flows = append(h.Flows, q)
	}
	if len(h.Times) < 2 {
		return nil, fmt.Errorf("floodwave: the hydrograph in %s has fewer than two points", fileName)
	}
	return h, nil
}

// Duration returns the time span covered by the hydrograph [s].
func (h *Hydrograph) Duration() float64 {
	return h.Times[len(h.Times)-1] - h.Times[0]
}

// At returns the discharge at time t [s], interpolating linearly between
// points and holding the end values outside the covered span.
func (h *Hydrograph) At(t float64) float64 {
	if t <= h.Times[0] {
		return h.Flows[0]
	}
	if t >= h.Times[len(h.Times)-1] {
		return h.Flows[len(h.Flows)-1]
	}
	i := 1
	for h.Times[i] < t {
		i++
	}
	frac := (t - h.Times[i-1]) / (h.Times[i] - h.Times[i-1])
	return h.Flows[i-1] + frac*(h.Flows[i]-h.Flows[i-1])
}

// Resample returns the hydrograph evaluated at n instants spaced dt [s]
// apart, starting at time zero.
func (h *Hydrograph) Resample(dt float64, n int) []float64 {
	o := make([]float64, n)
	for i := range o {
		o[i] = h.At(float64(i) * dt)
	}
	return o
}

// SetUpstreamFlow returns a function that replaces the upstream flow series
// in bc with this hydrograph resampled onto the simulation timestep. It must
// run during initialization, after any automatic timestep selection.
func (h *Hydrograph) SetUpstreamFlow(bc *floodwave.BoundaryConditions, hours float64, msgLog chan string) floodwave.DomainManipulator {
	return func(d *floodwave.FloodWave) error {
		if d.Dt <= 0 {
			return fmt.Errorf("floodwave: hydrograph resampling requires a positive timestep but Dt=%g", d.Dt)
		}
		n := int(math.Ceil(hours*3600/d.Dt)) + 1
		nbc, err := floodwave.NewBoundaryConditions(h.Resample(d.Dt, n), bc.DownstreamLevel)
		if err != nil {
			return err
		}
		bc.UpstreamFlow = nbc.UpstreamFlow
		if span := hours * 3600; span > h.Duration() {
			d.Warningf("the hydrograph covers %g h of the %g h simulation; the last discharge is held for the rest",
				h.Duration()/3600, hours)
		}
		if msgLog != nil {
			msgLog <- fmt.Sprintf("Resampled the %d-point hydrograph onto %d steps of %g s.", len(h.Times), n, d.Dt)
		}
		return nil
	}
}
