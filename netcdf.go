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
	"os"
	"sort"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
)

// ResultsDataVersion is the format version written to result files. It
// must change whenever the file layout does.
const ResultsDataVersion = "1.1.0"

// resultVars maps the history variables in a results file to their
// descriptions and units, in the order they are written.
var resultVars = []struct {
	name, description, units string
	get                      func(r *Results) *sparse.DenseArray
	set                      func(r *Results, a *sparse.DenseArray)
}{
	{"WaterLevel", "Water surface elevation above the downstream datum", "m",
		func(r *Results) *sparse.DenseArray { return r.WaterLevel },
		func(r *Results, a *sparse.DenseArray) { r.WaterLevel = a }},
	{"Depth", "Water depth above the local bed", "m",
		func(r *Results) *sparse.DenseArray { return r.Depth },
		func(r *Results, a *sparse.DenseArray) { r.Depth = a }},
	{"Discharge", "Total discharge through the section", "m3 s-1",
		func(r *Results) *sparse.DenseArray { return r.Discharge },
		func(r *Results, a *sparse.DenseArray) { r.Discharge = a }},
	{"Velocity", "Manning velocity", "m s-1",
		func(r *Results) *sparse.DenseArray { return r.Velocity },
		func(r *Results, a *sparse.DenseArray) { r.Velocity = a }},
	{"FloodArea", "Inundated cross-sectional area", "m2",
		func(r *Results) *sparse.DenseArray { return r.FloodArea },
		func(r *Results, a *sparse.DenseArray) { r.FloodArea = a }},
	{"Risk", "Flood risk category", "1", // dimensionless
		func(r *Results) *sparse.DenseArray { return r.Risk },
		func(r *Results, a *sparse.DenseArray) { r.Risk = a }},
}

// Write writes the recorded history to the NetCDF file w.
func (r *Results) Write(w *os.File) error {
	nt, nn := r.recorded, r.NumNodes()
	h := cdf.NewHeader([]string{"time", "node"}, []int{nt, nn})
	h.AddAttribute("", "comment", "FloodWave simulation results file")
	h.AddAttribute("", "data_version", ResultsDataVersion)

	h.AddVariable("Time", []string{"time"}, []float32{0})
	h.AddAttribute("Time", "description", "Simulated time at the end of each step")
	h.AddAttribute("Time", "units", "s")
	h.AddVariable("Distance", []string{"node"}, []float32{0})
	h.AddAttribute("Distance", "description", "Distance from the upstream end of the reach")
	h.AddAttribute("Distance", "units", "km")

	for _, v := range resultVars {
		h.AddVariable(v.name, []string{"time", "node"}, []float32{0})
		h.AddAttribute(v.name, "description", v.description)
		h.AddAttribute(v.name, "units", v.units)
	}
	h.Define()

	f, err := cdf.Create(w, h) // writes the header to w
	if err != nil {
		return err
	}
	if err = writeNCF(f, "Time", r.Timestamps[:nt]); err != nil {
		return fmt.Errorf("floodwave: writing variable Time to netcdf file: %v", err)
	}
	if err = writeNCF(f, "Distance", r.Distances); err != nil {
		return fmt.Errorf("floodwave: writing variable Distance to netcdf file: %v", err)
	}
	for _, v := range resultVars {
		if err = writeNCF(f, v.name, v.get(r).Elements[:nt*nn]); err != nil {
			return fmt.Errorf("floodwave: writing variable %s to netcdf file: %v", v.name, err)
		}
	}
	return cdf.UpdateNumRecs(w)
}

// ReadResults reads a simulation history from the NetCDF file written by
// (*Results).Write.
func ReadResults(rw cdf.ReaderWriterAt) (*Results, error) {
	f, err := cdf.Open(rw)
	if err != nil {
		return nil, fmt.Errorf("floodwave: opening results file: %v", err)
	}
	version := f.Header.GetAttribute("", "data_version")
	if version == nil || version.(string) != ResultsDataVersion {
		return nil, fmt.Errorf("floodwave: results file version %v is incompatible with %s",
			version, ResultsDataVersion)
	}
	r := new(Results)
	times, err := readNCF(f, "Time")
	if err != nil {
		return nil, err
	}
	r.Timestamps = times.Elements
	r.recorded = len(r.Timestamps)
	distances, err := readNCF(f, "Distance")
	if err != nil {
		return nil, err
	}
	r.Distances = distances.Elements
	for _, v := range resultVars {
		a, err := readNCF(f, v.name)
		if err != nil {
			return nil, err
		}
		v.set(r, a)
	}
	return r, nil
}

// writeNCF writes data to the variable Var in the netcdf file f.
func writeNCF(f *cdf.File, Var string, data []float64) error {
	end := f.Header.Lengths(Var)
	n := 1
	for _, v := range end {
		n *= v
	}
	if len(data) != n {
		return fmt.Errorf("dims are %d but array length is %d", n, len(data))
	}
	data32 := make([]float32, len(data))
	for i, e := range data {
		data32[i] = float32(e)
	}
	start := make([]int, len(end))
	w := f.Writer(Var, start, end)
	_, err := w.Write(data32)
	return err
}

// readNCF reads the variable Var out of the netcdf file f.
func readNCF(f *cdf.File, Var string) (*sparse.DenseArray, error) {
	dims := f.Header.Lengths(Var)
	if len(dims) == 0 {
		return nil, fmt.Errorf("floodwave: read netcdf: variable %v not in file", Var)
	}
	nread := 1
	for _, dim := range dims {
		nread *= dim
	}
	r := f.Reader(Var, nil, nil)
	buf := r.Zero(nread)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("floodwave: read netcdf variable %s: %v", Var, err)
	}
	data := sparse.ZerosDense(dims...)
	for i, val := range buf.([]float32) {
		data.Elements[i] = float64(val)
	}
	return data, nil
}

// WriteResults returns a function that writes the recorded history to
// the given NetCDF file path after the run finishes.
func WriteResults(fileName string) DomainManipulator {
	return func(d *FloodWave) error {
		if d.results == nil {
			return fmt.Errorf("floodwave: no results to write to %s", fileName)
		}
		w, err := os.Create(fileName)
		if err != nil {
			return fmt.Errorf("floodwave: creating results file: %v", err)
		}
		defer w.Close()
		return d.results.Write(w)
	}
}

// sortedKeys returns the keys of m in alphabetical order so files write
// in the same order every time.
func sortedKeys(m map[string][]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
