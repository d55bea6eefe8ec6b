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
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/ctessum/sparse"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// OutputOptions returns the names of the variables that output
// expressions can be built from, along with their descriptions and
// units.
func (d *FloodWave) OutputOptions() (names []string, descriptions []string, units []string) {
	for name := range modelVars {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		v := modelVars[name]
		descriptions = append(descriptions, v.description)
		units = append(units, v.units)
	}
	return
}

// historyVars are the recorded variables that the web handlers can
// serve, in the order they are listed on the index page.
var historyVars = []string{"Depth", "WaterLevel", "Discharge", "Velocity", "FloodArea", "Risk"}

// arrayByName returns the recorded history array for one variable.
func (r *Results) arrayByName(name string) (*sparse.DenseArray, error) {
	switch name {
	case "WaterLevel":
		return r.WaterLevel, nil
	case "Depth":
		return r.Depth, nil
	case "Discharge":
		return r.Discharge, nil
	case "Velocity":
		return r.Velocity, nil
	case "FloodArea":
		return r.FloodArea, nil
	case "Risk":
		return r.Risk, nil
	}
	return nil, fmt.Errorf("floodwave: unknown history variable %s; valid variables are %s",
		name, strings.Join(historyVars, ", "))
}

// StationHistory returns the recorded time series of one variable at the
// node nearest to the station x km downstream of the upstream end of the
// reach. The returned times are the recorded timestamps [s].
func (d *FloodWave) StationHistory(variable string, x float64) (times, vals []float64, err error) {
	r := d.results
	if r == nil || r.recorded == 0 {
		return nil, nil, fmt.Errorf("floodwave: no results have been recorded")
	}
	arr, err := r.arrayByName(variable)
	if err != nil {
		return nil, nil, err
	}
	nn := r.NumNodes()
	if x < 0 || x > r.Distances[nn-1] {
		return nil, nil, fmt.Errorf("floodwave: station %g km is outside the reach (0 to %g km)",
			x, r.Distances[nn-1])
	}
	node := 0
	for i, xi := range r.Distances {
		if absf(xi-x) < absf(r.Distances[node]-x) {
			node = i
		}
	}
	times = make([]float64, r.recorded)
	vals = make([]float64, r.recorded)
	for s := 0; s < r.recorded; s++ {
		times[s] = r.Timestamps[s]
		vals[s] = arr.Get(s, node)
	}
	return times, vals, nil
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func s2f(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	return f, err
}

func parseStationRequest(base string, r *http.Request) (name string, x float64, err error) {
	request := strings.Split(r.URL.Path[len(base):], "/")
	if len(request) < 2 {
		err = fmt.Errorf("floodwave: a station request needs a variable and a distance, for example %sDepth/25", base)
		return
	}
	name = request[0]
	x, err = s2f(request[1])
	return
}

// profileHandler serves a plot of the most recently recorded
// longitudinal profile of one variable.
func (d *FloodWave) profileHandler(w http.ResponseWriter, req *http.Request) {
	name := req.URL.Path[len("/profile/"):]
	r := d.results
	if r == nil || r.recorded == 0 {
		http.Error(w, "no results have been recorded", http.StatusInternalServerError)
		return
	}
	arr, err := r.arrayByName(name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	last := r.recorded - 1
	vals := make([]float64, r.NumNodes())
	for i := range vals {
		vals[i] = arr.Get(last, i)
	}
	title := fmt.Sprintf("%v at hour %.3g", name, r.Timestamps[last]*hoursPerSecond)
	servePlot(w, title, "Distance downstream (km)", name+" ("+modelVars[name].units+")",
		r.Distances, vals)
}

// stationHandler serves a plot of the recorded time series of one
// variable at a station along the reach.
func (d *FloodWave) stationHandler(w http.ResponseWriter, req *http.Request) {
	name, x, err := parseStationRequest("/station/", req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	times, vals, err := d.StationHistory(name, x)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	hours := make([]float64, len(times))
	for i, tt := range times {
		hours[i] = tt * hoursPerSecond
	}
	title := fmt.Sprintf("%v at %.3g km", name, x)
	servePlot(w, title, "Time (h)", name+" ("+modelVars[name].units+")", hours, vals)
}

func servePlot(w http.ResponseWriter, title, xLabel, yLabel string, x, y []float64) {
	p, err := plot.New()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	xy := make(plotter.XYs, len(x))
	for i, xi := range x {
		xy[i].X = xi
		xy[i].Y = y[i]
	}
	if err := plotutil.AddLinePoints(p, xy); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	wt, err := p.WriterTo(4*vg.Inch, 3*vg.Inch, "png")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if _, err := wt.WriteTo(w); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

// indexHandler serves a small page linking to the profile and station
// plots for each recorded variable.
func (d *FloodWave) indexHandler(w http.ResponseWriter, req *http.Request) {
	fmt.Fprint(w, "<html><head><title>FloodWave</title></head><body><h1>FloodWave</h1>")
	fmt.Fprintf(w, "<p>Simulation state: %v, step %d, hour %.3g.</p>", d.State(), d.StepNumber(),
		d.SimTime()*hoursPerSecond)
	fmt.Fprint(w, "<ul>")
	for _, name := range historyVars {
		fmt.Fprintf(w, `<li><a href="/profile/%s">%s profile</a></li>`, name, name)
	}
	fmt.Fprint(w, "</ul></body></html>")
}

// HTMLUI returns a function that serves plots of the simulation state
// over HTTP at address in the background. If address is "", the server
// won't run.
func HTMLUI(address string) DomainManipulator {
	return func(d *FloodWave) error {
		if address == "" {
			return nil
		}
		mux := http.NewServeMux()
		mux.HandleFunc("/", d.indexHandler)
		mux.HandleFunc("/profile/", d.profileHandler)
		mux.HandleFunc("/station/", d.stationHandler)
		l, err := net.Listen("tcp", address)
		if err != nil {
			return fmt.Errorf("floodwave: starting the web interface: %v", err)
		}
		go http.Serve(l, mux)
		return nil
	}
}
