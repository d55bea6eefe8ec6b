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
	"math"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/ctessum/cdf"
)

// outputReach builds an initialized 11-node reach holding 5 m of water
// moving at 10 m²/s.
func outputReach(t *testing.T) *FloodWave {
	cfg, sec, fric, _ := ReachTestData()
	d := &FloodWave{
		InitFuncs: []DomainManipulator{
			cfg.RegularReach(sec, fric),
			InitialState(5, 10),
		},
	}
	if err := d.Init(); err != nil {
		t.Fatal(err)
	}
	return d
}

func TestNewOutputterDerived(t *testing.T) {
	o, err := NewOutputter("", map[string]string{
		"DepthM":  "Depth",
		"DepthCm": "DepthM * 100",
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := o.outputVariables["DepthCm"]; got != "(Depth) * 100" {
		t.Errorf("expanded expression is %q, want %q", got, "(Depth) * 100")
	}
	if len(o.modelVariables) != 1 || o.modelVariables[0] != "Depth" {
		t.Errorf("model variables are %v, want [Depth]", o.modelVariables)
	}
}

func TestNewOutputterSelfReference(t *testing.T) {
	// An output variable shadowing a model variable refers to the model
	// variable, not to itself.
	o, err := NewOutputter("", map[string]string{
		"Depth": "Depth * 2",
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := o.outputVariables["Depth"]; got != "Depth * 2" {
		t.Errorf("expression is %q, want it untouched", got)
	}
	if len(o.modelVariables) != 1 || o.modelVariables[0] != "Depth" {
		t.Errorf("model variables are %v, want [Depth]", o.modelVariables)
	}
}

func TestNewOutputterBadExpression(t *testing.T) {
	if _, err := NewOutputter("", map[string]string{"Bad": "Depth +"}, nil); err == nil {
		t.Error("an unparsable expression should be rejected")
	}
}

func TestReplaceWholeWord(t *testing.T) {
	tests := []struct{ expr, name, repl, want string }{
		{"MaxDepth + Depth", "Depth", "(x)", "MaxDepth + (x)"},
		{"Depth*Depth", "Depth", "(x)", "(x)*(x)"},
		{"DepthM", "Depth", "(x)", "DepthM"},
		{"Depth", "Depth", "(x)", "(x)"},
		{"froude(Velocity, Depth)", "Depth", "(x)", "froude(Velocity, (x))"},
	}
	for _, test := range tests {
		if got := replaceWholeWord(test.expr, test.name, test.repl); got != test.want {
			t.Errorf("replaceWholeWord(%q, %q, %q)=%q, want %q",
				test.expr, test.name, test.repl, got, test.want)
		}
	}
}

func TestCheckOutputVars(t *testing.T) {
	d := outputReach(t)

	o, err := NewOutputter("", map[string]string{"Stage": "Depth + BedElevation"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := o.CheckOutputVars()(d); err != nil {
		t.Error(err)
	}

	o, err = NewOutputter("", map[string]string{"Bad": "NoSuchVariable * 2"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := o.CheckOutputVars()(d); err == nil {
		t.Error("an undefined model variable should be rejected")
	}

	o, err = NewOutputter("", map[string]string{"1bad": "Depth"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := o.CheckOutputVars()(d); err == nil {
		t.Error("a variable name starting with a digit should be rejected")
	}
}

func TestOutputterResults(t *testing.T) {
	d := outputReach(t)
	_, sec, fric, _ := ReachTestData()

	o, err := NewOutputter("", map[string]string{
		"Depth":    "Depth",
		"Froude":   "froude(Velocity, Depth)",
		"RootArea": "sqrt(FloodArea)",
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	results, err := d.Results(o)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d output variables, want 3", len(results))
	}
	for name, vals := range results {
		if len(vals) != 11 {
			t.Errorf("variable %s has %d values, want 11", name, len(vals))
		}
	}
	for i, got := range results["Froude"] {
		v := fric.Velocity(10, 5, d.Nodes()[i].BedSlope(), sec)
		want := math.Abs(v) / math.Sqrt(g*5)
		if different(got, want, 1e-9) {
			t.Errorf("node %d: Froude number=%g (it should equal %g)", i, got, want)
		}
	}
	for i, got := range results["RootArea"] {
		if different(got, math.Sqrt(300), 1e-9) {
			t.Errorf("node %d: root area=%g (it should equal %g)", i, got, math.Sqrt(300))
		}
	}
}

func TestOutputterResultsNotANumber(t *testing.T) {
	d := outputReach(t)

	o, err := NewOutputter("", map[string]string{"Wet": "Depth > 1"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.Results(o); err == nil {
		t.Error("a boolean expression result should be rejected")
	}
}

func TestOutput(t *testing.T) {
	d := outputReach(t)
	fileName := filepath.Join(t.TempDir(), "output.nc")

	o, err := NewOutputter(fileName, map[string]string{
		"Depth": "Depth",
		"Stage": "Depth + BedElevation",
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := o.Output()(d); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(fileName)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	nc, err := cdf.Open(f)
	if err != nil {
		t.Fatal(err)
	}

	depth, err := readNCF(nc, "Depth")
	if err != nil {
		t.Fatal(err)
	}
	if len(depth.Elements) != 11 {
		t.Fatalf("the Depth variable has %d values, want 11", len(depth.Elements))
	}
	for i, v := range depth.Elements {
		if absDifferent(v, 5, 1e-5) {
			t.Errorf("node %d: written depth=%g m (it should equal 5)", i, v)
		}
	}
	stage, err := readNCF(nc, "Stage")
	if err != nil {
		t.Fatal(err)
	}
	if absDifferent(stage.Elements[0], 15, 1e-5) { // 5 m of water on the 10 m upstream bed
		t.Errorf("upstream stage=%g m (it should equal 15)", stage.Elements[0])
	}

	if units := nc.Header.GetAttribute("Depth", "units"); units.(string) != "m" {
		t.Errorf("Depth units are %v, want m", units)
	}
	if units := nc.Header.GetAttribute("Stage", "units"); units.(string) != "unknown" {
		t.Errorf("derived variable units are %v, want unknown", units)
	}
	if desc := nc.Header.GetAttribute("Stage", "description"); desc.(string) != "Depth + BedElevation" {
		t.Errorf("derived variable description is %v, want its expression", desc)
	}
}

func TestOutputOptions(t *testing.T) {
	// The options describe the built-in variables, so they are available
	// before the reach is created.
	d := new(FloodWave)

	names, descriptions, units := d.OutputOptions()
	if len(names) == 0 || len(names) != len(descriptions) || len(names) != len(units) {
		t.Fatalf("got %d names, %d descriptions, and %d units",
			len(names), len(descriptions), len(units))
	}
	if !sort.StringsAreSorted(names) {
		t.Errorf("the names are not sorted: %v", names)
	}
	found := map[string]bool{}
	for _, n := range names {
		found[n] = true
	}
	for _, want := range []string{"Depth", "Discharge", "MaxRisk", "Distance"} {
		if !found[want] {
			t.Errorf("the built-in variable %s is missing from %v", want, names)
		}
	}
	for i, u := range units {
		if u == "" {
			t.Errorf("variable %s has no units", names[i])
		}
		if names[i] == "Depth" && u != "m" {
			t.Errorf("Depth units are %q, want \"m\"", u)
		}
	}
}
