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
	"os"
	"regexp"
	"strings"

	"github.com/Knetic/govaluate"
	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
)

// modelVar describes one built-in per-node output variable.
type modelVar struct {
	description string
	units       string
	get         func(d *FloodWave, i int) float64
}

// modelVars are the per-node variables that output expressions can be
// built from. The "Max" variables reduce the recorded history over time;
// the others describe the end-of-run state of the reach.
var modelVars = map[string]modelVar{
	"WaterLevel": {"Water surface elevation above the downstream datum", "m",
		func(d *FloodWave, i int) float64 { return d.nodes[i].WaterLevel() }},
	"Depth": {"Water depth above the local bed", "m",
		func(d *FloodWave, i int) float64 { return d.nodes[i].Hf }},
	"Discharge": {"Total discharge through the section", "m3 s-1",
		func(d *FloodWave, i int) float64 { return d.nodes[i].Qf * d.section.Width() }},
	"Velocity": {"Manning velocity", "m s-1",
		func(d *FloodWave, i int) float64 {
			n := d.nodes[i]
			return d.friction.Velocity(n.Qf, n.Hf, n.BedSlope(), n.Sec)
		}},
	"FloodArea": {"Inundated cross-sectional area", "m2",
		func(d *FloodWave, i int) float64 { return d.nodes[i].Sec.Properties(d.nodes[i].Hf).Area }},
	"Risk": {"Flood risk category", "1",
		func(d *FloodWave, i int) float64 { return float64(RiskLevel(d.nodes[i].Hf, d.bank)) }},
	"MaxWaterLevel": {"Highest water surface elevation over the run", "m",
		func(d *FloodWave, i int) float64 { return d.nodeMaxOf(func(r *Results) *sparse.DenseArray { return r.WaterLevel }, i) }},
	"MaxDepth": {"Highest water depth over the run", "m",
		func(d *FloodWave, i int) float64 { return d.nodeMaxOf(func(r *Results) *sparse.DenseArray { return r.Depth }, i) }},
	"MaxDischarge": {"Highest discharge over the run", "m3 s-1",
		func(d *FloodWave, i int) float64 { return d.nodeMaxOf(func(r *Results) *sparse.DenseArray { return r.Discharge }, i) }},
	"MaxVelocity": {"Highest Manning velocity over the run", "m s-1",
		func(d *FloodWave, i int) float64 { return d.nodeMaxOf(func(r *Results) *sparse.DenseArray { return r.Velocity }, i) }},
	"MaxRisk": {"Highest flood risk category over the run", "1",
		func(d *FloodWave, i int) float64 { return d.nodeMaxOf(func(r *Results) *sparse.DenseArray { return r.Risk }, i) }},
	"BedElevation": {"Bed elevation above the downstream datum", "m",
		func(d *FloodWave, i int) float64 { return d.nodes[i].Z }},
	"BankHeight": {"Bank height above the local bed", "m",
		func(d *FloodWave, i int) float64 { return d.bank }},
	"Distance": {"Distance from the upstream end of the reach", "km",
		func(d *FloodWave, i int) float64 { return d.nodes[i].X }},
}

// nodeMaxOf reduces one recorded history variable to its maximum over
// time at node i, or zero before anything has been recorded.
func (d *FloodWave) nodeMaxOf(a func(r *Results) *sparse.DenseArray, i int) float64 {
	if d.results == nil || d.results.recorded == 0 {
		return 0
	}
	arr := a(d.results)
	m := math.Inf(-1)
	for t := 0; t < d.results.recorded; t++ {
		m = max(m, arr.Get(t, i))
	}
	return m
}

// Outputter is a holder for output parameters.
//
// fileName contains the path where the output will be saved.
//
// outputVariables maps the names of the variables for which data should
// be returned to expressions that define how the requested data should
// be calculated. These expressions can use the built-in model variables,
// other user-defined variables, and functions.
//
// modelVariables is automatically generated based on the model variables
// that are required to calculate the requested output variables.
//
// Functions are defined in the outputFunctions variable.
type Outputter struct {
	fileName        string
	outputVariables map[string]string
	modelVariables  []string
	outputFunctions map[string]govaluate.ExpressionFunction
}

// NewOutputter initializes a new Outputter holder and adds a set of
// default output functions. Default functions include:
//
// 'exp(x)' which applies the exponential function e^x.
//
// 'sqrt(x)' which takes the square root of x.
//
// 'froude(velocity, depth)' which calculates the Froude number of the
// flow, the ratio of the flow velocity to the gravity wave celerity.
// Values above 1 indicate supercritical flow.
func NewOutputter(fileName string, outputVariables map[string]string, outputFunctions map[string]govaluate.ExpressionFunction) (*Outputter, error) {
	defaultOutputFuncs := map[string]govaluate.ExpressionFunction{
		"exp": func(arg ...interface{}) (interface{}, error) {
			if len(arg) != 1 {
				return nil, fmt.Errorf("floodwave: got %d arguments for function 'exp', but needs 1", len(arg))
			}
			return (float64)(math.Exp(arg[0].(float64))), nil
		},
		"sqrt": func(arg ...interface{}) (interface{}, error) {
			if len(arg) != 1 {
				return nil, fmt.Errorf("floodwave: got %d arguments for function 'sqrt', but needs 1", len(arg))
			}
			return (float64)(math.Sqrt(arg[0].(float64))), nil
		},
		"froude": func(args ...interface{}) (interface{}, error) {
			if len(args) != 2 {
				return nil, fmt.Errorf("floodwave: got %d arguments for function 'froude', but needs 2", len(args))
			}
			v, h := args[0].(float64), args[1].(float64)
			if h <= 0 {
				return 0., nil
			}
			return (float64)(math.Abs(v) / math.Sqrt(g*h)), nil
		},
	}

	for key, val := range outputFunctions {
		defaultOutputFuncs[key] = val
	}

	o := Outputter{
		fileName:        fileName,
		outputVariables: make(map[string]string, len(outputVariables)),
		outputFunctions: defaultOutputFuncs,
	}
	for key, val := range outputVariables {
		o.outputVariables[key] = val
	}

	return &o, o.expandDerived()
}

// removeDuplicates removes all duplicated strings from a slice,
// returning a slice that contains only unique strings.
func removeDuplicates(s []string) []string {
	result := make([]string, 0, len(s))
	seen := make(map[string]string)
	for _, val := range s {
		if _, ok := seen[val]; !ok {
			result = append(result, val)
			seen[val] = val
		}
	}
	return result
}

func isWordByte(b byte) bool {
	return b == '_' || ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z') || ('0' <= b && b <= '9')
}

// replaceWholeWord replaces standalone occurrences of name in expr with
// repl. An occurrence that is part of a longer identifier is left alone,
// so that for example 'Depth' is not replaced inside 'MaxDepth'.
func replaceWholeWord(expr, name, repl string) string {
	var out strings.Builder
	for {
		i := strings.Index(expr, name)
		if i < 0 {
			out.WriteString(expr)
			return out.String()
		}
		before := i == 0 || !isWordByte(expr[i-1])
		after := i+len(name) >= len(expr) || !isWordByte(expr[i+len(name)])
		if before && after {
			out.WriteString(expr[:i])
			out.WriteString(repl)
		} else {
			out.WriteString(expr[:i+len(name)])
		}
		expr = expr[i+len(name):]
	}
}

// expandDerived identifies the unique model variables that are required
// to calculate the requested output variables. Any user-defined output
// variable showing up in another expression is first replaced by its own
// defining expression, so the output variables can build on each other.
func (o *Outputter) expandDerived() error {
	o.modelVariables = make([]string, 0, len(o.outputVariables))
	for name, exprStr := range o.outputVariables {
		expression, err := govaluate.NewEvaluableExpressionWithFunctions(exprStr, o.outputFunctions)
		if err != nil {
			return fmt.Errorf("floodwave: output variable %s: %v", name, err)
		}
		for _, v := range removeDuplicates(expression.Vars()) {
			if def, ok := o.outputVariables[v]; ok && v != name && def != v {
				o.outputVariables[name] = replaceWholeWord(exprStr, v, "("+def+")")
				return o.expandDerived()
			}
			o.modelVariables = append(o.modelVariables, v)
		}
	}
	o.modelVariables = removeDuplicates(o.modelVariables)
	return nil
}

// checkModelVars checks whether the unique model variables required to
// calculate the user-requested output variables are available.
func (d *FloodWave) checkModelVars(g ...string) error {
	for _, v := range g {
		if _, ok := modelVars[v]; !ok {
			return fmt.Errorf("floodwave: undefined variable name '%s'", v)
		}
	}
	return nil
}

// checkOutputNames checks if any output variable names include
// characters that are unsupported in NetCDF variable names.
func checkOutputNames(o map[string]string) error {
	for key := range o {
		ok, err := regexp.MatchString("^[A-Za-z]\\w*$", key)
		if err != nil {
			panic(err)
		}
		if !ok {
			return fmt.Errorf("floodwave: output variable name '%s' includes unsupported characters", key)
		}
	}
	return nil
}

// CheckOutputVars ensures the output variables can be calculated.
func (o *Outputter) CheckOutputVars() DomainManipulator {
	return func(d *FloodWave) error {
		if err := d.checkModelVars(o.modelVariables...); err != nil {
			return err
		}
		return checkOutputNames(o.outputVariables)
	}
}

// Results returns the values of the output variables requested by o,
// evaluated at every node of the reach.
func (d *FloodWave) Results(o *Outputter) (map[string][]float64, error) {
	results := make(map[string][]float64, len(o.outputVariables))
	nn := len(d.nodes)
	for name, exprStr := range o.outputVariables {
		expression, err := govaluate.NewEvaluableExpressionWithFunctions(exprStr, o.outputFunctions)
		if err != nil {
			return nil, fmt.Errorf("floodwave: output variable %s: %v", name, err)
		}
		out := make([]float64, nn)
		params := make(map[string]interface{}, len(o.modelVariables))
		for i := 0; i < nn; i++ {
			for _, v := range o.modelVariables {
				params[v] = modelVars[v].get(d, i)
			}
			result, err := expression.Evaluate(params)
			if err != nil {
				return nil, fmt.Errorf("floodwave: output variable %s: %v", name, err)
			}
			val, ok := result.(float64)
			if !ok {
				return nil, fmt.Errorf("floodwave: output variable %s: expression result %v is not a number", name, result)
			}
			out[i] = val
		}
		results[name] = out
	}
	return results, nil
}

// Output returns a function that evaluates the requested output
// variables over the reach and writes them to the NetCDF file the
// Outputter was created with.
func (o *Outputter) Output() DomainManipulator {
	return func(d *FloodWave) error {
		results, err := d.Results(o)
		if err != nil {
			return err
		}
		vars := sortedKeys(results)

		nn := len(d.nodes)
		h := cdf.NewHeader([]string{"node"}, []int{nn})
		h.AddAttribute("", "comment", "FloodWave simulation output file")
		h.AddAttribute("", "data_version", ResultsDataVersion)
		for _, v := range vars {
			h.AddVariable(v, []string{"node"}, []float32{0})
			if mv, ok := modelVars[v]; ok {
				h.AddAttribute(v, "description", mv.description)
				h.AddAttribute(v, "units", mv.units)
			} else {
				h.AddAttribute(v, "description", o.outputVariables[v])
				h.AddAttribute(v, "units", "unknown")
			}
		}
		h.Define()

		w, err := os.Create(o.fileName)
		if err != nil {
			return fmt.Errorf("floodwave: creating output file: %v", err)
		}
		defer w.Close()
		f, err := cdf.Create(w, h)
		if err != nil {
			return fmt.Errorf("floodwave: writing output file header: %v", err)
		}
		for _, v := range vars {
			if err := writeNCF(f, v, results[v]); err != nil {
				return fmt.Errorf("floodwave: writing output variable %s: %v", v, err)
			}
		}
		return cdf.UpdateNumRecs(w)
	}
}
