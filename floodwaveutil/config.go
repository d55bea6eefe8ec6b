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
	"bytes"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/geojson"
	"github.com/ctessum/unit"
	"github.com/hydromodel/floodwave"
	"github.com/lnashier/viper"
	"github.com/spf13/cast"
)

// reachConfig unmarshals a viper configuration for the river reach.
func reachConfig(cfg *viper.Viper) (*floodwave.ReachConfig, error) {
	c := &floodwave.ReachConfig{
		LengthKm:   cfg.GetFloat64("Reach.LengthKm"),
		DxKm:       cfg.GetFloat64("Reach.DxKm"),
		BedSlope:   cfg.GetFloat64("Reach.BedSlope"),
		BankHeight: cfg.GetFloat64("Reach.BankHeight"),
	}

	vars := []float64{c.LengthKm, c.DxKm, c.BankHeight}
	varNames := []string{"Reach.LengthKm", "Reach.DxKm", "Reach.BankHeight"}
	for i, v := range vars {
		if !(v > 0) {
			return nil, fmt.Errorf("parsing reach configuration: %s=%g but should be >0", varNames[i], v)
		}
	}
	if c.BedSlope < 0 {
		return nil, fmt.Errorf("parsing reach configuration: Reach.BedSlope=%g but should be >=0", c.BedSlope)
	}

	if f := os.ExpandEnv(cfg.GetString("Reach.CenterlineFile")); f != "" {
		line, err := parseCenterline(f)
		if err != nil {
			return nil, err
		}
		c.Centerline = line
	}
	return c, nil
}

// channelConfig unmarshals a viper configuration for the channel
// cross-section and roughness.
func channelConfig(cfg *viper.Viper) (floodwave.CrossSection, floodwave.Manning, error) {
	width := cfg.GetFloat64("Channel.BottomWidth")
	slope := cfg.GetFloat64("Channel.SideSlope")
	n := cfg.GetFloat64("Channel.ManningN")
	if !(width > 0) {
		return nil, floodwave.Manning{}, fmt.Errorf("parsing channel configuration: Channel.BottomWidth=%g but should be >0", width)
	}
	if slope < 0 {
		return nil, floodwave.Manning{}, fmt.Errorf("parsing channel configuration: Channel.SideSlope=%g but should be >=0", slope)
	}
	if !(n > 0) {
		return nil, floodwave.Manning{}, fmt.Errorf("parsing channel configuration: Channel.ManningN=%g but should be >0", n)
	}
	return floodwave.NewTrapezoidSection(width, slope), floodwave.NewManning(n), nil
}

// boundaryConfig unmarshals a viper configuration for the boundary
// conditions, using constant upstream and downstream series. A hydrograph
// file, when one is configured, replaces the upstream series later.
func boundaryConfig(cfg *viper.Viper) (*floodwave.BoundaryConditions, error) {
	bc, err := floodwave.BoundaryConditionsFromUnits(
		[]*unit.Unit{unit.New(cfg.GetFloat64("Boundary.UpstreamFlow"), unit.Meter3PerSecond)},
		[]*unit.Unit{unit.New(cfg.GetFloat64("Boundary.DownstreamLevel"), unit.Meter)},
	)
	if err != nil {
		return nil, err
	}
	if v := cfg.Get("Boundary.LateralInflow"); v != nil && v != "" {
		lateral, err := toFloatSliceE(v)
		if err != nil {
			return nil, fmt.Errorf("floodwave: parsing config variable Boundary.LateralInflow: %v", err)
		}
		bc.LateralInflow = lateral
	}
	return bc, nil
}

// validationThresholds unmarshals a viper configuration for result
// validation.
func validationThresholds(cfg *viper.Viper) floodwave.ValidationThresholds {
	return floodwave.ValidationThresholds{
		MaxWaterLevel: cfg.GetFloat64("Validate.MaxWaterLevel"),
		MaxVelocity:   cfg.GetFloat64("Validate.MaxVelocity"),
	}
}

// checkOutputVars removes end lines and expands environment
// variables in the output variables.
func checkOutputVars(vars map[string]string) (map[string]string, error) {
	if len(vars) == 0 {
		return nil, fmt.Errorf("there are no variables specified for output. Please fill in " +
			"the OutputVariables configuration and try again.")
	}
	for k, v := range vars {
		v = strings.Replace(v, "\r\n", " ", -1)
		v = strings.Replace(v, "\n", " ", -1)
		vars[os.ExpandEnv(k)] = os.ExpandEnv(v)
	}
	return vars, nil
}

// checkOutputFile makes sure that the output file is specified and its
// directory exists, and expands any environment variables.
func checkOutputFile(f string) (string, error) {
	if f == "" {
		return "", fmt.Errorf(`you need to specify an output file configuration variable (for example: OutputFile="output.nc")`)
	}
	f = os.ExpandEnv(f)
	outdir := filepath.Dir(f)
	if _, err := os.Stat(outdir); err != nil {
		return f, fmt.Errorf("floodwave: the OutputFile directory doesn't exist: %v", err)
	}
	return f, nil
}

// checkLogFile fills in a default value for the log file path if one isn't
// specified.
func checkLogFile(logFile, outputFile string) string {
	if logFile == "" {
		logFile = strings.TrimSuffix(outputFile, filepath.Ext(outputFile)) + ".log"
	}
	return logFile
}

func toFloatSliceE(s interface{}) ([]float64, error) {
	if v, ok := s.([]interface{}); ok {
		o := make([]float64, len(v))
		for i, val := range v {
			f, err := cast.ToFloat64E(val)
			if err != nil {
				return nil, err
			}
			o[i] = f
		}
		return o, nil
	}
	var o []float64
	if err := json.Unmarshal([]byte(s.(string)), &o); err != nil {
		return nil, err
	}
	return o, nil
}

// GetStringMapString returns a map[string]string from a viper configuration,
// accounting for the fact that it might be a json object if it was set
// from a command line argument.
func GetStringMapString(varName string, cfg *viper.Viper) map[string]string {
	i := cfg.Get(varName)
	switch i.(type) {
	case map[string]string:
		return i.(map[string]string)
	case map[string]interface{}:
		return cast.ToStringMapString(i)
	case string:
		b := bytes.NewBuffer(([]byte)(i.(string)))
		d := json.NewDecoder(b)
		o := make(map[string]string)
		if err := d.Decode(&o); err != nil {
			panic(err)
		}
		return o
	default:
		panic(fmt.Errorf("invalid type for getStringMapString variable %s: %#v", varName, i))
	}
}

// parseCenterline returns the river centerline represented by the
// given GeoJSON file.
func parseCenterline(centerlineGeoJSONFile string) (geom.LineString, error) {
	f, err := os.Open(os.ExpandEnv(centerlineGeoJSONFile))
	if err != nil {
		return nil, fmt.Errorf("opening centerline file: %v", err)
	}
	defer f.Close()
	b, err := ioutil.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("reading centerline file: %v", err)
	}
	j, err := geojson.Decode(b)
	if err != nil {
		return nil, fmt.Errorf("decoding Reach.CenterlineFile: %v", err)
	}
	var line geom.LineString
	switch l := j.(type) {
	case geom.LineString:
		line = l
	case geom.MultiLineString:
		for _, p := range l {
			line = append(line, p...)
		}
	default:
		return nil, fmt.Errorf("invalid centerline geometry type %T", j)
	}
	if len(line) < 2 {
		return nil, fmt.Errorf("the centerline in %s has fewer than two points", centerlineGeoJSONFile)
	}
	return line, nil
}
