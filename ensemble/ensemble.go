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

// Package ensemble runs batches of flood wave scenarios in parallel and
// collects their results.
package ensemble

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"

	"github.com/hydromodel/floodwave"
)

// Scenario is one member of an ensemble. The channel cross-section is
// described by BottomWidth and SideSlope rather than by the Config
// because the scenario file cannot hold a cross-section directly.
type Scenario struct {
	// Name identifies the scenario and names its output files.
	Name string

	// BottomWidth is the channel bottom width [m] and SideSlope the
	// bank slope [m horizontal per m vertical]. When BottomWidth is
	// zero the default channel is used.
	BottomWidth float64
	SideSlope   float64

	// Config holds the rest of the scenario description.
	Config floodwave.ScenarioConfig
}

// scenarioFile is the format of a TOML scenario file: a list of
// [[scenario]] tables.
type scenarioFile struct {
	Scenario []*Scenario
}

// ReadScenarios reads an ensemble description from the TOML file at
// fileName.
func ReadScenarios(fileName string) ([]*Scenario, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, fmt.Errorf("ensemble: opening scenario file: %v", err)
	}
	defer f.Close()
	return readScenarios(f)
}

func readScenarios(r io.Reader) ([]*Scenario, error) {
	c := new(scenarioFile)
	if _, err := toml.DecodeReader(r, c); err != nil {
		return nil, fmt.Errorf("ensemble: parsing scenario file: %v", err)
	}
	if len(c.Scenario) == 0 {
		return nil, fmt.Errorf("ensemble: the scenario file doesn't define any scenarios")
	}
	names := make(map[string]struct{})
	for i, s := range c.Scenario {
		if s.Name == "" {
			return nil, fmt.Errorf("ensemble: scenario %d doesn't have a name", i)
		}
		if strings.ContainsAny(s.Name, `/\`) {
			return nil, fmt.Errorf("ensemble: scenario name %s contains a path separator", s.Name)
		}
		if _, ok := names[s.Name]; ok {
			return nil, fmt.Errorf("ensemble: duplicate scenario name %s", s.Name)
		}
		names[s.Name] = struct{}{}
	}
	return c.Scenario, nil
}

// Ensemble runs a batch of scenarios and writes the results of each one
// to an output directory.
type Ensemble struct {
	// Workers is the number of scenarios to run at the same time.
	// Non-positive means one per available processor.
	Workers int

	// OutputDir is the directory the per-scenario output files are
	// written to. It is created if it doesn't exist.
	OutputDir string

	// Log receives a progress message for each finished scenario.
	Log logrus.FieldLogger
}

// Run runs the scenarios and writes, for each one, a NetCDF result
// history named <Name>.nc and an outcome summary named <Name>.json.
// A scenario that cannot be run or that goes unstable gets a summary
// describing the failure and doesn't stop the rest of the ensemble;
// Run only returns an error when output files cannot be written or the
// context is canceled.
func (e *Ensemble) Run(ctx context.Context, scenarios []*Scenario) error {
	if e.Log == nil {
		e.Log = logrus.StandardLogger()
	}
	if e.OutputDir != "" {
		if err := os.MkdirAll(e.OutputDir, os.ModePerm); err != nil {
			return fmt.Errorf("ensemble: creating output directory: %v", err)
		}
	}

	workers := e.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(-1)
	}
	if workers > len(scenarios) {
		workers = len(scenarios)
	}

	jobChan := make(chan int, len(scenarios))
	errChan := make(chan error, workers)
	for x := 0; x < workers; x++ {
		go func() {
			for i := range jobChan {
				if err := e.runScenario(ctx, scenarios[i]); err != nil {
					errChan <- err
					return
				}
			}
			errChan <- nil
		}()
	}
	for i := range scenarios {
		jobChan <- i
	}
	close(jobChan)

	for x := 0; x < workers; x++ {
		if err := <-errChan; err != nil {
			return err
		}
	}
	return ctx.Err()
}

// runScenario runs one scenario and writes its output files.
func (e *Ensemble) runScenario(ctx context.Context, s *Scenario) error {
	start := time.Now()
	cfg := s.Config
	if s.BottomWidth > 0 {
		cfg.Section = floodwave.NewTrapezoidSection(s.BottomWidth, s.SideSlope)
	}
	o := floodwave.Simulate(ctx, cfg)

	fields := logrus.Fields{
		"scenario": s.Name,
		"status":   o.Status,
		"state":    o.RunState,
		"steps":    o.StepsRun,
		"elapsed":  time.Since(start),
	}
	if o.History != nil {
		fields["risk"] = floodwave.RiskName(o.MaxRiskLevel)
	}
	e.Log.WithFields(fields).Info("ensemble scenario finished")

	if o.History != nil {
		f, err := os.Create(filepath.Join(e.OutputDir, s.Name+".nc"))
		if err != nil {
			return fmt.Errorf("ensemble: creating results for scenario %s: %v", s.Name, err)
		}
		if err := o.History.Write(f); err != nil {
			f.Close()
			return fmt.Errorf("ensemble: writing results for scenario %s: %v", s.Name, err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("ensemble: writing results for scenario %s: %v", s.Name, err)
		}
	}
	return e.writeSummary(s.Name, o)
}

// Summary is the outcome digest written next to each scenario's result
// history.
type Summary struct {
	Name            string
	Status          string
	Error           string `json:",omitempty"`
	RunState        string
	Termination     string `json:",omitempty"`
	StepsRun        int
	CFLMax          float64
	MaxWaterLevel   float64 // m
	MaxDischarge    float64 // m³/s
	MaxVelocity     float64 // m/s
	MaxRiskLevel    string  `json:",omitempty"`
	HighRiskAreaPct float64
	Warnings        []string `json:",omitempty"`
	Recommendations []string `json:",omitempty"`
}

func (e *Ensemble) writeSummary(name string, o *floodwave.SimulationOutcome) error {
	s := Summary{
		Name:            name,
		Status:          o.Status,
		Error:           o.Error,
		RunState:        o.RunState.String(),
		Termination:     o.Termination,
		StepsRun:        o.StepsRun,
		CFLMax:          o.CFLMax,
		MaxWaterLevel:   o.MaxWaterLevel,
		MaxDischarge:    o.MaxDischarge,
		MaxVelocity:     o.MaxVelocity,
		HighRiskAreaPct: o.HighRiskAreaPct,
		Warnings:        o.Warnings,
		Recommendations: o.Recommendations,
	}
	if o.History != nil {
		s.MaxRiskLevel = floodwave.RiskName(o.MaxRiskLevel)
	}
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("ensemble: encoding summary for scenario %s: %v", name, err)
	}
	if err := ioutil.WriteFile(filepath.Join(e.OutputDir, name+".json"), b, 0644); err != nil {
		return fmt.Errorf("ensemble: writing summary for scenario %s: %v", name, err)
	}
	return nil
}
