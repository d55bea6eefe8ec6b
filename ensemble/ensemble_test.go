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

package ensemble

import (
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/hydromodel/floodwave"
)

const scenarioExample = `
[[scenario]]
Name = "base"
BottomWidth = 40.0
SideSlope = 1.5

[scenario.Config]
RiverLengthKm = 50.0
SimulationHours = 1.0
UpstreamFlow = [1000.0]
DownstreamLevel = [10.0]
ManningRoughness = 0.06
BedSlope = 0.001
InitialWaterLevel = 9.5
BankHeight = 8.0

[[scenario]]
Name = "wide"

[scenario.Config]
RiverLengthKm = 50.0
SimulationHours = 1.0
UpstreamFlow = [800.0, 900.0]
DownstreamLevel = [10.0]
ManningRoughness = 0.06
BedSlope = 0.001
InitialWaterLevel = 9.5
BankHeight = 12.0
`

func TestReadScenarios(t *testing.T) {
	const fileName = "testScenarios.toml"
	f, err := os.Create(fileName)
	if err != nil {
		t.Fatal(err)
	}
	fmt.Fprint(f, scenarioExample)
	f.Close()
	defer os.Remove(fileName)

	scenarios, err := ReadScenarios(fileName)
	if err != nil {
		t.Fatal(err)
	}
	if len(scenarios) != 2 {
		t.Fatalf("have %d scenarios, want 2", len(scenarios))
	}
	s := scenarios[0]
	if s.Name != "base" {
		t.Errorf("name: have %s, want base", s.Name)
	}
	if s.BottomWidth != 40 || s.SideSlope != 1.5 {
		t.Errorf("section: have %g, %g, want 40, 1.5", s.BottomWidth, s.SideSlope)
	}
	if s.Config.RiverLengthKm != 50 {
		t.Errorf("length: have %g, want 50", s.Config.RiverLengthKm)
	}
	if !reflect.DeepEqual(s.Config.UpstreamFlow, []float64{1000}) {
		t.Errorf("upstream flow: have %v, want [1000]", s.Config.UpstreamFlow)
	}
	s = scenarios[1]
	if s.BottomWidth != 0 {
		t.Errorf("default section: have width %g, want 0", s.BottomWidth)
	}
	if !reflect.DeepEqual(s.Config.UpstreamFlow, []float64{800, 900}) {
		t.Errorf("upstream flow: have %v, want [800 900]", s.Config.UpstreamFlow)
	}
	if s.Config.BankHeight != 12 {
		t.Errorf("bank height: have %g, want 12", s.Config.BankHeight)
	}
}

func TestReadScenariosErrors(t *testing.T) {
	tests := []struct {
		name string
		toml string
	}{
		{"empty file", ""},
		{"missing name", "[[scenario]]\nBottomWidth = 1.0\n"},
		{"duplicate name", "[[scenario]]\nName = \"a\"\n\n[[scenario]]\nName = \"a\"\n"},
		{"path separator", "[[scenario]]\nName = \"a/b\"\n"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if _, err := readScenarios(strings.NewReader(test.toml)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestEnsembleRun(t *testing.T) {
	dir, err := ioutil.TempDir("", "floodwave_ensemble")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	scenarios := []*Scenario{
		{
			Name:        "steady",
			BottomWidth: 50,
			SideSlope:   2,
			Config: floodwave.ScenarioConfig{
				RiverLengthKm:     50,
				SimulationHours:   1,
				UpstreamFlow:      []float64{1000},
				DownstreamLevel:   []float64{10},
				ManningRoughness:  0.06,
				BedSlope:          0.001,
				InitialWaterLevel: 9.5,
				BankHeight:        8,
			},
		},
		{
			Name: "broken",
			Config: floodwave.ScenarioConfig{
				RiverLengthKm:   50,
				SimulationHours: -1,
				UpstreamFlow:    []float64{1000},
				DownstreamLevel: []float64{10},
				BankHeight:      8,
			},
		},
	}

	log := logrus.New()
	log.Out = ioutil.Discard
	e := &Ensemble{Workers: 2, OutputDir: dir, Log: log}
	if err := e.Run(context.Background(), scenarios); err != nil {
		t.Fatal(err)
	}

	b, err := ioutil.ReadFile(filepath.Join(dir, "steady.json"))
	if err != nil {
		t.Fatal(err)
	}
	var s Summary
	if err := json.Unmarshal(b, &s); err != nil {
		t.Fatal(err)
	}
	if s.Status != floodwave.StatusSuccess {
		t.Errorf("steady status: have %s, want %s; error: %s", s.Status, floodwave.StatusSuccess, s.Error)
	}
	if s.RunState != "completed" {
		t.Errorf("steady state: have %s, want completed", s.RunState)
	}
	if s.StepsRun != 60 {
		t.Errorf("steady steps: have %d, want 60", s.StepsRun)
	}
	if s.MaxRiskLevel != "severe" {
		t.Errorf("steady risk: have %s, want severe", s.MaxRiskLevel)
	}

	f, err := os.Open(filepath.Join(dir, "steady.nc"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	r, err := floodwave.ReadResults(f)
	if err != nil {
		t.Fatal(err)
	}
	if r.Steps() != s.StepsRun {
		t.Errorf("recorded steps: have %d, want %d", r.Steps(), s.StepsRun)
	}
	if r.NumNodes() != 51 {
		t.Errorf("nodes: have %d, want 51", r.NumNodes())
	}

	b, err = ioutil.ReadFile(filepath.Join(dir, "broken.json"))
	if err != nil {
		t.Fatal(err)
	}
	var s2 Summary
	if err := json.Unmarshal(b, &s2); err != nil {
		t.Fatal(err)
	}
	if s2.Status != floodwave.StatusError {
		t.Errorf("broken status: have %s, want %s", s2.Status, floodwave.StatusError)
	}
	if s2.Error == "" {
		t.Error("broken scenario should report an error")
	}
	if _, err := os.Stat(filepath.Join(dir, "broken.nc")); err == nil {
		t.Error("a failed scenario shouldn't write a results file")
	}
}
