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
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/hydromodel/floodwave"
	"github.com/spf13/cobra"
)

// Run runs a flood simulation over the given reach and writes the results.
//
// CobraCommand is the cobra.Command instance where Run is called from. Its
// output stream receives a copy of the simulation log.
//
// LogFile is the path to the desired logfile location.
//
// OutputFile is the path where the per-node output variables are written as
// a NetCDF file.
//
// ResultsFile is the path where the full result history is written. It is
// skipped when empty.
//
// OutputVariables specifies which model variables should be included in the
// output file, as expressions over the model variables.
//
// reach, section and fric describe the river geometry and roughness, and bc
// holds the boundary series. hydro, if not nil, replaces the upstream flow
// series with a hydrograph resampled onto the solver timestep.
//
// initialLevel is the uniform starting water depth [m], hours the simulated
// duration, and dt the solver timestep [s]. When autoTimestep is true the
// timestep is instead chosen from the Courant condition using cflSafety.
// Courant numbers above cflCeiling draw a warning, or stop the run when
// strictCFL is set.
//
// thresholds configures the plausibility checks applied to the results.
// addInit, addRun, and addCleanup specify functions beyond the default
// functions to run at initialization, runtime, and cleanup, respectively.
func Run(CobraCommand *cobra.Command, LogFile, OutputFile, ResultsFile string,
	OutputVariables map[string]string,
	reach *floodwave.ReachConfig, section floodwave.CrossSection, fric floodwave.Manning,
	bc *floodwave.BoundaryConditions, hydro *Hydrograph,
	initialLevel, hours, dt float64,
	autoTimestep bool, cflSafety, cflCeiling float64, strictCFL bool,
	thresholds floodwave.ValidationThresholds,
	addInit, addRun, addCleanup []floodwave.DomainManipulator) error {

	startTime := time.Now()

	// Start a function to receive and print log messages.
	logfile, err := os.Create(LogFile)
	if err != nil {
		return fmt.Errorf("floodwave: problem creating log file: %v", err)
	}
	mw := io.MultiWriter(CobraCommand.OutOrStdout(), logfile)
	log.SetOutput(mw)
	cReport := make(chan floodwave.ConvergenceStatus)
	cLog := make(chan *floodwave.SimulationStatus)
	cLogTick := time.Tick(2 * time.Second)
	msgLog := make(chan string)
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		for msg := range cReport {
			log.Println(msg.String())
		}
		wg.Done()
	}()
	go func() {
		for msg := range cLog {
			select {
			case <-cLogTick:
				log.Println(msg.String())
			default:
				runtime.Gosched()
			}
		}
		wg.Done()
	}()
	go func() {
		for msg := range msgLog {
			log.Println(msg)
		}
		wg.Done()
	}()

	defer func() { // Wait for the logging to finish.
		close(cReport)
		close(cLog)
		close(msgLog)
		wg.Wait()
		logfile.Close()
	}()

	if hours <= 0 {
		return fmt.Errorf("floodwave: Simulation.Hours=%g but should be >0", hours)
	}

	o, err := floodwave.NewOutputter(OutputFile, OutputVariables, nil)
	if err != nil {
		return err
	}
	log.Println("Parsing output variable expressions...")

	initFuncs := []floodwave.DomainManipulator{
		reach.RegularReach(section, fric),
		floodwave.InitialState(initialLevel, bc.UpstreamFlow[0]/section.Width()),
		floodwave.ApplyLateralInflow(bc),
	}
	if autoTimestep {
		initFuncs = append(initFuncs, floodwave.SetTimestepCFL(cflSafety))
	}
	if hydro != nil {
		initFuncs = append(initFuncs, hydro.SetUpstreamFlow(bc, hours, msgLog))
	}
	initFuncs = append(initFuncs, o.CheckOutputVars())

	runFuncs := []floodwave.DomainManipulator{
		floodwave.Log(cLog),
		floodwave.StepsForDuration(hours),
		floodwave.InjectBoundaries(bc),
		floodwave.Calculations(floodwave.AddLateralFlux()),
		floodwave.Calculations(floodwave.Continuity(), floodwave.Momentum()),
		floodwave.CheckStability(strictCFL),
		floodwave.SteadyStateCheck(cReport),
		floodwave.RecordResults(),
	}

	cleanupFuncs := []floodwave.DomainManipulator{
		floodwave.FinalizeResults(),
		o.Output(),
	}
	if ResultsFile != "" {
		cleanupFuncs = append(cleanupFuncs, floodwave.WriteResults(ResultsFile))
	}

	d := &floodwave.FloodWave{
		Dt:           dt,
		CFLCeiling:   cflCeiling,
		InitFuncs:    append(initFuncs, addInit...),
		RunFuncs:     append(runFuncs, addRun...),
		CleanupFuncs: append(cleanupFuncs, addCleanup...),
	}

	log.Println("Initializing model...")
	if err = d.Init(); err != nil {
		return fmt.Errorf("FloodWave: problem initializing model: %v", err)
	}

	log.Printf("Reach: %d nodes at %g m spacing", len(d.Nodes()), d.Dx())
	log.Printf("Timestep: %g s", d.Dt)

	if err = d.Run(); err != nil {
		return fmt.Errorf("FloodWave: problem running simulation: %v", err)
	}

	if err = d.Cleanup(); err != nil {
		return fmt.Errorf("FloodWave: problem shutting down model: %v", err)
	}

	for _, w := range d.Warnings() {
		log.Printf("Warning: %s", w)
	}
	log.Printf("Water balance: %g m³ in, %g m³ out, %g m³ in the channel",
		d.VolumeIn(), d.VolumeOut(), d.StoredVolume())

	if r := d.History(); r != nil {
		log.Printf("Maximum depth %.3g m, discharge %.4g m³/s, risk %s",
			r.MaxDepth(), r.MaxDischarge(), floodwave.RiskName(r.MaxRisk()))
		v := floodwave.Validate(r, thresholds)
		for _, e := range v.Errors {
			log.Printf("Validation error: %s", e)
		}
		for _, w := range v.Warnings {
			log.Printf("Validation warning: %s", w)
		}
		log.Printf("Validation score: %.2f", v.Score)
	}

	elapsedTime := time.Since(startTime)
	log.Printf("Elapsed time: %f hours", elapsedTime.Hours())

	if d.State() == floodwave.StoppedUnstable {
		return fmt.Errorf("floodwave: %s", d.Termination())
	}
	return nil
}
