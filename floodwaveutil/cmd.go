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
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"os"

	"github.com/ctessum/gobra"
	"github.com/hydromodel/floodwave"
	"github.com/hydromodel/floodwave/ensemble"
	"github.com/lnashier/viper"
	"github.com/skratchdot/open-golang/open"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to FloodWave.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Reach.LengthKm",
			usage: `
              Reach.LengthKm is the length of the modeled river reach in
              kilometers.`,
			defaultVal: 50.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Reach.DxKm",
			usage: `
              Reach.DxKm is the spacing between computation nodes in
              kilometers. The reach must hold at least three nodes.`,
			defaultVal: 1.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Reach.BedSlope",
			usage: `
              Reach.BedSlope is the longitudinal bed slope of the reach,
              dimensionless (drop per unit length). The bed falls in the
              downstream direction.`,
			defaultVal: 0.0005,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Reach.BankHeight",
			usage: `
              Reach.BankHeight is the height of the channel banks above the
              local bed in meters. Water deeper than this overtops the banks.`,
			defaultVal: 8.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Reach.CenterlineFile",
			usage: `
              Reach.CenterlineFile is the path to a GeoJSON file holding the
              river centerline as a LineString in a projected (meter-based)
              coordinate system. It is used to georeference the computation
              nodes and may be left empty. The path can include environment
              variables.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Channel.BottomWidth",
			usage: `
              Channel.BottomWidth is the bottom width of the trapezoidal
              channel cross-section in meters.`,
			defaultVal: 50.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Channel.SideSlope",
			usage: `
              Channel.SideSlope is the side slope of the trapezoidal channel
              cross-section (horizontal distance per unit height). Zero gives
              a rectangular channel.`,
			defaultVal: 2.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Channel.ManningN",
			usage: `
              Channel.ManningN is the Manning roughness coefficient of the
              channel [s m^-1/3].`,
			defaultVal: 0.035,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Simulation.Hours",
			usage: `
              Simulation.Hours is the length of simulated time in hours.`,
			defaultVal: 24.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Simulation.DtSeconds",
			usage: `
              Simulation.DtSeconds is the solver timestep in seconds. It is
              ignored when Simulation.AutoTimestep is set.`,
			defaultVal: 60.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Simulation.AutoTimestep",
			usage: `
              Simulation.AutoTimestep specifies whether to choose the timestep
              from the initial flow state and the Courant condition instead of
              using Simulation.DtSeconds.`,
			shorthand:  "a",
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Simulation.CFLSafety",
			usage: `
              Simulation.CFLSafety is the fraction of the Courant-limited
              timestep to use when Simulation.AutoTimestep is set. It must be
              in (0, 1].`,
			defaultVal: 0.9,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Simulation.CFLCeiling",
			usage: `
              Simulation.CFLCeiling is the maximum acceptable Courant number.
              Steps above it draw a warning, or stop the simulation when
              Simulation.StrictCFL is set.`,
			defaultVal: floodwave.DefaultCFLCeiling,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Simulation.StrictCFL",
			usage: `
              Simulation.StrictCFL specifies whether to stop the simulation
              when the Courant number exceeds Simulation.CFLCeiling rather
              than continuing with a warning.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Boundary.UpstreamFlow",
			usage: `
              Boundary.UpstreamFlow is the discharge entering the upstream end
              of the reach in m³/s. It is held constant unless
              Boundary.HydrographFile provides a time series.`,
			defaultVal: 500.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Boundary.DownstreamLevel",
			usage: `
              Boundary.DownstreamLevel is the water surface elevation above
              the datum held at the downstream end of the reach, in meters.`,
			defaultVal: 5.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Boundary.InitialLevel",
			usage: `
              Boundary.InitialLevel is the uniform water depth in the channel
              at the start of the simulation, in meters.`,
			defaultVal: 5.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Boundary.LateralInflow",
			usage: `
              Boundary.LateralInflow is a JSON array giving the lateral inflow
              per unit water surface area [m/s] for the first nodes of the
              reach, for example from tributaries or rainfall. Nodes beyond
              the end of the array receive no lateral inflow.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Boundary.HydrographFile",
			usage: `
              Boundary.HydrographFile is the path to an Excel file holding the
              upstream inflow hydrograph as (time [s], discharge [m³/s]) rows.
              When set, it replaces the constant Boundary.UpstreamFlow. The
              path can include environment variables.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), hydrographCmd.Flags()},
		},
		{
			name: "Boundary.HydrographSheet",
			usage: `
              Boundary.HydrographSheet is the name of the worksheet within
              Boundary.HydrographFile that holds the hydrograph.`,
			defaultVal: "hydrograph",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), hydrographCmd.Flags()},
		},
		{
			name: "OutputFile",
			usage: `
              OutputFile is the path where the per-node output variables are
              written as a NetCDF file. It can include environment variables.`,
			defaultVal: "floodwave_output.nc",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "ResultsFile",
			usage: `
              ResultsFile is the path where the full time-by-node result
              history is written as a NetCDF file, or, for the validate
              command, read from. If left empty, the run command does not
              write a history file. It can include environment variables.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), validateCmd.Flags()},
		},
		{
			name: "LogFile",
			usage: `
              LogFile is the path to the desired logfile location. It can
              include environment variables. If LogFile is left blank, the
              logfile will be saved in the same location as the OutputFile.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "OutputVariables",
			usage: `
              OutputVariables specifies which model variables should be
              included in the output file, as a mapping from output names to
              expressions over the model variables. It can include environment
              variables.`,
			defaultVal: map[string]string{
				"Depth":     "Depth",
				"Discharge": "Discharge",
				"Hazard":    "Depth * Velocity",
			},
			flagsets: []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Validate.MaxWaterLevel",
			usage: `
              Validate.MaxWaterLevel is the largest plausible water surface
              elevation in meters when validating results. Zero disables the
              check.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), validateCmd.Flags()},
		},
		{
			name: "Validate.MaxVelocity",
			usage: `
              Validate.MaxVelocity is the largest plausible flow velocity in
              m/s when validating results. Zero disables the check.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), validateCmd.Flags()},
		},
		{
			name: "Ensemble.ScenarioFile",
			usage: `
              Ensemble.ScenarioFile is the path to a TOML file describing the
              scenarios to run. It can include environment variables.`,
			defaultVal: "scenarios.toml",
			flagsets:   []*pflag.FlagSet{ensembleCmd.Flags()},
		},
		{
			name: "Ensemble.OutputDir",
			usage: `
              Ensemble.OutputDir is the directory where per-scenario result
              files are written. It is created if it does not exist. It can
              include environment variables.`,
			defaultVal: "ensemble",
			flagsets:   []*pflag.FlagSet{ensembleCmd.Flags()},
		},
		{
			name: "Ensemble.Workers",
			usage: `
              Ensemble.Workers is the number of scenarios to run
              simultaneously. If less than one, one worker is started per
              available processor.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{ensembleCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("FLOODWAVE")

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case []string:
				if option.shorthand == "" {
					set.StringSlice(option.name, option.defaultVal.([]string), option.usage)
				} else {
					set.StringSliceP(option.name, option.shorthand, option.defaultVal.([]string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			case float64:
				if option.shorthand == "" {
					set.Float64(option.name, option.defaultVal.(float64), option.usage)
				} else {
					set.Float64P(option.name, option.shorthand, option.defaultVal.(float64), option.usage)
				}
			case map[string]string:
				b := bytes.NewBuffer(nil)
				e := json.NewEncoder(b)
				e.Encode(option.defaultVal)
				s := string(b.Bytes())
				if option.shorthand == "" {
					set.String(option.name, s, option.usage)
				} else {
					set.StringP(option.name, option.shorthand, s, option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(runCmd)
	Root.AddCommand(validateCmd)
	Root.AddCommand(hydrographCmd)
	Root.AddCommand(ensembleCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("floodwave: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "floodwave",
	Short: "A one-dimensional river flood simulator.",
	Long: `FloodWave simulates the propagation of flood waves along a river reach
by solving the one-dimensional shallow water equations. Use the subcommands
specified below to access the model functionality.

Refer to the subcommand documentation for configuration options and default
settings. Configuration can be changed by using a configuration file (and
providing the path to the file using the --config flag), by using command-line
arguments, or by setting environment variables in the format 'FLOODWAVE_var'
where 'var' is the name of the variable to be set. Many configuration variables
are additionally allowed to contain environment variables within them.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of FloodWave.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("FloodWave v%s\n", floodwave.Version)
	},
	DisableAutoGenTag: true,
}

// runCmd is a command that runs a flood simulation.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a flood simulation.",
	Long: `run simulates the propagation of a flood wave along the configured
river reach, writes the requested output variables to OutputFile and,
if a ResultsFile is configured, the full result history alongside.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		reach, err := reachConfig(Cfg)
		if err != nil {
			return err
		}
		section, fric, err := channelConfig(Cfg)
		if err != nil {
			return err
		}
		bc, err := boundaryConfig(Cfg)
		if err != nil {
			return err
		}
		var hydro *Hydrograph
		if f := os.ExpandEnv(Cfg.GetString("Boundary.HydrographFile")); f != "" {
			hydro, err = ReadHydrograph(f, Cfg.GetString("Boundary.HydrographSheet"))
			if err != nil {
				return err
			}
		}
		outputFile, err := checkOutputFile(Cfg.GetString("OutputFile"))
		if err != nil {
			return err
		}
		outputVars, err := checkOutputVars(GetStringMapString("OutputVariables", Cfg))
		if err != nil {
			return err
		}

		return Run(
			cmd,
			checkLogFile(Cfg.GetString("LogFile"), outputFile),
			outputFile,
			os.ExpandEnv(Cfg.GetString("ResultsFile")),
			outputVars,
			reach, section, fric, bc, hydro,
			Cfg.GetFloat64("Boundary.InitialLevel"),
			Cfg.GetFloat64("Simulation.Hours"),
			Cfg.GetFloat64("Simulation.DtSeconds"),
			Cfg.GetBool("Simulation.AutoTimestep"),
			Cfg.GetFloat64("Simulation.CFLSafety"),
			Cfg.GetFloat64("Simulation.CFLCeiling"),
			Cfg.GetBool("Simulation.StrictCFL"),
			validationThresholds(Cfg),
			nil, nil, nil)
	},
	DisableAutoGenTag: true,
}

// validateCmd is a command that checks a result history for plausibility.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a result history.",
	Long: `validate reads the result history in ResultsFile and checks it against
the plausibility thresholds in the Validate configuration section, printing
any findings. The command fails if the results are invalid.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		resultsFile := os.ExpandEnv(Cfg.GetString("ResultsFile"))
		if resultsFile == "" {
			return fmt.Errorf("floodwave: the validate command requires the ResultsFile configuration variable")
		}
		f, err := os.Open(resultsFile)
		if err != nil {
			return fmt.Errorf("floodwave: problem opening results file: %v", err)
		}
		defer f.Close()
		r, err := floodwave.ReadResults(f)
		if err != nil {
			return err
		}
		v := floodwave.Validate(r, validationThresholds(Cfg))
		for _, e := range v.Errors {
			cmd.Printf("error: %s\n", e)
		}
		for _, w := range v.Warnings {
			cmd.Printf("warning: %s\n", w)
		}
		cmd.Printf("score: %.2f\n", v.Score)
		if !v.Valid {
			return fmt.Errorf("floodwave: the results in %s failed validation", resultsFile)
		}
		return nil
	},
	DisableAutoGenTag: true,
}

// hydrographCmd is a command that summarizes an inflow hydrograph file.
var hydrographCmd = &cobra.Command{
	Use:   "hydrograph",
	Short: "Summarize an inflow hydrograph.",
	Long: `hydrograph reads the hydrograph in Boundary.HydrographFile and prints
its duration, peak and mean discharge, so the file can be checked before
it is used in a simulation.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file := os.ExpandEnv(Cfg.GetString("Boundary.HydrographFile"))
		if file == "" {
			return fmt.Errorf("floodwave: the hydrograph command requires the Boundary.HydrographFile configuration variable")
		}
		h, err := ReadHydrograph(file, Cfg.GetString("Boundary.HydrographSheet"))
		if err != nil {
			return err
		}
		peak := floats.Max(h.Flows)
		cmd.Printf("points: %d\n", len(h.Times))
		cmd.Printf("duration: %g h\n", h.Duration()/3600)
		cmd.Printf("peak: %g m³/s at %g h\n", peak, h.Times[floats.MaxIdx(h.Flows)]/3600)
		cmd.Printf("mean: %g m³/s\n", stat.Mean(h.Flows, nil))
		return nil
	},
	DisableAutoGenTag: true,
}

// ensembleCmd is a command that runs a batch of scenarios.
var ensembleCmd = &cobra.Command{
	Use:   "ensemble",
	Short: "Run an ensemble of scenarios.",
	Long: `ensemble runs the scenarios described in Ensemble.ScenarioFile in
parallel, writing a result history and an outcome summary for each scenario
to Ensemble.OutputDir. Scenarios that fail or go unstable do not stop the
rest of the ensemble.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		scenarios, err := ensemble.ReadScenarios(os.ExpandEnv(Cfg.GetString("Ensemble.ScenarioFile")))
		if err != nil {
			return err
		}
		e := &ensemble.Ensemble{
			Workers:   Cfg.GetInt("Ensemble.Workers"),
			OutputDir: os.ExpandEnv(Cfg.GetString("Ensemble.OutputDir")),
		}
		return e.Run(context.Background(), scenarios)
	},
	DisableAutoGenTag: true,
}

// StartWebServer starts the web server.
func StartWebServer() {
	setConfig() // Ignore any errors for now.

	http.HandleFunc("/setConfig", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		configFile := r.Form["config"][0]
		Root.Flags().Set("config", configFile)
		err := setConfig()
		if err != nil {
			http.Error(w, err.Error(), 204)
			return
		}
		config := make(map[string]interface{})
		for _, option := range options {
			config[option.name] = Cfg.Get(option.name)
		}
		e := json.NewEncoder(w)
		if err := e.Encode(config); err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
	})

	log.Println("Loading front-end...")

	for _, cmd := range []*cobra.Command{Root, versionCmd, runCmd, validateCmd,
		hydrographCmd, ensembleCmd} {
		cmd.SilenceUsage = true // We don't want the usage messages in the GUI.
	}

	const address = "localhost:7177"
	const tmpl = `
<!DOCTYPE html>
<html>
<head>
	<meta charset="utf-8">
	<title>FloodWave</title>
	<style>
		html, body {padding: 0; margin: 2% 0; font-family: sans-serif;}
		.container { max-width: 700px; margin: 0 auto; padding: 10px; }
		div[id^="gobra-"] blockquote { border-left: 3px solid #bbb; margin: .3em; color: #333; padding-left: 5px; font-size: 75%; }
		div[id^="gobra-"] code { font-weight: bold; }
		div[id^="gobra-"] input { font-family: monospace; margin-left: .2em; width: 50%; outline:none; }
		.red-border{ border: 1px solid #c35; }
		.green-border{ border: 1px solid #3c5; }
		.blue-border{ border: 1px solid #35c; }
	</style>
</head>
<body>
<div class="container">
	<h1>FloodWave</h1>
	<p>Configure the flood simulation below.</p>
	<p>
		Color key: black=default;
		<font color="red">red</font>=error;
		<font color="green">green</font>=value from config file;
		<font color="blue">blue</font>=user entered
	</p>
	<div>
		{{.}}
	</div>
	<footer>
		© 2018 FloodWave Authors
	</footer>
</div>

<script>
// If the configuration file is changed, send the new file path
// to the server and update fields

let allFlags = [...document.querySelectorAll('[data-name]')];
allFlags.forEach(x => {
	let inputField = x.children[0];
	inputField.addEventListener("input", e => {
		inputField.classList.remove("green-border");
		inputField.classList.add("blue-border");
	})
})

let configInput = allFlags.filter(x => x.dataset.name == "config")[0].children[0];
configInput.addEventListener("input", e => {
	fetch("http://` + address + `/setConfig?config="+configInput.value)
		.then( res => {
			if (res.status !== 200) {
				if (res.status == 204) {
					configInput.classList.remove("blue-border");
					configInput.classList.remove("green-border");
					configInput.classList.add("red-border");
				} else {
					console.log("Error fetching /setConfig: ", response.text());
				}
			} else {
				res.json().then( data => {
					configInput.classList.remove("red-border");
					for (let key in data)
						for(let f of allFlags)
							if (f.dataset.name == key) {
								let input = f.children[0];
								var newValue = JSON.stringify(data[key]).replace(/^"+|"+$/g,'');
								if (input.value != newValue) {
									input.value = newValue
									input.classList.remove("blue-border");
									input.classList.add("green-border");
								}
							}
				})
			}
		})
		.catch( err => {
			console.log("Error fetching /setConfig", err)
		})
})
</script>
</body>
</html>`

	output := template.Must(template.New("").Parse(tmpl))
	server := gobra.Server{Root: Root, ServerAddress: address, AllowCORS: false, HTML: output}
	log.Println("Server starting... ")
	open.Run("http://" + address)
	fmt.Println("If not opened automatically, please visit http://" + address)
	server.Start()
}
