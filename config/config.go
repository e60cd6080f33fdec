/*
 * config.go, part of goQMC.
 *
 * Copyright 2024 Raul Mera <rauldotmeraatusachdotcl>
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU Lesser General Public License as
 * published by the Free Software Foundation; either version 2.1 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General
 * Public License along with this program.  If not, see
 * <http://www.gnu.org/licenses/>.
 *
 */

//Package config reads the input of a goQMC run. The input is read from a YAML file, then
//overridden by GOQMC_* environment variables, and finally validated.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

//Methods.
const (
	VMC = "vmc"
	DMC = "dmc"
)

//WalkerLogs controls the per-walker trace output.
type WalkerLogs struct {
	Enabled    bool `yaml:"enabled" env:"ENABLED"`
	StepPeriod int  `yaml:"step_period" env:"STEP_PERIOD"` //collect every StepPeriod steps
	Particle   bool `yaml:"particle" env:"PARTICLE"`       //also log coordinates and gradients
	Quantiles  bool `yaml:"quantiles" env:"QUANTILES"`     //log the min, max and median energy walkers
	Verbose    bool `yaml:"verbose" env:"VERBOSE"`
}

//Input is the configuration of a run.
type Input struct {
	Method  string `yaml:"method" env:"GOQMC_METHOD"`
	Project string `yaml:"project" env:"GOQMC_PROJECT"` //root of the output file names
	Seed    uint64 `yaml:"seed" env:"GOQMC_SEED"`
	Ranks   int    `yaml:"ranks" env:"GOQMC_RANKS"`

	//Toy system
	Particles int     `yaml:"particles" env:"GOQMC_PARTICLES"`
	Alpha     float64 `yaml:"alpha" env:"GOQMC_ALPHA"`

	//Walkers
	TotalWalkers   int     `yaml:"total_walkers" env:"GOQMC_TOTAL_WALKERS"`
	WalkersPerRank int     `yaml:"walkers_per_rank" env:"GOQMC_WALKERS_PER_RANK"`
	Reserve        float64 `yaml:"reserve" env:"GOQMC_RESERVE"`
	Crowds         int     `yaml:"crowds" env:"GOQMC_CROWDS"`
	Threads        int     `yaml:"threads" env:"GOQMC_THREADS"`

	//Sampling
	Blocks      int     `yaml:"blocks" env:"GOQMC_BLOCKS"`
	Steps       int     `yaml:"steps" env:"GOQMC_STEPS"`
	Samples     int     `yaml:"samples" env:"GOQMC_SAMPLES"`
	WarmupSteps int     `yaml:"warmup_steps" env:"GOQMC_WARMUP_STEPS"`
	Tau         float64 `yaml:"tau" env:"GOQMC_TAU"`
	UseDrift    bool    `yaml:"use_drift" env:"GOQMC_USE_DRIFT"`

	//DMC
	TrialEnergy float64 `yaml:"trial_energy" env:"GOQMC_TRIAL_ENERGY"` //0 means the initial ensemble average
	Feedback    float64 `yaml:"feedback" env:"GOQMC_FEEDBACK"`

	//Output
	WalkerDumpPeriod int        `yaml:"walker_dump_period" env:"GOQMC_WALKER_DUMP_PERIOD"` //blocks between checkpoints, 0 only at the end
	DumpConfigs      bool       `yaml:"dump_configs" env:"GOQMC_DUMP_CONFIGS"`
	RestartFrom      string     `yaml:"restart_from" env:"GOQMC_RESTART_FROM"`
	Compression      int        `yaml:"compression" env:"GOQMC_COMPRESSION"`
	Plot             bool       `yaml:"plot" env:"GOQMC_PLOT"`
	WalkerLogs       WalkerLogs `yaml:"walker_logs" envPrefix:"GOQMC_WALKER_LOGS_"`
}

//Default returns the default input: a short VMC run of 4 particles with the exact
//trial function, one crowd per CPU.
func Default() Input {
	return Input{
		Method:      VMC,
		Project:     "goqmc",
		Seed:        11,
		Ranks:       1,
		Particles:   4,
		Alpha:       1,
		Reserve:     0.5,
		Threads:     runtime.GOMAXPROCS(0),
		Blocks:      10,
		Steps:       10,
		Tau:         0.1,
		UseDrift:    true,
		Feedback:    1,
		Compression: 3,
		WalkerLogs:  WalkerLogs{StepPeriod: 1},
	}
}

//Load reads the YAML file name (if name is not empty) on top of the defaults, applies the
//environment overrides and validates the result.
func Load(name string) (Input, error) {
	in := Default()
	if name != "" {
		data, err := os.ReadFile(name)
		if err != nil {
			return in, Error{message: err.Error(), deco: []string{"Load"}, critical: true}
		}
		if err := yaml.Unmarshal(data, &in); err != nil {
			return in, Error{message: fmt.Sprintf("parsing %s: %s", name, err.Error()), deco: []string{"Load"}, critical: true}
		}
	}
	if err := env.Parse(&in); err != nil {
		return in, Error{message: "parse env: " + err.Error(), deco: []string{"Load"}, critical: true}
	}
	in.Method = strings.ToLower(in.Method)
	return in, errDecorate(in.Validate(), "Load")
}

//Validate returns a critical error describing every invalid field of the input, or nil.
func (in Input) Validate() error {
	var bad []string
	check := func(ok bool, format string, v ...any) {
		if !ok {
			bad = append(bad, fmt.Sprintf(format, v...))
		}
	}
	check(in.Method == VMC || in.Method == DMC, "method must be %q or %q, not %q", VMC, DMC, in.Method)
	check(in.Project != "", "project can't be empty")
	check(in.Ranks > 0, "ranks must be positive")
	check(in.Particles > 0, "particles must be positive")
	check(in.Alpha > 0, "alpha must be positive")
	check(in.TotalWalkers >= 0, "total_walkers can't be negative")
	check(in.WalkersPerRank >= 0, "walkers_per_rank can't be negative")
	check(in.Reserve >= 0, "reserve can't be negative")
	check(in.Crowds >= 0, "crowds can't be negative")
	check(in.Threads > 0, "threads must be positive")
	check(in.Blocks > 0, "blocks must be positive")
	check(in.Steps >= 0, "steps can't be negative")
	check(in.Samples >= 0, "samples can't be negative")
	check(in.WarmupSteps >= 0, "warmup_steps can't be negative")
	check(in.Tau > 0, "tau must be positive")
	check(in.Feedback >= 0, "feedback can't be negative")
	check(in.WalkerDumpPeriod >= 0, "walker_dump_period can't be negative")
	check(in.Compression >= 0 && in.Compression <= 22, "compression must be between 0 and 22")
	check(!in.WalkerLogs.Enabled || in.WalkerLogs.StepPeriod > 0, "walker_logs step_period must be positive")
	if len(bad) == 0 {
		return nil
	}
	return Error{message: "invalid input: " + strings.Join(bad, "; "), deco: []string{"Validate"}, critical: true}
}

//Error is the error type of the package.
type Error struct {
	message  string
	deco     []string
	critical bool
}

func (err Error) Error() string { return err.message }

//Decorate will add the dec string to the decoration slice of strings of the error,
//and return the resulting slice.
func (err Error) Decorate(dec string) []string {
	if dec == "" {
		return err.deco
	}
	err.deco = append(err.deco, dec)
	return err.deco
}

//Critical returns true if the error cannot be recovered from.
func (err Error) Critical() bool { return err.critical }

func errDecorate(err error, caller string) error {
	if err == nil {
		return nil
	}
	if e, ok := err.(Error); ok {
		e.deco = e.Decorate(caller)
		return e
	}
	return err
}
