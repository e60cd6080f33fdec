/*
 * driver.go, part of goQMC.
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

//Package driver contains the Monte Carlo drivers. A Driver runs the walkers of one rank through
//initialization, warmup, and a number of blocks of steps, at the end of which estimators are reduced,
//walker logs are written and, for DMC, the population is branched and rebalanced among ranks.
package driver

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"

	qmc "github.com/rmera/goqmc"
	"github.com/rmera/goqmc/balance"
	"github.com/rmera/goqmc/comm"
	"github.com/rmera/goqmc/config"
	"github.com/rmera/goqmc/estimators"
	"github.com/rmera/goqmc/metrics"
	"github.com/rmera/goqmc/walker"
	"github.com/rmera/goqmc/wlog"
)

//Options are the optional collaborators of a Driver.
type Options struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	RunID   string
}

//Driver runs the walkers of one rank.
type Driver struct {
	in      config.Input
	comm    comm.Communicator
	psi     qmc.WaveFunction //golden copies, only cloned
	ham     qmc.Hamiltonian
	logger  *slog.Logger
	metrics *metrics.Rank
	runID   string

	state         State
	counts        balance.AdjustedWalkerCounts
	stepsPerBlock int
	taus          TauParams
	pop           *walker.Population
	crowds        []*crowd
	rng           *rand.Rand //rank-level, for branching
	current       int
	block         int
	trialEnergy   float64
	series        estimators.Series
	stats         estimators.Stats
	wlogs         *wlog.Manager
	scalar        *estimators.ScalarWriter
	accepted      int64
	rejected      int64
}

//New returns a driver for the rank of c. psi and ham are never modified: each crowd works on its own clones.
func New(in config.Input, c comm.Communicator, psi qmc.WaveFunction, ham qmc.Hamiltonian, opts Options) *Driver {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{
		in:      in,
		comm:    c,
		psi:     psi,
		ham:     ham,
		logger:  logger.With("rank", c.Rank()),
		metrics: opts.Metrics.Rank(c.Rank()),
		runID:   opts.RunID,
		state:   Uninitialized,
	}
}

//State returns the current state of the driver.
func (D *Driver) State() State { return D.state }

//Current returns the number of steps taken, including warmup.
func (D *Driver) Current() int { return D.current }

//StepsPerBlock returns the number of steps in each block. It is only valid after initialization.
func (D *Driver) StepsPerBlock() int { return D.stepsPerBlock }

//Counts returns the walker counts of the run. It is only valid after initialization.
func (D *Driver) Counts() balance.AdjustedWalkerCounts { return D.counts }

//NumLivingWalkers returns the number of living walkers on this rank.
func (D *Driver) NumLivingWalkers() int {
	if D.pop == nil {
		return 0
	}
	return D.pop.NumLiving()
}

//NumDeadWalkers returns the number of walkers in the dead pool of this rank.
func (D *Driver) NumDeadWalkers() int {
	if D.pop == nil {
		return 0
	}
	return D.pop.NumDead()
}

//Walkers returns the living walkers of this rank.
func (D *Driver) Walkers() []*walker.Walker {
	if D.pop == nil {
		return nil
	}
	return D.pop.Walkers()
}

//AcceptRatio returns the fraction of single-particle moves accepted on this rank so far.
func (D *Driver) AcceptRatio() float64 {
	if D.accepted+D.rejected == 0 {
		return 0
	}
	return float64(D.accepted) / float64(D.accepted+D.rejected)
}

//TrialEnergy returns the current trial energy (only meaningful in DMC).
func (D *Driver) TrialEnergy() float64 { return D.trialEnergy }

//Series returns the block results, which are the same on every rank.
func (D *Driver) Series() *estimators.Series { return &D.series }

//Stats returns the final statistics. It is only valid after the run finishes.
func (D *Driver) Stats() estimators.Stats { return D.stats }

func (D *Driver) setState(s State) {
	if !D.state.CanMove(s) {
		panic(fmt.Sprintf("goQMC/driver: invalid state transition %s -> %s", D.state, s))
	}
	D.logger.Debug("driver state", "from", D.state, "to", s)
	D.state = s
}

func (D *Driver) dmc() bool { return D.in.Method == config.DMC }

//Run takes the driver through the whole simulation. All the ranks must run at the same time.
//If it returns an error, the driver is left in the Failed state.
func (D *Driver) Run(ctx context.Context) (err error) {
	defer func() {
		if err != nil {
			D.closeOutputs()
			if !D.state.Done() {
				D.state = Failed
			}
			D.logger.Error("run failed", "error", err)
		}
	}()
	production := D.metrics.Time(metrics.Production)
	defer production()
	D.setState(Initializing)
	if err := D.initialize(ctx); err != nil {
		return errDecorate(err, "Run")
	}
	D.setState(Warmup)
	for i := 0; i < D.in.WarmupSteps; i++ {
		if err := D.runStep(ctx, false); err != nil {
			return errDecorate(err, "Run")
		}
	}
	D.setState(Running)
	for D.block = 0; D.block < D.in.Blocks; D.block++ {
		D.startBlock()
		for s := 0; s < D.stepsPerBlock; s++ {
			if err := D.runStep(ctx, true); err != nil {
				return errDecorate(err, "Run")
			}
		}
		D.setState(BlockEnd)
		if err := D.endBlock(ctx); err != nil {
			return errDecorate(err, "Run")
		}
		if D.block < D.in.Blocks-1 {
			D.setState(Running)
		}
	}
	D.setState(Finalizing)
	if err := D.finalize(ctx); err != nil {
		return errDecorate(err, "Run")
	}
	D.setState(Terminal)
	return nil
}

func (D *Driver) header() map[string]string {
	return map[string]string{
		"run_id":  D.runID,
		"method":  D.in.Method,
		"rank":    fmt.Sprint(D.comm.Rank()),
		"n_ranks": fmt.Sprint(D.comm.Size()),
	}
}

//initialize validates the input, distributes the walkers and creates the crowds.
//No step is taken if it fails.
func (D *Driver) initialize(ctx context.Context) error {
	defer D.metrics.Time(metrics.Startup)()
	in := D.in
	if err := in.Validate(); err != nil {
		return errDecorate(err, "initialize")
	}
	rank, size := D.comm.Rank(), D.comm.Size()
	var restored []*walker.Walker
	currentConfigs, total := 0, in.TotalWalkers
	if in.RestartFrom != "" {
		var err error
		restored, err = walker.LoadConfigs(in.RestartFrom)
		if err != nil {
			return errDecorate(err, "initialize")
		}
		if len(restored) > 0 && in.TotalWalkers == 0 && in.WalkersPerRank == 0 {
			if len(restored)%size == 0 {
				currentConfigs = len(restored) / size
			} else {
				total = len(restored)
			}
		}
		D.logger.Info("restarting from walker configurations", "file", in.RestartFrom, "walkers", len(restored))
	}
	var err error
	D.counts, err = balance.AdjustGlobalWalkerCount(size, currentConfigs, total, in.WalkersPerRank, in.Reserve, in.Crowds, in.Threads)
	if err != nil {
		return errDecorate(err, "initialize")
	}
	D.stepsPerBlock, err = balance.DetermineStepsPerBlock(D.counts.GlobalWalkers, in.Samples, in.Steps, in.Blocks)
	if err != nil {
		return errDecorate(err, "initialize")
	}
	D.taus = NewTauParams(in.Tau)
	D.rng = rand.New(rand.NewSource(crowdSeed(in.Seed, rank, 1<<19)))
	if err := D.createWalkers(restored); err != nil {
		return errDecorate(err, "initialize")
	}
	local := D.counts.Local(rank)
	D.crowds = make([]*crowd, len(local))
	for i := range D.crowds {
		D.crowds[i] = newCrowd(i, D)
	}
	D.distribute()
	stop := D.metrics.Time(metrics.InitWalkers)
	if err := D.forCrowds(ctx, func(_ context.Context, c *crowd) error {
		c.initWalkers()
		return nil
	}); err != nil {
		return errDecorate(err, "initialize")
	}
	stop()
	if in.WalkerLogs.Enabled {
		D.wlogs, err = wlog.NewManager(wlog.FileName(in.Project, rank), in.WalkerLogs, D.header(), in.Compression, D.logger)
		if err != nil {
			return errDecorate(err, "initialize")
		}
	}
	if rank == 0 {
		D.scalar, err = estimators.NewScalarWriter(estimators.ScalarFileName(in.Project), D.ham.Components())
		if err != nil {
			return errDecorate(err, "initialize")
		}
	}
	ens, err := D.pop.GlobalEnergy(ctx, D.comm)
	if err != nil {
		return errDecorate(err, "initialize")
	}
	D.trialEnergy = in.TrialEnergy
	if D.dmc() && D.trialEnergy == 0 {
		D.trialEnergy = ens.Energy
	}
	D.metrics.Walkers(D.pop.NumLiving())
	D.logger.Info("driver initialized", "method", in.Method, "global_walkers", D.counts.GlobalWalkers,
		"local_walkers", D.pop.NumLiving(), "crowds", len(D.crowds), "steps_per_block", D.stepsPerBlock,
		"blocks", in.Blocks, "initial_energy", ens.Energy, "trial_energy", D.trialEnergy)
	return nil
}

//createWalkers builds the population of the rank, from the restored walkers, if any,
//or with the particles at random positions.
func (D *Driver) createWalkers(restored []*walker.Walker) error {
	defer D.metrics.Time(metrics.CreateWalkers)()
	rank, size := D.comm.Rank(), D.comm.Size()
	n := D.counts.WalkersPerRank[rank]
	D.pop = walker.NewPopulation(rank, size, D.in.Particles)
	if len(restored) > 0 {
		offsets := balance.WalkerOffsets(balance.FairDivide(len(restored), size))
		mine := restored[offsets[rank]:offsets[rank+1]]
		if err := D.pop.Restore(mine); err != nil {
			return errDecorate(err, "createWalkers")
		}
		for _, w := range restored {
			D.pop.AvoidIDs(w.ID)
		}
		for D.pop.NumLiving() > n {
			D.pop.KillLast()
		}
		for i := 0; D.pop.NumLiving() < n; i++ {
			if len(mine) == 0 {
				D.randomize(D.pop.Spawn(nil))
				continue
			}
			D.pop.Spawn(D.pop.Walkers()[i%len(mine)])
		}
		return nil
	}
	if err := D.pop.MakeLocalWalkers(n, D.counts.Reserve, nil); err != nil {
		return errDecorate(err, "createWalkers")
	}
	for _, w := range D.pop.Walkers() {
		D.randomize(w)
	}
	return nil
}

//randomize puts the particles of w at normally distributed positions.
func (D *Driver) randomize(w *walker.Walker) {
	raw := w.R.Raw()
	for i := range raw {
		raw[i] = D.rng.NormFloat64()
	}
}

//distribute assigns the living walkers to the crowds.
func (D *Driver) distribute() {
	parts := D.pop.Distribute(make([]int, len(D.crowds)))
	for i, c := range D.crowds {
		c.walkers = parts[i]
	}
}

//forCrowds runs f concurrently for every crowd and waits for all of them.
func (D *Driver) forCrowds(ctx context.Context, f func(context.Context, *crowd) error) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, c := range D.crowds {
		c := c
		g.Go(func() error { return f(gctx, c) })
	}
	return g.Wait()
}

func (D *Driver) startBlock() {
	for _, c := range D.crowds {
		c.startBlock()
	}
}

//runStep advances all the walkers one step. Estimators and walker logs are only
//collected if measure is true.
func (D *Driver) runStep(ctx context.Context, measure bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer D.metrics.Time(metrics.RunSteps)()
	p := stepParams{
		step:        D.current,
		taus:        D.taus,
		drift:       D.in.UseDrift,
		dmc:         D.dmc(),
		trialEnergy: D.trialEnergy,
		measure:     measure,
	}
	err := D.forCrowds(ctx, func(gctx context.Context, c *crowd) error {
		return c.advance(gctx, p)
	})
	D.current++
	return err
}

//measureImbalance times how long this rank waits for the others at the end of a block.
func (D *Driver) measureImbalance(ctx context.Context, tag string) error {
	defer D.metrics.Time(metrics.Imbalance)()
	start := time.Now()
	if err := D.comm.Barrier(ctx); err != nil {
		return err
	}
	D.logger.Debug("imbalance", "tag", tag, "wait", time.Since(start))
	return nil
}

//endBlock reduces the estimators, writes the outputs of the block and, for DMC,
//branches and rebalances the population.
func (D *Driver) endBlock(ctx context.Context) error {
	defer D.metrics.Time(metrics.EndBlock)()
	if err := D.measureImbalance(ctx, "block end"); err != nil {
		return errDecorate(err, "endBlock")
	}
	accs := make([]*estimators.Accumulator, len(D.crowds))
	collectors := make([]*wlog.Collector, len(D.crowds))
	for i, c := range D.crowds {
		accs[i] = c.acc
		collectors[i] = c.collector
		D.accepted += int64(c.accepted)
		D.rejected += int64(c.rejected)
		D.metrics.Moves(c.accepted, c.rejected)
	}
	stop := D.metrics.Time(metrics.Estimators)
	B, err := estimators.Reduce(ctx, D.comm, accs)
	stop()
	if err != nil {
		return errDecorate(err, "endBlock")
	}
	B.Index = D.block
	B.TrialEnergy = D.trialEnergy
	if D.wlogs != nil {
		stop := D.metrics.Time(metrics.Buffer)
		err := D.wlogs.WriteBuffers(collectors)
		stop()
		if err != nil {
			return errDecorate(err, "endBlock")
		}
	}
	if D.dmc() {
		if err := D.branch(ctx, &B); err != nil {
			return errDecorate(err, "endBlock")
		}
	} else {
		n, err := comm.AllGatherInt(ctx, D.comm, D.pop.NumLiving())
		if err != nil {
			return errDecorate(err, "endBlock")
		}
		for _, v := range n {
			B.Walkers += v
		}
	}
	D.series.Add(B)
	if D.scalar != nil {
		if err := D.scalar.Write(B); err != nil {
			return errDecorate(err, "endBlock")
		}
	}
	if D.in.DumpConfigs && D.in.WalkerDumpPeriod > 0 && (D.block+1)%D.in.WalkerDumpPeriod == 0 {
		if err := D.checkpoint(ctx); err != nil {
			return errDecorate(err, "endBlock")
		}
	}
	D.metrics.Walkers(D.pop.NumLiving())
	D.metrics.Block()
	D.logger.Info("block done", "block", B.Index, "energy", B.Energy, "variance", B.Variance,
		"accept", B.AcceptRatio, "walkers", B.Walkers, "trial_energy", B.TrialEnergy)
	return nil
}

//branch applies the branching operator, updates the trial energy with the population
//control feedback, and rebalances the walkers among ranks and crowds. It sets B.Walkers.
func (D *Driver) branch(ctx context.Context, B *estimators.Block) error {
	before := D.pop.NumLiving()
	after := D.pop.Branch(D.rng)
	ens, err := D.pop.GlobalEnergy(ctx, D.comm)
	if err != nil {
		return errDecorate(err, "branch")
	}
	if ens.Walkers == 0 {
		return Error{message: fmt.Sprintf("the walker population died out at block %d", D.block), deco: []string{"branch"}, critical: true}
	}
	target := float64(D.counts.GlobalWalkers)
	D.trialEnergy = B.Energy - D.in.Feedback*math.Log(float64(ens.Walkers)/target)
	moved, err := D.pop.Rebalance(ctx, D.comm)
	if err != nil {
		return errDecorate(err, "branch")
	}
	D.distribute()
	B.Walkers = ens.Walkers
	D.logger.Debug("branched", "before", before, "after", after, "moved", moved, "global", ens.Walkers, "trial_energy", D.trialEnergy)
	return nil
}

//checkpoint writes the walker configurations of all the ranks to the checkpoint file.
func (D *Driver) checkpoint(ctx context.Context) error {
	defer D.metrics.Time(metrics.Checkpoint)()
	all, err := D.pop.Gather(ctx, D.comm)
	if err != nil {
		return errDecorate(err, "checkpoint")
	}
	if D.comm.Rank() != 0 {
		return nil
	}
	name := ConfigFileName(D.in.Project)
	if err := walker.SaveConfigs(name, all, D.header()); err != nil {
		return errDecorate(err, "checkpoint")
	}
	D.logger.Info("walker configurations saved", "file", name, "walkers", len(all))
	return nil
}

//ConfigFileName returns the name of the walker checkpoint file of a run.
func ConfigFileName(root string) string {
	return root + ".config.qta"
}

//finalize writes the final statistics and closes the outputs.
func (D *Driver) finalize(ctx context.Context) error {
	D.stats = D.series.Stats(0)
	if D.in.DumpConfigs {
		if err := D.checkpoint(ctx); err != nil {
			return errDecorate(err, "finalize")
		}
	}
	if D.comm.Rank() == 0 {
		D.logger.Info("run finished", "method", D.in.Method, "energy", D.stats.Mean, "error", D.stats.Error,
			"corr_time", D.stats.CorrTime, "blocks", D.stats.N, "accept", D.AcceptRatio())
		if e := D.series.Energies(0); len(e) > 1 {
			D.logger.Debug("block energy histogram\n" + estimators.UniformHistogram(e, 10).String())
		}
		if D.in.Plot {
			title := fmt.Sprintf("%s %s", D.in.Method, D.in.Project)
			if err := estimators.PlotBlocks(&D.series, title, estimators.PlotFileName(D.in.Project)); err != nil {
				return errDecorate(err, "finalize")
			}
		}
	}
	return D.closeOutputs()
}

func (D *Driver) closeOutputs() error {
	var err error
	if D.wlogs != nil {
		err = D.wlogs.Close()
		D.wlogs = nil
	}
	if D.scalar != nil {
		if err2 := D.scalar.Close(); err == nil {
			err = err2
		}
		D.scalar = nil
	}
	return err
}
