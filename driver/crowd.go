/*
 * crowd.go, part of goQMC.
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

package driver

import (
	"context"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	qmc "github.com/rmera/goqmc"
	"github.com/rmera/goqmc/estimators"
	v3 "github.com/rmera/goqmc/v3"
	"github.com/rmera/goqmc/walker"
	"github.com/rmera/goqmc/wlog"
)

//crowd is a group of walkers advanced by one goroutine. It owns everything it touches
//during a step: the walkers, its clones of the wavefunction and the Hamiltonian, its
//random numbers, its walker log collector and its estimator accumulator.
type crowd struct {
	index     int
	walkers   []*walker.Walker
	psi       qmc.WaveFunction
	ham       qmc.Hamiltonian
	rng       *rand.Rand
	normal    distuv.Normal
	collector *wlog.Collector
	acc       *estimators.Accumulator
	comps     []float64
	kinetic   int //index of the kinetic component, or -1
	accepted  int
	rejected  int
	deltas    [][3]float64
	logGF     []float64
}

//crowdSeed mixes the seed of the run with the rank and crowd indexes.
func crowdSeed(seed uint64, rank, index int) uint64 {
	return seed + 0x9E3779B97F4A7C15*(uint64(rank)<<20+uint64(index)+1)
}

func newCrowd(index int, D *Driver) *crowd {
	rng := rand.New(rand.NewSource(crowdSeed(D.in.Seed, D.comm.Rank(), index)))
	comps := D.ham.Components()
	c := &crowd{
		index:     index,
		psi:       D.psi.Clone(),
		ham:       D.ham.Clone(),
		rng:       rng,
		normal:    distuv.Normal{Mu: 0, Sigma: 1, Src: rng},
		collector: wlog.NewCollector(D.in.WalkerLogs, comps),
		acc:       estimators.NewAccumulator(comps),
		comps:     make([]float64, len(comps)),
		kinetic:   -1,
		deltas:    make([][3]float64, D.in.Particles),
		logGF:     make([]float64, D.in.Particles),
	}
	for i, v := range comps {
		if v == "Kinetic" {
			c.kinetic = i
		}
	}
	return c
}

//evaluate computes the local energy of w, and its components, in c.comps.
func (c *crowd) evaluate(w *walker.Walker) {
	e := c.ham.Evaluate(w.R, c.psi, c.comps)
	w.LocalEnergy = e
	if c.kinetic >= 0 {
		w.Kinetic = c.comps[c.kinetic]
	}
	w.Potential = e - w.Kinetic
}

//initWalkers evaluates all the walkers of the crowd from scratch.
func (c *crowd) initWalkers() {
	for _, w := range c.walkers {
		w.LogPsi = c.psi.Evaluate(w.R)
		c.evaluate(w)
	}
}

//stepParams are the values every crowd needs for a step.
type stepParams struct {
	step        int
	taus        TauParams
	drift       bool
	dmc         bool
	trialEnergy float64
	measure     bool //accumulate estimators and log walkers
}

//advance moves every walker of the crowd one Monte Carlo step.
func (c *crowd) advance(ctx context.Context, p stepParams) error {
	for _, w := range c.walkers {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.advanceWalker(w, p)
	}
	return nil
}

func (c *crowd) advanceWalker(w *walker.Walker, p stepParams) {
	np := w.NParticles()
	for i := range c.deltas[:np] {
		for k := range c.deltas[i] {
			c.deltas[i][k] = c.normal.Rand()
		}
	}
	ScaleBySqrtTau(p.taus, c.deltas[:np])
	LogGreensFunction(p.taus, c.deltas[:np], c.logGF[:np])
	accepted := 0
	var disp2 float64
	for iat := 0; iat < np; iat++ {
		r := w.R.Vec(iat)
		d := c.deltas[iat]
		var logGB float64
		if p.drift {
			g := c.psi.Grad(w.R, iat, r)
			for k := range d {
				d[k] += p.taus.Tau * g[k]
			}
		}
		pos := w.R.Displaced(iat, d)
		ratio := c.psi.Ratio(w.R, iat, pos)
		prob := ratio * ratio
		if p.drift {
			//reverse move: from pos back to r, with the drift at pos.
			gnew := c.psi.Grad(w.R, iat, pos)
			var back [3]float64
			for k := range back {
				back[k] = r[k] - pos[k] - p.taus.Tau*gnew[k]
			}
			logGB = -p.taus.OneOver2Tau * v3.Dot(back, back)
			prob *= math.Exp(logGB - c.logGF[iat])
		}
		if prob > 0 && c.rng.Float64() < prob {
			w.LogPsi += c.psi.Accept(w.R, iat, pos)
			w.R.SetVec(iat, pos)
			disp2 += v3.Dot(d, d)
			accepted++
		}
	}
	c.accepted += accepted
	c.rejected += np - accepted
	if accepted == 0 {
		w.Age++
	} else {
		w.Age = 0
		w.Generation = p.step
	}
	w.Displacement2 = disp2
	eold := w.LocalEnergy
	c.evaluate(w)
	if p.dmc {
		w.Weight *= math.Exp(-p.taus.Tau * (0.5*(eold+w.LocalEnergy) - p.trialEnergy))
	}
	if p.measure {
		c.acc.Moves(accepted, np-accepted)
		c.acc.Accumulate(w, c.comps)
		c.collector.Collect(w, p.step, c.comps, c.psi)
	}
}

//startBlock resets the per-block state of the crowd.
func (c *crowd) startBlock() {
	c.acc.Reset()
	c.collector.StartBlock()
	c.accepted, c.rejected = 0, 0
}
