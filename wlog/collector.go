/*
 * collector.go, part of goQMC.
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

//Package wlog writes per-walker logs: at every logged step, one row per walker with its identifiers,
//weights and energies, and optionally its particle coordinates and gradients. Each crowd fills its own
//Collector, and a Manager per rank gathers the collectors at the end of each block and writes them
//to the rank's qta file.
package wlog

import (
	qmc "github.com/rmera/goqmc"
	"github.com/rmera/goqmc/config"
	"github.com/rmera/goqmc/trace"
	"github.com/rmera/goqmc/walker"
)

//Buffer labels, which are also the group names in the output file.
const (
	IntLabel      = "walker_property_int"
	RealLabel     = "walker_property_real"
	ParticleLabel = "walker_particle_real"
)

//Collector accumulates the walker logs of one crowd during a block.
type Collector struct {
	settings  config.WalkerLogs
	comps     []string
	ints      *trace.Buffer[int64]
	reals     *trace.Buffer[float64]
	particles *trace.Buffer[float64]
	grads     []complex128
}

//NewCollector returns a collector that logs, besides the local energy, the
//energy components named comps.
func NewCollector(settings config.WalkerLogs, comps []string) *Collector {
	if settings.StepPeriod <= 0 {
		settings.StepPeriod = 1
	}
	return &Collector{
		settings:  settings,
		comps:     comps,
		ints:      trace.NewBuffer[int64](IntLabel),
		reals:     trace.NewBuffer[float64](RealLabel),
		particles: trace.NewBuffer[float64](ParticleLabel),
	}
}

//Enabled returns true if the collector is logging at all.
func (C *Collector) Enabled() bool {
	return C.settings.Enabled
}

//Logs returns true if walkers should be logged at the given step.
func (C *Collector) Logs(step int) bool {
	return C.settings.Enabled && step%C.settings.StepPeriod == 0
}

//StartBlock drops the rows of the previous block.
func (C *Collector) StartBlock() {
	C.ints.ResetBuffer()
	C.reals.ResetBuffer()
	C.particles.ResetBuffer()
}

//Collect logs the walker w at the given step. comps are the energy components
//of the walker, in the order given to NewCollector. psi is only used to get the
//gradients when particle data is logged, and can be nil otherwise.
func (C *Collector) Collect(w *walker.Walker, step int, comps []float64, psi qmc.WaveFunction) {
	if !C.Logs(step) {
		return
	}
	C.ints.Collect("step", int64(step))
	C.ints.Collect("id", w.ID)
	C.ints.Collect("parent_id", w.ParentID)
	C.ints.Collect("age", int64(w.Age))
	C.ints.ResetCollect()

	C.reals.Collect("weight", w.Weight)
	C.reals.Collect("multiplicity", w.Multiplicity)
	C.reals.Collect("LocalEnergy", w.LocalEnergy)
	for i, name := range C.comps {
		C.reals.Collect(name, comps[i])
	}
	C.reals.Collect("LogPsi", w.LogPsi)
	C.reals.ResetCollect()

	if !C.settings.Particle {
		return
	}
	n := w.NParticles()
	trace.CollectMatrix(C.particles, "R", w.R)
	if cap(C.grads) < 3*n {
		C.grads = make([]complex128, 3*n)
	}
	C.grads = C.grads[:3*n]
	for i := 0; i < n; i++ {
		var g [3]float64
		if psi != nil {
			g = psi.Grad(w.R, i, w.R.Vec(i))
		}
		for k, v := range g {
			C.grads[3*i+k] = complex(v, 0)
		}
	}
	C.particles.CollectComplex("G", C.grads, n, 3)
	C.particles.ResetCollect()
}

//Rows returns the number of walker rows collected in the current block.
func (C *Collector) Rows() int {
	return C.ints.Rows()
}
