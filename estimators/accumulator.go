/*
 * accumulator.go, part of goQMC.
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

//Package estimators accumulates the energy estimators of a run, reduces them over
//crowds and ranks at the end of each block, and analyzes the resulting block series.
package estimators

import (
	"context"
	"fmt"

	"github.com/rmera/goqmc/comm"
	"github.com/rmera/goqmc/walker"
)

//Accumulator holds the weighted sums of one crowd for the current block.
type Accumulator struct {
	comps    []string
	weight   float64
	energy   float64
	energy2  float64
	compSums []float64
	samples  int
	accepted int
	rejected int
}

//NewAccumulator returns an accumulator for the local energy and the energy components comps.
func NewAccumulator(comps []string) *Accumulator {
	return &Accumulator{comps: comps, compSums: make([]float64, len(comps))}
}

//Accumulate adds the walker w, with energy components comps, to the sums.
func (A *Accumulator) Accumulate(w *walker.Walker, comps []float64) {
	A.weight += w.Weight
	A.energy += w.Weight * w.LocalEnergy
	A.energy2 += w.Weight * w.LocalEnergy * w.LocalEnergy
	for i := range A.compSums {
		A.compSums[i] += w.Weight * comps[i]
	}
	A.samples++
}

//Moves adds accepted and rejected single-particle moves.
func (A *Accumulator) Moves(accepted, rejected int) {
	A.accepted += accepted
	A.rejected += rejected
}

//Reset clears the sums, for a new block.
func (A *Accumulator) Reset() {
	A.weight, A.energy, A.energy2 = 0, 0, 0
	for i := range A.compSums {
		A.compSums[i] = 0
	}
	A.samples, A.accepted, A.rejected = 0, 0, 0
}

//Block is the result of a block, reduced over all the crowds of all ranks.
type Block struct {
	Index       int
	Energy      float64
	Variance    float64
	Weight      float64
	AcceptRatio float64
	Samples     int
	Walkers     int
	TrialEnergy float64
	Components  []float64
}

func (B Block) String() string {
	return fmt.Sprintf("block %d: E = %.8f var = %.6f weight = %.3f acc = %.4f walkers = %d", B.Index, B.Energy, B.Variance, B.Weight, B.AcceptRatio, B.Walkers)
}

//Reduce adds up the accumulators of all the crowds of all the ranks. All the ranks must call it.
//Block.Index, Walkers and TrialEnergy are left for the caller to fill.
func Reduce(ctx context.Context, c comm.Communicator, accs []*Accumulator) (Block, error) {
	if len(accs) == 0 {
		return Block{}, fmt.Errorf("estimators: nothing to reduce")
	}
	ncomps := len(accs[0].compSums)
	local := make([]float64, 6+ncomps)
	for _, A := range accs {
		local[0] += A.weight
		local[1] += A.energy
		local[2] += A.energy2
		local[3] += float64(A.samples)
		local[4] += float64(A.accepted)
		local[5] += float64(A.rejected)
		for i, v := range A.compSums {
			local[6+i] += v
		}
	}
	sums, err := c.AllReduce(ctx, local)
	if err != nil {
		return Block{}, fmt.Errorf("estimators: reducing block: %w", err)
	}
	B := Block{Weight: sums[0], Samples: int(sums[3]), Components: make([]float64, ncomps)}
	if B.Weight > 0 {
		B.Energy = sums[1] / B.Weight
		B.Variance = sums[2]/B.Weight - B.Energy*B.Energy
		if B.Variance < 0 {
			B.Variance = 0
		}
		for i := range B.Components {
			B.Components[i] = sums[6+i] / B.Weight
		}
	}
	if moves := sums[4] + sums[5]; moves > 0 {
		B.AcceptRatio = sums[4] / moves
	}
	return B, nil
}
