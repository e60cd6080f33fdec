/*
 * branch.go, part of goQMC.
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

package walker

import (
	"context"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"

	"github.com/rmera/goqmc/balance"
	"github.com/rmera/goqmc/comm"
)

//Branch applies the branching operator: every walker gets multiplicity floor(weight+u), with u uniform in [0,1).
//Walkers with zero multiplicity are killed, and walkers with multiplicity m > 1 spawn m-1 copies.
//All the survivors end with unit weight and multiplicity. It returns the number of living walkers.
func (P *Population) Branch(rng *rand.Rand) int {
	old := make([]*Walker, len(P.walkers))
	copy(old, P.walkers)
	for _, w := range old {
		w.Multiplicity = math.Floor(w.Weight + rng.Float64())
	}
	for _, w := range old {
		m := int(w.Multiplicity)
		if m <= 0 {
			P.Kill(w)
			continue
		}
		w.Weight = 1
		w.Multiplicity = 1
		for k := 1; k < m; k++ {
			P.Spawn(w)
		}
	}
	return len(P.walkers)
}

//Ensemble holds weighted statistics of the local energy over the walkers of all ranks.
type Ensemble struct {
	Walkers  int
	Weight   float64
	Energy   float64
	Variance float64
}

//GlobalEnergy reduces the weighted mean and variance of the local energy over all ranks.
func (P *Population) GlobalEnergy(ctx context.Context, c comm.Communicator) (Ensemble, error) {
	n := len(P.walkers)
	w := make([]float64, n)
	e := make([]float64, n)
	for i, v := range P.walkers {
		w[i] = v.Weight
		e[i] = v.LocalEnergy
	}
	we := make([]float64, n)
	floats.MulTo(we, w, e)
	local := []float64{float64(n), floats.Sum(w), floats.Sum(we), floats.Dot(we, e)}
	sums, err := c.AllReduce(ctx, local)
	if err != nil {
		return Ensemble{}, errDecorate(err, "GlobalEnergy")
	}
	ret := Ensemble{Walkers: int(sums[0]), Weight: sums[1]}
	if ret.Weight > 0 {
		ret.Energy = sums[2] / ret.Weight
		ret.Variance = math.Max(sums[3]/ret.Weight-ret.Energy*ret.Energy, 0)
	}
	return ret, nil
}

type transfer struct {
	from, to, n int
}

//transfers returns the moves of walkers that turn counts into target. Ranks with
//surplus send to ranks with deficit, both taken in rank order.
func transfers(counts, target []int) []transfer {
	var ret []transfer
	surplus := make([]int, len(counts))
	for i := range counts {
		surplus[i] = counts[i] - target[i]
	}
	s, d := 0, 0
	for {
		for s < len(surplus) && surplus[s] <= 0 {
			s++
		}
		for d < len(surplus) && surplus[d] >= 0 {
			d++
		}
		if s >= len(surplus) || d >= len(surplus) {
			return ret
		}
		n := surplus[s]
		if -surplus[d] < n {
			n = -surplus[d]
		}
		ret = append(ret, transfer{from: s, to: d, n: n})
		surplus[s] -= n
		surplus[d] += n
	}
}

//Rebalance moves walkers between ranks so every rank ends with a fair share of the global population.
//Migrated walkers keep their IDs. All the ranks must call it. It returns the number of walkers
//this rank sent (negative) or received (positive).
func (P *Population) Rebalance(ctx context.Context, c comm.Communicator) (int, error) {
	counts, err := comm.AllGatherInt(ctx, c, len(P.walkers))
	if err != nil {
		return 0, errDecorate(err, "Rebalance")
	}
	total := 0
	for _, v := range counts {
		total += v
	}
	plan := transfers(counts, balance.FairDivide(total, c.Size()))
	moved := 0
	for _, t := range plan {
		if t.from != P.rank {
			continue
		}
		buf := make([]float64, 0, t.n*(packedHeader+3*P.nparticles))
		for k := 0; k < t.n; k++ {
			buf = P.KillLast().pack(buf)
		}
		if err := c.Send(ctx, t.to, buf); err != nil {
			return moved, errDecorate(err, "Rebalance")
		}
		moved -= t.n
	}
	for _, t := range plan {
		if t.to != P.rank {
			continue
		}
		buf, err := c.Recv(ctx, t.from)
		if err != nil {
			return moved, errDecorate(err, "Rebalance")
		}
		for k := 0; k < t.n; k++ {
			var w *Walker
			w, buf, err = unpack(buf, P.nparticles)
			if err != nil {
				return moved, errDecorate(err, "Rebalance")
			}
			P.adopt(w)
		}
		moved += t.n
	}
	return moved, nil
}
