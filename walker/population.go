/*
 * population.go, part of goQMC.
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
	"math"

	"github.com/rmera/goqmc/balance"
	v3 "github.com/rmera/goqmc/v3"
)

//Population is the set of walkers owned by one rank. Living walkers are kept in order;
//dead walkers go to a pool from which Spawn recycles them.
type Population struct {
	rank       int
	numRanks   int
	nparticles int
	created    int64 //walkers ever given an ID by this rank
	walkers    []*Walker
	dead       []*Walker
}

//NewPopulation returns an empty population for the given rank.
func NewPopulation(rank, numRanks, nparticles int) *Population {
	if numRanks <= 0 || rank < 0 || rank >= numRanks {
		panic(ErrRank)
	}
	return &Population{rank: rank, numRanks: numRanks, nparticles: nparticles}
}

//Rank returns the rank that owns the population.
func (P *Population) Rank() int { return P.rank }

//NParticles returns the number of particles of each walker.
func (P *Population) NParticles() int { return P.nparticles }

//Walkers returns the living walkers. The slice must not be modified, but the walkers can.
func (P *Population) Walkers() []*Walker { return P.walkers }

//NumLiving returns the number of living walkers.
func (P *Population) NumLiving() int { return len(P.walkers) }

//NumDead returns the number of walkers in the dead pool.
func (P *Population) NumDead() int { return len(P.dead) }

//nextID returns a new ID, unique among all the ranks.
func (P *Population) nextID() int64 {
	id := P.created*int64(P.numRanks) + int64(P.rank) + 1
	P.created++
	return id
}

//MakeLocalWalkers creates n living walkers, all with the particles at positions (which is copied),
//and preallocates room for a reserve fraction of extra walkers, which are left in the dead pool.
//The reserve walkers get IDs only when spawned.
func (P *Population) MakeLocalWalkers(n int, reserve float64, positions *v3.Matrix) error {
	if n < 0 || reserve < 0 {
		return Error{message: "negative number of walkers or reserve", critical: true}
	}
	if positions != nil && positions.NVecs() != P.nparticles {
		return Error{message: "initial positions do not match the number of particles", critical: true}
	}
	extra := int(math.Ceil(float64(n) * reserve))
	P.walkers = make([]*Walker, 0, n+extra)
	for i := 0; i < n; i++ {
		w := New(P.nparticles)
		if positions != nil {
			w.R.CopyFrom(positions)
		}
		w.ID = P.nextID()
		P.walkers = append(P.walkers, w)
	}
	P.dead = make([]*Walker, 0, n+extra)
	for i := 0; i < extra; i++ {
		P.dead = append(P.dead, New(P.nparticles))
	}
	return nil
}

//Restore adds copies of the given walkers to the living population, keeping their IDs.
//The creation counter is moved past the restored IDs so new walkers don't collide with them.
func (P *Population) Restore(walkers []*Walker) error {
	for _, w := range walkers {
		if w.NParticles() != P.nparticles {
			return Error{message: "restored walker has the wrong number of particles", critical: true}
		}
		c := w.Clone()
		P.walkers = append(P.walkers, c)
		P.AvoidIDs(c.ID)
	}
	return nil
}

//AvoidIDs moves the creation counter of the population so all the IDs it gives from
//now on are larger than maxID.
func (P *Population) AvoidIDs(maxID int64) {
	if used := (maxID-1)/int64(P.numRanks) + 1; used > P.created {
		P.created = used
	}
}

//Spawn returns a new living walker, with a new ID, which is a copy of parent
//and has parent's ID as ParentID. If parent is nil the walker is left with the
//state it had in the pool, with unit weight and multiplicity.
//Dead walkers are recycled if possible.
func (P *Population) Spawn(parent *Walker) *Walker {
	var w *Walker
	if n := len(P.dead); n > 0 {
		w = P.dead[n-1]
		P.dead = P.dead[:n-1]
	} else {
		w = New(P.nparticles)
	}
	w.ParentID = 0
	if parent != nil {
		w.CopyFrom(parent)
		w.ParentID = parent.ID
	} else {
		w.Weight = 1
		w.Multiplicity = 1
	}
	w.ID = P.nextID()
	P.walkers = append(P.walkers, w)
	return w
}

//adopt adds a walker coming from another rank, keeping its identifiers.
func (P *Population) adopt(src *Walker) {
	var w *Walker
	if n := len(P.dead); n > 0 {
		w = P.dead[n-1]
		P.dead = P.dead[:n-1]
		w.CopyFrom(src)
		w.ID, w.ParentID = src.ID, src.ParentID
	} else {
		w = src
	}
	P.walkers = append(P.walkers, w)
}

//Kill moves w from the living walkers to the dead pool. It keeps its ID.
//It returns false if w is not a living walker of the population.
func (P *Population) Kill(w *Walker) bool {
	for i, v := range P.walkers {
		if v == w {
			P.walkers = append(P.walkers[:i], P.walkers[i+1:]...)
			P.dead = append(P.dead, w)
			return true
		}
	}
	return false
}

//KillLast kills the last living walker, and returns it, or nil if there
//are no living walkers.
func (P *Population) KillLast() *Walker {
	n := len(P.walkers)
	if n == 0 {
		return nil
	}
	w := P.walkers[n-1]
	P.walkers = P.walkers[:n-1]
	P.dead = append(P.dead, w)
	return w
}

//Distribute splits the living walkers among crowds, with counts walkers in each crowd.
//If counts is nil or doesn't add up to the number of living walkers, the walkers are
//split among len(counts) crowds (at least one) as evenly as possible, the first crowds getting the extra walkers.
func (P *Population) Distribute(counts []int) [][]*Walker {
	ncrowds := len(counts)
	if ncrowds == 0 {
		ncrowds = 1
	}
	total := 0
	for _, v := range counts {
		total += v
	}
	if total != len(P.walkers) {
		counts = balance.FairDivide(len(P.walkers), ncrowds)
	}
	ret := make([][]*Walker, ncrowds)
	start := 0
	for i, c := range counts {
		ret[i] = P.walkers[start : start+c : start+c]
		start += c
	}
	return ret
}

//PanicMsg is a message used for panics, even though it does satisfy the error interface.
type PanicMsg string

func (v PanicMsg) Error() string { return string(v) }

const ErrRank = PanicMsg("goQMC/walker: invalid rank for the population")
