/*
 * balance.go, part of goQMC.
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

//Package balance computes how many walkers each rank and each crowd of a rank owns,
//and how many steps make a block.
package balance

import (
	"fmt"
	"math"
	"strings"
)

//AdjustedWalkerCounts is the result of distributing the walkers of a run among ranks and crowds.
//It is derived from the input each time a run starts, and never persisted.
type AdjustedWalkerCounts struct {
	GlobalWalkers   int
	WalkersPerRank  []int
	WalkersPerCrowd [][]int //per rank, per crowd
	Reserve         float64
}

//Local returns the per-crowd counts for the given rank.
func (A AdjustedWalkerCounts) Local(rank int) []int {
	return A.WalkersPerCrowd[rank]
}

//Capacity returns the number of walkers to allocate in the rank, that is, the rank's
//walkers plus the reserve fraction of them, rounded up.
func (A AdjustedWalkerCounts) Capacity(rank int) int {
	n := A.WalkersPerRank[rank]
	return n + int(math.Ceil(float64(n)*A.Reserve))
}

func (A AdjustedWalkerCounts) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "global walkers: %d, reserve: %g\n", A.GlobalWalkers, A.Reserve)
	for i, v := range A.WalkersPerRank {
		fmt.Fprintf(&b, "  rank %d: %d walkers, crowds %v\n", i, v, A.WalkersPerCrowd[i])
	}
	return b.String()
}

//FairDivide splits n into parts nearly equal pieces. The remainder goes, one by one,
//to the first pieces. It panics if parts is not positive.
func FairDivide(n, parts int) []int {
	if parts <= 0 {
		panic(ErrNoParts)
	}
	ret := make([]int, parts)
	base := n / parts
	rem := n % parts
	for i := range ret {
		ret[i] = base
		if i < rem {
			ret[i]++
		}
	}
	return ret
}

//AdjustGlobalWalkerCount decides the number of walkers on each rank and crowd.
//The policies are tried in order: a positive total is authoritative, and is fairly divided among ranks.
//Otherwise a positive perRank gives perRank walkers to every rank. Otherwise, if walkers were restored
//from a checkpoint on this rank (currentConfigs > 0) each rank keeps that many walkers. Otherwise every crowd gets one walker.
//numCrowds <= 0 means one crowd per thread. The reserve is the extra fraction of walkers each rank
//allocates room for, and must not be negative.
func AdjustGlobalWalkerCount(numRanks, currentConfigs, total, perRank int, reserve float64, numCrowds, threads int) (AdjustedWalkerCounts, error) {
	var A AdjustedWalkerCounts
	if numRanks <= 0 {
		return A, Error{message: fmt.Sprintf("the number of ranks must be positive, got %d", numRanks), critical: true}
	}
	if reserve < 0 || math.IsNaN(reserve) {
		return A, Error{message: fmt.Sprintf("the walker reserve must be >= 0, got %g", reserve), critical: true}
	}
	if total < 0 || perRank < 0 || currentConfigs < 0 {
		return A, Error{message: "walker counts cannot be negative", critical: true}
	}
	if numCrowds <= 0 {
		numCrowds = threads
	}
	if err := CheckCrowdsLTThreads(numCrowds, threads); err != nil {
		return A, errDecorate(err, "AdjustGlobalWalkerCount")
	}
	A.Reserve = reserve
	switch {
	case total > 0:
		A.GlobalWalkers = total
		A.WalkersPerRank = FairDivide(total, numRanks)
	case perRank > 0:
		A.GlobalWalkers = perRank * numRanks
		A.WalkersPerRank = uniform(perRank, numRanks)
	case currentConfigs > 0:
		A.GlobalWalkers = currentConfigs * numRanks
		A.WalkersPerRank = uniform(currentConfigs, numRanks)
	default:
		A.GlobalWalkers = numCrowds * numRanks
		A.WalkersPerRank = uniform(numCrowds, numRanks)
	}
	A.WalkersPerCrowd = make([][]int, numRanks)
	for i, v := range A.WalkersPerRank {
		A.WalkersPerCrowd[i] = FairDivide(v, numCrowds)
	}
	return A, nil
}

func uniform(v, n int) []int {
	ret := make([]int, n)
	for i := range ret {
		ret[i] = v
	}
	return ret
}

//WalkerOffsets returns, for every rank, the global index of its first walker.
//The last element is the total number of walkers.
func WalkerOffsets(perRank []int) []int {
	ret := make([]int, len(perRank)+1)
	for i, v := range perRank {
		ret[i+1] = ret[i] + v
	}
	return ret
}

//CheckCrowdsLTThreads returns a critical error if there are more crowds than threads to run them.
func CheckCrowdsLTThreads(numCrowds, threads int) error {
	if numCrowds <= 0 || threads <= 0 {
		return Error{message: fmt.Sprintf("crowds (%d) and threads (%d) must be positive", numCrowds, threads), critical: true}
	}
	if numCrowds > threads {
		return Error{message: fmt.Sprintf("the number of crowds (%d) is larger than the number of threads (%d)", numCrowds, threads), critical: true}
	}
	return nil
}

//DetermineStepsPerBlock returns the number of steps in each block. If both samples and steps are requested,
//steps is used, as long as it produces at least the requested samples. If only samples are requested, enough
//steps are taken to produce them. Zero means "not requested".
func DetermineStepsPerBlock(globalWalkers, samples, steps, blocks int) (int, error) {
	if blocks <= 0 {
		return 0, Error{message: fmt.Sprintf("the number of blocks must be positive, got %d", blocks), critical: true}
	}
	if globalWalkers <= 0 {
		return 0, Error{message: "there must be at least one walker", critical: true}
	}
	if samples < 0 || steps < 0 {
		return 0, Error{message: "samples and steps cannot be negative", critical: true}
	}
	switch {
	case samples > 0 && steps > 0:
		if samples > globalWalkers*steps*blocks {
			return 0, Error{message: fmt.Sprintf("%d steps per block with %d walkers in %d blocks give fewer than the %d samples requested", steps, globalWalkers, blocks, samples), critical: true}
		}
		return steps, nil
	case samples > 0:
		per := globalWalkers * blocks
		return (samples + per - 1) / per, nil
	case steps > 0:
		return steps, nil
	default:
		return 1, nil
	}
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

//PanicMsg is a message used for panics, even though it does satisfy the error interface.
type PanicMsg string

func (v PanicMsg) Error() string { return string(v) }

const ErrNoParts = PanicMsg("goQMC/balance: cannot divide into a non-positive number of parts")
