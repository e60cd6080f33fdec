/*
 * balance_test.go, part of goQMC.
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

package balance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFairDivide(t *testing.T) {
	assert.Equal(t, []int{4, 3, 3}, FairDivide(10, 3))
	assert.Equal(t, []int{1, 1, 0, 0}, FairDivide(2, 4))
	assert.Equal(t, []int{0}, FairDivide(0, 1))
	require.PanicsWithValue(t, ErrNoParts, func() { FairDivide(3, 0) })
	for n := 0; n < 50; n++ {
		for p := 1; p < 9; p++ {
			sum := 0
			d := FairDivide(n, p)
			for _, v := range d {
				sum += v
				assert.LessOrEqual(t, d[0]-v, 1)
			}
			assert.Equal(t, n, sum)
		}
	}
}

func TestAdjustTotal(t *testing.T) {
	A, err := AdjustGlobalWalkerCount(3, 0, 10, 0, 0, 2, 4)
	require.NoError(t, err)
	assert.Equal(t, 10, A.GlobalWalkers)
	assert.Equal(t, []int{4, 3, 3}, A.WalkersPerRank)
	assert.Equal(t, []int{2, 2}, A.Local(0))
	assert.Equal(t, []int{2, 1}, A.Local(1))
	//total wins over per-rank
	A, err = AdjustGlobalWalkerCount(2, 0, 5, 7, 0, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 2}, A.WalkersPerRank)
}

func TestAdjustPolicies(t *testing.T) {
	A, err := AdjustGlobalWalkerCount(2, 0, 0, 5, 0.5, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 10, A.GlobalWalkers)
	assert.Equal(t, 8, A.Capacity(0))

	A, err = AdjustGlobalWalkerCount(2, 6, 0, 0, 0, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{6, 6}, A.WalkersPerRank)

	A, err = AdjustGlobalWalkerCount(2, 0, 0, 0, 0, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, 6, A.GlobalWalkers)
	assert.Equal(t, []int{1, 1, 1}, A.Local(1))

	//fewer walkers than ranks is allowed
	A, err = AdjustGlobalWalkerCount(4, 0, 2, 0, 0, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1, 0, 0}, A.WalkersPerRank)
	assert.Equal(t, []int{0}, A.Local(3))
}

func TestAdjustErrors(t *testing.T) {
	_, err := AdjustGlobalWalkerCount(2, 0, 10, 0, -0.1, 1, 1)
	require.Error(t, err)
	assert.True(t, err.(Error).Critical())
	_, err = AdjustGlobalWalkerCount(2, 0, 10, 0, 0, 4, 2)
	require.Error(t, err)
	assert.Contains(t, err.(Error).Decorate(""), "AdjustGlobalWalkerCount")
	_, err = AdjustGlobalWalkerCount(0, 0, 10, 0, 0, 1, 1)
	require.Error(t, err)
}

func TestWalkerOffsets(t *testing.T) {
	assert.Equal(t, []int{0, 4, 7, 10}, WalkerOffsets([]int{4, 3, 3}))
}

func TestStepsPerBlock(t *testing.T) {
	s, err := DetermineStepsPerBlock(10, 0, 0, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, s)
	s, err = DetermineStepsPerBlock(10, 0, 7, 5)
	require.NoError(t, err)
	assert.Equal(t, 7, s)
	s, err = DetermineStepsPerBlock(10, 101, 0, 5)
	require.NoError(t, err)
	assert.Equal(t, 3, s)
	s, err = DetermineStepsPerBlock(10, 100, 2, 5)
	require.NoError(t, err)
	assert.Equal(t, 2, s)
	_, err = DetermineStepsPerBlock(10, 101, 2, 5)
	assert.Error(t, err)
	_, err = DetermineStepsPerBlock(10, 0, 2, 0)
	assert.Error(t, err)
}
