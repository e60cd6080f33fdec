/*
 * walker_test.go, part of goQMC.
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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"

	"github.com/rmera/goqmc/comm"
	v3 "github.com/rmera/goqmc/v3"
)

func positions(t *testing.T) *v3.Matrix {
	R, err := v3.NewMatrix([]float64{0.1, 0.2, 0.3, -1, 0, 1})
	require.NoError(t, err)
	return R
}

func TestMakeLocalWalkers(t *testing.T) {
	P := NewPopulation(1, 3, 2)
	require.NoError(t, P.MakeLocalWalkers(4, 0.5, positions(t)))
	assert.Equal(t, 4, P.NumLiving())
	assert.Equal(t, 2, P.NumDead())
	ids := []int64{}
	for _, w := range P.Walkers() {
		ids = append(ids, w.ID)
		assert.Equal(t, [3]float64{-1, 0, 1}, w.R.Vec(1))
		assert.Equal(t, 1.0, w.Weight)
	}
	assert.Equal(t, []int64{2, 5, 8, 11}, ids)
	P.Walkers()[0].R.Set(0, 0, 9)
	assert.Equal(t, 0.1, P.Walkers()[1].R.At(0, 0))
	assert.Error(t, P.MakeLocalWalkers(-1, 0, nil))
	assert.Panics(t, func() { NewPopulation(3, 3, 2) })
}

func TestSpawnKill(t *testing.T) {
	P := NewPopulation(0, 2, 2)
	require.NoError(t, P.MakeLocalWalkers(2, 0, positions(t)))
	first := P.Walkers()[0]
	first.Age = 3
	first.LocalEnergy = -0.5
	require.True(t, P.Kill(first))
	assert.False(t, P.Kill(first))
	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, 1, P.NumDead())
	parent := P.Walkers()[0]
	parent.LocalEnergy = 2
	child := P.Spawn(parent)
	assert.Same(t, first, child)
	assert.Equal(t, parent.ID, child.ParentID)
	assert.Equal(t, int64(5), child.ID)
	assert.Equal(t, 2.0, child.LocalEnergy)
	assert.NotSame(t, parent.R, child.R)
	assert.Equal(t, 0, P.NumDead())
	last := P.KillLast()
	assert.Same(t, child, last)
	assert.Equal(t, 1, P.NumLiving())
	fresh := P.Spawn(nil)
	assert.Equal(t, int64(7), fresh.ID)
	assert.Equal(t, int64(0), fresh.ParentID)
}

func TestIDsUnique(t *testing.T) {
	seen := map[int64]bool{}
	for r := 0; r < 3; r++ {
		P := NewPopulation(r, 3, 1)
		require.NoError(t, P.MakeLocalWalkers(5, 0, nil))
		for i := 0; i < 5; i++ {
			P.Spawn(P.Walkers()[0])
		}
		for _, w := range P.Walkers() {
			assert.False(t, seen[w.ID], "repeated ID %d", w.ID)
			seen[w.ID] = true
		}
	}
	assert.Len(t, seen, 30)
}

func TestBranch(t *testing.T) {
	P := NewPopulation(0, 1, 1)
	require.NoError(t, P.MakeLocalWalkers(4, 0, nil))
	weights := []float64{0, 3, 1, 2}
	for i, w := range P.Walkers() {
		w.Weight = weights[i]
	}
	parentID := P.Walkers()[1].ID
	n := P.Branch(rand.New(rand.NewSource(7)))
	//integer weights give exactly their own multiplicity.
	assert.Equal(t, 6, n)
	children := 0
	for _, w := range P.Walkers() {
		assert.Equal(t, 1.0, w.Weight)
		assert.Equal(t, 1.0, w.Multiplicity)
		if w.ParentID == parentID {
			children++
		}
	}
	assert.Equal(t, 2, children)
	//the killed walker was recycled for the first copy.
	assert.Equal(t, 0, P.NumDead())
}

func TestBranchConservation(t *testing.T) {
	P := NewPopulation(0, 1, 1)
	require.NoError(t, P.MakeLocalWalkers(2000, 0, nil))
	rng := rand.New(rand.NewSource(1))
	total := 0.0
	for _, w := range P.Walkers() {
		w.Weight = 2 * rng.Float64()
		total += w.Weight
	}
	n := P.Branch(rng)
	assert.InDelta(t, total, float64(n), 0.05*total)
}

func TestDistribute(t *testing.T) {
	P := NewPopulation(0, 1, 1)
	require.NoError(t, P.MakeLocalWalkers(7, 0, nil))
	c := P.Distribute([]int{3, 2, 2})
	assert.Len(t, c[0], 3)
	assert.Len(t, c[2], 2)
	c = P.Distribute([]int{1, 1})
	assert.Len(t, c[0], 4)
	assert.Len(t, c[1], 3)
	assert.Same(t, P.Walkers()[4], c[1][0])
	c = P.Distribute(nil)
	assert.Len(t, c[0], 7)
}

func TestTransfers(t *testing.T) {
	plan := transfers([]int{7, 0, 3}, []int{4, 3, 3})
	assert.Equal(t, []transfer{{from: 0, to: 1, n: 3}}, plan)
	plan = transfers([]int{0, 1, 8}, []int{3, 3, 3})
	assert.Equal(t, []transfer{{from: 2, to: 0, n: 3}, {from: 2, to: 1, n: 2}}, plan)
	assert.Empty(t, transfers([]int{2, 2}, []int{2, 2}))
}

func TestRebalanceAndGather(t *testing.T) {
	const nranks = 3
	world := comm.NewWorld(nranks)
	start := []int{7, 0, 3}
	pops := make([]*Population, nranks)
	ens := make([]Ensemble, nranks)
	var gathered []*Walker
	g, ctx := errgroup.WithContext(context.Background())
	for r := 0; r < nranks; r++ {
		r := r
		pops[r] = NewPopulation(r, nranks, 2)
		require.NoError(t, pops[r].MakeLocalWalkers(start[r], 0, nil))
		for _, w := range pops[r].Walkers() {
			w.LocalEnergy = float64(r)
			w.R.Set(0, 0, float64(w.ID))
		}
		g.Go(func() error {
			if _, err := pops[r].Rebalance(ctx, world[r]); err != nil {
				return err
			}
			var err error
			ens[r], err = pops[r].GlobalEnergy(ctx, world[r])
			if err != nil {
				return err
			}
			all, err := pops[r].Gather(ctx, world[r])
			if r == 0 {
				gathered = all
			}
			return err
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, 4, pops[0].NumLiving())
	assert.Equal(t, 3, pops[1].NumLiving())
	assert.Equal(t, 3, pops[2].NumLiving())
	for _, w := range pops[1].Walkers() {
		assert.Equal(t, float64(w.ID), w.R.At(0, 0))
		assert.Equal(t, 0.0, w.LocalEnergy)
	}
	for r := range ens {
		assert.Equal(t, 10, ens[r].Walkers)
		assert.InDelta(t, 0.6, ens[r].Energy, 1e-12)
		assert.InDelta(t, 1.2-0.36, ens[r].Variance, 1e-12)
	}
	require.Len(t, gathered, 10)
	ids := map[int64]bool{}
	for _, w := range gathered {
		ids[w.ID] = true
	}
	assert.Len(t, ids, 10)
}

func TestConfigsRoundTrip(t *testing.T) {
	name := filepath.Join(t.TempDir(), "run.config.qta")
	P := NewPopulation(0, 1, 2)
	require.NoError(t, P.MakeLocalWalkers(3, 0, positions(t)))
	P.Walkers()[2].Weight = 0.25
	P.Walkers()[1].Age = 4
	require.NoError(t, SaveConfigs(name, P.Walkers(), map[string]string{"run_id": "x"}))
	ws, err := LoadConfigs(name)
	require.NoError(t, err)
	require.Len(t, ws, 3)
	assert.Equal(t, 0.25, ws[2].Weight)
	assert.Equal(t, 4, ws[1].Age)
	assert.Equal(t, P.Walkers()[0].R.Raw(), ws[0].R.Raw())

	Q := NewPopulation(0, 1, 2)
	require.NoError(t, Q.Restore(ws))
	assert.Equal(t, int64(4), Q.Spawn(nil).ID)

	require.NoError(t, SaveConfigs(name, nil, nil))
	ws, err = LoadConfigs(name)
	require.NoError(t, err)
	assert.Empty(t, ws)
	_, err = LoadConfigs(filepath.Join(t.TempDir(), "none.qta"))
	assert.Error(t, err)
}
