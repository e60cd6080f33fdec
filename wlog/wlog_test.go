/*
 * wlog_test.go, part of goQMC.
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

package wlog

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmera/goqmc/archive"
	"github.com/rmera/goqmc/config"
	"github.com/rmera/goqmc/models"
	"github.com/rmera/goqmc/walker"
)

func crowd(t *testing.T, rank int, energies []float64) []*walker.Walker {
	P := walker.NewPopulation(rank, 2, 2)
	require.NoError(t, P.MakeLocalWalkers(len(energies), 0, nil))
	for i, w := range P.Walkers() {
		w.LocalEnergy = energies[i]
		w.R.Set(1, 2, energies[i])
	}
	return P.Walkers()
}

func TestCollectorPeriod(t *testing.T) {
	C := NewCollector(config.WalkerLogs{Enabled: true, StepPeriod: 2}, []string{"Kinetic", "Potential"})
	ws := crowd(t, 0, []float64{1, 2})
	for step := 0; step < 4; step++ {
		for _, w := range ws {
			C.Collect(w, step, []float64{0.5, 0.5}, nil)
		}
	}
	assert.Equal(t, 4, C.Rows())
	off := NewCollector(config.WalkerLogs{}, nil)
	off.Collect(ws[0], 0, nil, nil)
	assert.Equal(t, 0, off.Rows())
	assert.False(t, off.Enabled())
}

func TestManagerFile(t *testing.T) {
	settings := config.WalkerLogs{Enabled: true, StepPeriod: 1, Particle: true, Quantiles: true}
	name := FileName(filepath.Join(t.TempDir(), "run"), 1)
	assert.Equal(t, "run.r1.wlogs.qta", filepath.Base(name))
	M, err := NewManager(name, settings, map[string]string{"run_id": "abc"}, 3, nil)
	require.NoError(t, err)
	comps := []string{"Kinetic", "Potential"}
	psi := models.NewGaussianTrial(1)
	c1 := NewCollector(settings, comps)
	c2 := NewCollector(settings, comps)
	w1 := crowd(t, 1, []float64{3, -1})
	w2 := crowd(t, 1, []float64{7, 0.5, 2})
	for block := 0; block < 2; block++ {
		c1.StartBlock()
		c2.StartBlock()
		for step := 0; step < 3; step++ {
			for _, w := range w1 {
				c1.Collect(w, block*3+step, []float64{1, 2}, psi)
			}
			for _, w := range w2 {
				c2.Collect(w, block*3+step, []float64{1, 2}, psi)
			}
		}
		require.NoError(t, M.WriteBuffers([]*Collector{c1, c2}))
	}
	require.NoError(t, M.Close())

	R, err := archive.Open(name)
	require.NoError(t, err)
	assert.Equal(t, "abc", R.Header()["run_id"])
	ints, err := R.Dataset("/walker_property_int/data")
	require.NoError(t, err)
	assert.Equal(t, 30, ints.Rows)
	assert.Equal(t, 4, ints.Cols)
	reals, err := R.Dataset("/walker_property_real/data")
	require.NoError(t, err)
	assert.Equal(t, 6, reals.Cols)
	assert.Equal(t, []string{"Kinetic", "LocalEnergy", "LogPsi", "Potential", "multiplicity", "weight"}, R.Children("/walker_property_real/data_layout"))
	start, err := R.Ints("/walker_particle_real/data_layout/G/index_start")
	require.NoError(t, err)
	assert.Equal(t, []int64{6}, start)
	parts, err := R.Dataset("/walker_particle_real/data")
	require.NoError(t, err)
	assert.Equal(t, 18, parts.Cols)

	for _, tc := range []struct {
		label  string
		energy float64
	}{{"wmin_", -1}, {"wmax_", 7}, {"wmed_", 2}} {
		d, err := R.Dataset("/" + tc.label + RealLabel + "/data")
		require.NoError(t, err, tc.label)
		assert.Equal(t, 6, d.Rows, tc.label)
		for i := 0; i < d.Rows; i++ {
			assert.Equal(t, tc.energy, d.Row(i)[2], tc.label)
		}
		p, err := R.Dataset("/" + tc.label + ParticleLabel + "/data")
		require.NoError(t, err, tc.label)
		assert.Equal(t, tc.energy, p.Row(0)[5], tc.label)
	}
}
