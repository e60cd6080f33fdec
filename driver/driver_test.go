/*
 * driver_test.go, part of goQMC.
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
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qmc "github.com/rmera/goqmc"
	"github.com/rmera/goqmc/archive"
	"github.com/rmera/goqmc/comm"
	"github.com/rmera/goqmc/config"
	"github.com/rmera/goqmc/metrics"
	"github.com/rmera/goqmc/models"
	"github.com/rmera/goqmc/walker"
	"github.com/rmera/goqmc/wlog"
)

func testInput(t *testing.T) config.Input {
	in := config.Default()
	in.Project = filepath.Join(t.TempDir(), "run")
	in.Particles = 3
	in.TotalWalkers = 8
	in.Crowds = 2
	in.Threads = 2
	in.Blocks = 3
	in.Steps = 5
	in.Compression = 1
	return in
}

func TestVMCExactTrialFunction(t *testing.T) {
	in := testInput(t)
	in.WalkerLogs = config.WalkerLogs{Enabled: true, StepPeriod: 1, Particle: true}
	in.DumpConfigs = true
	drivers, err := RunWorld(context.Background(), in, models.NewGaussianTrial(1), models.NewHarmonicOscillator(), Options{Metrics: metrics.New(), RunID: "test"})
	require.NoError(t, err)
	D := drivers[0]
	assert.Equal(t, Terminal, D.State())
	assert.Equal(t, 15, D.Current())
	assert.Equal(t, 8, D.NumLivingWalkers())
	assert.Greater(t, D.AcceptRatio(), 0.1)
	s := D.Stats()
	assert.Equal(t, 3, s.N)
	assert.InDelta(t, 4.5, s.Mean, 1e-9)
	for _, b := range D.Series().Blocks {
		assert.InDelta(t, 4.5, b.Energy, 1e-9)
		assert.Less(t, b.Variance, 1e-10)
		assert.Equal(t, 40, b.Samples)
		assert.Equal(t, 8, b.Walkers)
	}

	R, err := archive.Open(wlog.FileName(in.Project, 0))
	require.NoError(t, err)
	assert.Equal(t, "test", R.Header()["run_id"])
	ints, err := R.Dataset("/walker_property_int/data")
	require.NoError(t, err)
	assert.Equal(t, 8*15, ints.Rows)
	size, err := R.Ints("/walker_particle_real/data_layout/R/size")
	require.NoError(t, err)
	assert.Equal(t, []int64{9}, size)
	for i := 0; i < ints.Rows; i++ {
		assert.InDelta(t, 4.5, mustRow(t, R, "/walker_property_real/data", i)[2], 1e-9)
	}

	_, err = os.Stat(in.Project + ".scalar.dat")
	assert.NoError(t, err)
	ws, err := walker.LoadConfigs(ConfigFileName(in.Project))
	require.NoError(t, err)
	assert.Len(t, ws, 8)
}

func mustRow(t *testing.T, R *archive.Reader, path string, i int) []float64 {
	d, err := R.Dataset(path)
	require.NoError(t, err)
	return d.Row(i)
}

func TestDMCPopulation(t *testing.T) {
	in := testInput(t)
	in.Method = config.DMC
	in.Ranks = 2
	in.TotalWalkers = 10
	in.Alpha = 0.8
	in.Blocks = 6
	in.Steps = 2
	in.WarmupSteps = 5
	in.Tau = 0.05
	in.Plot = true
	drivers, err := RunWorld(context.Background(), in, models.NewGaussianTrial(in.Alpha), models.NewHarmonicOscillator(), Options{})
	require.NoError(t, err)
	for _, b := range drivers[0].Series().Blocks {
		assert.GreaterOrEqual(t, b.Walkers, 5)
		assert.LessOrEqual(t, b.Walkers, 20)
		assert.NotZero(t, b.TrialEnergy)
	}
	n0, n1 := drivers[0].NumLivingWalkers(), drivers[1].NumLivingWalkers()
	assert.LessOrEqual(t, n0-n1, 1)
	assert.GreaterOrEqual(t, n0-n1, 0)
	assert.Equal(t, drivers[0].Series().Blocks, drivers[1].Series().Blocks)
	e := drivers[0].Stats().Mean
	assert.Greater(t, e, 4.0)
	assert.Less(t, e, 5.2)
	_, err = os.Stat(in.Project + ".blocks.png")
	assert.NoError(t, err)
	ids := map[int64]bool{}
	for _, d := range drivers {
		for _, w := range d.Walkers() {
			assert.False(t, ids[w.ID])
			ids[w.ID] = true
		}
	}
}

func TestConfigErrorsAbortBeforeSteps(t *testing.T) {
	psi, ham := models.NewGaussianTrial(1), models.NewHarmonicOscillator()
	in := testInput(t)
	in.Tau = 0
	D := New(in, comm.Serial(), psi, ham, Options{})
	err := D.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, Failed, D.State())
	assert.Equal(t, 0, D.Current())
	assert.True(t, qmc.IsCritical(err))
	_, err = RunWorld(context.Background(), in, psi, ham, Options{})
	assert.Error(t, err)

	in = testInput(t)
	in.Crowds = 4
	D = New(in, comm.Serial(), psi, ham, Options{})
	err = D.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, Failed, D.State())
	assert.Equal(t, 0, D.Current())
	assert.Equal(t, 0, D.NumLivingWalkers())
	_, err = os.Stat(in.Project + ".scalar.dat")
	assert.True(t, os.IsNotExist(err))

	in = testInput(t)
	in.Samples = 1000
	in.Steps = 1
	D = New(in, comm.Serial(), psi, ham, Options{})
	require.Error(t, D.Run(context.Background()))
	assert.Equal(t, 0, D.Current())
}

func TestCancel(t *testing.T) {
	in := testInput(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	D := New(in, comm.Serial(), models.NewGaussianTrial(1), models.NewHarmonicOscillator(), Options{})
	err := D.Run(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, Failed, D.State())
}

func TestRestart(t *testing.T) {
	psi, ham := models.NewGaussianTrial(1), models.NewHarmonicOscillator()
	in := testInput(t)
	in.DumpConfigs = true
	first, err := RunWorld(context.Background(), in, psi, ham, Options{})
	require.NoError(t, err)
	ids := map[int64]bool{}
	for _, w := range first[0].Walkers() {
		ids[w.ID] = true
	}

	again := in
	again.TotalWalkers = 0
	again.Ranks = 2
	again.Blocks = 1
	again.DumpConfigs = false
	again.RestartFrom = ConfigFileName(in.Project)
	again.Project = filepath.Join(t.TempDir(), "restart")
	second, err := RunWorld(context.Background(), again, psi, ham, Options{})
	require.NoError(t, err)
	assert.Equal(t, 8, second[0].Counts().GlobalWalkers)
	assert.Equal(t, []int{4, 4}, second[0].Counts().WalkersPerRank)
	for _, d := range second {
		for _, w := range d.Walkers() {
			assert.True(t, ids[w.ID], "walker %d was not restored", w.ID)
		}
	}
}

func TestStates(t *testing.T) {
	assert.True(t, Uninitialized.CanMove(Initializing))
	assert.False(t, Uninitialized.CanMove(Running))
	assert.True(t, Running.CanMove(BlockEnd))
	assert.True(t, BlockEnd.CanMove(Running))
	assert.True(t, Warmup.CanMove(Failed))
	assert.False(t, Terminal.CanMove(Failed))
	assert.False(t, Failed.CanMove(Initializing))
	assert.True(t, Failed.Done())
	assert.Equal(t, "block_end", BlockEnd.String())
	assert.Equal(t, "state(42)", State(42).String())
}

func TestTaus(t *testing.T) {
	taus := NewTauParams(0.25)
	assert.Equal(t, 0.5, taus.SqrtTau)
	assert.Equal(t, 2.0, taus.OneOver2Tau)
	d := [][3]float64{{1, 2, 2}, {0, 0, 0}}
	ScaleBySqrtTau(taus, d)
	assert.Equal(t, [3]float64{0.5, 1, 1}, d[0])
	logG := make([]float64, 2)
	LogGreensFunction(taus, d, logG)
	assert.Equal(t, []float64{-4.5, 0}, logG)
	assert.PanicsWithValue(t, ErrLength, func() { LogGreensFunction(taus, d, nil) })
}
