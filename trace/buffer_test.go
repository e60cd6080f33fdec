/*
 * buffer_test.go, part of goQMC.
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

package trace

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmera/goqmc/archive"
)

func TestScalarRow(t *testing.T) {
	b := NewBuffer[float64]("scalars")
	b.Collect("E", 1.5)
	b.ResetCollect()
	require.Equal(t, 1, b.Rows())
	require.Equal(t, 1, b.Cols())
	assert.Equal(t, 1.5, b.At(0, 0))
	q, ok := b.Quantity("E")
	require.True(t, ok)
	assert.Equal(t, QuantityInfo{Name: "E", Dimension: 1, Shape: [4]int{1}, Size: 1, UnitSize: 1, Start: 0, End: 1}, q)
	assert.False(t, b.FirstCollect())
}

func TestArrayRows(t *testing.T) {
	b := NewBuffer[float64]("walkers")
	r1 := []float64{1, 2, 3, 4, 5, 6}
	r2 := []float64{7, 8, 9, 10, 11, 12}
	b.Collect("E", 1)
	b.CollectArray("R", r1, 2, 3)
	b.ResetCollect()
	b.Collect("E", 2)
	b.CollectArray("R", r2, 2, 3)
	b.ResetCollect()
	require.Equal(t, 2, b.Rows())
	require.Equal(t, 7, b.Cols())
	assert.Equal(t, append([]float64{1}, r1...), b.Row(0))
	assert.Equal(t, append([]float64{2}, r2...), b.Row(1))
	q, _ := b.Quantity("R")
	assert.Equal(t, 2, q.Dimension)
	assert.Equal(t, 6, q.Size)
	assert.Equal(t, 1, q.Start)
	assert.Equal(t, 7, q.End)
	assert.Equal(t, r2, b.Values(1, "R"))
}

func TestLayoutInvariant(t *testing.T) {
	b := NewBuffer[float64]("mixed")
	b.Collect("a", 1)
	b.CollectComplex("psi", []complex128{1 + 2i, 3 - 4i}, 2)
	b.CollectArray("x", make([]float64, 24), 2, 3, 2, 2)
	b.Collect("b", 2)
	b.ResetCollect()
	offset := 0
	for _, q := range b.Quantities() {
		assert.Equal(t, offset, q.Start, q.Name)
		assert.Equal(t, q.Size*q.UnitSize, q.End-q.Start, q.Name)
		offset = q.End
	}
	assert.Equal(t, offset, b.Cols())
	assert.Equal(t, []float64{1, 2, 3, -4}, b.Values(0, "psi"))
	q, _ := b.Quantity("x")
	assert.Equal(t, 4, q.Dimension)
	assert.Panics(t, func() { b.CollectArray("y", make([]float64, 32), 2, 2, 2, 2, 2) })
}

func TestIncompleteRow(t *testing.T) {
	b := NewBuffer[float64]("walkers")
	b.Collect("E", 1)
	b.Collect("W", 1)
	b.ResetCollect()
	b.Collect("E", 2)
	assert.PanicsWithValue(t, ErrIncompleteRow, func() { b.ResetCollect() })
}

func TestSchemaMismatch(t *testing.T) {
	b := NewBuffer[float64]("walkers")
	b.Collect("E", 1)
	b.Collect("W", 1)
	b.ResetCollect()
	assert.PanicsWithValue(t, ErrSchemaMismatch, func() { b.Collect("W", 2) })
	c := NewBuffer[float64]("walkers")
	c.CollectArray("R", []float64{1, 2, 3})
	c.ResetCollect()
	assert.PanicsWithValue(t, ErrSchemaMismatch, func() { c.CollectArray("R", []float64{1, 2}) })
	d := NewBuffer[float64]("walkers")
	d.Collect("E", 1)
	assert.PanicsWithValue(t, ErrDuplicateQuantity, func() { d.Collect("E", 1) })
}

func TestResetCollectIdempotent(t *testing.T) {
	b := NewBuffer[int64]("ints")
	b.Collect("id", 3)
	b.Collect("age", 1)
	b.ResetCollect()
	b.ResetCollect()
	assert.Equal(t, 1, b.Rows())
	assert.Equal(t, []int64{3, 1}, b.Row(0))
	b.Collect("id", 4)
	b.Collect("age", 2)
	b.ResetCollect()
	assert.Equal(t, 2, b.Rows())
	assert.Equal(t, []int64{3, 1}, b.Row(0))
}

func TestExplicitRows(t *testing.T) {
	b := NewBuffer[int64]("ints")
	b.BeginRow()
	b.Collect("id", 1)
	b.EndRow()
	b.BeginRow()
	assert.Equal(t, 2, b.Rows())
	assert.PanicsWithValue(t, ErrRowOpen, func() { b.BeginRow() })
	b.Collect("id", 2)
	b.EndRow()
	assert.Equal(t, 2, b.Rows())
	assert.Equal(t, int64(2), b.At(1, 0))
}

func TestAddRow(t *testing.T) {
	src := NewBuffer[float64]("src")
	for i := 0; i < 3; i++ {
		src.Collect("E", float64(i))
		src.CollectArray("R", []float64{float64(i), 0, 0})
		src.ResetCollect()
	}
	dst := NewBuffer[float64]("dst")
	dst.AddRow(src, 2)
	dst.AddRow(src, 0)
	require.Equal(t, 2, dst.Rows())
	assert.Equal(t, []float64{2, 2, 0, 0}, dst.Row(0))
	assert.Equal(t, []float64{0, 0, 0, 0}, dst.Row(1))
	assert.Equal(t, src.Quantities(), dst.Quantities())
	assert.True(t, dst.SameAs(src))

	wide := NewBuffer[float64]("wide")
	wide.CollectArray("x", []float64{1, 2, 3, 4, 5})
	wide.ResetCollect()
	assert.PanicsWithValue(t, ErrWidthMismatch, func() { dst.AddRow(wide, 0) })
	assert.Equal(t, 2, dst.Rows())
	assert.PanicsWithValue(t, ErrIndexOutOfRange, func() { dst.AddRow(src, 3) })
}

func TestResetBuffer(t *testing.T) {
	b := NewBuffer[float64]("b")
	b.Collect("E", 1)
	b.ResetCollect()
	b.ResetBuffer()
	assert.Equal(t, 0, b.Rows())
	assert.Equal(t, 1, b.Cols())
	assert.Nil(t, Dense(b))
	b.Collect("E", 3)
	b.ResetCollect()
	assert.Equal(t, 1, b.Rows())
	assert.Equal(t, 3.0, Dense(b).At(0, 0))
}

func TestWriteArchive(t *testing.T) {
	name := filepath.Join(t.TempDir(), "trace.qta")
	W, err := archive.NewWriter(name, nil)
	require.NoError(t, err)

	empty := NewBuffer[float64]("never")
	require.NoError(t, empty.RegisterLayout(W))
	require.NoError(t, empty.Write(W))

	ints := NewBuffer[int64]("walker_property_int")
	reals := NewBuffer[float64]("walker_property_real")
	for step := 0; step < 2; step++ {
		for id := 1; id <= 3; id++ {
			ints.Collect("step", int64(step))
			ints.Collect("id", int64(id))
			ints.ResetCollect()
			reals.Collect("LocalEnergy", float64(step*10+id))
			reals.CollectComplex("G", []complex128{complex(1, float64(id))})
			reals.ResetCollect()
		}
		if step == 0 {
			require.NoError(t, ints.RegisterLayout(W))
			require.NoError(t, reals.RegisterLayout(W))
		}
		require.NoError(t, ints.Write(W))
		require.NoError(t, reals.Write(W))
		ints.ResetBuffer()
		reals.ResetBuffer()
	}
	assert.EqualValues(t, 6, ints.FilePointer())
	require.NoError(t, W.Close())

	R, err := archive.Open(name)
	require.NoError(t, err)
	start, err := R.Ints("/walker_property_real/data_layout/G/index_start")
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, start)
	unit, err := R.Ints("/walker_property_real/data_layout/G/unit_size")
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, unit)
	shape, err := R.Ints("/walker_property_real/data_layout/G/shape")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 0, 0, 0}, shape)
	D, err := R.Dataset("/walker_property_int/data")
	require.NoError(t, err)
	assert.Equal(t, 6, D.Rows)
	assert.Equal(t, []int64{0, 1, 0, 2, 0, 3, 1, 1, 1, 2, 1, 3}, D.Ints())
	F, err := R.Dataset("/walker_property_real/data")
	require.NoError(t, err)
	assert.Equal(t, []float64{13, 1, 3}, F.Row(5))
	_, err = R.Dataset("/never/data")
	assert.Error(t, err)
}

func TestSummary(t *testing.T) {
	b := NewBuffer[float64]("walker_property_real")
	b.Collect("weight", 1)
	b.ResetCollect()
	s := b.Summary("  ")
	assert.Contains(t, s, "Buffer(walker_property_real)")
	assert.Contains(t, s, "(weight)")
	b.WriteSummary(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestWritePartialRow(t *testing.T) {
	W, err := archive.NewWriter(filepath.Join(t.TempDir(), "partial.qta"), nil)
	require.NoError(t, err)
	defer W.Close()
	b := NewBuffer[float64]("walkers")
	b.Collect("E", 1)
	assert.PanicsWithValue(t, ErrRowOpen, func() { b.Write(W) })
	b.Collect("F", 2)
	b.ResetCollect()
	require.NoError(t, b.RegisterLayout(W))
	b.Collect("E", 3)
	assert.PanicsWithValue(t, ErrRowOpen, func() { b.Write(W) })
	b.Collect("F", 4)
	b.ResetCollect()
	require.NoError(t, b.Write(W))
	assert.EqualValues(t, 2, b.FilePointer())

	b.BeginRow()
	assert.PanicsWithValue(t, ErrRowOpen, func() { b.Write(W) })
}

func TestAddRowFromOpenRow(t *testing.T) {
	src := NewBuffer[float64]("walkers")
	src.Collect("E", 1)
	src.Collect("F", 2)
	dst := NewBuffer[float64]("copy")
	assert.PanicsWithValue(t, ErrRowOpen, func() { dst.AddRow(src, 0) })
	src.ResetCollect()
	src.Collect("E", 3)
	dst.AddRow(src, 0)
	assert.PanicsWithValue(t, ErrRowOpen, func() { dst.AddRow(src, 1) })
	src.Collect("F", 4)
	src.ResetCollect()
	dst.AddRow(src, 1)
	assert.Equal(t, []float64{3, 4}, dst.Row(1))
}

func TestEmptyArray(t *testing.T) {
	b := NewBuffer[float64]("walkers")
	assert.PanicsWithValue(t, ErrShape, func() { b.CollectArray("x", []float64{}) })
	assert.PanicsWithValue(t, ErrShape, func() { b.CollectComplex("z", nil) })
	assert.Zero(t, b.Cols())
	assert.Empty(t, b.Quantities())
}
