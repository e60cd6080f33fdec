/*
 * v3_test.go, part of goQMC.
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

package v3

import (
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestNewMatrix(Te *testing.T) {
	a := []float64{1.0, 2.0, 3, 4, 5, 6, 7, 8, 9}
	A, err := NewMatrix(a)
	if err != nil {
		Te.Fatal(err)
	}
	if A.NVecs() != 3 {
		Te.Errorf("expected 3 vectors, got %d", A.NVecs())
	}
	View := A.VecView(1)
	View.Set(0, 0, 100)
	if A.At(1, 0) != 100 {
		Te.Errorf("view changes should be reflected in the matrix: %v", A)
	}
	if _, err := NewMatrix([]float64{1, 2}); err == nil {
		Te.Error("a slice of 2 elements should not make a matrix")
	}
}

func TestDisplace(Te *testing.T) {
	A := Zeros(2)
	A.Displace(1, [3]float64{1, 2, 2})
	if A.Norm2Vec(1) != 9 {
		Te.Errorf("expected squared norm 9, got %f", A.Norm2Vec(1))
	}
	d := A.Displaced(0, [3]float64{1, 0, 0})
	if d != [3]float64{1, 0, 0} || A.At(0, 0) != 0 {
		Te.Errorf("Displaced should not modify the matrix: %v %v", d, A)
	}
	if A.SumNorm2() != 9 {
		Te.Errorf("expected total squared norm 9, got %f", A.SumNorm2())
	}
}

func TestCloneSwap(Te *testing.T) {
	A, _ := NewMatrix([]float64{1, 1, 1, 2, 2, 2})
	B := A.Clone()
	B.SwapVecs(0, 1)
	if A.At(0, 0) != 1 || B.At(0, 0) != 2 {
		Te.Errorf("clone should not share data: %v %v", A, B)
	}
	A.CopyFrom(B)
	if !mat.Equal(A, B) {
		Te.Errorf("CopyFrom failed: %v %v", A, B)
	}
}

func TestNot3Columns(Te *testing.T) {
	defer func() {
		if r := recover(); r != ErrNotXx3Matrix {
			Te.Errorf("expected %v, got %v", ErrNotXx3Matrix, r)
		}
	}()
	Dense2Matrix(mat.NewDense(2, 2, nil))
}
