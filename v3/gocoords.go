/*
 * gocoords.go, part of goQMC.
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
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"
)

//Zeros returns a zero-filled Matrix with vecs vectors and 3 in the other dimension.
func Zeros(vecs int) *Matrix {
	const cols int = 3
	f := make([]float64, cols*vecs)
	return &Matrix{mat.NewDense(vecs, cols, f)}
}

//METHODS

//NVecs returns the number of vecs in F.
func (F *Matrix) NVecs() int {
	r, c := F.Dims()
	if c != 3 {
		panic(ErrNotXx3Matrix)
	}
	return r
}

//Clone returns a deep copy of F.
func (F *Matrix) Clone() *Matrix {
	ret := Zeros(F.NVecs())
	ret.Copy(F.Dense)
	return ret
}

//CopyFrom copies the vectors of A into the receiver. Both must
//have the same number of vectors.
func (F *Matrix) CopyFrom(A *Matrix) {
	if F.NVecs() != A.NVecs() {
		panic(ErrShape)
	}
	F.Copy(A.Dense)
}

//SwapVecs exchanges the i-th and j-th vectors of F.
func (F *Matrix) SwapVecs(i, j int) {
	if i >= F.NVecs() || j >= F.NVecs() {
		panic(ErrIndexOutOfRange)
	}
	vi := F.Vec(i)
	F.SetVec(i, F.Vec(j))
	F.SetVec(j, vi)
}

//Displace adds d to the i-th vector of F.
func (F *Matrix) Displace(i int, d [3]float64) {
	for k, v := range d {
		F.Set(i, k, F.At(i, k)+v)
	}
}

//Displaced returns the i-th vector of F plus d, without modifying F.
func (F *Matrix) Displaced(i int, d [3]float64) [3]float64 {
	v := F.Vec(i)
	for k := range v {
		v[k] += d[k]
	}
	return v
}

//Norm2Vec returns the squared norm of the i-th vector.
func (F *Matrix) Norm2Vec(i int) float64 {
	v := F.Vec(i)
	return Dot(v, v)
}

//SumNorm2 returns the sum of the squared norms of all the vectors.
func (F *Matrix) SumNorm2() float64 {
	var s float64
	for _, v := range F.Raw() {
		s += v * v
	}
	return s
}

//Dot returns the dot product of two 3D vectors.
func Dot(a, b [3]float64) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

//String returns a neat string representation of a Matrix
func (F *Matrix) String() string {
	r, _ := F.Dims()
	v := make([]string, 0, r+2)
	v = append(v, "[")
	for i := 0; i < r; i++ {
		row := F.Vec(i)
		v = append(v, fmt.Sprintf(" %6.2f %6.2f %6.2f", row[0], row[1], row[2]))
	}
	v = append(v, " ]")
	return strings.Join(v, "\n")
}
