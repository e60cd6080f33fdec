/*
 * series.go, part of goQMC.
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

package estimators

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"
)

//Series is the sequence of blocks of a run.
type Series struct {
	Blocks []Block
}

//Add appends a block to the series.
func (S *Series) Add(b Block) {
	S.Blocks = append(S.Blocks, b)
}

//Energies returns the block energies, skipping the first skip blocks.
func (S *Series) Energies(skip int) []float64 {
	if skip >= len(S.Blocks) {
		return nil
	}
	ret := make([]float64, 0, len(S.Blocks)-skip)
	for _, b := range S.Blocks[skip:] {
		ret = append(ret, b.Energy)
	}
	return ret
}

//Stats is the statistical summary of a series of blocks.
type Stats struct {
	N        int
	Mean     float64
	Variance float64 //variance of the block energies
	CorrTime float64 //integrated autocorrelation time, in blocks
	Error    float64 //error of the mean, corrected by the autocorrelation time
}

func (s Stats) String() string {
	return fmt.Sprintf("E = %.8f +/- %.8f (%d blocks, block variance %.3e, correlation time %.2f)", s.Mean, s.Error, s.N, s.Variance, s.CorrTime)
}

//Stats returns the mean energy of the blocks after the first skip, and its error bar.
func (S *Series) Stats(skip int) Stats {
	e := S.Energies(skip)
	s := Stats{N: len(e), CorrTime: 1}
	if len(e) == 0 {
		return s
	}
	if len(e) == 1 {
		s.Mean = e[0]
		return s
	}
	s.Mean, s.Variance = stat.MeanVariance(e, nil)
	s.CorrTime = CorrelationTime(e)
	s.Error = math.Sqrt(s.Variance * s.CorrTime / float64(len(e)))
	return s
}

//Autocorrelation returns the normalized autocorrelation function of x, for lags 0 to len(x)-1.
//It uses FFTs over a zero-padded copy of x, so the correlation is not circular. A constant series
//gives a function that is 1 at lag 0 and 0 elsewhere.
func Autocorrelation(x []float64) []float64 {
	n := len(x)
	ret := make([]float64, n)
	if n == 0 {
		return ret
	}
	ret[0] = 1
	mean, std := stat.PopMeanStdDev(x, nil)
	if std == 0 || math.IsNaN(std) {
		return ret
	}
	pad := make([]complex128, 2*n)
	for i, v := range x {
		pad[i] = complex(v-mean, 0)
	}
	f := fourier.NewCmplxFFT(len(pad))
	f.Coefficients(pad, pad)
	for i, v := range pad {
		pad[i] = v * cmplx.Conj(v)
	}
	f.Sequence(pad, pad)
	//Sequence is not normalized.
	norm := 1 / (float64(len(pad)) * std * std * float64(n))
	for i := range ret {
		ret[i] = real(pad[i]) * norm
	}
	return ret
}

//CorrelationTime returns the integrated autocorrelation time of x, 1+2*sum(acf(k)),
//where the sum runs up to the first non-positive value of the autocorrelation function.
func CorrelationTime(x []float64) float64 {
	acf := Autocorrelation(x)
	tau := 1.0
	for _, v := range acf[min(1, len(acf)):] {
		if v <= 0 {
			break
		}
		tau += 2 * v
	}
	return tau
}
