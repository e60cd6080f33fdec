/*
 * histogram.go, part of goQMC.
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
	"strings"

	"gonum.org/v1/gonum/floats"
)

//Histogram counts values in the bins defined by a sorted slice of dividers.
//Values outside [dividers[0], dividers[len-1]) are counted in the total, but in no bin.
type Histogram struct {
	normalized bool
	total      int
	dividers   []float64
	histo      []float64
}

//NewHistogram returns a histogram with the given dividers (which are copied) holding data, which can be nil.
func NewHistogram(dividers []float64, data []float64) *Histogram {
	if len(dividers) < 2 {
		panic(ErrDividers)
	}
	H := &Histogram{
		dividers: append([]float64(nil), dividers...),
		histo:    make([]float64, len(dividers)-1),
	}
	H.AddData(data...)
	return H
}

//UniformHistogram returns a histogram of data with nbins bins of equal width
//between the minimum and maximum of data.
func UniformHistogram(data []float64, nbins int) *Histogram {
	if nbins < 1 {
		nbins = 1
	}
	lo, hi := 0.0, 1.0
	if len(data) > 0 {
		lo, hi = floats.Min(data), floats.Max(data)
	}
	if hi <= lo {
		hi = lo + 1
	}
	//make the last divider slightly larger so the maximum falls in the last bin.
	dividers := floats.Span(make([]float64, nbins+1), lo, hi+(hi-lo)*1e-9)
	return NewHistogram(dividers, data)
}

//AddData adds the values to the histogram.
func (H *Histogram) AddData(points ...float64) {
	norma := H.normalized
	if norma {
		H.UnNormalize()
	}
	for _, v := range points {
		for j := 0; j < len(H.dividers)-1; j++ {
			if H.dividers[j] <= v && v < H.dividers[j+1] {
				H.histo[j]++
				break
			}
		}
	}
	H.total += len(points)
	if norma {
		H.Normalize()
	}
}

//Total returns the number of values added.
func (H *Histogram) Total() int { return H.total }

//Normalized returns true if the histogram is normalized.
func (H *Histogram) Normalized() bool { return H.normalized }

//Normalize divides the counts by the number of values.
func (H *Histogram) Normalize() {
	if H.total <= 0 || H.normalized {
		return
	}
	floats.Scale(1/float64(H.total), H.histo)
	H.normalized = true
}

//UnNormalize reverts Normalize.
func (H *Histogram) UnNormalize() {
	if H.total <= 0 || !H.normalized {
		return
	}
	floats.Scale(float64(H.total), H.histo)
	H.normalized = false
}

//View returns the counts of the histogram. Changes are reflected in the histogram.
func (H *Histogram) View() []float64 { return H.histo }

//Dividers returns a copy of the dividers.
func (H *Histogram) Dividers() []float64 {
	return append([]float64(nil), H.dividers...)
}

func (H *Histogram) String() string {
	ret := fmt.Sprintf("Normalized: %v, TotalData: %d\n", H.normalized, H.total)
	d := make([]string, 0, len(H.histo))
	h := make([]string, 0, len(H.histo))
	for i, v := range H.histo {
		d = append(d, fmt.Sprintf("%4.2f-%4.2f", H.dividers[i], H.dividers[i+1]))
		h = append(h, fmt.Sprintf("%9.3f", v))
	}
	return ret + fmt.Sprintf("%s\n%s", strings.Join(d, " "), strings.Join(h, " "))
}

//PanicMsg is a message used for panics, even though it does satisfy the error interface.
type PanicMsg string

func (v PanicMsg) Error() string { return string(v) }

const ErrDividers = PanicMsg("goQMC/estimators: a histogram needs at least 2 dividers")
