/*
 * quantity.go, part of goQMC.
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

import "fmt"

//MaxDims is the maximum number of axes of a collected array.
const MaxDims = 4

//QuantityInfo describes the layout of one named quantity within
//a row of a Buffer.
type QuantityInfo struct {
	Name      string
	Dimension int          //number of nonzero entries in Shape
	Shape     [MaxDims]int //0 means unused axis
	Size      int          //number of elements
	UnitSize  int          //slots per element, 1 for reals, 2 for complex numbers
	Start     int          //first slot in the row
	End       int          //one past the last slot in the row
}

//NewQuantityInfo returns the layout for a quantity that starts at the start slot of the row.
//If no shape is given, the quantity is a scalar, with shape (1). It panics if more than MaxDims
//shape entries are given or if any of them is negative.
func NewQuantityInfo(name string, unitSize, start int, shape ...int) QuantityInfo {
	if len(shape) > MaxDims {
		panic(ErrTooManyDims)
	}
	if unitSize != 1 && unitSize != 2 {
		panic(ErrUnitSize)
	}
	q := QuantityInfo{Name: name, UnitSize: unitSize, Start: start, Size: 1}
	if len(shape) == 0 {
		shape = []int{1}
	}
	for i, v := range shape {
		if v < 0 {
			panic(ErrShape)
		}
		q.Shape[i] = v
		if v > 0 {
			q.Dimension++
			q.Size *= v
		}
	}
	q.End = q.Start + q.Size*q.UnitSize
	return q
}

//Slots returns the number of row slots taken by the quantity.
func (q QuantityInfo) Slots() int {
	return q.End - q.Start
}

//sameLayout returns true if q and p describe the same quantity, regardless of their offsets.
func (q QuantityInfo) sameLayout(p QuantityInfo) bool {
	return q.Name == p.Name && q.Shape == p.Shape && q.UnitSize == p.UnitSize
}

func (q QuantityInfo) String() string {
	return fmt.Sprintf("%d  %d  %d  %d  %d (%s)", q.Dimension, q.Size, q.UnitSize, q.Start, q.End, q.Name)
}
