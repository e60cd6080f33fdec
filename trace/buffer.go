/*
 * buffer.go, part of goQMC.
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
	"fmt"
	"log/slog"
	"strings"

	"gonum.org/v1/gonum/mat"
)

//Number is the set of types a Buffer can hold.
type Number interface {
	int64 | float64
}

//Sink is a hierarchical data container that buffers can describe themselves to
//and write their rows to. *archive.Writer implements it.
type Sink interface {
	Push(group string) error
	Pop() error
	OpenGroups() int
	WriteInts(name string, v ...int64) error
	AppendInts(name string, cursor *int64, cols int, data []int64) error
	AppendFloats(name string, cursor *int64, cols int, data []float64) error
	Flush() error
}

//Buffer is a growable table of walker-quantity samples with a self-describing layout.
//A Buffer is meant to be owned by one goroutine.
type Buffer[T Number] struct {
	label        string
	firstCollect bool
	filePointer  int64 //row cursor in the persisted dataset
	cursor       int   //next quantity to collect in the current row
	rowOpen      bool
	quantities   []QuantityInfo
	rows         int
	cols         int
	data         []T //row-major, rows*cols
}

//NewBuffer returns an empty buffer. The label names the group the buffer
//is written to.
func NewBuffer[T Number](label string) *Buffer[T] {
	if label == "" {
		label = "?"
	}
	return &Buffer[T]{label: label, firstCollect: true}
}

//Label returns the label of the buffer.
func (B *Buffer[T]) Label() string { return B.label }

//Rows returns the number of rows in the buffer.
func (B *Buffer[T]) Rows() int { return B.rows }

//Cols returns the number of slots per row.
func (B *Buffer[T]) Cols() int { return B.cols }

//FirstCollect returns true while the layout of the rows is still being built.
func (B *Buffer[T]) FirstCollect() bool { return B.firstCollect }

//FilePointer returns the number of rows already written to the persisted dataset.
func (B *Buffer[T]) FilePointer() int64 { return B.filePointer }

//Quantities returns a copy of the row layout.
func (B *Buffer[T]) Quantities() []QuantityInfo {
	ret := make([]QuantityInfo, len(B.quantities))
	copy(ret, B.quantities)
	return ret
}

//Quantity returns the layout of the quantity name, and whether it exists.
func (B *Buffer[T]) Quantity(name string) (QuantityInfo, bool) {
	for _, q := range B.quantities {
		if q.Name == name {
			return q, true
		}
	}
	return QuantityInfo{}, false
}

//SameAs returns true if both buffers have the same row size.
func (B *Buffer[T]) SameAs(ref *Buffer[T]) bool {
	return B.cols == ref.cols
}

//At returns the value in the slot j of the row i.
func (B *Buffer[T]) At(i, j int) T {
	if i < 0 || i >= B.rows || j < 0 || j >= B.cols {
		panic(ErrIndexOutOfRange)
	}
	return B.data[i*B.cols+j]
}

//Row returns a view of the row i. Changes are reflected in the buffer.
func (B *Buffer[T]) Row(i int) []T {
	if i < 0 || i >= B.rows {
		panic(ErrIndexOutOfRange)
	}
	return B.data[i*B.cols : (i+1)*B.cols]
}

//Values returns a view of the slots of the quantity name in row i.
func (B *Buffer[T]) Values(i int, name string) []T {
	q, ok := B.Quantity(name)
	if !ok {
		panic(ErrUnknownQuantity)
	}
	return B.Row(i)[q.Start:q.End]
}

//ResetBuffer removes all rows. The layout is kept.
func (B *Buffer[T]) ResetBuffer() {
	B.rows = 0
	B.data = nil
}

//BeginRow explicitly starts the row for a new walker. Calling it is optional:
//if the layout is frozen, the first Collect call of a row starts the row when
//no row has been begun. It panics if the current row is not finished.
func (B *Buffer[T]) BeginRow() {
	if B.cursor != 0 || B.rowOpen {
		panic(ErrRowOpen)
	}
	if B.firstCollect {
		return //row 0 is created by the first registration
	}
	B.makeNewRow()
	B.rowOpen = true
}

//EndRow is the same as ResetCollect.
func (B *Buffer[T]) EndRow() {
	B.ResetCollect()
}

//ResetCollect finishes the row for the current walker. All the quantities in the
//layout must have been collected, otherwise it panics, since it means that a caller
//collected a different set of quantities than the one collected in the first pass.
//After the call the layout is frozen. Calling ResetCollect when nothing has been
//collected since the last call does nothing.
func (B *Buffer[T]) ResetCollect() {
	if len(B.quantities) == 0 {
		return
	}
	if B.cursor == 0 && !B.rowOpen && !B.firstCollect {
		return
	}
	if B.cursor != len(B.quantities) {
		panic(ErrIncompleteRow)
	}
	B.firstCollect = false
	B.cursor = 0
	B.rowOpen = false
}

//Collect puts a scalar value in the current row.
func (B *Buffer[T]) Collect(name string, value T) {
	s := B.slots(name, 1, nil)
	s[0] = value
}

//CollectArray puts the values of a real array in the current row. The array has the given
//shape (at most MaxDims axes, row-major); if no shape is given, it is a 1D array with len(values)
//elements. Empty arrays take no slots in a row, so they panic with ErrShape.
func (B *Buffer[T]) CollectArray(name string, values []T, shape ...int) {
	if len(values) == 0 {
		panic(ErrShape)
	}
	if len(shape) == 0 {
		shape = []int{len(values)}
	}
	s := B.slots(name, 1, shape)
	if len(s) != len(values) {
		panic(ErrShape)
	}
	copy(s, values)
}

//CollectComplex puts the values of a complex array in the current row, each element taking
//two slots, real part first. Shape works as in CollectArray, and empty arrays panic as well.
func (B *Buffer[T]) CollectComplex(name string, values []complex128, shape ...int) {
	if len(values) == 0 {
		panic(ErrShape)
	}
	if len(shape) == 0 {
		shape = []int{len(values)}
	}
	s := B.slots(name, 2, shape)
	if len(s) != 2*len(values) {
		panic(ErrShape)
	}
	for i, v := range values {
		s[2*i] = T(real(v))
		s[2*i+1] = T(imag(v))
	}
}

//CollectMatrix collects the gonum matrix m as a 2D array quantity.
func CollectMatrix(B *Buffer[float64], name string, m mat.Matrix) {
	r, c := m.Dims()
	s := B.slots(name, 1, []int{r, c})
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			s[i*c+j] = m.At(i, j)
		}
	}
}

//slots registers (first pass) or checks (frozen layout) the quantity name and returns the view
//of the current row where its values go.
func (B *Buffer[T]) slots(name string, unitSize int, shape []int) []T {
	if len(shape) > MaxDims {
		panic(ErrTooManyDims)
	}
	irow := 0
	if B.firstCollect {
		if _, ok := B.Quantity(name); ok {
			panic(ErrDuplicateQuantity)
		}
		q := NewQuantityInfo(name, unitSize, B.cols, shape...)
		B.quantities = append(B.quantities, q)
		B.resetRowSize(q.End)
	} else {
		if B.cursor == 0 && !B.rowOpen {
			B.makeNewRow()
			B.rowOpen = true
		}
		if B.cursor >= len(B.quantities) {
			panic(ErrSchemaMismatch)
		}
		expected := B.quantities[B.cursor]
		got := NewQuantityInfo(name, unitSize, expected.Start, shape...)
		if !expected.sameLayout(got) {
			panic(ErrSchemaMismatch)
		}
		irow = B.rows - 1
	}
	q := B.quantities[B.cursor]
	B.cursor++
	return B.data[irow*B.cols+q.Start : irow*B.cols+q.End]
}

//AddRow copies the row i of other into a new row of the receiver. If nothing has been
//collected in the receiver, it takes the layout of other. It panics if the row sizes of
//both buffers don't match, or if either buffer has an unfinished row involved.
func (B *Buffer[T]) AddRow(other *Buffer[T], i int) {
	if i < 0 || i >= other.rows {
		panic(ErrIndexOutOfRange)
	}
	if B.cursor != 0 || B.rowOpen {
		panic(ErrRowOpen)
	}
	if i == other.rows-1 && (other.cursor != 0 || other.rowOpen) {
		panic(ErrRowOpen)
	}
	if B.firstCollect {
		if other.cols == 0 {
			panic(ErrZeroWidthRow)
		}
		B.data = nil
		B.rows = 0
		B.resetRowSize(other.cols)
		B.quantities = other.Quantities()
		B.firstCollect = false
	} else {
		if B.cols != other.cols {
			panic(ErrWidthMismatch)
		}
		B.makeNewRow()
	}
	copy(B.Row(B.rows-1), other.Row(i))
}

//resetRowSize widens the first (and only) row to rowSize slots. The
//values already in the row are kept.
func (B *Buffer[T]) resetRowSize(rowSize int) {
	nrows := B.rows
	if nrows == 0 {
		nrows++
	}
	if nrows != 1 {
		panic(ErrRowSizeChange)
	}
	old := B.data
	B.data = make([]T, rowSize)
	copy(B.data, old)
	B.rows = 1
	B.cols = rowSize
}

//makeNewRow grows the buffer by one row. The new storage is allocated, the
//old content copied verbatim and then swapped in, so all prior rows are preserved.
func (B *Buffer[T]) makeNewRow() {
	if B.cols == 0 {
		panic(ErrZeroWidthRow)
	}
	old := B.data[:B.rows*B.cols]
	B.data = make([]T, (B.rows+1)*B.cols)
	copy(B.data, old)
	B.rows++
}

//Summary returns a diagnostic description of the buffer.
func (B *Buffer[T]) Summary(pad string) string {
	pad2 := pad + "  "
	var s strings.Builder
	fmt.Fprintf(&s, "%sBuffer(%s)\n", pad, B.label)
	fmt.Fprintf(&s, "%snrows       = %d\n", pad2, B.rows)
	fmt.Fprintf(&s, "%srow_size    = %d\n", pad2, B.cols)
	for n, q := range B.quantities {
		fmt.Fprintf(&s, "%squantity %d:  %s\n", pad2, n, q)
	}
	fmt.Fprintf(&s, "%send Buffer(%s)\n", pad, B.label)
	return s.String()
}

//WriteSummary logs the Summary of the buffer.
func (B *Buffer[T]) WriteSummary(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("trace buffer summary", "label", B.label, "rows", B.rows, "row_size", B.cols)
	for n, q := range B.quantities {
		logger.Info("trace buffer quantity", "label", B.label, "index", n, "name", q.Name,
			"dimension", q.Dimension, "size", q.Size, "unit_size", q.UnitSize, "start", q.Start, "end", q.End)
	}
}

//RegisterLayout writes the layout of the rows under <label>/data_layout/<quantity> in s,
//and resets the file pointer of the buffer. It panics if the registration leaves groups
//open in s.
func (B *Buffer[T]) RegisterLayout(s Sink) error {
	if err := s.Push(B.label); err != nil {
		return fmt.Errorf("registering layout of %s: %w", B.label, err)
	}
	if err := s.Push("data_layout"); err != nil {
		return fmt.Errorf("registering layout of %s: %w", B.label, err)
	}
	for _, q := range B.quantities {
		if err := registerQuantity(s, q); err != nil {
			return fmt.Errorf("registering layout of %s: %w", B.label, err)
		}
	}
	if err := s.Pop(); err != nil {
		return fmt.Errorf("registering layout of %s: %w", B.label, err)
	}
	if err := s.Pop(); err != nil {
		return fmt.Errorf("registering layout of %s: %w", B.label, err)
	}
	if s.OpenGroups() != 0 {
		panic(ErrOpenGroups)
	}
	B.filePointer = 0
	return nil
}

func registerQuantity(s Sink, q QuantityInfo) error {
	shape := make([]int64, MaxDims)
	for i, v := range q.Shape {
		shape[i] = int64(v)
	}
	if err := s.Push(q.Name); err != nil {
		return err
	}
	attrs := []struct {
		name string
		v    []int64
	}{
		{"dimension", []int64{int64(q.Dimension)}},
		{"shape", shape},
		{"size", []int64{int64(q.Size)}},
		{"unit_size", []int64{int64(q.UnitSize)}},
		{"index_start", []int64{int64(q.Start)}},
		{"index_end", []int64{int64(q.End)}},
	}
	for _, a := range attrs {
		if err := s.WriteInts(a.name, a.v...); err != nil {
			return err
		}
	}
	return s.Pop()
}

//Write appends the rows of the buffer to the dataset <label>/data of s, at the file
//pointer of the buffer, which is then advanced, and flushes s. An empty buffer writes nothing.
//It panics if the last row is still being collected.
func (B *Buffer[T]) Write(s Sink) error {
	if B.cursor != 0 || B.rowOpen {
		panic(ErrRowOpen)
	}
	if B.rows > 0 {
		if err := s.Push(B.label); err != nil {
			return fmt.Errorf("writing %s: %w", B.label, err)
		}
		var err error
		switch d := any(B.data[:B.rows*B.cols]).(type) {
		case []int64:
			err = s.AppendInts("data", &B.filePointer, B.cols, d)
		case []float64:
			err = s.AppendFloats("data", &B.filePointer, B.cols, d)
		}
		if err != nil {
			return fmt.Errorf("writing %s: %w", B.label, err)
		}
		if err := s.Pop(); err != nil {
			return fmt.Errorf("writing %s: %w", B.label, err)
		}
	}
	return s.Flush()
}

//Dense returns a gonum view of the rows of B, or nil if B has no rows.
//Changes in the view are reflected in B and vice-versa, until B grows.
func Dense(B *Buffer[float64]) *mat.Dense {
	if B.rows == 0 || B.cols == 0 {
		return nil
	}
	return mat.NewDense(B.rows, B.cols, B.data[:B.rows*B.cols])
}

//PanicMsg is a message used for panics, even though it does satisfy the error interface.
type PanicMsg string

func (v PanicMsg) Error() string { return string(v) }

const (
	ErrTooManyDims       = PanicMsg("goQMC/trace: only arrays up to dimension 4 are supported")
	ErrUnitSize          = PanicMsg("goQMC/trace: unit size must be 1 (real) or 2 (complex)")
	ErrShape             = PanicMsg("goQMC/trace: shape does not match the number of values")
	ErrDuplicateQuantity = PanicMsg("goQMC/trace: quantity already registered in this row")
	ErrSchemaMismatch    = PanicMsg("goQMC/trace: quantity collected does not match the layout established in the first row")
	ErrIncompleteRow     = PanicMsg("goQMC/trace: the collection pointer has not been moved through all quantities prior to ResetCollect")
	ErrRowOpen           = PanicMsg("goQMC/trace: the current row has not been finished")
	ErrWidthMismatch     = PanicMsg("goQMC/trace: row sizes must match")
	ErrZeroWidthRow      = PanicMsg("goQMC/trace: cannot make a new row of size zero")
	ErrRowSizeChange     = PanicMsg("goQMC/trace: row size should only be changed during growth of the first row")
	ErrOpenGroups        = PanicMsg("goQMC/trace: some groups are still open at the end of the layout registration")
	ErrIndexOutOfRange   = PanicMsg("goQMC/trace: index out of range")
	ErrUnknownQuantity   = PanicMsg("goQMC/trace: unknown quantity")
)
