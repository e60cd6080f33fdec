/*
 * scalar.go, part of goQMC.
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
	"bufio"
	"fmt"
	"os"
	"strings"
)

//ScalarWriter writes the block estimators as a text table, one line per block.
type ScalarWriter struct {
	f     *os.File
	w     *bufio.Writer
	ncomp int
}

//ScalarFileName returns the name of the scalar file of a run.
func ScalarFileName(root string) string {
	return root + ".scalar.dat"
}

//NewScalarWriter creates the file name and writes the header of the table.
func NewScalarWriter(name string, comps []string) (*ScalarWriter, error) {
	f, err := os.Create(name)
	if err != nil {
		return nil, fmt.Errorf("estimators: creating scalar file: %w", err)
	}
	S := &ScalarWriter{f: f, w: bufio.NewWriter(f), ncomp: len(comps)}
	cols := []string{"index", "LocalEnergy", "Variance", "Weight", "AcceptRatio", "NumWalkers", "TrialEnergy"}
	cols = append(cols, comps...)
	for i, c := range cols {
		cols[i] = fmt.Sprintf("%16s", c)
	}
	if _, err := fmt.Fprintf(S.w, "#%s\n", strings.Join(cols, " ")); err != nil {
		f.Close()
		return nil, fmt.Errorf("estimators: writing scalar file: %w", err)
	}
	return S, nil
}

//Write appends a line for the block B and flushes it to the file.
func (S *ScalarWriter) Write(B Block) error {
	fmt.Fprintf(S.w, " %16d %16.8e %16.8e %16.8e %16.8e %16d %16.8e", B.Index, B.Energy, B.Variance, B.Weight, B.AcceptRatio, B.Walkers, B.TrialEnergy)
	for i := 0; i < S.ncomp; i++ {
		v := 0.0
		if i < len(B.Components) {
			v = B.Components[i]
		}
		fmt.Fprintf(S.w, " %16.8e", v)
	}
	fmt.Fprintln(S.w)
	if err := S.w.Flush(); err != nil {
		return fmt.Errorf("estimators: writing scalar file: %w", err)
	}
	return nil
}

//Close flushes and closes the file.
func (S *ScalarWriter) Close() error {
	err := S.w.Flush()
	if err2 := S.f.Close(); err == nil {
		err = err2
	}
	return err
}
