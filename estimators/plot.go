/*
 * plot.go, part of goQMC.
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

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

//PlotFileName returns the name of the block plot of a run.
func PlotFileName(root string) string {
	return root + ".blocks.png"
}

//PlotBlocks plots the energy of each block, and the trial energy for DMC runs, to the file name.
//The format is taken from the extension of name.
func PlotBlocks(S *Series, title, name string) error {
	if len(S.Blocks) == 0 {
		return fmt.Errorf("estimators: no blocks to plot")
	}
	p := plot.New()
	p.Title.Text = title
	p.Title.Padding = 3 * vg.Millimeter
	p.X.Label.Text = "Block"
	p.Y.Label.Text = "Energy (Ha)"
	p.Add(plotter.NewGrid())
	energies := make(plotter.XYs, len(S.Blocks))
	trial := make(plotter.XYs, 0, len(S.Blocks))
	for i, b := range S.Blocks {
		energies[i].X = float64(b.Index)
		energies[i].Y = b.Energy
		if b.TrialEnergy != 0 {
			trial = append(trial, plotter.XY{X: float64(b.Index), Y: b.TrialEnergy})
		}
	}
	l, s, err := plotter.NewLinePoints(energies)
	if err != nil {
		return fmt.Errorf("estimators: plotting blocks: %w", err)
	}
	p.Add(l, s)
	p.Legend.Add("E", l, s)
	if len(trial) > 0 {
		t, err := plotter.NewLine(trial)
		if err != nil {
			return fmt.Errorf("estimators: plotting blocks: %w", err)
		}
		t.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(t)
		p.Legend.Add("E_T", t)
	}
	if err := p.Save(6*vg.Inch, 4*vg.Inch, name); err != nil {
		return fmt.Errorf("estimators: saving plot: %w", err)
	}
	return nil
}
