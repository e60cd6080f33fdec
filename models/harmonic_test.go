/*
 * harmonic_test.go, part of goQMC.
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

package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qmc "github.com/rmera/goqmc"
	v3 "github.com/rmera/goqmc/v3"
)

//noLaplacian hides the analytic Laplacian of the wrapped trial function.
type noLaplacian struct {
	g *GaussianTrial
}

func (n noLaplacian) Evaluate(R *v3.Matrix) float64 { return n.g.Evaluate(R) }
func (n noLaplacian) Ratio(R *v3.Matrix, iat int, pos [3]float64) float64 {
	return n.g.Ratio(R, iat, pos)
}
func (n noLaplacian) Grad(R *v3.Matrix, iat int, pos [3]float64) [3]float64 {
	return n.g.Grad(R, iat, pos)
}
func (n noLaplacian) Accept(R *v3.Matrix, iat int, pos [3]float64) float64 {
	return n.g.Accept(R, iat, pos)
}
func (n noLaplacian) Clone() qmc.WaveFunction { return n }

func TestExactGroundState(t *testing.T) {
	R, err := v3.NewMatrix([]float64{0.3, -0.2, 1.1, 2, 0.5, -0.7})
	require.NoError(t, err)
	psi := NewGaussianTrial(1)
	H := NewHarmonicOscillator()
	comps := make([]float64, 2)
	e := H.Evaluate(R, psi, comps)
	assert.InDelta(t, 3.0, e, 1e-12)
	assert.InDelta(t, e, comps[0]+comps[1], 1e-12)
	assert.Equal(t, []string{"Kinetic", "Potential"}, H.Components())
}

func TestFiniteDifferenceKinetic(t *testing.T) {
	R, err := v3.NewMatrix([]float64{0.3, -0.2, 1.1, 2, 0.5, -0.7})
	require.NoError(t, err)
	psi := NewGaussianTrial(0.8)
	H := NewHarmonicOscillator()
	exact := H.Evaluate(R, psi, nil)
	fd := H.Evaluate(R, noLaplacian{psi}, nil)
	assert.InDelta(t, exact, fd, 1e-5)
	//E_L = 3 N alpha/2 + (1-alpha^2)/2 sum r^2
	assert.InDelta(t, 3*2*0.8/2+(1-0.64)/2*R.SumNorm2(), exact, 1e-12)
}

func TestRatioAccept(t *testing.T) {
	R, err := v3.NewMatrix([]float64{1, 0, 0})
	require.NoError(t, err)
	psi := NewGaussianTrial(2)
	pos := [3]float64{0, 0, 0}
	assert.InDelta(t, 2.718281828459045, psi.Ratio(R, 0, pos), 1e-12)
	assert.InDelta(t, 1.0, psi.Accept(R, 0, pos), 1e-12)
	assert.Equal(t, [3]float64{-2, 0, 0}, psi.Grad(R, 0, [3]float64{1, 0, 0}))
	c := psi.Clone().(*GaussianTrial)
	c.Alpha = 3
	assert.Equal(t, 2.0, psi.Alpha)
	assert.Equal(t, -1.0, psi.Evaluate(R))
}
