/*
 * harmonic.go, part of goQMC.
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

//Package models contains a toy isotropic harmonic oscillator, with a Gaussian trial wavefunction,
//to drive the Monte Carlo machinery. In atomic units, with unit mass and frequency, the exact ground state
//of N particles has E = 1.5 N, and is the trial function with Alpha = 1.
package models

import (
	"math"

	qmc "github.com/rmera/goqmc"
	v3 "github.com/rmera/goqmc/v3"
)

//Laplacian is implemented by wavefunctions that can compute nabla^2 psi / psi analytically.
type Laplacian interface {
	Laplacian(R *v3.Matrix) float64
}

//GaussianTrial is the trial function psi = exp(-Alpha/2 sum_i r_i^2).
type GaussianTrial struct {
	Alpha float64
}

//NewGaussianTrial returns a trial wavefunction with the given exponent.
func NewGaussianTrial(alpha float64) *GaussianTrial {
	return &GaussianTrial{Alpha: alpha}
}

func (G *GaussianTrial) logPsi1(pos [3]float64) float64 {
	return -0.5 * G.Alpha * v3.Dot(pos, pos)
}

func (G *GaussianTrial) Evaluate(R *v3.Matrix) float64 {
	return -0.5 * G.Alpha * R.SumNorm2()
}

func (G *GaussianTrial) Ratio(R *v3.Matrix, iat int, pos [3]float64) float64 {
	return math.Exp(G.logPsi1(pos) - G.logPsi1(R.Vec(iat)))
}

func (G *GaussianTrial) Grad(R *v3.Matrix, iat int, pos [3]float64) [3]float64 {
	return [3]float64{-G.Alpha * pos[0], -G.Alpha * pos[1], -G.Alpha * pos[2]}
}

func (G *GaussianTrial) Accept(R *v3.Matrix, iat int, pos [3]float64) float64 {
	return G.logPsi1(pos) - G.logPsi1(R.Vec(iat))
}

//Laplacian returns nabla^2 psi / psi = -3 N Alpha + Alpha^2 sum_i r_i^2.
func (G *GaussianTrial) Laplacian(R *v3.Matrix) float64 {
	return -3*float64(R.NVecs())*G.Alpha + G.Alpha*G.Alpha*R.SumNorm2()
}

func (G *GaussianTrial) Clone() qmc.WaveFunction {
	c := *G
	return &c
}

//HarmonicOscillator is the Hamiltonian H = sum_i (-1/2 nabla_i^2 + 1/2 r_i^2).
type HarmonicOscillator struct {
	//Step for the finite-difference kinetic energy, used when
	//the wavefunction doesn't implement Laplacian.
	FDStep float64
}

//NewHarmonicOscillator returns the oscillator Hamiltonian.
func NewHarmonicOscillator() *HarmonicOscillator {
	return &HarmonicOscillator{FDStep: 1e-4}
}

func (H *HarmonicOscillator) Components() []string {
	return []string{"Kinetic", "Potential"}
}

//Evaluate puts the kinetic and potential energies in comps and returns their sum.
func (H *HarmonicOscillator) Evaluate(R *v3.Matrix, psi qmc.WaveFunction, comps []float64) float64 {
	var lap float64
	if l, ok := psi.(Laplacian); ok {
		lap = l.Laplacian(R)
	} else {
		lap = H.fdLaplacian(R, psi)
	}
	kin := -0.5 * lap
	pot := 0.5 * R.SumNorm2()
	if len(comps) >= 2 {
		comps[0] = kin
		comps[1] = pot
	}
	return kin + pot
}

//fdLaplacian approximates nabla^2 psi / psi by central differences of psi ratios.
func (H *HarmonicOscillator) fdLaplacian(R *v3.Matrix, psi qmc.WaveFunction) float64 {
	h := H.FDStep
	var lap float64
	for i := 0; i < R.NVecs(); i++ {
		for k := 0; k < 3; k++ {
			var d [3]float64
			d[k] = h
			plus := psi.Ratio(R, i, R.Displaced(i, d))
			d[k] = -h
			minus := psi.Ratio(R, i, R.Displaced(i, d))
			lap += (plus + minus - 2) / (h * h)
		}
	}
	return lap
}

func (H *HarmonicOscillator) Clone() qmc.Hamiltonian {
	c := *H
	return &c
}
