/*
 * interfaces.go, part of goQMC.
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

package qmc

import v3 "github.com/rmera/goqmc/v3"

//WaveFunction is the interface for the trial wavefunction of the walkers. It is
//the ratio evaluator and the determinant update service consumed by the drivers.
//Implementations may keep internal state (i.e. inverse matrices) about the last
//configuration they evaluated, but each crowd gets its own clone, so they never need
//to be safe for concurrent use.
type WaveFunction interface {

	//Evaluate computes, from scratch, log|psi| for the configuration R,
	//and resets whatever internal state depends on R.
	Evaluate(R *v3.Matrix) float64

	//Ratio returns psi(R')/psi(R), where R' is R with particle iat moved to pos.
	Ratio(R *v3.Matrix, iat int, pos [3]float64) float64

	//Grad returns the gradient of log|psi| with respect to the coordinates of particle iat,
	//when that particle is at pos and all others are as in R.
	Grad(R *v3.Matrix, iat int, pos [3]float64) [3]float64

	//Accept commits the move of particle iat to pos and returns the change in log|psi|.
	//R is updated by the caller after Accept returns.
	Accept(R *v3.Matrix, iat int, pos [3]float64) float64

	//Clone returns an independent copy to be owned by one crowd.
	Clone() WaveFunction
}

//Hamiltonian is the observable evaluator consumed by the drivers.
type Hamiltonian interface {

	//Components returns the names of the energy components, in the order
	//in which Evaluate puts them.
	Components() []string

	//Evaluate puts the energy components for R in comps, which must have
	//as many elements as Components returns, and returns the local energy.
	Evaluate(R *v3.Matrix, psi WaveFunction, comps []float64) float64

	//Clone returns an independent copy to be owned by one crowd.
	Clone() Hamiltonian
}

//Errors

// Error is the interface for errors that all packages in this library implement. The Decorate method allows to add and retrieve info from the
// error, without changing it's type or wrapping it around something else.
type Error interface {
	Error() string
	Decorate(string) []string //Each call also returns the "decoration" slice of strings resulting from the current call. If passed an empty string, it should just return the current value, not add the empty string to the slice.
}

// CriticalError is an Error that knows whether the run can go on after it.
type CriticalError interface {
	Error
	Critical() bool
}

// IsCritical returns true if err is a CriticalError and it is critical. Errors
// that don't implement CriticalError are considered critical.
func IsCritical(err error) bool {
	if err == nil {
		return false
	}
	if e, ok := err.(CriticalError); ok {
		return e.Critical()
	}
	return true
}
