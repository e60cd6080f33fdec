/*
 * taus.go, part of goQMC.
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

package driver

import (
	"math"

	v3 "github.com/rmera/goqmc/v3"
)

//TauParams are the time-step dependent factors used by the moves.
type TauParams struct {
	Tau         float64
	SqrtTau     float64
	OneOver2Tau float64
}

//NewTauParams returns the factors for the time step tau.
func NewTauParams(tau float64) TauParams {
	return TauParams{Tau: tau, SqrtTau: math.Sqrt(tau), OneOver2Tau: 0.5 / tau}
}

//ScaleBySqrtTau multiplies each displacement by the square root of the time step.
func ScaleBySqrtTau(taus TauParams, deltas [][3]float64) {
	for i := range deltas {
		for k := range deltas[i] {
			deltas[i][k] *= taus.SqrtTau
		}
	}
}

//LogGreensFunction puts in logG the log of the (unnormalized) Gaussian Green's function
//for each displacement, -|d|^2/(2 tau). logG must have the same length as deltas.
func LogGreensFunction(taus TauParams, deltas [][3]float64, logG []float64) {
	if len(logG) != len(deltas) {
		panic(ErrLength)
	}
	for i, d := range deltas {
		logG[i] = -taus.OneOver2Tau * v3.Dot(d, d)
	}
}
