/*
 * walker.go, part of goQMC.
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

//Package walker contains the Monte Carlo walkers and the population of walkers
//owned by one rank.
package walker

import (
	"fmt"

	v3 "github.com/rmera/goqmc/v3"
)

//Walker is one configuration of the particles, sampled by the Monte Carlo process.
type Walker struct {
	ID           int64
	ParentID     int64
	Age          int //steps since the last accepted move
	Weight       float64
	Multiplicity float64
	Generation   int //step of the last accepted move
	R            *v3.Matrix
	Properties
}

//Properties are the values the driver computes for a walker at each step.
type Properties struct {
	LogPsi        float64
	LocalEnergy   float64
	Kinetic       float64
	Potential     float64
	Displacement2 float64 //squared displacement accepted during the last step
}

//New returns a walker of nparticles particles, all at the origin, with unit
//weight and multiplicity.
func New(nparticles int) *Walker {
	return &Walker{R: v3.Zeros(nparticles), Weight: 1, Multiplicity: 1}
}

//NParticles returns the number of particles of the walker.
func (W *Walker) NParticles() int {
	return W.R.NVecs()
}

//Clone returns a deep copy of W.
func (W *Walker) Clone() *Walker {
	ret := *W
	ret.R = W.R.Clone()
	return &ret
}

//CopyFrom copies the state of src into W, except for the identifiers.
func (W *Walker) CopyFrom(src *Walker) {
	W.Age = src.Age
	W.Weight = src.Weight
	W.Multiplicity = src.Multiplicity
	W.Generation = src.Generation
	W.Properties = src.Properties
	if W.R == nil || W.R.NVecs() != src.R.NVecs() {
		W.R = src.R.Clone()
		return
	}
	W.R.CopyFrom(src.R)
}

func (W *Walker) String() string {
	return fmt.Sprintf("walker %d (parent %d) age %d weight %.4f E %.6f", W.ID, W.ParentID, W.Age, W.Weight, W.LocalEnergy)
}

//number of scalar fields in a packed walker, before the coordinates.
const packedHeader = 11

//pack appends the walker to buf as a flat slice of floats, for messages between ranks.
func (W *Walker) pack(buf []float64) []float64 {
	buf = append(buf, float64(W.ID), float64(W.ParentID), float64(W.Age), W.Weight, W.Multiplicity,
		float64(W.Generation), W.LogPsi, W.LocalEnergy, W.Kinetic, W.Potential, W.Displacement2)
	return append(buf, W.R.Raw()...)
}

//unpack reads one walker of nparticles particles from the beginning of buf, and returns
//the rest of buf.
func unpack(buf []float64, nparticles int) (*Walker, []float64, error) {
	n := packedHeader + 3*nparticles
	if len(buf) < n {
		return nil, nil, Error{message: fmt.Sprintf("packed walker needs %d values, only %d left", n, len(buf)), critical: true}
	}
	W := New(nparticles)
	W.ID = int64(buf[0])
	W.ParentID = int64(buf[1])
	W.Age = int(buf[2])
	W.Weight = buf[3]
	W.Multiplicity = buf[4]
	W.Generation = int(buf[5])
	W.LogPsi = buf[6]
	W.LocalEnergy = buf[7]
	W.Kinetic = buf[8]
	W.Potential = buf[9]
	W.Displacement2 = buf[10]
	copy(W.R.Raw(), buf[packedHeader:n])
	return W, buf[n:], nil
}

//Error is the error type of the package.
type Error struct {
	message  string
	deco     []string
	critical bool
}

func (err Error) Error() string { return err.message }

//Decorate will add the dec string to the decoration slice of strings of the error,
//and return the resulting slice.
func (err Error) Decorate(dec string) []string {
	if dec == "" {
		return err.deco
	}
	err.deco = append(err.deco, dec)
	return err.deco
}

//Critical returns true if the error cannot be recovered from.
func (err Error) Critical() bool { return err.critical }

func errDecorate(err error, caller string) error {
	if err == nil {
		return nil
	}
	if e, ok := err.(Error); ok {
		e.deco = e.Decorate(caller)
		return e
	}
	return fmt.Errorf("%s: %w", caller, err)
}
