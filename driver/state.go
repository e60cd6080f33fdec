/*
 * state.go, part of goQMC.
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

import "fmt"

//State is the stage of its life a driver is in.
type State int

const (
	Uninitialized State = iota
	Initializing
	Warmup
	Running
	BlockEnd
	Finalizing
	Terminal
	Failed
)

var stateNames = [...]string{"uninitialized", "initializing", "warmup", "running", "block_end", "finalizing", "terminal", "failed"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

//allowed transitions, besides moving to Failed, which is always possible from a non-terminal state.
var transitions = map[State][]State{
	Uninitialized: {Initializing},
	Initializing:  {Warmup},
	Warmup:        {Running},
	Running:       {BlockEnd, Finalizing},
	BlockEnd:      {Running, Finalizing},
	Finalizing:    {Terminal},
}

//CanMove returns true if a driver can go from s to to.
func (s State) CanMove(to State) bool {
	if s == Terminal || s == Failed {
		return false
	}
	if to == Failed {
		return true
	}
	for _, v := range transitions[s] {
		if v == to {
			return true
		}
	}
	return false
}

//Done returns true for the states a driver never leaves.
func (s State) Done() bool {
	return s == Terminal || s == Failed
}
