/*
 * doc.go, part of goQMC.
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

/*Package qmc is the main package of the goQMC library. It defines the interfaces
shared by the rest of the library: the collaborators that a Monte Carlo driver
consumes (wavefunctions and Hamiltonians) and the error interface that all the
goQMC packages implement.



	**goQMC Capabilities**


    Keeps populations of walkers (replicas of an N-particle configuration) with
	weights, ages and globally unique IDs, and performs branching (birth/death)
	on them.

    Distributes a requested walker count across ranks and crowds (the balance
	package).

    Advances walkers through blocks of Monte Carlo steps, with one crowd of
	walkers per goroutine and no shared mutable walker state (the driver package).
	Ranks communicate only through collectives and walker exchanges (the comm
	package).

    Collects heterogeneous per-walker quantities (scalars, real and complex arrays
	of up to 4 axes) into homogeneous row buffers with a self-describing layout
	(the trace package), and appends them block after block to a compressed,
	hierarchical archive file (the archive package).

    Logs per-step walker data, including the walkers with the minimum, maximum
	and median energies (the wlog package).

    Accumulates block statistics, with error bars corrected by the
	autocorrelation time, and plots them (the estimators package).

    goQMC does not evaluate wavefunctions or Hamiltonians itself. Those are
	supplied by the user through the WaveFunction and Hamiltonian interfaces. A
	toy harmonic oscillator is provided in the models package for testing.

*/
package qmc
