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

/*Package trace implements the walker trace buffers of goQMC.

A Buffer accumulates samples of named per-walker quantities (scalars, and real or complex
arrays of up to 4 axes) as rows of a homogeneous 2D table. The layout of a row is not
declared in advance: it is built during the first pass of collection, when each call to
one of the Collect methods registers a QuantityInfo at the next free offset of the row.
Ending the first row freezes the layout, and from then on every row must collect the
same quantities, with the same shapes, in the same order.

The usual cycle, per walker and per step, is

	buf.Collect("LocalEnergy", e)
	buf.CollectArray("R", r, nparticles, 3)
	buf.ResetCollect()

The row-size invariant is End-Start == Size*UnitSize for every quantity, with the
quantities laid out contiguously in registration order. Complex arrays take two slots
per element, real part first.

Violations of the collection protocol are programming errors. They cause panics with
PanicMsg values, in the way gonum panics on shape mismatches.
*/
package trace
