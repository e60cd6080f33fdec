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

/******************** Format Specification   ***************************************************


A qta file starts with the 6 ASCII bytes "QTA 1\n". Everything after that is a sequence of
records, in the order in which they were written. All integers are little-endian.

Every record starts with:

	kind     1 byte   'G' (group), 'A' (attribute) or 'D' (data chunk)
	pathlen  uint16
	path     pathlen bytes, the absolute '/'-separated path of the group, attribute or dataset.

A 'G' record has nothing else. It declares a group, so that empty groups are preserved.

An 'A' record continues with:

	type     1 byte   'i' (int64), 'f' (float64) or 's' (string)
	n        uint32   number of elements (bytes for strings)
	payload  n*8 bytes (n bytes for strings)

Writing an attribute twice replaces the previous value.

A 'D' record continues with:

	type     1 byte   'i' (int64) or 'f' (float64)
	codec    1 byte   'n' (none) or 'z' (z-standard)
	start    uint64   first row of the chunk in the dataset
	rows     uint64
	cols     uint64
	clen     uint64   length of the (possibly compressed) payload
	payload  clen bytes, which decode to rows*cols 8-byte values, row-major.

The chunks of one dataset must be contiguous: the start of each chunk equals the number of rows
in the dataset before the chunk. All chunks of a dataset have the same type and number of
columns. Floating point values are stored as their IEEE 754 bits, so they round-trip exactly.

***************************************************************************************************/

//Package archive implements the goQMC archive format (qta), a small hierarchical
//container for the data produced by Monte Carlo runs: walker traces, walker
//configurations for restarts and run metadata. It plays the role that HDF5
//files play in other QMC codes, but it is append-only and trivially
//readable.
//
//A qta file is built incrementally, the way HDF5 files are: the writer keeps a stack
//of open groups (Push/Pop), small typed attributes are written under the current
//group and 2D datasets grow by appending rows at an explicit row cursor.
package archive
