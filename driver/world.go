/*
 * world.go, part of goQMC.
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
	"context"

	"golang.org/x/sync/errgroup"

	qmc "github.com/rmera/goqmc"
	"github.com/rmera/goqmc/comm"
	"github.com/rmera/goqmc/config"
)

//RunWorld runs a simulation of in.Ranks ranks in this process, each rank in its own goroutine.
//It returns the drivers of all the ranks, in rank order, even if the run failed. If one rank fails,
//the others are cancelled.
func RunWorld(ctx context.Context, in config.Input, psi qmc.WaveFunction, ham qmc.Hamiltonian, opts Options) ([]*Driver, error) {
	if err := in.Validate(); err != nil {
		return nil, errDecorate(err, "RunWorld")
	}
	world := comm.NewWorld(in.Ranks)
	drivers := make([]*Driver, in.Ranks)
	for i, c := range world {
		drivers[i] = New(in, c, psi, ham, opts)
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, d := range drivers {
		d := d
		g.Go(func() error { return d.Run(gctx) })
	}
	return drivers, errDecorate(g.Wait(), "RunWorld")
}
