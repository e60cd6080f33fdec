/*
 * comm.go, part of goQMC.
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

//Package comm connects the ranks of a simulation. Ranks only communicate through
//collectives (barrier, sum reduction, gather) and point-to-point messages, so the driver
//does not know whether its peers live in the same process.
package comm

import (
	"context"
	"fmt"
	"sync"
)

//Communicator is the view a rank has of the set of ranks running a simulation.
//Collectives must be called by every rank, in the same order.
type Communicator interface {
	Rank() int
	Size() int
	Barrier(ctx context.Context) error
	//AllReduce returns the element-wise sum of v over all ranks.
	AllReduce(ctx context.Context, v []float64) ([]float64, error)
	//AllGather returns the v of every rank, indexed by rank.
	AllGather(ctx context.Context, v []float64) ([][]float64, error)
	Send(ctx context.Context, to int, payload []float64) error
	Recv(ctx context.Context, from int) ([]float64, error)
}

//linkCapacity is the number of messages that can be pending between two ranks.
const linkCapacity = 64

type round struct {
	contrib [][]float64
	arrived int
	done    chan struct{}
}

type world struct {
	n     int
	mu    sync.Mutex
	cur   *round
	links [][]chan []float64 //links[from][to]
}

func (w *world) newRound() *round {
	return &round{contrib: make([][]float64, w.n), done: make(chan struct{})}
}

//NewWorld returns n communicators connected to each other, one per rank,
//each meant to be used by its own goroutine.
func NewWorld(n int) []Communicator {
	if n <= 0 {
		panic(ErrWorldSize)
	}
	w := &world{n: n}
	w.cur = w.newRound()
	w.links = make([][]chan []float64, n)
	for i := range w.links {
		w.links[i] = make([]chan []float64, n)
		for j := range w.links[i] {
			w.links[i][j] = make(chan []float64, linkCapacity)
		}
	}
	ret := make([]Communicator, n)
	for i := range ret {
		ret[i] = &rank{w: w, id: i}
	}
	return ret
}

//Serial returns the communicator of a single-rank simulation.
func Serial() Communicator {
	return NewWorld(1)[0]
}

type rank struct {
	w  *world
	id int
}

func (r *rank) Rank() int { return r.id }
func (r *rank) Size() int { return r.w.n }

//gather deposits v and waits until all the ranks have deposited theirs.
//The returned slices must not be modified.
func (r *rank) gather(ctx context.Context, v []float64) ([][]float64, error) {
	w := r.w
	w.mu.Lock()
	cur := w.cur
	cur.contrib[r.id] = append([]float64(nil), v...)
	cur.arrived++
	if cur.arrived == w.n {
		close(cur.done)
		w.cur = w.newRound()
	}
	w.mu.Unlock()
	select {
	case <-cur.done:
		return cur.contrib, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *rank) Barrier(ctx context.Context) error {
	_, err := r.gather(ctx, nil)
	return err
}

func (r *rank) AllReduce(ctx context.Context, v []float64) ([]float64, error) {
	all, err := r.gather(ctx, v)
	if err != nil {
		return nil, err
	}
	ret := make([]float64, len(v))
	for i, c := range all {
		if len(c) != len(v) {
			return nil, fmt.Errorf("comm: rank %d contributed %d values to a reduction of %d", i, len(c), len(v))
		}
		for j, x := range c {
			ret[j] += x
		}
	}
	return ret, nil
}

func (r *rank) AllGather(ctx context.Context, v []float64) ([][]float64, error) {
	all, err := r.gather(ctx, v)
	if err != nil {
		return nil, err
	}
	ret := make([][]float64, len(all))
	for i, c := range all {
		ret[i] = append([]float64(nil), c...)
	}
	return ret, nil
}

func (r *rank) check(other int) error {
	if other < 0 || other >= r.w.n || other == r.id {
		return fmt.Errorf("comm: rank %d cannot exchange messages with rank %d", r.id, other)
	}
	return nil
}

func (r *rank) Send(ctx context.Context, to int, payload []float64) error {
	if err := r.check(to); err != nil {
		return err
	}
	select {
	case r.w.links[r.id][to] <- append([]float64(nil), payload...):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *rank) Recv(ctx context.Context, from int) ([]float64, error) {
	if err := r.check(from); err != nil {
		return nil, err
	}
	select {
	case p := <-r.w.links[from][r.id]:
		return p, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

//AllGatherInt gathers one integer from each rank.
func AllGatherInt(ctx context.Context, c Communicator, v int) ([]int, error) {
	all, err := c.AllGather(ctx, []float64{float64(v)})
	if err != nil {
		return nil, err
	}
	ret := make([]int, len(all))
	for i, a := range all {
		ret[i] = int(a[0])
	}
	return ret, nil
}

//PanicMsg is a message used for panics, even though it does satisfy the error interface.
type PanicMsg string

func (v PanicMsg) Error() string { return string(v) }

const ErrWorldSize = PanicMsg("goQMC/comm: a world needs at least one rank")
