/*
 * configs.go, part of goQMC.
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

package walker

import (
	"context"
	"fmt"

	"github.com/rmera/goqmc/archive"
	"github.com/rmera/goqmc/comm"
)

//Gather collects the living walkers of all ranks in rank 0, which gets copies
//of them, in rank order. The other ranks get nil. All ranks must call it.
func (P *Population) Gather(ctx context.Context, c comm.Communicator) ([]*Walker, error) {
	if c.Rank() != 0 {
		buf := make([]float64, 0, len(P.walkers)*(packedHeader+3*P.nparticles))
		for _, w := range P.walkers {
			buf = w.pack(buf)
		}
		return nil, errDecorate(c.Send(ctx, 0, buf), "Gather")
	}
	ret := make([]*Walker, 0, len(P.walkers))
	for _, w := range P.walkers {
		ret = append(ret, w.Clone())
	}
	for r := 1; r < c.Size(); r++ {
		buf, err := c.Recv(ctx, r)
		if err != nil {
			return nil, errDecorate(err, "Gather")
		}
		for len(buf) > 0 {
			var w *Walker
			w, buf, err = unpack(buf, P.nparticles)
			if err != nil {
				return nil, errDecorate(err, "Gather")
			}
			ret = append(ret, w)
		}
	}
	return ret, nil
}

//SaveConfigs writes the walker configurations to the qta file name, under the group
//walkers: positions (one row of 3N coordinates per walker), ids (id, parent id, age)
//and weights. The file is overwritten.
func SaveConfigs(name string, walkers []*Walker, header map[string]string) (err error) {
	W, err := archive.NewWriter(name, header)
	if err != nil {
		return errDecorate(err, "SaveConfigs")
	}
	defer func() {
		if err2 := W.Close(); err == nil {
			err = errDecorate(err2, "SaveConfigs")
		}
	}()
	if err = W.Push("walkers"); err != nil {
		return errDecorate(err, "SaveConfigs")
	}
	if len(walkers) == 0 {
		return errDecorate(W.WriteInts("count", 0), "SaveConfigs")
	}
	np := walkers[0].NParticles()
	pos := make([]float64, 0, len(walkers)*3*np)
	ids := make([]int64, 0, len(walkers)*3)
	weights := make([]float64, 0, len(walkers))
	for _, w := range walkers {
		if w.NParticles() != np {
			return Error{message: "walkers with different numbers of particles", deco: []string{"SaveConfigs"}, critical: true}
		}
		pos = append(pos, w.R.Raw()...)
		ids = append(ids, w.ID, w.ParentID, int64(w.Age))
		weights = append(weights, w.Weight)
	}
	if err = W.WriteInts("count", int64(len(walkers))); err != nil {
		return errDecorate(err, "SaveConfigs")
	}
	var c1, c2, c3 int64
	if err = W.AppendFloats("positions", &c1, 3*np, pos); err != nil {
		return errDecorate(err, "SaveConfigs")
	}
	if err = W.AppendInts("ids", &c2, 3, ids); err != nil {
		return errDecorate(err, "SaveConfigs")
	}
	if err = W.AppendFloats("weights", &c3, 1, weights); err != nil {
		return errDecorate(err, "SaveConfigs")
	}
	return errDecorate(W.Pop(), "SaveConfigs")
}

//LoadConfigs reads the walkers written by SaveConfigs.
func LoadConfigs(name string) ([]*Walker, error) {
	R, err := archive.Open(name)
	if err != nil {
		return nil, errDecorate(err, "LoadConfigs")
	}
	count, err := R.Ints("/walkers/count")
	if err != nil {
		return nil, errDecorate(err, "LoadConfigs")
	}
	if count[0] == 0 {
		return nil, nil
	}
	pos, err := R.Dataset("/walkers/positions")
	if err != nil {
		return nil, errDecorate(err, "LoadConfigs")
	}
	ids, err := R.Dataset("/walkers/ids")
	if err != nil {
		return nil, errDecorate(err, "LoadConfigs")
	}
	weights, err := R.Dataset("/walkers/weights")
	if err != nil {
		return nil, errDecorate(err, "LoadConfigs")
	}
	n := int(count[0])
	if pos.Rows != n || ids.Rows != n || weights.Rows != n || pos.Cols%3 != 0 || ids.Cols != 3 || !pos.IsFloat() || ids.IsFloat() {
		return nil, Error{message: fmt.Sprintf("inconsistent walker configurations in %s", name), deco: []string{"LoadConfigs"}, critical: true}
	}
	np := pos.Cols / 3
	ret := make([]*Walker, n)
	for i := range ret {
		w := New(np)
		copy(w.R.Raw(), pos.Floats()[i*pos.Cols:(i+1)*pos.Cols])
		w.ID = ids.Ints()[3*i]
		w.ParentID = ids.Ints()[3*i+1]
		w.Age = int(ids.Ints()[3*i+2])
		w.Weight = weights.Floats()[i]
		ret[i] = w
	}
	return ret, nil
}
