/*
 * manager.go, part of goQMC.
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

package wlog

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/rmera/goqmc/archive"
	"github.com/rmera/goqmc/config"
	"github.com/rmera/goqmc/trace"
)

//FileName returns the name of the walker log file of a rank.
func FileName(root string, rank int) string {
	return fmt.Sprintf("%s.r%d.wlogs.qta", root, rank)
}

//set is the three buffers with the same walker rows.
type set struct {
	ints      *trace.Buffer[int64]
	reals     *trace.Buffer[float64]
	particles *trace.Buffer[float64]
}

func newSet(prefix string) *set {
	return &set{
		ints:      trace.NewBuffer[int64](prefix + IntLabel),
		reals:     trace.NewBuffer[float64](prefix + RealLabel),
		particles: trace.NewBuffer[float64](prefix + ParticleLabel),
	}
}

func (s *set) reset() {
	s.ints.ResetBuffer()
	s.reals.ResetBuffer()
	s.particles.ResetBuffer()
}

//add copies the row i of the collector C.
func (s *set) add(C *Collector, i int) {
	s.ints.AddRow(C.ints, i)
	s.reals.AddRow(C.reals, i)
	if C.particles.Rows() > i {
		s.particles.AddRow(C.particles, i)
	}
}

//Manager writes the walker logs of one rank.
type Manager struct {
	settings   config.WalkerLogs
	file       *archive.Writer
	logger     *slog.Logger
	all        *set
	min        *set
	max        *set
	med        *set
	registered map[string]bool
}

//NewManager creates the walker log file name. The header is written as string attributes of the file.
func NewManager(name string, settings config.WalkerLogs, header map[string]string, compression int, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	f, err := archive.NewWriter(name, header, compression)
	if err != nil {
		return nil, errDecorate(err, "NewManager")
	}
	M := &Manager{
		settings:   settings,
		file:       f,
		logger:     logger,
		all:        newSet(""),
		registered: make(map[string]bool),
	}
	if settings.Quantiles {
		M.min = newSet("wmin_")
		M.max = newSet("wmax_")
		M.med = newSet("wmed_")
	}
	return M, nil
}

//FileName returns the name of the file being written.
func (M *Manager) FileName() string {
	return M.file.FileName()
}

type row struct {
	c      *Collector
	i      int
	energy float64
}

//WriteBuffers gathers the rows of the collectors and appends them to the file. It is called
//at the end of each block.
func (M *Manager) WriteBuffers(collectors []*Collector) error {
	M.all.reset()
	bystep := make(map[int64][]row)
	var steps []int64
	for _, C := range collectors {
		for i := 0; i < C.ints.Rows(); i++ {
			M.all.add(C, i)
			if M.min == nil {
				continue
			}
			step := C.ints.Values(i, "step")[0]
			if _, ok := bystep[step]; !ok {
				steps = append(steps, step)
			}
			bystep[step] = append(bystep[step], row{c: C, i: i, energy: C.reals.Values(i, "LocalEnergy")[0]})
		}
	}
	if M.min != nil {
		M.min.reset()
		M.max.reset()
		M.med.reset()
		sort.Slice(steps, func(i, j int) bool { return steps[i] < steps[j] })
		for _, s := range steps {
			rows := bystep[s]
			sort.SliceStable(rows, func(i, j int) bool { return rows[i].energy < rows[j].energy })
			M.min.add(rows[0].c, rows[0].i)
			M.max.add(rows[len(rows)-1].c, rows[len(rows)-1].i)
			med := rows[len(rows)/2]
			M.med.add(med.c, med.i)
		}
	}
	for _, s := range []*set{M.all, M.min, M.max, M.med} {
		if s == nil {
			continue
		}
		if err := writeBuffer(M, s.ints); err != nil {
			return err
		}
		if err := writeBuffer(M, s.reals); err != nil {
			return err
		}
		if err := writeBuffer(M, s.particles); err != nil {
			return err
		}
	}
	if M.settings.Verbose {
		M.all.reals.WriteSummary(M.logger)
	}
	return nil
}

//writeBuffer registers the layout of b the first time it has data, and appends its rows.
func writeBuffer[T trace.Number](M *Manager, b *trace.Buffer[T]) error {
	if b.Rows() == 0 {
		return nil
	}
	if !M.registered[b.Label()] {
		if err := b.RegisterLayout(M.file); err != nil {
			return errDecorate(err, "WriteBuffers")
		}
		M.registered[b.Label()] = true
		M.logger.Debug("registered walker log layout", "file", M.file.FileName(), "buffer", b.Label(), "row_size", b.Cols())
	}
	return errDecorate(b.Write(M.file), "WriteBuffers")
}

//Close closes the file.
func (M *Manager) Close() error {
	return errDecorate(M.file.Close(), "Close")
}

//Error is the error type of the package.
type Error struct {
	message  string
	deco     []string
	critical bool
}

func (err Error) Error() string {
	return fmt.Sprintf("walker logs: %s (%s)", err.message, strings.Join(err.deco, " < "))
}

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

//errDecorate wraps errors from other packages in an Error.
func errDecorate(err error, caller string) error {
	if err == nil {
		return nil
	}
	if e, ok := err.(Error); ok {
		e.deco = e.Decorate(caller)
		return e
	}
	return Error{message: err.Error(), deco: []string{caller}, critical: true}
}
