/*
 * metrics.go, part of goQMC.
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

//Package metrics holds the Prometheus instruments of the drivers: section timers,
//move counters and the size of the walker population.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//Timed sections of a driver.
const (
	Checkpoint    = "checkpoint"
	RunSteps      = "run_steps"
	CreateWalkers = "create_walkers"
	InitWalkers   = "init_walkers"
	Buffer        = "buffer"
	Estimators    = "estimators"
	Imbalance     = "imbalance"
	EndBlock      = "end_block"
	Startup       = "startup"
	Production    = "production"
)

//Metrics is a set of instruments registered in its own registry, so several
//simulations can live in the same process.
type Metrics struct {
	Registry *prometheus.Registry
	sections *prometheus.HistogramVec
	accepted *prometheus.CounterVec
	rejected *prometheus.CounterVec
	walkers  *prometheus.GaugeVec
	blocks   *prometheus.CounterVec
}

//New returns a new set of instruments, registered in a new registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		sections: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "goqmc",
			Subsystem: "driver",
			Name:      "section_seconds",
			Help:      "Time spent in each section of the driver",
			Buckets:   prometheus.ExponentialBuckets(1e-5, 4, 12),
		}, []string{"rank", "section"}),
		accepted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "goqmc",
			Subsystem: "driver",
			Name:      "accepted_moves_total",
			Help:      "Accepted single-particle moves",
		}, []string{"rank"}),
		rejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "goqmc",
			Subsystem: "driver",
			Name:      "rejected_moves_total",
			Help:      "Rejected single-particle moves",
		}, []string{"rank"}),
		walkers: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "goqmc",
			Subsystem: "population",
			Name:      "living_walkers",
			Help:      "Living walkers on the rank",
		}, []string{"rank"}),
		blocks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "goqmc",
			Subsystem: "driver",
			Name:      "blocks_total",
			Help:      "Blocks finished",
		}, []string{"rank"}),
	}
}

//Rank returns the instruments of one rank. A nil *Metrics gives a Rank that records nothing.
func (M *Metrics) Rank(rank int) *Rank {
	if M == nil {
		return &Rank{}
	}
	r := strconv.Itoa(rank)
	return &Rank{m: M, rank: r}
}

//Rank records the metrics of one rank.
type Rank struct {
	m    *Metrics
	rank string
}

//Time starts timing section and returns the function that stops it.
//The usual idiom is defer r.Time(metrics.EndBlock)().
func (R *Rank) Time(section string) func() {
	if R.m == nil {
		return func() {}
	}
	start := time.Now()
	obs := R.m.sections.WithLabelValues(R.rank, section)
	return func() {
		obs.Observe(time.Since(start).Seconds())
	}
}

//Moves adds accepted and rejected moves to the counters.
func (R *Rank) Moves(accepted, rejected int) {
	if R.m == nil {
		return
	}
	R.m.accepted.WithLabelValues(R.rank).Add(float64(accepted))
	R.m.rejected.WithLabelValues(R.rank).Add(float64(rejected))
}

//Walkers sets the number of living walkers.
func (R *Rank) Walkers(n int) {
	if R.m == nil {
		return
	}
	R.m.walkers.WithLabelValues(R.rank).Set(float64(n))
}

//Block counts a finished block.
func (R *Rank) Block() {
	if R.m == nil {
		return
	}
	R.m.blocks.WithLabelValues(R.rank).Inc()
}
