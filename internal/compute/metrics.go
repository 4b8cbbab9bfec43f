// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 mydex Contributors

package compute

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
)

// RegisterMetrics exposes the pool's queue depth and busy workers as gauges
// labelled with the pool name.
func RegisterMetrics(reg prometheus.Registerer, name string, p *Pool) error {
	labels := prometheus.Labels{"pool": name}

	collectors := []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "mydex_compute_pool_workers",
			Help:        "Number of worker goroutines in the compute pool",
			ConstLabels: labels,
		}, func() float64 { return float64(p.Stats().Workers) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "mydex_compute_pool_queued",
			Help:        "Number of tasks waiting for a compute worker",
			ConstLabels: labels,
		}, func() float64 { return float64(p.Stats().Queued) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "mydex_compute_pool_busy",
			Help:        "Number of compute workers currently running a task",
			ConstLabels: labels,
		}, func() float64 { return float64(p.Stats().Busy) }),
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return oops.Code("COMPUTE_METRICS_REGISTER").With("pool", name).Wrap(err)
		}
	}
	return nil
}
