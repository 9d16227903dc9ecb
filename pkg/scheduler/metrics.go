/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/chubbymaggie/meister/pkg/metrics"
)

func init() {
	metrics.Registry.MustRegister(
		scheduledJobs,
		terminatedPods,
		admissionSkips,
		creatorErrors,
	)
}

const (
	schedulerSubsystem = "scheduler"
	workerLabel        = "worker"
	creatorLabel       = "creator"
)

var (
	scheduledJobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: schedulerSubsystem,
			Name:      "scheduled_jobs_total",
			Help:      "Total number of jobs dispatched as worker pods. Labeled by worker tag.",
		},
		[]string{workerLabel},
	)
	terminatedPods = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: schedulerSubsystem,
			Name:      "terminated_pods_total",
			Help:      "Total number of worker pods deleted ahead of re-dispatch.",
		},
	)
	admissionSkips = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: schedulerSubsystem,
			Name:      "admission_skips_total",
			Help:      "Total number of candidates held back because the budget could not fit them.",
		},
	)
	creatorErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: schedulerSubsystem,
			Name:      "creator_errors_total",
			Help:      "Total number of creator failures that truncated a job stream. Labeled by creator.",
		},
		[]string{creatorLabel},
	)
)
