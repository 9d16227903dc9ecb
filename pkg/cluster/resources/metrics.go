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

package resources

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/chubbymaggie/meister/pkg/metrics"
)

func init() {
	metrics.Registry.MustRegister(
		availableCPU,
		availableMemory,
		availablePods,
	)
}

const resourcesSubsystem = "resources"

var (
	availableCPU = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metrics.Namespace,
			Subsystem: resourcesSubsystem,
			Name:      "available_cpu_cores",
			Help:      "Schedulable CPU cores after subtracting in-flight pods and applying overprovisioning.",
		},
	)
	availableMemory = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metrics.Namespace,
			Subsystem: resourcesSubsystem,
			Name:      "available_memory_bytes",
			Help:      "Schedulable memory after subtracting in-flight pods and applying overprovisioning.",
		},
	)
	availablePods = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metrics.Namespace,
			Subsystem: resourcesSubsystem,
			Name:      "available_pods",
			Help:      "Schedulable pod slots after subtracting in-flight pods and applying overprovisioning.",
		},
	)
)
