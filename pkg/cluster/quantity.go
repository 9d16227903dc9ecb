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

package cluster

import (
	v1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
)

// CPUValue converts a CPU quantity to cores; the "m" suffix is milli-cores.
func CPUValue(q resource.Quantity) float64 {
	return float64(q.MilliValue()) / 1000
}

// MemoryValue converts a memory quantity to bytes; Ki/Mi/Gi are binary multipliers.
func MemoryValue(q resource.Quantity) int64 {
	return q.Value()
}

// PodRequests returns the resources a pod holds against the cluster budget:
// its requests, falling back to limits when requests are absent, falling back
// to zero when neither is set. Worker pods run a single container.
func PodRequests(pod *v1.Pod) (cpu float64, memory int64) {
	if len(pod.Spec.Containers) == 0 {
		return 0, 0
	}
	resources := pod.Spec.Containers[0].Resources
	requests := resources.Requests
	if len(requests) == 0 {
		requests = resources.Limits
	}
	if cpuQty, ok := requests[v1.ResourceCPU]; ok {
		cpu = CPUValue(cpuQty)
	}
	if memQty, ok := requests[v1.ResourceMemory]; ok {
		memory = MemoryValue(memQty)
	}
	return cpu, memory
}

// NodeCapacity returns a node's declared cpu / memory / pod-slot capacity.
func NodeCapacity(node *v1.Node) (cpu float64, memory int64, pods int64) {
	capacity := node.Status.Capacity
	if cpuQty, ok := capacity[v1.ResourceCPU]; ok {
		cpu = CPUValue(cpuQty)
	}
	if memQty, ok := capacity[v1.ResourceMemory]; ok {
		memory = MemoryValue(memQty)
	}
	if podQty, ok := capacity[v1.ResourcePods]; ok {
		pods = podQty.Value()
	}
	return cpu, memory, pods
}
