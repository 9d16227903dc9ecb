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

// Budget is the cluster-wide aggregate of schedulable cpu cores, memory bytes
// and pod slots. Tracking aggregates instead of per-node vectors trades
// placement accuracy for scheduling simplicity; the short cache TTL and the
// next tick absorb the cases where the totals fit but no single node does.
// Pods is a float because the overprovisioning multiply applies to all axes.
type Budget struct {
	CPU    float64
	Memory int64
	Pods   float64
}

// Fits reports whether one pod with the given requests is admissible.
func (b Budget) Fits(cpu float64, memory int64) bool {
	return b.CPU >= cpu && b.Memory >= memory && b.Pods >= 1
}

func (b Budget) subtract(cpu float64, memory int64) Budget {
	b.CPU -= cpu
	b.Memory -= memory
	b.Pods--
	return b
}

// clamp floors every axis at zero so admission never sees a negative budget.
func (b Budget) clamp() Budget {
	b.CPU = max(b.CPU, 0)
	b.Memory = max(b.Memory, 0)
	b.Pods = max(b.Pods, 0)
	return b
}

func (b Budget) scale(factor float64) Budget {
	b.CPU *= factor
	b.Memory = int64(float64(b.Memory) * factor)
	b.Pods *= factor
	return b
}
