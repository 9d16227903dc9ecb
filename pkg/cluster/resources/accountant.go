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
	"context"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"
	v1 "k8s.io/api/core/v1"
	"knative.dev/pkg/logging"

	"github.com/chubbymaggie/meister/pkg/apis/config/settings"
	"github.com/chubbymaggie/meister/pkg/cluster"
	"github.com/chubbymaggie/meister/pkg/utils/functional"
	"github.com/chubbymaggie/meister/pkg/utils/pretty"
)

const availableCacheKey = "available"

// Accountant derives and briefly caches the cluster's schedulable budget.
// It is owned by the single-threaded scheduler loop; the cache exists so that
// repeated admission checks within a tick see one point-in-time snapshot.
type Accountant struct {
	client   *cluster.Client
	cache    *cache.Cache
	capacity *Budget
	monitor  *pretty.ChangeMonitor
}

type Options struct {
	CacheTTL time.Duration
}

func WithCacheTTL(d time.Duration) functional.Option[Options] {
	return func(o Options) Options {
		o.CacheTTL = d
		return o
	}
}

func NewAccountant(client *cluster.Client, opts ...functional.Option[Options]) *Accountant {
	options := functional.ResolveOptions(opts...)
	if options.CacheTTL == 0 {
		options.CacheTTL = time.Second
	}
	return &Accountant{
		client:  client,
		cache:   cache.New(options.CacheTTL, options.CacheTTL/2),
		monitor: pretty.NewChangeMonitor(),
	}
}

// Available returns the current budget: total node capacity minus the cost of
// every pending or running pod, clamped non-negative and scaled by the
// overprovisioning factor. Terminal pods spotted during the walk are
// garbage-collected best-effort.
func (a *Accountant) Available(ctx context.Context) (Budget, error) {
	if cached, ok := a.cache.Get(availableCacheKey); ok {
		logging.FromContext(ctx).Debug("returning cached budget")
		return cached.(Budget), nil
	}

	capacity, err := a.totalCapacity(ctx)
	if err != nil {
		return Budget{}, err
	}
	pods, err := a.client.ListPods(ctx)
	if err != nil {
		return Budget{}, err
	}

	occupants := a.classify(ctx, pods)

	available := capacity
	for _, pod := range occupants {
		if pod == nil {
			continue
		}
		cpu, memory := cluster.PodRequests(pod)
		available = available.subtract(cpu, memory)
	}
	available = available.clamp().scale(settings.FromContext(ctx).Overprovisioning)

	a.cache.SetDefault(availableCacheKey, available)
	availableCPU.Set(available.CPU)
	availableMemory.Set(float64(available.Memory))
	availablePods.Set(available.Pods)
	if a.monitor.HasChanged(availableCacheKey, available) {
		logging.FromContext(ctx).Debugf("resources available: %v cores, %d GiB, %v pods",
			available.CPU, available.Memory/(1<<30), available.Pods)
	}
	return available, nil
}

// classify walks the pod list on a bounded pool: occupants (pending/running)
// come back non-nil, terminal pods are deleted in place, the rest are logged.
func (a *Accountant) classify(ctx context.Context, pods []v1.Pod) []*v1.Pod {
	occupants := make([]*v1.Pod, len(pods))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(settings.FromContext(ctx).NumThreads)
	for i := range pods {
		g.Go(func() error {
			pod := &pods[i]
			switch pod.Status.Phase {
			case v1.PodPending, v1.PodRunning:
				occupants[i] = pod
			case v1.PodSucceeded:
				logging.FromContext(gctx).Debugf("pod %s succeeded", pod.Name)
				if err := a.client.DeletePod(gctx, pod.Name); err != nil {
					logging.FromContext(gctx).Errorf("deleting succeeded pod %s, %s", pod.Name, err)
				}
			case v1.PodFailed:
				logging.FromContext(gctx).Warnf("pod %s failed", pod.Name)
				if err := a.client.DeletePod(gctx, pod.Name); err != nil {
					logging.FromContext(gctx).Errorf("deleting failed pod %s, %s", pod.Name, err)
				}
			case v1.PodUnknown:
				logging.FromContext(gctx).Warnf("pod %s in unknown state", pod.Name)
			default:
				logging.FromContext(gctx).Debugf("pod %s is in a weird state %q", pod.Name, pod.Status.Phase)
			}
			return nil
		})
	}
	_ = g.Wait()
	return occupants
}

// totalCapacity sums node capacity once; the node set is treated as stable
// within a process lifetime.
func (a *Accountant) totalCapacity(ctx context.Context) (Budget, error) {
	if a.capacity != nil {
		return *a.capacity, nil
	}
	nodes, err := a.client.ListNodes(ctx)
	if err != nil {
		return Budget{}, err
	}
	capacity := Budget{}
	for i := range nodes {
		cpu, memory, pods := cluster.NodeCapacity(&nodes[i])
		capacity.CPU += cpu
		capacity.Memory += memory
		capacity.Pods += float64(pods)
	}
	logging.FromContext(ctx).Debugf("total cluster capacity: %v cores, %d GiB, %v pods",
		capacity.CPU, capacity.Memory/(1<<30), capacity.Pods)
	a.capacity = &capacity
	return capacity, nil
}
