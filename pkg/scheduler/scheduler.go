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

// Package scheduler drives the control loop: fan out the creators, drain the
// merged stream through the brain, and dispatch each admitted candidate as a
// worker pod. One iteration is a tick; a tick completes or crashes, there is
// no cancellation inside it.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
	"knative.dev/pkg/logging"

	"github.com/chubbymaggie/meister/pkg/apis/config/settings"
	"github.com/chubbymaggie/meister/pkg/brains"
	"github.com/chubbymaggie/meister/pkg/cluster"
	"github.com/chubbymaggie/meister/pkg/cluster/resources"
	"github.com/chubbymaggie/meister/pkg/creators"
	"github.com/chubbymaggie/meister/pkg/database"
)

type Scheduler struct {
	cluster    *cluster.Client
	accountant *resources.Accountant
	store      database.Store
	brain      brains.Brain
	creators   []creators.Creator
}

func NewScheduler(client *cluster.Client, accountant *resources.Accountant, store database.Store,
	brain brains.Brain, jobCreators ...creators.Creator) *Scheduler {
	if brain == nil {
		brain = brains.NewToadBrain()
	}
	return &Scheduler{
		cluster:    client,
		accountant: accountant,
		store:      store,
		brain:      brain,
		creators:   jobCreators,
	}
}

// WorkerName derives the pod name for a job; the mapping is a bijection for
// live pods.
func WorkerName(jobID int64) string {
	return fmt.Sprintf("worker-%d", jobID)
}

// Run executes until ctx is cancelled. Without a cluster host configured it
// performs a single priority-backfill pass and returns; otherwise it ticks on
// the configured sleepytime cadence.
func (s *Scheduler) Run(ctx context.Context) error {
	if settings.FromContext(ctx).ClusterAbsent() {
		logging.FromContext(ctx).Info("no cluster configured, backfilling priorities only")
		return s.backfill(ctx)
	}
	logging.FromContext(ctx).Debugf("scheduler sleepytime: %s", settings.FromContext(ctx).Sleepytime)
	for {
		s.Tick(ctx)
		logging.FromContext(ctx).Debug("sleepytime...")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(settings.FromContext(ctx).Sleepytime):
		}
	}
}

// Tick runs one scheduling pass. Nothing a tick encounters is fatal; every
// failure is logged and retried naturally on the next tick.
func (s *Scheduler) Tick(ctx context.Context) {
	for _, candidate := range s.brain.Sort(ctx, s.pending(ctx)) {
		if !s.admit(ctx, candidate.Job) {
			continue
		}
		s.Schedule(ctx, candidate.Job)
	}
}

// pending fans the creators out on a bounded pool and concatenates their
// streams. A failing creator contributes whatever it yielded before failing;
// the others are unaffected.
func (s *Scheduler) pending(ctx context.Context) []*database.Job {
	results := make([][]*database.Job, len(s.creators))
	g := &errgroup.Group{}
	g.SetLimit(settings.FromContext(ctx).NumThreads)
	for i, creator := range s.creators {
		g.Go(func() error {
			jobs, err := creator.Jobs(ctx)
			if err != nil {
				creatorErrors.With(map[string]string{creatorLabel: creator.Name()}).Inc()
				logging.FromContext(ctx).Errorf("creator %s failed, truncating its stream, %s", creator.Name(), err)
			}
			results[i] = jobs
			return nil
		})
	}
	_ = g.Wait()
	return lo.Flatten(results)
}

// admit consults the accountant and holds the job back for a later tick when
// its requests exceed any axis of the current budget.
func (s *Scheduler) admit(ctx context.Context, job *database.Job) bool {
	budget, err := s.accountant.Available(ctx)
	if err != nil {
		logging.FromContext(ctx).Errorf("budget unavailable, holding job %d, %s", job.ID, err)
		return false
	}
	cpu := lo.FromPtrOr(job.RequestCPU, database.DefaultRequestCPU)
	memory := lo.FromPtrOr(job.RequestMemory, database.DefaultRequestMemory) << 20
	if !budget.Fits(cpu, memory) {
		admissionSkips.Inc()
		logging.FromContext(ctx).Debugf("job %d does not fit the budget, leaving it for the next tick", job.ID)
		return false
	}
	return true
}

// Schedule dispatches one job: delete any prior worker pod with the job's
// name, then create a fresh one. Re-scheduling is therefore idempotent.
func (s *Scheduler) Schedule(ctx context.Context, job *database.Job) {
	logging.FromContext(ctx).Debugf("scheduling job %d", job.ID)
	s.terminate(ctx, WorkerName(job.ID))
	if err := s.cluster.CreatePod(ctx, s.podTemplate(ctx, job)); err != nil {
		if cluster.IsAlreadyExists(err) {
			logging.FromContext(ctx).Warnf("job already scheduled %d", job.ID)
			return
		}
		logging.FromContext(ctx).Errorf("creating pod for job %d, %s", job.ID, err)
		return
	}
	scheduledJobs.With(map[string]string{workerLabel: job.Worker}).Inc()
}

// terminate deletes the named worker pod, best effort.
func (s *Scheduler) terminate(ctx context.Context, name string) {
	if err := s.cluster.DeletePod(ctx, name); err != nil {
		logging.FromContext(ctx).Errorf("terminating pod %s, %s", name, err)
		return
	}
	terminatedPods.Inc()
}

// backfill is cluster-absent mode: drain the brain inside one transaction and
// persist every candidate's priority. No cluster calls are made; this is the
// dry-run / offline-replay path.
func (s *Scheduler) backfill(ctx context.Context) error {
	return s.store.Atomic(ctx, func(ctx context.Context, tx database.Store) error {
		for _, candidate := range s.brain.Sort(ctx, s.pending(ctx)) {
			if err := tx.SetJobPriority(ctx, candidate.Job.ID, candidate.Priority); err != nil {
				return err
			}
		}
		return nil
	})
}
