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

package scheduler_test

import (
	"context"
	"errors"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/samber/lo"
	v1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
	. "knative.dev/pkg/logging/testing"

	"github.com/chubbymaggie/meister/pkg/apis/config/settings"
	"github.com/chubbymaggie/meister/pkg/cluster"
	"github.com/chubbymaggie/meister/pkg/cluster/resources"
	"github.com/chubbymaggie/meister/pkg/creators"
	"github.com/chubbymaggie/meister/pkg/database"
	"github.com/chubbymaggie/meister/pkg/scheduler"
	"github.com/chubbymaggie/meister/pkg/test"
)

var baseCtx context.Context

func TestAPIs(t *testing.T) {
	baseCtx = TestContextWithLogger(t)
	RegisterFailHandler(Fail)
	RunSpecs(t, "Scheduler")
}

type staticCreator struct {
	name string
	jobs []*database.Job
}

func (c staticCreator) Name() string { return c.name }

func (c staticCreator) Jobs(context.Context) ([]*database.Job, error) { return c.jobs, nil }

type failingCreator struct{}

func (failingCreator) Name() string { return "failing" }

func (failingCreator) Jobs(context.Context) ([]*database.Job, error) {
	return nil, errors.New("connection refused")
}

var _ = Describe("Scheduler", func() {
	var ctx context.Context
	var kube *fake.Clientset
	var client *cluster.Client
	var store *test.Store

	BeforeEach(func() {
		ctx = settings.ToContext(baseCtx, test.Settings())
		kube = fake.NewSimpleClientset()
		client = cluster.NewClient(kube)
		store = test.NewStore()
	})

	newScheduler := func(jobCreators ...creators.Creator) *scheduler.Scheduler {
		return scheduler.NewScheduler(client, resources.NewAccountant(client), store, nil, jobCreators...)
	}
	addNode := func() {
		_, err := kube.CoreV1().Nodes().Create(ctx, test.Node("16", "64Gi", 100), metav1.CreateOptions{})
		Expect(err).ToNot(HaveOccurred())
	}
	getPod := func(name string) *v1.Pod {
		pod, err := kube.CoreV1().Pods(metav1.NamespaceDefault).Get(ctx, name, metav1.GetOptions{})
		Expect(err).ToNot(HaveOccurred())
		return pod
	}

	Describe("pod specs", func() {
		It("should apply the schema defaults when hints are unset", func() {
			job := test.Job()
			newScheduler().Schedule(ctx, job)
			pod := getPod(scheduler.WorkerName(job.ID))
			rr := pod.Spec.Containers[0].Resources
			Expect(cluster.CPUValue(rr.Requests[v1.ResourceCPU])).To(Equal(0.5))
			Expect(cluster.MemoryValue(rr.Requests[v1.ResourceMemory])).To(Equal(int64(512 << 20)))
			Expect(cluster.CPUValue(rr.Limits[v1.ResourceCPU])).To(Equal(1.0))
			Expect(cluster.MemoryValue(rr.Limits[v1.ResourceMemory])).To(Equal(int64(2048 << 20)))
		})
		It("should pad a memory limit below its request to twice the request", func() {
			job := test.Job(database.Job{
				RequestCPU:    lo.ToPtr(0.5),
				RequestMemory: lo.ToPtr(int64(512)),
				LimitMemory:   lo.ToPtr(int64(256)),
			})
			newScheduler().Schedule(ctx, job)
			rr := getPod(scheduler.WorkerName(job.ID)).Spec.Containers[0].Resources
			Expect(cluster.CPUValue(rr.Limits[v1.ResourceCPU])).To(Equal(1.0))
			Expect(cluster.MemoryValue(rr.Limits[v1.ResourceMemory])).To(Equal(int64(1024 << 20)))
		})
		It("should pad a cpu limit below its request to twice the request", func() {
			job := test.Job(database.Job{
				RequestCPU: lo.ToPtr(2.0),
				LimitCPU:   lo.ToPtr(1.0),
			})
			newScheduler().Schedule(ctx, job)
			rr := getPod(scheduler.WorkerName(job.ID)).Spec.Containers[0].Resources
			Expect(cluster.CPUValue(rr.Limits[v1.ResourceCPU])).To(Equal(4.0))
		})
		It("should always keep limits at or above requests", func() {
			for _, job := range []*database.Job{
				test.Job(),
				test.Job(database.Job{RequestCPU: lo.ToPtr(4.0), LimitCPU: lo.ToPtr(0.5)}),
				test.Job(database.Job{RequestMemory: lo.ToPtr(int64(8192)), LimitMemory: lo.ToPtr(int64(64))}),
				test.Job(database.Job{RequestCPU: lo.ToPtr(1.0), LimitCPU: lo.ToPtr(2.0)}),
			} {
				newScheduler().Schedule(ctx, job)
				rr := getPod(scheduler.WorkerName(job.ID)).Spec.Containers[0].Resources
				Expect(cluster.CPUValue(rr.Limits[v1.ResourceCPU])).To(BeNumerically(">=", cluster.CPUValue(rr.Requests[v1.ResourceCPU])))
				Expect(cluster.MemoryValue(rr.Limits[v1.ResourceMemory])).To(BeNumerically(">=", cluster.MemoryValue(rr.Requests[v1.ResourceMemory])))
			}
		})
		It("should always mount an in-memory /dev/shm", func() {
			job := test.Job()
			newScheduler().Schedule(ctx, job)
			pod := getPod(scheduler.WorkerName(job.ID))
			volume, ok := lo.Find(pod.Spec.Volumes, func(v v1.Volume) bool { return v.Name == "devshm" })
			Expect(ok).To(BeTrue())
			Expect(volume.EmptyDir.Medium).To(Equal(v1.StorageMediumMemory))
			Expect(pod.Spec.Containers[0].VolumeMounts).To(ContainElement(v1.VolumeMount{Name: "devshm", MountPath: "/dev/shm"}))
		})
		It("should run privileged with /dev/kvm when the job asks for kvm", func() {
			job := test.Job(database.Job{KVMAccess: true})
			newScheduler().Schedule(ctx, job)
			pod := getPod(scheduler.WorkerName(job.ID))
			Expect(lo.FromPtr(pod.Spec.Containers[0].SecurityContext.Privileged)).To(BeTrue())
			Expect(pod.Spec.Containers[0].VolumeMounts).To(ContainElement(v1.VolumeMount{Name: "devkvm", MountPath: "/dev/kvm"}))
		})
		It("should not run privileged without kvm access", func() {
			job := test.Job()
			newScheduler().Schedule(ctx, job)
			pod := getPod(scheduler.WorkerName(job.ID))
			Expect(pod.Spec.Containers[0].SecurityContext.Privileged).To(BeNil())
		})
		It("should mount /data when the job asks for data access", func() {
			job := test.Job(database.Job{DataAccess: true})
			newScheduler().Schedule(ctx, job)
			pod := getPod(scheduler.WorkerName(job.ID))
			Expect(pod.Spec.Containers[0].VolumeMounts).To(ContainElement(v1.VolumeMount{Name: "data", MountPath: "/data"}))
		})
		It("should select the restart policy from the job flag", func() {
			restarting := test.Job(database.Job{Restart: true})
			oneshot := test.Job()
			newScheduler().Schedule(ctx, restarting)
			newScheduler().Schedule(ctx, oneshot)
			Expect(getPod(scheduler.WorkerName(restarting.ID)).Spec.RestartPolicy).To(Equal(v1.RestartPolicyOnFailure))
			Expect(getPod(scheduler.WorkerName(oneshot.ID)).Spec.RestartPolicy).To(Equal(v1.RestartPolicyNever))
		})
		It("should label and parameterize the worker", func() {
			job := test.Job(database.Job{Worker: database.WorkerRex})
			newScheduler().Schedule(ctx, job)
			pod := getPod(scheduler.WorkerName(job.ID))
			Expect(pod.Labels).To(HaveKeyWithValue("app", "worker"))
			Expect(pod.Labels).To(HaveKeyWithValue("worker", "rex"))
			Expect(pod.Labels).To(HaveKey("job_id"))
			names := lo.Map(pod.Spec.Containers[0].Env, func(e v1.EnvVar, _ int) string { return e.Name })
			Expect(names).To(ContainElements("JOB_ID", "POSTGRES_DATABASE_USER", "POSTGRES_DATABASE_PASSWORD", "POSTGRES_DATABASE_NAME"))
			Expect(names).ToNot(ContainElement("POSTGRES_USE_SLAVES"))
		})
		It("should forward the read-slave flag when configured", func() {
			opts := test.Settings()
			opts.PostgresUseSlaves = true
			ctx = settings.ToContext(baseCtx, opts)
			job := test.Job()
			newScheduler().Schedule(ctx, job)
			names := lo.Map(getPod(scheduler.WorkerName(job.ID)).Spec.Containers[0].Env, func(e v1.EnvVar, _ int) string { return e.Name })
			Expect(names).To(ContainElement("POSTGRES_USE_SLAVES"))
		})
	})

	Describe("dispatch", func() {
		It("should reschedule idempotently", func() {
			job := test.Job()
			s := newScheduler()
			s.Schedule(ctx, job)
			s.Schedule(ctx, job)
			pods, err := client.ListPods(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(pods).To(HaveLen(1))
			Expect(pods[0].Name).To(Equal(scheduler.WorkerName(job.ID)))
		})
		It("should dispatch every admitted candidate in a tick", func() {
			addNode()
			jobs := []*database.Job{test.Job(), test.Job(), test.Job()}
			newScheduler(staticCreator{name: "static", jobs: jobs}).Tick(ctx)
			pods, err := client.ListPods(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(pods).To(HaveLen(3))
		})
		It("should hold back jobs the budget cannot fit", func() {
			addNode()
			fits := test.Job()
			tooBig := test.Job(database.Job{RequestCPU: lo.ToPtr(64.0)})
			newScheduler(staticCreator{name: "static", jobs: []*database.Job{fits, tooBig}}).Tick(ctx)
			pods, err := client.ListPods(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(pods).To(HaveLen(1))
			Expect(pods[0].Name).To(Equal(scheduler.WorkerName(fits.ID)))
		})
		It("should dispatch nothing when the cluster has no capacity", func() {
			// no nodes registered, so the budget has no pod slots
			newScheduler(staticCreator{name: "static", jobs: []*database.Job{test.Job()}}).Tick(ctx)
			pods, err := client.ListPods(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(pods).To(BeEmpty())
		})
		It("should isolate a failing creator from the rest of the tick", func() {
			addNode()
			jobs := []*database.Job{test.Job(), test.Job()}
			newScheduler(failingCreator{}, staticCreator{name: "static", jobs: jobs}).Tick(ctx)
			pods, err := client.ListPods(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(pods).To(HaveLen(2))
		})
	})

	Describe("cluster-absent mode", func() {
		BeforeEach(func() {
			ctx = settings.ToContext(baseCtx, test.ClusterAbsentSettings())
		})
		It("should persist priorities without touching the cluster", func() {
			jobs := []*database.Job{
				test.Job(database.Job{Priority: lo.ToPtr(100)}),
				test.Job(database.Job{Priority: lo.ToPtr(5)}),
			}
			// a nil cluster client proves no cluster call is ever made
			s := scheduler.NewScheduler(nil, nil, store, nil, staticCreator{name: "static", jobs: jobs})
			Expect(s.Run(ctx)).To(Succeed())
			Expect(store.AtomicCalls).To(Equal(1))
			Expect(store.Priorities).To(HaveKeyWithValue(jobs[0].ID, 100))
			Expect(store.Priorities).To(HaveKeyWithValue(jobs[1].ID, 5))
		})
	})
})
