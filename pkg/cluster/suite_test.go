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

package cluster_test

import (
	"context"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
	. "knative.dev/pkg/logging/testing"

	"github.com/chubbymaggie/meister/pkg/cluster"
	"github.com/chubbymaggie/meister/pkg/test"
)

var ctx context.Context

func TestAPIs(t *testing.T) {
	ctx = TestContextWithLogger(t)
	RegisterFailHandler(Fail)
	RunSpecs(t, "Cluster")
}

var _ = Describe("Client", func() {
	var client *cluster.Client
	var kube *fake.Clientset

	BeforeEach(func() {
		kube = fake.NewSimpleClientset()
		client = cluster.NewClient(kube)
	})
	It("should create and list pods", func() {
		Expect(client.CreatePod(ctx, test.Pod(test.PodOptions{Name: "worker-1"}))).To(Succeed())
		pods, err := client.ListPods(ctx)
		Expect(err).ToNot(HaveOccurred())
		Expect(pods).To(HaveLen(1))
		Expect(pods[0].Name).To(Equal("worker-1"))
	})
	It("should surface AlreadyExists on duplicate create", func() {
		pod := test.Pod(test.PodOptions{Name: "worker-1"})
		Expect(client.CreatePod(ctx, pod)).To(Succeed())
		err := client.CreatePod(ctx, pod)
		Expect(err).To(HaveOccurred())
		Expect(cluster.IsAlreadyExists(err)).To(BeTrue())
	})
	It("should treat deleting an absent pod as success", func() {
		Expect(client.DeletePod(ctx, "worker-404")).To(Succeed())
	})
	It("should delete an existing pod", func() {
		Expect(client.CreatePod(ctx, test.Pod(test.PodOptions{Name: "worker-1"}))).To(Succeed())
		Expect(client.DeletePod(ctx, "worker-1")).To(Succeed())
		pods, err := client.ListPods(ctx)
		Expect(err).ToNot(HaveOccurred())
		Expect(pods).To(BeEmpty())
	})
	It("should report pod existence", func() {
		Expect(client.CreatePod(ctx, test.Pod(test.PodOptions{Name: "worker-1"}))).To(Succeed())
		exists, err := client.PodExists(ctx, "worker-1")
		Expect(err).ToNot(HaveOccurred())
		Expect(exists).To(BeTrue())
		exists, err = client.PodExists(ctx, "worker-2")
		Expect(err).ToNot(HaveOccurred())
		Expect(exists).To(BeFalse())
	})
	It("should list nodes", func() {
		_, err := kube.CoreV1().Nodes().Create(ctx, test.Node("4", "8Gi", 10), metav1.CreateOptions{})
		Expect(err).ToNot(HaveOccurred())
		nodes, err := client.ListNodes(ctx)
		Expect(err).ToNot(HaveOccurred())
		Expect(nodes).To(HaveLen(1))
	})
})

var _ = Describe("Quantities", func() {
	It("should treat the m suffix as milli-cores", func() {
		Expect(cluster.CPUValue(resource.MustParse("1500m"))).To(Equal(1.5))
		Expect(cluster.CPUValue(resource.MustParse("250m"))).To(Equal(0.25))
	})
	It("should treat a bare cpu value as cores", func() {
		Expect(cluster.CPUValue(resource.MustParse("4"))).To(Equal(4.0))
	})
	It("should treat Ki, Mi and Gi as binary multipliers", func() {
		Expect(cluster.MemoryValue(resource.MustParse("1Ki"))).To(Equal(int64(1024)))
		Expect(cluster.MemoryValue(resource.MustParse("2Mi"))).To(Equal(int64(2 * 1024 * 1024)))
		Expect(cluster.MemoryValue(resource.MustParse("2Gi"))).To(Equal(int64(2 * 1024 * 1024 * 1024)))
	})
	It("should treat a bare memory value as bytes", func() {
		Expect(cluster.MemoryValue(resource.MustParse("1048576"))).To(Equal(int64(1048576)))
	})
	It("should read pod requests", func() {
		cpu, memory := cluster.PodRequests(test.Pod(test.PodOptions{RequestCPU: "1500m", RequestMemory: "2Gi"}))
		Expect(cpu).To(Equal(1.5))
		Expect(memory).To(Equal(int64(2 * 1024 * 1024 * 1024)))
	})
	It("should fall back to limits when requests are absent", func() {
		cpu, memory := cluster.PodRequests(test.Pod(test.PodOptions{LimitCPU: "2", LimitMemory: "1Gi"}))
		Expect(cpu).To(Equal(2.0))
		Expect(memory).To(Equal(int64(1 << 30)))
	})
	It("should fall back to zero when neither is set", func() {
		cpu, memory := cluster.PodRequests(test.Pod(test.PodOptions{}))
		Expect(cpu).To(BeZero())
		Expect(memory).To(BeZero())
	})
	It("should read node capacity", func() {
		cpu, memory, pods := cluster.NodeCapacity(test.Node("4", "8Gi", 10))
		Expect(cpu).To(Equal(4.0))
		Expect(memory).To(Equal(int64(8 << 30)))
		Expect(pods).To(Equal(int64(10)))
	})
})
