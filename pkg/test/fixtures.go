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

package test

import (
	"fmt"
	"sync/atomic"

	"github.com/Pallinder/go-randomdata"
	v1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/chubbymaggie/meister/pkg/database"
)

var sequence int64

func nextID() int64 {
	return atomic.AddInt64(&sequence, 1)
}

// Job returns a job row with an assigned id; zero-value fields of the
// override are left at their schema zero (unset hints default downstream).
func Job(overrides ...database.Job) *database.Job {
	job := database.Job{}
	if len(overrides) > 0 {
		job = overrides[0]
	}
	if job.ID == 0 {
		job.ID = nextID()
	}
	if job.Worker == "" {
		job.Worker = database.WorkerRex
	}
	return &job
}

func Crash(kind string) *database.Crash {
	return &database.Crash{ID: nextID(), Kind: kind}
}

func Binary(crashes ...*database.Crash) *database.ChallengeBinaryNode {
	return &database.ChallengeBinaryNode{
		ID:      nextID(),
		Name:    randomdata.SillyName(),
		Crashes: crashes,
	}
}

func Poll() *database.RawRoundPoll {
	return &database.RawRoundPoll{ID: nextID(), Round: randomdata.Number(1, 100)}
}

// Node returns a cluster node with the given capacity.
func Node(cpu, memory string, pods int64) *v1.Node {
	return &v1.Node{
		ObjectMeta: metav1.ObjectMeta{Name: randomdata.SillyName()},
		Status: v1.NodeStatus{
			Capacity: v1.ResourceList{
				v1.ResourceCPU:    resource.MustParse(cpu),
				v1.ResourceMemory: resource.MustParse(memory),
				v1.ResourcePods:   *resource.NewQuantity(pods, resource.DecimalSI),
			},
		},
	}
}

// PodOptions shapes a cluster pod fixture.
type PodOptions struct {
	Name          string
	Phase         v1.PodPhase
	RequestCPU    string
	RequestMemory string
	LimitCPU      string
	LimitMemory   string
}

// Pod returns a single-container pod in the given phase.
func Pod(options PodOptions) *v1.Pod {
	if options.Name == "" {
		options.Name = fmt.Sprintf("worker-%d", nextID())
	}
	if options.Phase == "" {
		options.Phase = v1.PodRunning
	}
	requests := v1.ResourceList{}
	if options.RequestCPU != "" {
		requests[v1.ResourceCPU] = resource.MustParse(options.RequestCPU)
	}
	if options.RequestMemory != "" {
		requests[v1.ResourceMemory] = resource.MustParse(options.RequestMemory)
	}
	limits := v1.ResourceList{}
	if options.LimitCPU != "" {
		limits[v1.ResourceCPU] = resource.MustParse(options.LimitCPU)
	}
	if options.LimitMemory != "" {
		limits[v1.ResourceMemory] = resource.MustParse(options.LimitMemory)
	}
	return &v1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: options.Name, Namespace: metav1.NamespaceDefault},
		Spec: v1.PodSpec{
			Containers: []v1.Container{{
				Name:      options.Name,
				Resources: v1.ResourceRequirements{Requests: requests, Limits: limits},
			}},
		},
		Status: v1.PodStatus{Phase: options.Phase},
	}
}
