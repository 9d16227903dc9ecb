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
	"context"
	"strconv"

	"github.com/samber/lo"
	v1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/chubbymaggie/meister/pkg/apis/config/settings"
	"github.com/chubbymaggie/meister/pkg/database"
)

// podTemplate builds the worker pod spec for a job. Workers are untrusted
// binaries: they always get an in-memory /dev/shm for scratch, and host
// devices are mounted only when the job's capability flags ask for them.
func (s *Scheduler) podTemplate(ctx context.Context, job *database.Job) *v1.Pod {
	opts := settings.FromContext(ctx)
	name := WorkerName(job.ID)

	requestCPU := lo.FromPtrOr(job.RequestCPU, database.DefaultRequestCPU)
	requestMemory := lo.FromPtrOr(job.RequestMemory, database.DefaultRequestMemory)
	limitCPU := resolveLimit(job.LimitCPU, requestCPU, database.DefaultLimitCPU)
	limitMemory := resolveLimit(job.LimitMemory, requestMemory, database.DefaultLimitMemory)

	volumes := []v1.Volume{{
		Name:         "devshm",
		VolumeSource: v1.VolumeSource{EmptyDir: &v1.EmptyDirVolumeSource{Medium: v1.StorageMediumMemory}},
	}}
	volumeMounts := []v1.VolumeMount{{Name: "devshm", MountPath: "/dev/shm"}}
	securityContext := &v1.SecurityContext{}

	if job.KVMAccess {
		volumes = append(volumes, v1.Volume{
			Name:         "devkvm",
			VolumeSource: v1.VolumeSource{HostPath: &v1.HostPathVolumeSource{Path: "/dev/kvm"}},
		})
		volumeMounts = append(volumeMounts, v1.VolumeMount{Name: "devkvm", MountPath: "/dev/kvm"})
		securityContext.Privileged = lo.ToPtr(true)
	}
	if job.DataAccess {
		volumes = append(volumes, v1.Volume{
			Name:         "data",
			VolumeSource: v1.VolumeSource{HostPath: &v1.HostPathVolumeSource{Path: "/data"}},
		})
		volumeMounts = append(volumeMounts, v1.VolumeMount{Name: "data", MountPath: "/data"})
	}

	env := []v1.EnvVar{
		{Name: "JOB_ID", Value: strconv.FormatInt(job.ID, 10)},
	}
	if opts.PostgresUseSlaves {
		env = append(env, v1.EnvVar{Name: "POSTGRES_USE_SLAVES", Value: "true"})
	}
	env = append(env,
		v1.EnvVar{Name: "POSTGRES_DATABASE_USER", Value: opts.PostgresUser},
		v1.EnvVar{Name: "POSTGRES_DATABASE_PASSWORD", Value: opts.PostgresPassword},
		v1.EnvVar{Name: "POSTGRES_DATABASE_NAME", Value: opts.PostgresDatabase},
		v1.EnvVar{Name: "POSTGRES_MASTER_CONNECTIONS", Value: "1"},
		v1.EnvVar{Name: "POSTGRES_SLAVE_CONNECTIONS", Value: "1"},
	)

	return &v1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name: name,
			Labels: map[string]string{
				"app":    "worker",
				"worker": job.Worker,
				"job_id": strconv.FormatInt(job.ID, 10),
			},
		},
		Spec: v1.PodSpec{
			RestartPolicy: lo.Ternary(job.Restart, v1.RestartPolicyOnFailure, v1.RestartPolicyNever),
			Containers: []v1.Container{{
				Name:            name,
				Image:           opts.WorkerImage,
				ImagePullPolicy: v1.PullPolicy(opts.WorkerImagePullPolicy),
				Resources: v1.ResourceRequirements{
					Requests: v1.ResourceList{
						v1.ResourceCPU:    cpuQuantity(requestCPU),
						v1.ResourceMemory: memoryQuantity(requestMemory),
					},
					Limits: v1.ResourceList{
						v1.ResourceCPU:    cpuQuantity(limitCPU),
						v1.ResourceMemory: memoryQuantity(limitMemory),
					},
				},
				Env:             env,
				VolumeMounts:    volumeMounts,
				SecurityContext: securityContext,
			}},
			Volumes: volumes,
		},
	}
}

// resolveLimit keeps the invariant limit >= request: an unset limit takes the
// schema default, a limit below its request is replaced with 2x the request
// for padding.
func resolveLimit[T int64 | float64](limit *T, request T, fallback T) T {
	if limit == nil {
		return fallback
	}
	if request < *limit {
		return *limit
	}
	return request * 2
}

func cpuQuantity(cores float64) resource.Quantity {
	return *resource.NewMilliQuantity(int64(cores*1000), resource.DecimalSI)
}

// memoryQuantity converts the job schema's MiB amounts to a quantity.
func memoryQuantity(mib int64) resource.Quantity {
	return *resource.NewQuantity(mib<<20, resource.BinarySI)
}
