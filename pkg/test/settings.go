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
	"time"

	"github.com/chubbymaggie/meister/pkg/apis/config/settings"
)

// Settings returns a valid cluster-present configuration for tests.
func Settings() settings.Settings {
	return settings.Settings{
		ClusterHost:           "10.0.0.1",
		NumThreads:            4,
		Overprovisioning:      1.0,
		Sleepytime:            10 * time.Millisecond,
		WorkerImage:           "registry.example.com/worker:latest",
		WorkerImagePullPolicy: "IfNotPresent",
		PostgresHost:          "postgres",
		PostgresPort:          5432,
		PostgresUser:          "farnsworth",
		PostgresPassword:      "hunter2",
		PostgresDatabase:      "farnsworth",
	}
}

// ClusterAbsentSettings returns a valid configuration without a cluster host.
func ClusterAbsentSettings() settings.Settings {
	s := Settings()
	s.ClusterHost = ""
	return s
}
