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

package database

import (
	"encoding/json"
)

// Worker tags discriminate job rows by kind. The tag selects the behavior of
// the worker image; the scheduler never interprets it beyond labeling.
const (
	WorkerRex           = "rex"
	WorkerPollSanitizer = "pollsanitizer"
)

// Schema defaults applied when a job row leaves its resource hints unset.
// Memory amounts are MiB throughout the job schema.
const (
	DefaultRequestCPU    float64 = 0.5
	DefaultRequestMemory int64   = 512
	DefaultLimitCPU      float64 = 1
	DefaultLimitMemory   int64   = 2048
)

// Job is one unit of pending work. Rows are inserted by creators, read by the
// scheduler and deleted by external lifecycle rules; the only mutation the
// orchestrator performs is persisting priority in cluster-absent mode.
type Job struct {
	ID            int64
	Worker        string
	Payload       json.RawMessage
	RequestCPU    *float64
	RequestMemory *int64
	LimitCPU      *float64
	LimitMemory   *int64
	KVMAccess     bool
	DataAccess    bool
	Restart       bool
	Priority      *int
}

// Crash is a crashing input attached to a challenge binary. Kind is one of
// the creators.Vulnerability values.
type Crash struct {
	ID   int64
	Kind string
}

// ChallengeBinaryNode is a challenge binary with its attached crashes. The
// store owns both sides of the relation; this is a read-only view.
type ChallengeBinaryNode struct {
	ID      int64
	Name    string
	Crashes []*Crash
}

// RawRoundPoll is a poll captured from the competition network for one round.
type RawRoundPoll struct {
	ID        int64
	Round     int
	Sanitized bool
}

// Team is a competitor as reported by the competition infrastructure.
type Team struct {
	ID   int64
	Name string
}
