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

// Package brains totally orders candidate jobs for dispatch. A brain is a
// strategy the scheduler treats as opaque; the only contract is that its
// output is non-increasing in priority, deterministic within a tick, and that
// it never mutates the jobs it is handed.
package brains

import (
	"context"

	"github.com/chubbymaggie/meister/pkg/database"
)

// Candidate pairs a job with the priority the brain scored it at. Candidates
// live for one scheduling tick.
type Candidate struct {
	Job      *database.Job
	Priority int
}

type Brain interface {
	// Sort consumes an unordered job stream and emits it in non-increasing
	// priority order. Implementations may buffer the full stream.
	Sort(ctx context.Context, jobs []*database.Job) []Candidate
}
