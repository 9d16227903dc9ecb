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

package brains

import (
	"context"
	"sort"

	"github.com/samber/lo"

	"github.com/chubbymaggie/meister/pkg/database"
)

// ToadBrain is the default brain: a stable sort on the priority the creators
// assigned, so ties keep their arrival order within a tick.
type ToadBrain struct{}

var _ Brain = ToadBrain{}

func NewToadBrain() ToadBrain {
	return ToadBrain{}
}

func (ToadBrain) Sort(_ context.Context, jobs []*database.Job) []Candidate {
	candidates := lo.Map(jobs, func(job *database.Job, _ int) Candidate {
		return Candidate{Job: job, Priority: lo.FromPtr(job.Priority)}
	})
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Priority > candidates[j].Priority
	})
	return candidates
}
