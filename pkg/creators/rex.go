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

package creators

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/samber/lo"
	"knative.dev/pkg/logging"

	"github.com/chubbymaggie/meister/pkg/database"
)

// Crash kinds as classified by the crash triager.
const (
	IPOverwrite             = "ip_overwrite"
	PartialIPOverwrite      = "partial_ip_overwrite"
	UncontrolledIPOverwrite = "uncontrolled_ip_overwrite"
	BPOverwrite             = "bp_overwrite"
	PartialBPOverwrite      = "partial_bp_overwrite"
	WriteWhatWhere          = "write_what_where"
	WriteXWhere             = "write_x_where"
	// UncontrolledWrite is a write where the destination address is uncontrolled
	UncontrolledWrite = "uncontrolled_write"
	ArbitraryRead     = "arbitrary_read"
	NullDereference   = "null_dereference"
	Unknown           = "unknown"
)

// priorityMap orders crash kinds by exploitability. The zero-priority kinds
// are filtered before this map is consulted; they remain as a safety net.
var priorityMap = map[string]int{
	IPOverwrite:             100,
	PartialIPOverwrite:      80,
	ArbitraryRead:           75,
	WriteWhatWhere:          50,
	WriteXWhere:             25,
	BPOverwrite:             10, // doesn't appear to be exploitable in CGC
	PartialBPOverwrite:      5,
	UncontrolledWrite:       0,
	UncontrolledIPOverwrite: 0,
	NullDereference:         0,
}

var ignoredKinds = map[string]struct{}{
	NullDereference:         {},
	UncontrolledIPOverwrite: {},
	UncontrolledWrite:       {},
	Unknown:                 {},
}

// RexCreator emits one exploitation job per exploitable crash per binary.
type RexCreator struct {
	store database.Store
}

var _ Creator = (*RexCreator)(nil)

func NewRexCreator(store database.Store) *RexCreator {
	return &RexCreator{store: store}
}

func (c *RexCreator) Name() string {
	return "rex"
}

func (c *RexCreator) Jobs(ctx context.Context) ([]*database.Job, error) {
	cbns, err := c.store.ChallengeBinaries(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing challenge binaries, %w", err)
	}
	var jobs []*database.Job
	for _, cbn := range cbns {
		for _, crash := range cbn.Crashes {
			if _, ignored := ignoredKinds[crash.Kind]; ignored {
				continue
			}
			priority, ok := priorityMap[crash.Kind]
			if !ok {
				logging.FromContext(ctx).Errorf("no priority for crash kind %q, this is a bug", crash.Kind)
				continue
			}
			// Rex occasionally needs far more memory than this; bumping the
			// limit per-crash is tracked against triager size estimates.
			job, err := c.store.GetOrCreateJob(ctx, &database.Job{
				Worker:      database.WorkerRex,
				Payload:     lo.Must(json.Marshal(map[string]int64{"crash_id": crash.ID})),
				LimitCPU:    lo.ToPtr(1.0),
				LimitMemory: lo.ToPtr(int64(10 * 1024)),
			})
			if err != nil {
				return jobs, fmt.Errorf("upserting rex job for crash %d, %w", crash.ID, err)
			}
			job.Priority = lo.ToPtr(priority)
			logging.FromContext(ctx).Debugf("yielding rex job for binary %d crash %d priority %d",
				cbn.ID, crash.ID, priority)
			jobs = append(jobs, job)
		}
	}
	return jobs, nil
}
