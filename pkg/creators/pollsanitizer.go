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

// PollSanitizerCreator inserts one sanitizer job per unsanitized raw poll and
// yields nothing: sanitizer workers pick their rows up from the store
// directly, so no pod is dispatched for them here.
type PollSanitizerCreator struct {
	store database.Store
}

var _ Creator = (*PollSanitizerCreator)(nil)

func NewPollSanitizerCreator(store database.Store) *PollSanitizerCreator {
	return &PollSanitizerCreator{store: store}
}

func (c *PollSanitizerCreator) Name() string {
	return "pollsanitizer"
}

func (c *PollSanitizerCreator) Jobs(ctx context.Context) ([]*database.Job, error) {
	polls, err := c.store.UnsanitizedPolls(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing unsanitized polls, %w", err)
	}
	for _, poll := range polls {
		if _, err := c.store.GetOrCreateJob(ctx, &database.Job{
			Worker:  database.WorkerPollSanitizer,
			Payload: lo.Must(json.Marshal(map[string]int64{"rrp_id": poll.ID})),
		}); err != nil {
			return nil, fmt.Errorf("upserting sanitizer job for poll %d, %w", poll.ID, err)
		}
		logging.FromContext(ctx).Debugf("created sanitizer job for poll %d", poll.ID)
	}
	return nil, nil
}
