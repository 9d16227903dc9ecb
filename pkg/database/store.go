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
	"context"
	"encoding/json"
)

// Store is the state-store capability consumed by creators, the scheduler and
// the evaluator. The schema behind it is shared with the workers; the
// orchestrator consumes it but does not own it.
type Store interface {
	// ChallengeBinaries returns every known binary with its attached crashes.
	ChallengeBinaries(ctx context.Context) ([]*ChallengeBinaryNode, error)
	// UnsanitizedPolls returns the raw round-polls not yet sanitized.
	UnsanitizedPolls(ctx context.Context) ([]*RawRoundPoll, error)
	// GetOrCreateJob inserts the job if no row with the same worker tag and
	// payload exists, and returns the persisted row either way.
	GetOrCreateJob(ctx context.Context, job *Job) (*Job, error)
	// SetJobPriority persists a priority on an existing job row.
	SetJobPriority(ctx context.Context, id int64, priority int) error
	// Atomic runs fn against a transactional view of the store, committing on
	// nil and rolling back otherwise.
	Atomic(ctx context.Context, fn func(ctx context.Context, store Store) error) error

	// Competition feedback ingest, keyed by round.
	UpsertFeedback(ctx context.Context, round int, polls, povs, cbs json.RawMessage) error
	UpsertScore(ctx context.Context, round int, scores json.RawMessage) error
	GetOrCreateTeam(ctx context.Context, name string) (*Team, error)
	UpsertEvaluation(ctx context.Context, round int, teamID int64, cbs, ids json.RawMessage) error
}
