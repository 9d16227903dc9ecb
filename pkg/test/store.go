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
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/chubbymaggie/meister/pkg/database"
)

// Store is an in-memory database.Store for tests. Errors are injectable per
// read path to exercise creator failure isolation.
type Store struct {
	mu sync.Mutex

	Binaries    []*database.ChallengeBinaryNode
	Polls       []*database.RawRoundPoll
	BinariesErr error
	PollsErr    error

	jobs        map[string]*database.Job
	Priorities  map[int64]int
	AtomicCalls int

	Feedbacks   map[int][]json.RawMessage
	Scores      map[int]json.RawMessage
	Teams       map[string]*database.Team
	Evaluations map[string][]json.RawMessage
}

var _ database.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		jobs:        map[string]*database.Job{},
		Priorities:  map[int64]int{},
		Feedbacks:   map[int][]json.RawMessage{},
		Scores:      map[int]json.RawMessage{},
		Teams:       map[string]*database.Team{},
		Evaluations: map[string][]json.RawMessage{},
	}
}

func (s *Store) ChallengeBinaries(_ context.Context) ([]*database.ChallengeBinaryNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.BinariesErr != nil {
		return nil, s.BinariesErr
	}
	return s.Binaries, nil
}

func (s *Store) UnsanitizedPolls(_ context.Context) ([]*database.RawRoundPoll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.PollsErr != nil {
		return nil, s.PollsErr
	}
	var polls []*database.RawRoundPoll
	for _, poll := range s.Polls {
		if !poll.Sanitized {
			polls = append(polls, poll)
		}
	}
	return polls, nil
}

func (s *Store) GetOrCreateJob(_ context.Context, job *database.Job) (*database.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := job.Worker + "/" + string(job.Payload)
	if existing, ok := s.jobs[key]; ok {
		copied := *existing
		return &copied, nil
	}
	created := *job
	created.ID = nextID()
	s.jobs[key] = &created
	copied := created
	return &copied, nil
}

// Jobs returns every job row inserted so far.
func (s *Store) Jobs() []*database.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	var jobs []*database.Job
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}
	return jobs
}

func (s *Store) SetJobPriority(_ context.Context, id int64, priority int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Priorities[id] = priority
	return nil
}

func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, store database.Store) error) error {
	s.mu.Lock()
	s.AtomicCalls++
	s.mu.Unlock()
	return fn(ctx, s)
}

func (s *Store) UpsertFeedback(_ context.Context, round int, polls, povs, cbs json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Feedbacks[round] = []json.RawMessage{polls, povs, cbs}
	return nil
}

func (s *Store) UpsertScore(_ context.Context, round int, scores json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Scores[round] = scores
	return nil
}

func (s *Store) GetOrCreateTeam(_ context.Context, name string) (*database.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if team, ok := s.Teams[name]; ok {
		return team, nil
	}
	team := &database.Team{ID: nextID(), Name: name}
	s.Teams[name] = team
	return team, nil
}

func (s *Store) UpsertEvaluation(_ context.Context, round int, teamID int64, cbs, ids json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Evaluations[fmt.Sprintf("%d/%d", round, teamID)] = []json.RawMessage{cbs, ids}
	return nil
}
