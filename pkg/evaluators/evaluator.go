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

// Package evaluators ingests per-round competition feedback into the state
// store. The evaluator is a peer consumer next to the scheduler and runs on
// its own cadence; every team-interface failure is logged and the remainder
// of the ingest proceeds.
package evaluators

import (
	"context"
	"encoding/json"

	"go.uber.org/multierr"
	"knative.dev/pkg/logging"

	"github.com/chubbymaggie/meister/pkg/database"
	"github.com/chubbymaggie/meister/pkg/ti"
)

type Evaluator struct {
	client *ti.Client
	store  database.Store
}

func NewEvaluator(client *ti.Client, store database.Store) *Evaluator {
	return &Evaluator{client: client, store: store}
}

// Run ingests feedback, scores and consensus evaluations for one round. The
// returned error aggregates store failures; API failures are only logged.
func (e *Evaluator) Run(ctx context.Context, round int) error {
	return multierr.Combine(
		e.ingestFeedback(ctx, round),
		e.ingestScores(ctx, round),
		e.ingestEvaluations(ctx, round),
	)
}

func (e *Evaluator) ingestFeedback(ctx context.Context, round int) error {
	logging.FromContext(ctx).Debug("getting feedback")
	documents := map[string]json.RawMessage{}
	for _, kind := range []string{"poll", "pov", "cb"} {
		feedback, err := e.client.Feedback(ctx, kind, round)
		if err != nil {
			logging.FromContext(ctx).Errorf("feedback %s error: %s", kind, err)
			continue
		}
		documents[kind] = feedback
	}
	return e.store.UpsertFeedback(ctx, round, documents["poll"], documents["pov"], documents["cb"])
}

func (e *Evaluator) ingestScores(ctx context.Context, round int) error {
	logging.FromContext(ctx).Debug("getting scores")
	status, err := e.client.Status(ctx)
	if err != nil {
		logging.FromContext(ctx).Errorf("scores error: %s", err)
		return nil
	}
	return e.store.UpsertScore(ctx, round, status.Scores)
}

func (e *Evaluator) ingestEvaluations(ctx context.Context, round int) error {
	teams, err := e.client.Teams(ctx)
	if err != nil {
		logging.FromContext(ctx).Errorf("unable to get teams: %s", err)
		return nil
	}
	var errs error
	for _, name := range teams {
		team, err := e.store.GetOrCreateTeam(ctx, name)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		logging.FromContext(ctx).Debugf("getting consensus evaluation for team %s", name)
		documents := map[string]json.RawMessage{}
		for _, kind := range []string{"cb", "ids"} {
			evaluation, err := e.client.Evaluation(ctx, kind, round, name)
			if err != nil {
				logging.FromContext(ctx).Errorf("consensus evaluation error: %s", err)
				continue
			}
			documents[kind] = evaluation
		}
		errs = multierr.Append(errs, e.store.UpsertEvaluation(ctx, round, team.ID, documents["cb"], documents["ids"]))
	}
	return errs
}
