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
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chubbymaggie/meister/pkg/apis/config/settings"
)

// querier is the subset of pgx satisfied by both a pool and a transaction,
// letting the same queries run inside and outside Atomic.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresStore struct {
	pool *pgxpool.Pool
	conn querier
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore connects a store using the POSTGRES_* settings carried in ctx.
func NewPostgresStore(ctx context.Context) (*PostgresStore, error) {
	s := settings.FromContext(ctx)
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		s.PostgresUser, s.PostgresPassword, s.PostgresHost, s.PostgresPort, s.PostgresDatabase)
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to state store, %w", err)
	}
	return &PostgresStore{pool: pool, conn: pool}, nil
}

func (p *PostgresStore) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

func (p *PostgresStore) Atomic(ctx context.Context, fn func(ctx context.Context, store Store) error) error {
	if p.pool == nil {
		return fmt.Errorf("store is already transactional")
	}
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction, %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &PostgresStore{conn: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (p *PostgresStore) ChallengeBinaries(ctx context.Context) ([]*ChallengeBinaryNode, error) {
	rows, err := p.conn.Query(ctx, `SELECT id, name FROM challenge_binary_nodes`)
	if err != nil {
		return nil, fmt.Errorf("listing challenge binaries, %w", err)
	}
	defer rows.Close()

	byID := map[int64]*ChallengeBinaryNode{}
	var cbns []*ChallengeBinaryNode
	for rows.Next() {
		cbn := &ChallengeBinaryNode{}
		if err := rows.Scan(&cbn.ID, &cbn.Name); err != nil {
			return nil, fmt.Errorf("scanning challenge binary, %w", err)
		}
		byID[cbn.ID] = cbn
		cbns = append(cbns, cbn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	crashRows, err := p.conn.Query(ctx, `SELECT id, cbn_id, kind FROM crashes`)
	if err != nil {
		return nil, fmt.Errorf("listing crashes, %w", err)
	}
	defer crashRows.Close()
	for crashRows.Next() {
		var cbnID int64
		crash := &Crash{}
		if err := crashRows.Scan(&crash.ID, &cbnID, &crash.Kind); err != nil {
			return nil, fmt.Errorf("scanning crash, %w", err)
		}
		if cbn, ok := byID[cbnID]; ok {
			cbn.Crashes = append(cbn.Crashes, crash)
		}
	}
	return cbns, crashRows.Err()
}

func (p *PostgresStore) UnsanitizedPolls(ctx context.Context) ([]*RawRoundPoll, error) {
	rows, err := p.conn.Query(ctx, `SELECT id, round, sanitized FROM raw_round_polls WHERE NOT sanitized`)
	if err != nil {
		return nil, fmt.Errorf("listing unsanitized polls, %w", err)
	}
	defer rows.Close()

	var polls []*RawRoundPoll
	for rows.Next() {
		poll := &RawRoundPoll{}
		if err := rows.Scan(&poll.ID, &poll.Round, &poll.Sanitized); err != nil {
			return nil, fmt.Errorf("scanning poll, %w", err)
		}
		polls = append(polls, poll)
	}
	return polls, rows.Err()
}

// GetOrCreateJob is keyed by (worker, payload); the no-op DO UPDATE makes the
// RETURNING clause yield the existing row on conflict.
func (p *PostgresStore) GetOrCreateJob(ctx context.Context, job *Job) (*Job, error) {
	created := *job
	err := p.conn.QueryRow(ctx, `
		INSERT INTO jobs (worker, payload, request_cpu, request_memory, limit_cpu, limit_memory,
		                  kvm_access, data_access, restart)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (worker, payload) DO UPDATE SET worker = EXCLUDED.worker
		RETURNING id, priority`,
		job.Worker, job.Payload, job.RequestCPU, job.RequestMemory, job.LimitCPU, job.LimitMemory,
		job.KVMAccess, job.DataAccess, job.Restart,
	).Scan(&created.ID, &created.Priority)
	if err != nil {
		return nil, fmt.Errorf("upserting %s job, %w", job.Worker, err)
	}
	return &created, nil
}

func (p *PostgresStore) SetJobPriority(ctx context.Context, id int64, priority int) error {
	if _, err := p.conn.Exec(ctx, `UPDATE jobs SET priority = $2 WHERE id = $1`, id, priority); err != nil {
		return fmt.Errorf("persisting priority for job %d, %w", id, err)
	}
	return nil
}

func (p *PostgresStore) UpsertFeedback(ctx context.Context, round int, polls, povs, cbs json.RawMessage) error {
	_, err := p.conn.Exec(ctx, `
		INSERT INTO feedbacks (round, polls, povs, cbs)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (round) DO UPDATE SET polls = EXCLUDED.polls, povs = EXCLUDED.povs, cbs = EXCLUDED.cbs`,
		round, polls, povs, cbs)
	if err != nil {
		return fmt.Errorf("upserting feedback for round %d, %w", round, err)
	}
	return nil
}

func (p *PostgresStore) UpsertScore(ctx context.Context, round int, scores json.RawMessage) error {
	_, err := p.conn.Exec(ctx, `
		INSERT INTO scores (round, scores)
		VALUES ($1, $2)
		ON CONFLICT (round) DO UPDATE SET scores = EXCLUDED.scores`,
		round, scores)
	if err != nil {
		return fmt.Errorf("upserting scores for round %d, %w", round, err)
	}
	return nil
}

func (p *PostgresStore) GetOrCreateTeam(ctx context.Context, name string) (*Team, error) {
	team := &Team{Name: name}
	err := p.conn.QueryRow(ctx, `
		INSERT INTO teams (name) VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`, name).Scan(&team.ID)
	if err != nil {
		return nil, fmt.Errorf("upserting team %q, %w", name, err)
	}
	return team, nil
}

func (p *PostgresStore) UpsertEvaluation(ctx context.Context, round int, teamID int64, cbs, ids json.RawMessage) error {
	_, err := p.conn.Exec(ctx, `
		INSERT INTO evaluations (round, team_id, cbs, ids)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (round, team_id) DO UPDATE SET cbs = EXCLUDED.cbs, ids = EXCLUDED.ids`,
		round, teamID, cbs, ids)
	if err != nil {
		return fmt.Errorf("upserting evaluation for round %d team %d, %w", round, teamID, err)
	}
	return nil
}
