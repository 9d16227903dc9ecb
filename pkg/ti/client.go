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

// Package ti talks to the competition infrastructure's team-interface API.
// Calls are retried a few times against transient failures; a still-failing
// call surfaces as *ti.Error and the caller decides what to skip.
package ti

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/avast/retry-go"
)

const (
	requestTimeout = 10 * time.Second
	requestRetries = 3
)

// Error is an API-level failure from the team interface.
type Error struct {
	Endpoint string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("team interface %s: %s", e.Endpoint, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type Client struct {
	base     *url.URL
	user     string
	password string
	http     *http.Client
}

func NewClient(base, user, password string) (*Client, error) {
	parsed, err := url.Parse(base)
	if err != nil || !parsed.IsAbs() {
		return nil, fmt.Errorf("%q is not a valid team-interface URL", base)
	}
	return &Client{
		base:     parsed,
		user:     user,
		password: password,
		http:     &http.Client{Timeout: requestTimeout},
	}, nil
}

// Status reports the current round and per-team scores.
type Status struct {
	Round  int             `json:"round"`
	Scores json.RawMessage `json:"scores"`
}

func (c *Client) Status(ctx context.Context) (*Status, error) {
	status := &Status{}
	if err := c.get(ctx, "status", status); err != nil {
		return nil, err
	}
	return status, nil
}

// Feedback returns the raw feedback document of the given kind (poll, pov or
// cb) for a round.
func (c *Client) Feedback(ctx context.Context, kind string, round int) (json.RawMessage, error) {
	var feedback json.RawMessage
	if err := c.get(ctx, fmt.Sprintf("round/%d/feedback/%s", round, kind), &feedback); err != nil {
		return nil, err
	}
	return feedback, nil
}

func (c *Client) Teams(ctx context.Context) ([]string, error) {
	var teams []string
	if err := c.get(ctx, "teams", &teams); err != nil {
		return nil, err
	}
	return teams, nil
}

// Evaluation returns the consensus evaluation of the given kind (cb or ids)
// for one team in a round.
func (c *Client) Evaluation(ctx context.Context, kind string, round int, team string) (json.RawMessage, error) {
	var evaluation json.RawMessage
	if err := c.get(ctx, fmt.Sprintf("round/%d/evaluation/%s/%s", round, kind, url.PathEscape(team)), &evaluation); err != nil {
		return nil, err
	}
	return evaluation, nil
}

func (c *Client) get(ctx context.Context, endpoint string, into any) error {
	err := retry.Do(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base.JoinPath(endpoint).String(), nil)
		if err != nil {
			return err
		}
		req.SetBasicAuth(c.user, c.password)
		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		return json.Unmarshal(body, into)
	}, retry.Attempts(requestRetries), retry.Context(ctx), retry.LastErrorOnly(true))
	if err != nil {
		return &Error{Endpoint: endpoint, Err: err}
	}
	return nil
}
