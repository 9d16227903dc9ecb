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

// Package creators materializes pending jobs from state-store contents. Each
// creator is bound to one job kind; a creator reads the store, idempotently
// inserts the rows it decides are pending, and returns them. A failing
// creator truncates only its own stream.
package creators

import (
	"context"

	"github.com/chubbymaggie/meister/pkg/database"
)

type Creator interface {
	Name() string
	// Jobs may return an empty slice; it must be safe to call repeatedly and
	// concurrently with other creators.
	Jobs(ctx context.Context) ([]*database.Job, error)
}
