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

package settings

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/multierr"
)

type settingsKeyType struct{}

var ContextKey = settingsKeyType{}

var defaultSettings = Settings{
	NumThreads:   20,
	Sleepytime:   3 * time.Second,
	PostgresHost: "postgres",
	PostgresPort: 5432,
}

// Settings holds the process configuration. Everything is sourced from the
// environment; a missing required variable is fatal at startup and nothing
// here changes afterwards.
type Settings struct {
	ClusterHost           string        `validate:"-"`
	NumThreads            int           `validate:"min=1"`
	Overprovisioning      float64       `validate:"gte=1"`
	Sleepytime            time.Duration `validate:"gt=0"`
	WorkerImage           string        `validate:"required"`
	WorkerImagePullPolicy string        `validate:"required"`
	PostgresHost          string        `validate:"required"`
	PostgresPort          int           `validate:"min=1"`
	PostgresUser          string        `validate:"required"`
	PostgresPassword      string        `validate:"required"`
	PostgresDatabase      string        `validate:"required"`
	PostgresUseSlaves     bool
	TIAPIURL              string
	TIAPIUser             string
	TIAPIPassword         string
}

// NewSettingsFromEnv parses Settings out of the process environment.
func NewSettingsFromEnv() (Settings, error) {
	environ := map[string]string{}
	for _, kv := range os.Environ() {
		k, v, _ := strings.Cut(kv, "=")
		environ[k] = v
	}
	return NewSettings(environ)
}

// NewSettings parses Settings from the supplied environment map.
func NewSettings(environ map[string]string) (Settings, error) {
	s := defaultSettings

	s.ClusterHost = environ["KUBERNETES_SERVICE_HOST"]
	s.WorkerImage = environ["WORKER_IMAGE"]
	s.WorkerImagePullPolicy = environ["WORKER_IMAGE_PULL_POLICY"]
	s.PostgresUser = environ["POSTGRES_DATABASE_USER"]
	s.PostgresPassword = environ["POSTGRES_DATABASE_PASSWORD"]
	s.PostgresDatabase = environ["POSTGRES_DATABASE_NAME"]
	_, s.PostgresUseSlaves = environ["POSTGRES_USE_SLAVES"]
	s.TIAPIURL = environ["TI_API_URL"]
	s.TIAPIUser = environ["TI_API_USER"]
	s.TIAPIPassword = environ["TI_API_PASSWORD"]

	if err := multierr.Combine(
		asInt("MEISTER_NUM_THREADS", environ, &s.NumThreads),
		asFloat("MEISTER_OVERPROVISIONING", environ, &s.Overprovisioning),
		asDuration("MEISTER_SLEEPYTIME", environ, &s.Sleepytime),
		asString("POSTGRES_HOST", environ, &s.PostgresHost),
		asInt("POSTGRES_PORT", environ, &s.PostgresPort),
	); err != nil {
		return Settings{}, fmt.Errorf("parsing environment, %w", err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, fmt.Errorf("validating environment, %w", err)
	}
	return s, nil
}

func (s Settings) Validate() error {
	return validator.New().Struct(s)
}

// ClusterAbsent reports whether the scheduler runs without a cluster. This is
// keyed off KUBERNETES_SERVICE_HOST, which the cluster injects into every pod.
func (s Settings) ClusterAbsent() bool {
	return s.ClusterHost == ""
}

func asString(key string, environ map[string]string, target *string) error {
	if raw, ok := environ[key]; ok {
		*target = raw
	}
	return nil
}

func asInt(key string, environ map[string]string, target *int) error {
	if raw, ok := environ[key]; ok {
		val, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("failed to parse %q: %w", key, err)
		}
		*target = val
	}
	return nil
}

func asFloat(key string, environ map[string]string, target *float64) error {
	if raw, ok := environ[key]; ok {
		val, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("failed to parse %q: %w", key, err)
		}
		*target = val
	}
	return nil
}

func asDuration(key string, environ map[string]string, target *time.Duration) error {
	if raw, ok := environ[key]; ok {
		val, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("failed to parse %q: %w", key, err)
		}
		*target = val
	}
	return nil
}

func ToContext(ctx context.Context, s Settings) context.Context {
	return context.WithValue(ctx, ContextKey, s)
}

func FromContext(ctx context.Context) Settings {
	data := ctx.Value(ContextKey)
	if data == nil {
		// This is developer error if this happens, so we should panic
		panic("settings doesn't exist in context")
	}
	return data.(Settings)
}
