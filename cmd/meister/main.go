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

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"knative.dev/pkg/logging"

	"github.com/chubbymaggie/meister/pkg/apis/config/settings"
	"github.com/chubbymaggie/meister/pkg/brains"
	"github.com/chubbymaggie/meister/pkg/cluster"
	"github.com/chubbymaggie/meister/pkg/cluster/resources"
	"github.com/chubbymaggie/meister/pkg/creators"
	"github.com/chubbymaggie/meister/pkg/database"
	"github.com/chubbymaggie/meister/pkg/evaluators"
	"github.com/chubbymaggie/meister/pkg/scheduler"
	"github.com/chubbymaggie/meister/pkg/ti"
)

const evaluationInterval = 30 * time.Second

func main() {
	zapLogger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	logger := zapLogger.Sugar()
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logging.WithLogger(ctx, logger)

	opts, err := settings.NewSettingsFromEnv()
	if err != nil {
		logger.Fatalf("invalid configuration, %s", err)
	}
	ctx = settings.ToContext(ctx, opts)

	store, err := database.NewPostgresStore(ctx)
	if err != nil {
		logger.Fatalf("connecting state store, %s", err)
	}
	defer store.Close()

	var client *cluster.Client
	if !opts.ClusterAbsent() {
		if client, err = cluster.NewInClusterClient(); err != nil {
			logger.Fatalf("connecting cluster, %s", err)
		}
	}

	go serveMetrics(ctx)
	if opts.TIAPIURL != "" {
		go runEvaluator(ctx, store)
	}

	s := scheduler.NewScheduler(client, resources.NewAccountant(client), store, brains.NewToadBrain(),
		creators.NewRexCreator(store),
		creators.NewPollSanitizerCreator(store),
	)
	if err := s.Run(ctx); err != nil {
		logger.Fatalf("scheduler exited, %s", err)
	}
	os.Exit(0)
}

func serveMetrics(ctx context.Context) {
	server := &http.Server{Addr: ":8080", Handler: promhttp.Handler()}
	go func() {
		<-ctx.Done()
		_ = server.Close()
	}()
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logging.FromContext(ctx).Errorf("metrics server, %s", err)
	}
}

// runEvaluator ingests competition feedback whenever the round advances.
func runEvaluator(ctx context.Context, store database.Store) {
	opts := settings.FromContext(ctx)
	client, err := ti.NewClient(opts.TIAPIURL, opts.TIAPIUser, opts.TIAPIPassword)
	if err != nil {
		logging.FromContext(ctx).Errorf("team interface disabled, %s", err)
		return
	}
	evaluator := evaluators.NewEvaluator(client, store)
	lastRound := -1
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(evaluationInterval):
		}
		status, err := client.Status(ctx)
		if err != nil {
			logging.FromContext(ctx).Errorf("polling round, %s", err)
			continue
		}
		if status.Round == lastRound {
			continue
		}
		if err := evaluator.Run(ctx, status.Round); err != nil {
			logging.FromContext(ctx).Errorf("evaluating round %d, %s", status.Round, err)
			continue
		}
		lastRound = status.Round
	}
}
