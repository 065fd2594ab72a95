// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package monitor

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

const pushMaxTries = 3

const (
	LabelVariant = "variant"
	LabelMetric  = "metric"
)

var (
	TrainEpochsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ncf",
		Subsystem: "train",
		Name:      "epochs_total",
	}, []string{LabelVariant})
	TrainLoss = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "ncf",
		Subsystem: "train",
		Name:      "loss",
	}, []string{LabelVariant})
	TrainEpochSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ncf",
		Subsystem: "train",
		Name:      "epoch_seconds",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 16),
	}, []string{LabelVariant})
	EvaluateScore = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "ncf",
		Subsystem: "evaluate",
		Name:      "score",
	}, []string{LabelVariant, LabelMetric})
	EvaluateSeconds = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "ncf",
		Subsystem: "evaluate",
		Name:      "seconds",
	}, []string{LabelVariant})
)

// Push sends every registered metric to a Prometheus pushgateway. Failed
// pushes are retried with exponential backoff.
func Push(ctx context.Context, url, job string) error {
	return PushFrom(ctx, prometheus.DefaultGatherer, url, job)
}

func PushFrom(ctx context.Context, gatherer prometheus.Gatherer, url, job string) error {
	if url == "" {
		return errors.NotValidf("empty pushgateway url")
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, push.New(url, job).Gatherer(gatherer).PushContext(ctx)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(pushMaxTries))
	return errors.Annotatef(err, "push metrics to %s", url)
}
