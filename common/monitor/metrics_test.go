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
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	before := testutil.ToFloat64(TrainEpochsTotal.WithLabelValues("GMF"))
	TrainEpochsTotal.WithLabelValues("GMF").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(TrainEpochsTotal.WithLabelValues("GMF")))

	TrainLoss.WithLabelValues("GMF").Set(0.25)
	assert.Equal(t, 0.25, testutil.ToFloat64(TrainLoss.WithLabelValues("GMF")))

	EvaluateScore.WithLabelValues("GMF", "NDCG@10").Set(0.5)
	assert.Equal(t, 0.5, testutil.ToFloat64(EvaluateScore.WithLabelValues("GMF", "NDCG@10")))
}

func TestPush(t *testing.T) {
	var (
		path string
		body []byte
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	registry := prometheus.NewRegistry()
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "ncf_test_gauge"})
	gauge.Set(1)
	registry.MustRegister(gauge)
	err := PushFrom(context.Background(), registry, server.URL, "ncf")
	assert.NoError(t, err)
	assert.Equal(t, "/metrics/job/ncf", path)
	assert.NotEmpty(t, body)

	err = Push(context.Background(), "", "ncf")
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestPush_Retry(t *testing.T) {
	var (
		requests atomic.Int32
		failAll  atomic.Bool
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 || failAll.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "ncf_test_counter"}))

	err := PushFrom(context.Background(), registry, server.URL, "ncf")
	assert.NoError(t, err)
	assert.Equal(t, int32(2), requests.Load())

	failAll.Store(true)
	requests.Store(0)
	err = PushFrom(context.Background(), registry, server.URL, "ncf")
	assert.Error(t, err)
	assert.Equal(t, int32(pushMaxTries), requests.Load())
}
