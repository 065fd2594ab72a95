// Copyright 2022 gorse Project Authors
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

package ncf

import (
	"context"
	"fmt"
	"time"

	"github.com/chewxy/math32"
	"github.com/gorse-io/ncf/common/log"
	"github.com/gorse-io/ncf/common/monitor"
	"github.com/gorse-io/ncf/common/progress"
	"github.com/gorse-io/ncf/dataset"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// FitConfig controls Train.
type FitConfig struct {
	Jobs     int
	Verbose  int
	TopK     int
	Patience int
	// OnEpoch is called after every epoch.
	OnEpoch func(epoch int, loss float32)
}

func NewFitConfig() *FitConfig {
	return &FitConfig{
		Jobs:    1,
		Verbose: 1,
		TopK:    10,
	}
}

func (config *FitConfig) SetVerbose(verbose int) *FitConfig {
	config.Verbose = verbose
	return config
}

func (config *FitConfig) SetJobs(nJobs int) *FitConfig {
	config.Jobs = nJobs
	return config
}

func (config *FitConfig) SetTopK(topK int) *FitConfig {
	config.TopK = topK
	return config
}

// SetPatience stops training after the given number of evaluations without
// improvement of NDCG. Zero disables early stopping.
func (config *FitConfig) SetPatience(patience int) *FitConfig {
	config.Patience = patience
	return config
}

// Score is the evaluation result of a model.
type Score struct {
	HR        float32
	NDCG      float32
	Precision float32
	Recall    float32
	Loss      float32
}

func (score Score) ZapFields(topK int) []zap.Field {
	return []zap.Field{
		zap.Float32(fmt.Sprintf("HR@%v", topK), score.HR),
		zap.Float32(fmt.Sprintf("NDCG@%v", topK), score.NDCG),
		zap.Float32(fmt.Sprintf("Precision@%v", topK), score.Precision),
		zap.Float32(fmt.Sprintf("Recall@%v", topK), score.Recall),
		zap.Float32("loss", score.Loss),
	}
}

// SnapshotManager keeps the weights of the best evaluated epoch.
type SnapshotManager struct {
	BestWeights [][]float32
	BestScore   Score
	BestEpoch   int
}

// AddSnapshot records the weights if the score beats the best one so far.
func (sm *SnapshotManager) AddSnapshot(score Score, epoch int, m *NCF) bool {
	if sm.BestWeights == nil || score.NDCG > sm.BestScore.NDCG {
		sm.BestScore = score
		sm.BestEpoch = epoch
		sm.BestWeights = m.snapshot()
		return true
	}
	return false
}

func (m *NCF) snapshot() [][]float32 {
	params := m.Parameters()
	weights := make([][]float32, len(params))
	for i, p := range params {
		weights[i] = append([]float32(nil), p.Data()...)
	}
	return weights
}

func (m *NCF) restore(weights [][]float32) {
	for i, p := range m.Parameters() {
		copy(p.Data(), weights[i])
	}
}

// Train fits the model for NEpochs epochs. The model is evaluated every
// Verbose epochs and at the last epoch, and the weights of the best evaluated
// epoch are restored before returning.
func (m *NCF) Train(ctx context.Context, trainSet, testSet *dataset.Dataset, config *FitConfig) (Score, error) {
	if config == nil {
		config = NewFitConfig()
	}
	m.SetJobs(config.Jobs)
	verbose := max(config.Verbose, 1)
	variant := string(m.variant)
	log.Logger().Info("fit ncf",
		zap.Int("train_set_size", trainSet.CountFeedback()),
		zap.Int("test_set_size", testSet.CountFeedback()),
		zap.Any("params", m.GetParams()),
		zap.Int("jobs", config.Jobs),
		zap.Int("verbose", config.Verbose),
		zap.Int("top_k", config.TopK),
		zap.Int("patience", config.Patience))
	ctx, span := progress.Start(ctx, "NCF.Train", m.nEpochs)
	var (
		snapshots SnapshotManager
		loss      float32
		bad       int
	)
	for epoch := 1; epoch <= m.nEpochs; epoch++ {
		fitStart := time.Now()
		var err error
		loss, err = m.Fit(ctx, trainSet)
		if err != nil {
			span.Fail(err)
			return Score{}, errors.Trace(err)
		}
		fitTime := time.Since(fitStart)
		monitor.TrainEpochsTotal.WithLabelValues(variant).Inc()
		monitor.TrainLoss.WithLabelValues(variant).Set(float64(loss))
		monitor.TrainEpochSeconds.WithLabelValues(variant).Observe(fitTime.Seconds())
		span.Add(1)
		if config.OnEpoch != nil {
			config.OnEpoch(epoch, loss)
		}
		if math32.IsNaN(loss) || math32.IsInf(loss, 0) {
			log.Logger().Warn("model diverged", zap.Int("epoch", epoch), zap.Float32("loss", loss))
			break
		}
		if epoch%verbose == 0 || epoch == m.nEpochs {
			evalStart := time.Now()
			score, err := m.score(ctx, testSet, config.TopK)
			if err != nil {
				span.Fail(err)
				return Score{}, errors.Trace(err)
			}
			score.Loss = loss
			evalTime := time.Since(evalStart)
			monitor.EvaluateSeconds.WithLabelValues(variant).Set(evalTime.Seconds())
			monitor.EvaluateScore.WithLabelValues(variant, "HR").Set(float64(score.HR))
			monitor.EvaluateScore.WithLabelValues(variant, "NDCG").Set(float64(score.NDCG))
			fields := append([]zap.Field{
				zap.String("fit_time", fitTime.String()),
				zap.String("eval_time", evalTime.String()),
			}, score.ZapFields(config.TopK)...)
			log.Logger().Info(fmt.Sprintf("fit ncf %v/%v", epoch, m.nEpochs), fields...)
			if snapshots.AddSnapshot(score, epoch, m) {
				bad = 0
			} else if bad++; config.Patience > 0 && bad >= config.Patience {
				log.Logger().Info("early stopping",
					zap.Int("epoch", epoch),
					zap.Int("best_epoch", snapshots.BestEpoch))
				break
			}
		}
	}
	span.End()
	if snapshots.BestWeights == nil {
		return Score{Loss: loss}, nil
	}
	m.restore(snapshots.BestWeights)
	log.Logger().Info("fit ncf complete",
		append([]zap.Field{zap.Int("best_epoch", snapshots.BestEpoch)},
			snapshots.BestScore.ZapFields(config.TopK)...)...)
	return snapshots.BestScore, nil
}

func (m *NCF) score(ctx context.Context, testSet *dataset.Dataset, topK int) (Score, error) {
	if err := m.checkDataset(testSet); err != nil {
		return Score{}, err
	}
	scores, err := Evaluate(ctx, m, testSet, topK, m.jobs, HR, NDCG, Precision, Recall)
	if err != nil {
		return Score{}, errors.Trace(err)
	}
	return Score{HR: scores[0], NDCG: scores[1], Precision: scores[2], Recall: scores[3]}, nil
}

func (m *NCF) checkDataset(d *dataset.Dataset) error {
	if d.CountUsers() > m.numUsers || d.CountItems() > m.numItems {
		return errors.NotValidf("dataset with %d users and %d items for model with %d users and %d items",
			d.CountUsers(), d.CountItems(), m.numUsers, m.numItems)
	}
	return nil
}
