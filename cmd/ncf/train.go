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

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/gorse-io/ncf/common/log"
	"github.com/gorse-io/ncf/common/monitor"
	"github.com/gorse-io/ncf/model/ncf"
	"github.com/gorse-io/ncf/storage/cache"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var trainCommand = &cobra.Command{
	Use:   "train",
	Short: "Train a model and evaluate it by leave-one-out.",
	Run: func(cmd *cobra.Command, args []string) {
		conf, shutdown := setup(cmd)
		defer shutdown()
		if cmd.Flags().Changed("variant") {
			conf.Model.Variant, _ = cmd.Flags().GetString("variant")
		}
		if cmd.Flags().Changed("n-epochs") {
			conf.Training.NEpochs, _ = cmd.Flags().GetInt("n-epochs")
		}
		if cmd.Flags().Changed("jobs") {
			conf.Training.Jobs, _ = cmd.Flags().GetInt("jobs")
		}
		if err := conf.Validate(); err != nil {
			log.Logger().Fatal("invalid config", zap.Error(err))
		}
		runId := uuid.New().String()
		ctx, cancel := signalContext()
		defer cancel()

		trainSet, testSet, err := loadDataset(ctx, conf)
		if err != nil {
			log.Logger().Fatal("failed to load dataset", zap.Error(err))
		}
		log.Logger().Info("load dataset",
			zap.String("run_id", runId),
			zap.Int("n_users", trainSet.CountUsers()),
			zap.Int("n_items", trainSet.CountItems()),
			zap.Int("n_train", trainSet.CountFeedback()),
			zap.Int("n_test", testSet.CountFeedback()))
		m, err := ncf.NewNCF(trainSet.CountUsers(), trainSet.CountItems(), conf.ToParams())
		if err != nil {
			log.Logger().Fatal("failed to create model", zap.Error(err))
		}

		bar := progressbar.NewOptions(conf.Training.NEpochs,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("training"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetPredictTime(true))
		fitConfig := conf.FitConfig()
		fitConfig.OnEpoch = func(epoch int, loss float32) {
			bar.Describe(fmt.Sprintf("loss %.4f", loss))
			_ = bar.Add(1)
		}
		start := time.Now()
		score, err := m.Train(ctx, trainSet, testSet, fitConfig)
		_ = bar.Finish()
		if err != nil {
			log.Logger().Fatal("failed to train model", zap.String("run_id", runId), zap.Error(err))
		}
		log.Logger().Info("train model complete",
			zap.String("run_id", runId),
			zap.Duration("train_time", time.Since(start)))
		if err = printScore(os.Stdout, conf.Evaluation.TopK, score); err != nil {
			log.Logger().Error("failed to print score", zap.Error(err))
		}

		if conf.Checkpoint.URI != "" {
			if err = saveCheckpoint(ctx, conf.Checkpoint, m); err != nil {
				log.Logger().Fatal("failed to save checkpoint", zap.Error(err))
			}
			log.Logger().Info("save checkpoint",
				zap.String("uri", conf.Checkpoint.URI),
				zap.String("name", conf.Checkpoint.Name))
		}
		if conf.Cache.URI != "" {
			c, err := cache.Open(conf.Cache.URI, conf.Cache.TTL)
			if err != nil {
				log.Logger().Fatal("failed to open cache", zap.Error(err))
			}
			defer c.Close()
			if err = cacheRecommendations(ctx, c, m, trainSet, conf.Cache.Size, conf.Training.Jobs); err != nil {
				log.Logger().Fatal("failed to cache recommendations", zap.Error(err))
			}
			log.Logger().Info("cache recommendations", zap.Int("n_users", trainSet.CountUsers()))
		}
		if conf.Monitor.Pushgateway != "" {
			if err = monitor.Push(ctx, conf.Monitor.Pushgateway, conf.Monitor.Job); err != nil {
				log.Logger().Error("failed to push metrics", zap.Error(err))
			}
		}
	},
}

func init() {
	rootCommand.AddCommand(trainCommand)
	trainCommand.Flags().String("variant", string(ncf.NMF), "model variant (MLP, GMF, NMF or NMF-pretrained)")
	trainCommand.Flags().Int("n-epochs", 20, "number of epochs")
	trainCommand.Flags().IntP("jobs", "j", 1, "number of jobs for evaluation")
}
