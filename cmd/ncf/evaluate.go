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
	"os"
	"strconv"

	"github.com/gorse-io/ncf/common/encoding"
	"github.com/gorse-io/ncf/common/log"
	"github.com/gorse-io/ncf/model/ncf"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var evaluateCommand = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate a saved model on the test set.",
	Run: func(cmd *cobra.Command, args []string) {
		conf, shutdown := setup(cmd)
		defer shutdown()
		if conf.Checkpoint.URI == "" {
			log.Logger().Fatal("checkpoint uri is required")
		}
		ctx, cancel := signalContext()
		defer cancel()

		m, err := loadCheckpoint(ctx, conf.Checkpoint)
		if err != nil {
			log.Logger().Fatal("failed to load checkpoint", zap.Error(err))
		}
		m.SetJobs(conf.Training.Jobs)
		_, testSet, err := loadDataset(ctx, conf)
		if err != nil {
			log.Logger().Fatal("failed to load dataset", zap.Error(err))
		}
		if testSet.CountUsers() > m.NumUsers() || testSet.CountItems() > m.NumItems() {
			log.Logger().Fatal("dataset does not match checkpoint",
				zap.Int("n_users", testSet.CountUsers()),
				zap.Int("n_items", testSet.CountItems()),
				zap.Int("model_n_users", m.NumUsers()),
				zap.Int("model_n_items", m.NumItems()))
		}
		scores, err := ncf.Evaluate(ctx, m, testSet, conf.Evaluation.TopK, conf.Training.Jobs,
			ncf.HR, ncf.NDCG, ncf.Precision, ncf.Recall)
		if err != nil {
			log.Logger().Fatal("failed to evaluate model", zap.Error(err))
		}
		score := ncf.Score{HR: scores[0], NDCG: scores[1], Precision: scores[2], Recall: scores[3]}
		log.Logger().Info("evaluate model",
			append([]zap.Field{zap.String("variant", string(m.Variant()))}, score.ZapFields(conf.Evaluation.TopK)...)...)
		if err = printScore(os.Stdout, conf.Evaluation.TopK, score); err != nil {
			log.Logger().Error("failed to print score", zap.Error(err))
		}
	},
}

var recommendCommand = &cobra.Command{
	Use:   "recommend <user-id>",
	Short: "Recommend items to a user with a saved model.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		conf, shutdown := setup(cmd)
		defer shutdown()
		if conf.Checkpoint.URI == "" {
			log.Logger().Fatal("checkpoint uri is required")
		}
		n, _ := cmd.Flags().GetInt("number")
		ctx, cancel := signalContext()
		defer cancel()

		m, err := loadCheckpoint(ctx, conf.Checkpoint)
		if err != nil {
			log.Logger().Fatal("failed to load checkpoint", zap.Error(err))
		}
		trainSet, _, err := loadDataset(ctx, conf)
		if err != nil {
			log.Logger().Fatal("failed to load dataset", zap.Error(err))
		}
		userIndex, ok := trainSet.GetUserIndex(args[0])
		if !ok || int(userIndex) >= m.NumUsers() {
			log.Logger().Fatal("unknown user", zap.String("user_id", args[0]))
		}
		items, scores := recommend(m, trainSet, userIndex, n)
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("#", "Item", "Score")
		for i, itemIndex := range items {
			if err = table.Append(strconv.Itoa(i+1), trainSet.GetItemId(itemIndex), encoding.FormatFloat32(scores[i])); err != nil {
				log.Logger().Fatal("failed to print recommendations", zap.Error(err))
			}
		}
		if err = table.Render(); err != nil {
			log.Logger().Fatal("failed to print recommendations", zap.Error(err))
		}
	},
}

func init() {
	rootCommand.AddCommand(evaluateCommand)
	rootCommand.AddCommand(recommendCommand)
	recommendCommand.Flags().IntP("number", "n", 10, "number of recommendations")
}
