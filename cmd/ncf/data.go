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
	"context"
	"fmt"
	"io"

	"github.com/bits-and-blooms/bitset"
	"github.com/gorse-io/ncf/common/encoding"
	"github.com/gorse-io/ncf/common/log"
	"github.com/gorse-io/ncf/common/parallel"
	"github.com/gorse-io/ncf/config"
	"github.com/gorse-io/ncf/dataset"
	"github.com/gorse-io/ncf/model/ncf"
	"github.com/gorse-io/ncf/storage/blob"
	"github.com/gorse-io/ncf/storage/cache"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"go.uber.org/zap"
)

// loadDataset loads train and test sets from the database, the NCF files or
// the built-in dataset, in this order of precedence.
func loadDataset(ctx context.Context, conf *config.Config) (*dataset.Dataset, *dataset.Dataset, error) {
	switch {
	case conf.Dataset.Database != "":
		log.Logger().Info("load dataset from database",
			zap.String("database", log.RedactDBURL(conf.Dataset.Database)),
			zap.String("table", conf.Dataset.Table))
		data, err := dataset.LoadDataFromDatabase(ctx, conf.Dataset.Database, conf.Dataset.Table, conf.DatabaseOptions()...)
		if err != nil {
			return nil, nil, errors.Trace(err)
		}
		trainSet, testSet := data.SplitLatest(conf.Evaluation.NNegatives, conf.Model.RandomState)
		return trainSet, testSet, nil
	case conf.Dataset.TrainPath != "":
		log.Logger().Info("load dataset from files",
			zap.String("train_path", conf.Dataset.TrainPath),
			zap.String("test_path", conf.Dataset.TestPath))
		return dataset.LoadNCF(conf.Dataset.TrainPath, conf.Dataset.TestPath)
	default:
		log.Logger().Info("load built-in dataset", zap.String("name", conf.Dataset.Name))
		return dataset.LoadDataFromBuiltIn(ctx, conf.Dataset.Name)
	}
}

func saveCheckpoint(ctx context.Context, conf config.CheckpointConfig, m *ncf.NCF) error {
	store, err := blob.Open(conf)
	if err != nil {
		return errors.Trace(err)
	}
	return blob.Write(ctx, store, conf.Name, func(w io.Writer) error {
		return ncf.MarshalModel(w, m)
	})
}

func loadCheckpoint(ctx context.Context, conf config.CheckpointConfig) (*ncf.NCF, error) {
	store, err := blob.Open(conf)
	if err != nil {
		return nil, errors.Trace(err)
	}
	var m *ncf.NCF
	err = blob.Read(ctx, store, conf.Name, func(r io.Reader) error {
		m, err = ncf.UnmarshalModel(r)
		return err
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return m, nil
}

// recommend ranks the items a user has not interacted with.
func recommend(m *ncf.NCF, trainSet *dataset.Dataset, userIndex int32, n int) ([]int32, []float32) {
	seen := bitset.New(uint(trainSet.CountItems()))
	if feedback := trainSet.GetUserFeedback(); int(userIndex) < len(feedback) {
		for _, itemIndex := range feedback[userIndex] {
			seen.Set(uint(itemIndex))
		}
	}
	numItems := min(trainSet.CountItems(), m.NumItems())
	candidates := make([]int32, 0, numItems)
	for itemIndex := 0; itemIndex < numItems; itemIndex++ {
		if !seen.Test(uint(itemIndex)) {
			candidates = append(candidates, int32(itemIndex))
		}
	}
	return m.Recommend(userIndex, candidates, n)
}

// cacheRecommendations writes the top n recommendations of every user.
func cacheRecommendations(ctx context.Context, c *cache.Redis, m *ncf.NCF, trainSet *dataset.Dataset, n, jobs int) error {
	return parallel.Parallel(ctx, trainSet.CountUsers(), jobs, func(_, userIndex int) error {
		items, scores := recommend(m, trainSet, int32(userIndex), n)
		itemIds := make([]string, len(items))
		for i, itemIndex := range items {
			itemIds[i] = trainSet.GetItemId(itemIndex)
		}
		return c.SetRecommend(ctx, trainSet.GetUserId(int32(userIndex)), itemIds, scores)
	})
}

func printScore(w io.Writer, topK int, score ncf.Score) error {
	table := tablewriter.NewWriter(w)
	table.Header("Metric", "Score")
	rows := [][]string{
		{fmt.Sprintf("HR@%d", topK), encoding.FormatFloat32(score.HR)},
		{fmt.Sprintf("NDCG@%d", topK), encoding.FormatFloat32(score.NDCG)},
		{fmt.Sprintf("Precision@%d", topK), encoding.FormatFloat32(score.Precision)},
		{fmt.Sprintf("Recall@%d", topK), encoding.FormatFloat32(score.Recall)},
	}
	if score.Loss != 0 {
		rows = append(rows, []string{"Loss", encoding.FormatFloat32(score.Loss)})
	}
	for _, row := range rows {
		if err := table.Append(row[0], row[1]); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(table.Render())
}
