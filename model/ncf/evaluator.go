// Copyright 2021 gorse Project Authors
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

	"github.com/chewxy/math32"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/ncf/common/parallel"
	"github.com/gorse-io/ncf/dataset"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

// Scorer predicts interaction probabilities of (user, item) pairs.
type Scorer interface {
	Predict(users, items []int32) []float32
}

// Metric is used by evaluators in personalized ranking tasks.
type Metric func(targetSet mapset.Set[int32], rankList []int32) float32

// Evaluate ranks test positives among candidates for every user with test
// feedback and returns the mean value of each metric. Candidates are the
// user's test positives plus sampled negatives, or every item if the test set
// carries no negatives.
func Evaluate(ctx context.Context, scorer Scorer, testSet *dataset.Dataset, topK, jobs int, metrics ...Metric) ([]float32, error) {
	if topK <= 0 {
		return nil, errors.NotValidf("top k %d", topK)
	}
	jobs = max(jobs, 1)
	partSum := make([][]float32, jobs)
	partCount := make([]float32, jobs)
	for i := range partSum {
		partSum[i] = make([]float32, len(metrics))
	}
	userFeedback := testSet.GetUserFeedback()
	negatives := testSet.GetNegatives()
	allItems := lo.Range(testSet.CountItems())
	err := parallel.Parallel(ctx, len(userFeedback), jobs, func(workerId, userIndex int) error {
		positives := userFeedback[userIndex]
		if len(positives) == 0 {
			return nil
		}
		var candidates []int32
		if negatives != nil {
			candidates = make([]int32, 0, len(positives)+len(negatives[userIndex]))
			candidates = append(candidates, positives...)
			candidates = append(candidates, negatives[userIndex]...)
		} else {
			candidates = lo.Map(allItems, func(i, _ int) int32 { return int32(i) })
		}
		rankList, _ := Rank(scorer, int32(userIndex), candidates, topK)
		targetSet := mapset.NewThreadUnsafeSet(positives...)
		for i, metric := range metrics {
			partSum[workerId][i] += metric(targetSet, rankList)
		}
		partCount[workerId]++
		return nil
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	count := lo.Sum(partCount)
	results := make([]float32, len(metrics))
	if count == 0 {
		return results, nil
	}
	for i := range metrics {
		for j := range partSum {
			results[i] += partSum[j][i]
		}
		results[i] /= count
	}
	return results, nil
}

// NDCG means Normalized Discounted Cumulative Gain.
func NDCG(targetSet mapset.Set[int32], rankList []int32) float32 {
	// IDCG = \sum^{N}_{i=1} 1 / log(i+1)
	idcg := float32(0)
	for i := 0; i < targetSet.Cardinality() && i < len(rankList); i++ {
		idcg += 1.0 / math32.Log2(float32(i)+2.0)
	}
	// DCG = \sum^{N}_{i=1} 1 / log(i+1)
	dcg := float32(0)
	for i, itemId := range rankList {
		if targetSet.Contains(itemId) {
			dcg += 1.0 / math32.Log2(float32(i)+2.0)
		}
	}
	if idcg == 0 {
		return 0
	}
	return dcg / idcg
}

// Precision is the fraction of relevant items among recommended items.
//
//	\frac{|relevant documents| \cap |retrieved documents|}
//	{|{retrieved documents}|}
func Precision(targetSet mapset.Set[int32], rankList []int32) float32 {
	if len(rankList) == 0 {
		return 0
	}
	hit := float32(0)
	for _, itemId := range rankList {
		if targetSet.Contains(itemId) {
			hit++
		}
	}
	return hit / float32(len(rankList))
}

// Recall is the fraction of relevant items that have been recommended.
//
//	\frac{|relevant documents| \cap |retrieved documents|}
//	{|{relevant documents}|}
func Recall(targetSet mapset.Set[int32], rankList []int32) float32 {
	if targetSet.Cardinality() == 0 {
		return 0
	}
	hit := float32(0)
	for _, itemId := range rankList {
		if targetSet.Contains(itemId) {
			hit++
		}
	}
	return hit / float32(targetSet.Cardinality())
}

// HR means Hit Ratio.
func HR(targetSet mapset.Set[int32], rankList []int32) float32 {
	for _, itemId := range rankList {
		if targetSet.Contains(itemId) {
			return 1
		}
	}
	return 0
}

// MAP means Mean Average Precision.
// mAP: http://sdsawtelle.github.io/blog/output/mean-average-precision-MAP-for-recommender-systems.html
func MAP(targetSet mapset.Set[int32], rankList []int32) float32 {
	sumPrecision := float32(0)
	hit := 0
	for i, itemId := range rankList {
		if targetSet.Contains(itemId) {
			hit++
			sumPrecision += float32(hit) / float32(i+1)
		}
	}
	if targetSet.Cardinality() == 0 {
		return 0
	}
	return sumPrecision / float32(targetSet.Cardinality())
}

// MRR means Mean Reciprocal Rank.
//
// The mean reciprocal rank is a statistic measure for evaluating any process
// that produces a list of possible responses to a sample of queries, ordered
// by probability of correctness. The reciprocal rank of a query response is
// the multiplicative inverse of the rank of the first correct answer: 1 for
// first place, 1⁄2 for second place, 1⁄3 for third place and so on. The
// mean reciprocal rank is the average of the reciprocal ranks of results for
// a sample of queries Q:
//
//	MRR = \frac{1}{Q} \sum^{|Q|}_{i=1} \frac{1}{rank_i}
func MRR(targetSet mapset.Set[int32], rankList []int32) float32 {
	for i, itemId := range rankList {
		if targetSet.Contains(itemId) {
			return 1 / float32(i+1)
		}
	}
	return 0
}

// Evaluate returns the mean hit ratio and NDCG of the top k ranked candidates.
func (m *NCF) Evaluate(ctx context.Context, testSet *dataset.Dataset, topK int) (hr, ndcg float32, err error) {
	if err = m.checkDataset(testSet); err != nil {
		return 0, 0, err
	}
	scores, err := Evaluate(ctx, m, testSet, topK, m.jobs, HR, NDCG)
	if err != nil {
		return 0, 0, errors.Trace(err)
	}
	return scores[0], scores[1], nil
}
