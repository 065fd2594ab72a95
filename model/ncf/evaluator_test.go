// Copyright 2020 gorse Project Authors
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
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/ncf/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const evalEpsilon = 0.00001

func EqualEpsilon(t *testing.T, expect, actual, epsilon float32, _ ...interface{}) {
	if actual < expect-epsilon || actual > expect+epsilon {
		t.Fatalf("Expect %f±%f, Actual: %f\n", expect, epsilon, actual)
	}
}

func TestNDCG(t *testing.T) {
	targetSet := mapset.NewSet[int32](1, 3, 5, 7)
	rankList := []int32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	EqualEpsilon(t, 0.6766372989, NDCG(targetSet, rankList), evalEpsilon)
	assert.Zero(t, NDCG(mapset.NewSet[int32](), rankList))
}

func TestPrecision(t *testing.T) {
	targetSet := mapset.NewSet[int32](1, 3, 5, 7)
	rankList := []int32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	EqualEpsilon(t, 0.4, Precision(targetSet, rankList), evalEpsilon)
}

func TestRecall(t *testing.T) {
	targetSet := mapset.NewSet[int32](1, 3, 15, 17, 19)
	rankList := []int32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	EqualEpsilon(t, 0.4, Recall(targetSet, rankList), evalEpsilon)
}

func TestMAP(t *testing.T) {
	targetSet := mapset.NewSet[int32](1, 3, 7, 9)
	rankList := []int32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	EqualEpsilon(t, 0.44375, MAP(targetSet, rankList), evalEpsilon)
}

func TestMRR(t *testing.T) {
	targetSet := mapset.NewSet[int32](3)
	rankList := []int32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	EqualEpsilon(t, 0.25, MRR(targetSet, rankList), evalEpsilon)
}

func TestHR(t *testing.T) {
	targetSet := mapset.NewSet[int32](1, 3)
	rankList := []int32{0, 2, 4, 6, 8, 10, 12, 14, 16, 18}
	EqualEpsilon(t, 0, HR(targetSet, rankList), evalEpsilon)
	rankList = []int32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	EqualEpsilon(t, 1, HR(targetSet, rankList), evalEpsilon)
}

// itemScorer scores items by their index regardless of users.
type itemScorer struct{}

func (itemScorer) Predict(_, items []int32) []float32 {
	scores := make([]float32, len(items))
	for i, item := range items {
		scores[i] = float32(item)
	}
	return scores
}

func TestEvaluate(t *testing.T) {
	testSet := dataset.NewDataset(2, 10)
	for i := 0; i < 10; i++ {
		testSet.AddItem(fmt.Sprintf("%d", i))
	}
	// the positive of u0 ranks first and that of u1 ranks third
	testSet.AddFeedback("u0", "9")
	testSet.SetNegatives("u0", []string{"0", "1", "2"})
	testSet.AddFeedback("u1", "3")
	testSet.SetNegatives("u1", []string{"4", "5", "0"})
	scores, err := Evaluate(context.Background(), itemScorer{}, testSet, 2, 2, HR, NDCG, MRR)
	require.NoError(t, err)
	EqualEpsilon(t, 0.5, scores[0], evalEpsilon)
	EqualEpsilon(t, 0.5, scores[1], evalEpsilon)
	EqualEpsilon(t, 0.5, scores[2], evalEpsilon)

	scores, err = Evaluate(context.Background(), itemScorer{}, testSet, 3, 1, HR, NDCG)
	require.NoError(t, err)
	EqualEpsilon(t, 1, scores[0], evalEpsilon)
	EqualEpsilon(t, 0.75, scores[1], evalEpsilon)
}

func TestEvaluate_AllItems(t *testing.T) {
	testSet := dataset.NewDataset(1, 10)
	for i := 0; i < 10; i++ {
		testSet.AddItem(fmt.Sprintf("%d", i))
	}
	testSet.AddFeedback("u0", "8")
	scores, err := Evaluate(context.Background(), itemScorer{}, testSet, 1, 1, HR)
	require.NoError(t, err)
	EqualEpsilon(t, 0, scores[0], evalEpsilon)
	scores, err = Evaluate(context.Background(), itemScorer{}, testSet, 2, 1, HR, MRR)
	require.NoError(t, err)
	EqualEpsilon(t, 1, scores[0], evalEpsilon)
	EqualEpsilon(t, 0.5, scores[1], evalEpsilon)
}

func TestEvaluate_Empty(t *testing.T) {
	scores, err := Evaluate(context.Background(), itemScorer{}, dataset.NewDataset(0, 0), 10, 4, HR, NDCG)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0}, scores)
}
