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

package dataset

import (
	"github.com/bits-and-blooms/bitset"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/ncf/model"
	"github.com/samber/lo"
	"modernc.org/mathutil"
)

// Samples are labeled (user, item) pairs stored column-wise.
type Samples struct {
	Users  []int32
	Items  []int32
	Labels []float32
}

func (s *Samples) Len() int {
	return len(s.Users)
}

func (s *Samples) append(user, item int32, label float32) {
	s.Users = append(s.Users, user)
	s.Items = append(s.Items, item)
	s.Labels = append(s.Labels, label)
}

// Shuffle permutes samples in place.
func (s *Samples) Shuffle(rng model.RandomGenerator) {
	rng.Shuffle(s.Len(), func(i, j int) {
		s.Users[i], s.Users[j] = s.Users[j], s.Users[i]
		s.Items[i], s.Items[j] = s.Items[j], s.Items[i]
		s.Labels[i], s.Labels[j] = s.Labels[j], s.Labels[i]
	})
}

// Batch returns samples in [begin, end). end is clipped to Len. The result
// shares memory with s.
func (s *Samples) Batch(begin, end int) *Samples {
	end = mathutil.Min(end, s.Len())
	begin = mathutil.Min(begin, end)
	return &Samples{
		Users:  s.Users[begin:end],
		Items:  s.Items[begin:end],
		Labels: s.Labels[begin:end],
	}
}

// NegativeSample pairs every positive feedback with numNegatives items drawn
// uniformly from those the user has not interacted with. Negatives may repeat
// across positives. Users who have interacted with every item get no negatives.
func (d *Dataset) NegativeSample(numNegatives int, rng model.RandomGenerator) *Samples {
	numItems := int32(d.CountItems())
	capacity := d.CountFeedback() * (numNegatives + 1)
	samples := &Samples{
		Users:  make([]int32, 0, capacity),
		Items:  make([]int32, 0, capacity),
		Labels: make([]float32, 0, capacity),
	}
	positives := bitset.New(uint(numItems))
	for userIndex, items := range d.GetUserFeedback() {
		positives.ClearAll()
		for _, itemIndex := range items {
			positives.Set(uint(itemIndex))
		}
		saturated := positives.Count() >= uint(numItems)
		for _, itemIndex := range items {
			samples.append(int32(userIndex), itemIndex, 1)
			if saturated {
				continue
			}
			for n := 0; n < numNegatives; n++ {
				j := rng.Int31n(numItems)
				for positives.Test(uint(j)) {
					j = rng.Int31n(numItems)
				}
				samples.append(int32(userIndex), j, 0)
			}
		}
	}
	return samples
}

// SplitLatest holds out the latest feedback of every user with at least two
// distinct items and samples numNegatives test negatives for them. Feedback is
// assumed to be added in chronological order. Repeated items of a user are
// merged at their latest position.
func (d *Dataset) SplitLatest(numNegatives int, seed int64) (*Dataset, *Dataset) {
	rng := model.NewRandomGenerator(seed)
	train, test := d.derive(), d.derive()
	test.negatives = make([][]int32, 0, d.CountUsers())
	numItems := int32(d.CountItems())
	for userIndex, items := range d.GetUserFeedback() {
		items = latestUnique(items)
		if len(items) < 2 {
			for _, itemIndex := range items {
				train.addFeedback(int32(userIndex), itemIndex)
			}
			continue
		}
		for _, itemIndex := range items[:len(items)-1] {
			train.addFeedback(int32(userIndex), itemIndex)
		}
		test.addFeedback(int32(userIndex), items[len(items)-1])
		exclude := mapset.NewThreadUnsafeSet(items...)
		test.setNegatives(int32(userIndex), rng.SampleInt32(0, numItems, numNegatives, exclude))
	}
	train.sync()
	test.sync()
	return train, test
}

// latestUnique drops repeated items, keeping each at its last occurrence.
func latestUnique(items []int32) []int32 {
	seen := mapset.NewThreadUnsafeSet[int32]()
	unique := make([]int32, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		if seen.Add(items[i]) {
			unique = append(unique, items[i])
		}
	}
	return lo.Reverse(unique)
}
