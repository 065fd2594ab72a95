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

package nn

import (
	"math/rand"

	"github.com/chewxy/math32"
)

// NormalInit fills t in place with samples from N(mean, std^2).
func NormalInit(t *Tensor, mean, std float32, rng *rand.Rand) {
	for i := range t.data {
		t.data[i] = float32(rng.NormFloat64())*std + mean
	}
}

// UniformInit fills t in place with samples from U(low, high).
func UniformInit(t *Tensor, low, high float32, rng *rand.Rand) {
	for i := range t.data {
		t.data[i] = rng.Float32()*(high-low) + low
	}
}

// XavierUniformInit fills a (fanIn, fanOut) weight matrix in place with
// samples from U(-a, a) where a = gain * sqrt(6 / (fanIn + fanOut)).
func XavierUniformInit(t *Tensor, gain float32, rng *rand.Rand) {
	if len(t.shape) != 2 {
		panic("xavier initialization requires a matrix")
	}
	fanIn, fanOut := t.shape[0], t.shape[1]
	a := gain * math32.Sqrt(6/float32(fanIn+fanOut))
	UniformInit(t, -a, a, rng)
}
