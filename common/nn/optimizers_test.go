// Copyright 2024 gorse Project Authors
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

package nn_test

import (
	"math/rand"
	"testing"

	"github.com/gorse-io/ncf/common/nn"
	"github.com/stretchr/testify/assert"
)

func testOptimizer[T nn.Optimizer](optimizerCreator func(params []*nn.Tensor, lr float32) T, lr float32, epochs int) (losses []float32) {
	// Create random input and output data: y = x * (1, 2, 3) + 0.5
	rng := rand.New(rand.NewSource(0))
	const n = 100
	x := nn.Zeros(n, 3)
	nn.UniformInit(x, 0, 1, rng)
	target := make([]float32, n)
	for i := 0; i < n; i++ {
		row := x.Data()[i*3 : i*3+3]
		target[i] = row[0] + 2*row[1] + 3*row[2] + 0.5
	}
	y := nn.NewTensor(target, n)

	model := nn.NewLinear(3, 1, rng)
	optimizer := optimizerCreator(model.Parameters(), lr)
	for i := 0; i < epochs; i++ {
		yPred := nn.Flatten(model.Forward(x))
		loss := nn.MSE(yPred, y)
		losses = append(losses, loss.Data()[0])
		optimizer.ZeroGrad()
		loss.Backward()
		optimizer.Step()
	}
	return
}

func TestSGD(t *testing.T) {
	losses := testOptimizer(nn.NewSGD, 0.1, 200)
	assert.IsDecreasing(t, losses)
	assert.Less(t, losses[len(losses)-1], losses[0]/10)
}

func TestAdam(t *testing.T) {
	losses := testOptimizer(nn.NewAdam, 0.05, 1000)
	assert.Less(t, losses[len(losses)-1], losses[0])
	assert.Less(t, losses[len(losses)-1], float32(0.1))
}

func TestWeightDecay(t *testing.T) {
	w := nn.NewTensor([]float32{1, -1}, 2)
	optimizer := nn.NewSGD([]*nn.Tensor{w}, 0.5)
	optimizer.SetWeightDecay(1)
	optimizer.ZeroGrad()
	nn.Sum(nn.Mul(w, nn.NewTensor([]float32{0, 0}, 2))).Backward()
	optimizer.Step()
	assert.Equal(t, []float32{0.5, -0.5}, w.Data())
}

func TestSkipParamsWithoutGrad(t *testing.T) {
	w := nn.NewTensor([]float32{1, 2}, 2)
	adam := nn.NewAdam([]*nn.Tensor{w}, 0.1)
	adam.ZeroGrad()
	adam.Step()
	assert.Equal(t, []float32{1, 2}, w.Data())
}

func TestAdam_FirstStep(t *testing.T) {
	// The first bias-corrected step moves each weight by lr against the sign
	// of its gradient. A parameter without gradient is skipped and its later
	// first step is as large.
	used := nn.NewTensor([]float32{1, 1}, 2)
	unused := nn.NewTensor([]float32{1, 1}, 2)
	adam := nn.NewAdam([]*nn.Tensor{used, unused}, 0.1)
	for i := 0; i < 3; i++ {
		adam.ZeroGrad()
		nn.Sum(nn.Mul(used, nn.NewTensor([]float32{2, -3}, 2))).Backward()
		adam.Step()
	}
	assert.InDeltaSlice(t, []float32{0.7, 1.3}, used.Data(), 1e-4)
	assert.Equal(t, []float32{1, 1}, unused.Data())

	adam.ZeroGrad()
	nn.Sum(nn.Mul(unused, nn.NewTensor([]float32{5, -5}, 2))).Backward()
	adam.Step()
	assert.InDeltaSlice(t, []float32{0.9, 1.1}, unused.Data(), 1e-4)
}
