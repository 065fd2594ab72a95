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
	"fmt"
	"slices"

	"github.com/chewxy/math32"
)

// MSE returns the mean squared error between two tensors.
func MSE(x, y *Tensor) *Tensor {
	return Mean(Square(Sub(x, y)))
}

type bceWithLogits struct {
	base
}

func (b *bceWithLogits) String() string {
	return "BCEWithLogits"
}

// forward computes mean(max(x,0) - x*y + log(1+exp(-|x|))).
func (b *bceWithLogits) forward(inputs ...*Tensor) *Tensor {
	x, y := inputs[0], inputs[1]
	loss := float32(0)
	for i := range x.data {
		loss += max(x.data[i], 0) - x.data[i]*y.data[i] + math32.Log1p(math32.Exp(-math32.Abs(x.data[i])))
	}
	return NewScalar(loss / float32(len(x.data)))
}

func (b *bceWithLogits) backward(dy *Tensor) []*Tensor {
	x, y := b.inputs[0], b.inputs[1]
	n := float32(len(x.data))
	dx := Zeros(x.shape...)
	for i := range x.data {
		dx.data[i] = dy.data[0] * (stableSigmoid(x.data[i]) - y.data[i]) / n
	}
	return []*Tensor{dx, nil}
}

// BCEWithLogits returns the mean binary cross entropy between sigmoid(logits)
// and targets. Targets do not receive gradients.
func BCEWithLogits(logits, targets *Tensor) *Tensor {
	if !slices.Equal(logits.shape, targets.shape) {
		panic(fmt.Sprintf("logits of shape %v do not match targets of shape %v", logits.shape, targets.shape))
	}
	return apply(&bceWithLogits{}, logits, targets)
}

// BCE returns the mean binary cross entropy between probabilities and targets.
// Probabilities are clipped away from 0 and 1. The result is detached from
// the graph.
func BCE(probs, targets *Tensor) *Tensor {
	const eps = 1e-7
	loss := float32(0)
	for i := range probs.data {
		p := min(max(probs.data[i], eps), 1-eps)
		loss -= targets.data[i]*math32.Log(p) + (1-targets.data[i])*math32.Log(1-p)
	}
	return NewScalar(loss / float32(len(probs.data)))
}
