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

package nn

import (
	"math/rand"

	"github.com/chewxy/math32"
)

// Layer is a differentiable function with trainable parameters.
type Layer interface {
	Parameters() []*Tensor
	Forward(x *Tensor) *Tensor
}

// LinearLayer computes x W + B. W has shape (in, out).
type LinearLayer struct {
	W *Tensor
	B *Tensor
}

// NewLinear creates a linear layer whose weights and biases are drawn from
// U(-1/sqrt(in), 1/sqrt(in)).
func NewLinear(in, out int, rng *rand.Rand) *LinearLayer {
	bound := 1 / math32.Sqrt(float32(in))
	l := &LinearLayer{W: Zeros(in, out), B: Zeros(out)}
	UniformInit(l.W, -bound, bound, rng)
	UniformInit(l.B, -bound, bound, rng)
	return l
}

func (l *LinearLayer) Forward(x *Tensor) *Tensor {
	return Add(MatMul(x, l.W, false, false), l.B)
}

func (l *LinearLayer) Parameters() []*Tensor {
	return []*Tensor{l.W, l.B}
}

// EmbeddingLayer maps indices to rows of W.
type EmbeddingLayer struct {
	W *Tensor
}

// NewEmbedding creates n vectors of size dim drawn from N(0, 1).
func NewEmbedding(n, dim int, rng *rand.Rand) *EmbeddingLayer {
	e := &EmbeddingLayer{W: Zeros(n, dim)}
	NormalInit(e.W, 0, 1, rng)
	return e
}

func (e *EmbeddingLayer) Parameters() []*Tensor {
	return []*Tensor{e.W}
}

func (e *EmbeddingLayer) Forward(x *Tensor) *Tensor {
	return Embedding(e.W, x)
}

type reluLayer struct{}

func NewReLU() Layer {
	return &reluLayer{}
}

func (r *reluLayer) Parameters() []*Tensor {
	return nil
}

func (r *reluLayer) Forward(x *Tensor) *Tensor {
	return ReLu(x)
}

type Sequential struct {
	Layers []Layer
}

func NewSequential(layers ...Layer) *Sequential {
	return &Sequential{Layers: layers}
}

// NewMLP stacks a linear layer followed by ReLU for every consecutive pair in
// sizes. A single size gives the identity.
func NewMLP(sizes []int, rng *rand.Rand) *Sequential {
	var layers []Layer
	for i := 1; i < len(sizes); i++ {
		layers = append(layers, NewLinear(sizes[i-1], sizes[i], rng), NewReLU())
	}
	return NewSequential(layers...)
}

func (s *Sequential) Parameters() []*Tensor {
	var params []*Tensor
	for _, l := range s.Layers {
		params = append(params, l.Parameters()...)
	}
	return params
}

// Linears returns the linear layers in order.
func (s *Sequential) Linears() []*LinearLayer {
	var linears []*LinearLayer
	for _, l := range s.Layers {
		if linear, ok := l.(*LinearLayer); ok {
			linears = append(linears, linear)
		}
	}
	return linears
}

func (s *Sequential) Forward(x *Tensor) *Tensor {
	for _, l := range s.Layers {
		x = l.Forward(x)
	}
	return x
}
