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
	"github.com/chewxy/math32"
)

// Optimizer updates parameters from the gradients of the last backward pass.
type Optimizer interface {
	SetWeightDecay(rate float32)
	ZeroGrad()
	Step()
}

type optimizer struct {
	params []*Tensor
	wd     float32
}

func (o *optimizer) ZeroGrad() {
	for _, p := range o.params {
		p.grad = nil
	}
}

func (o *optimizer) SetWeightDecay(wd float32) {
	o.wd = wd
}

// gradient returns the L2-regularized gradient of p, or nil if p took no part
// in the last backward pass.
func (o *optimizer) gradient(p *Tensor) []float32 {
	if p.grad == nil {
		return nil
	}
	if o.wd == 0 {
		return p.grad.data
	}
	g := make([]float32, len(p.data))
	for i := range g {
		g[i] = p.grad.data[i] + o.wd*p.data[i]
	}
	return g
}

type SGD struct {
	optimizer
	lr float32
}

func NewSGD(params []*Tensor, lr float32) *SGD {
	return &SGD{
		optimizer: optimizer{params: params},
		lr:        lr,
	}
}

func (s *SGD) Step() {
	for _, p := range s.params {
		for i, g := range s.gradient(p) {
			p.data[i] -= s.lr * g
		}
	}
}

// Adam keeps moment estimates and a step count per parameter, so parameters
// that receive no gradient are neither updated nor aged.
type Adam struct {
	optimizer
	lr    float32
	beta1 float32
	beta2 float32
	eps   float32
	m     [][]float32
	v     [][]float32
	steps []int
}

func NewAdam(params []*Tensor, lr float32) *Adam {
	return &Adam{
		optimizer: optimizer{params: params},
		lr:        lr,
		beta1:     0.9,
		beta2:     0.999,
		eps:       1e-8,
		m:         make([][]float32, len(params)),
		v:         make([][]float32, len(params)),
		steps:     make([]int, len(params)),
	}
}

func (a *Adam) Step() {
	for i, p := range a.params {
		g := a.gradient(p)
		if g == nil {
			continue
		}
		if a.m[i] == nil {
			a.m[i] = make([]float32, len(p.data))
			a.v[i] = make([]float32, len(p.data))
		}
		a.steps[i]++
		t := float32(a.steps[i])
		// bias corrections folded into the step size
		lr := a.lr * math32.Sqrt(1-math32.Pow(a.beta2, t)) / (1 - math32.Pow(a.beta1, t))
		m, v := a.m[i], a.v[i]
		for j := range p.data {
			m[j] = a.beta1*m[j] + (1-a.beta1)*g[j]
			v[j] = a.beta2*v[j] + (1-a.beta2)*g[j]*g[j]
			p.data[j] -= lr * m[j] / (math32.Sqrt(v[j]) + a.eps)
		}
	}
}
