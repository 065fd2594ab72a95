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
	"fmt"
	"strings"

	"github.com/chewxy/math32"
)

// Tensor is a dense float32 array with an optional gradient. Tensors produced
// by operations remember the operation so that Backward can propagate
// gradients to their inputs.
type Tensor struct {
	data  []float32
	shape []int
	grad  *Tensor
	op    op
}

func NewTensor(data []float32, shape ...int) *Tensor {
	if size := numel(shape); size != len(data) {
		panic(fmt.Sprintf("tensor of shape %v requires %d elements, but got %d", shape, size, len(data)))
	}
	return &Tensor{
		data:  data,
		shape: shape,
	}
}

func NewScalar(data float32) *Tensor {
	return &Tensor{
		data:  []float32{data},
		shape: []int{},
	}
}

// NewIndices converts integer indices to a rank-1 tensor accepted by Embedding.
func NewIndices(indices []int32) *Tensor {
	data := make([]float32, len(indices))
	for i, index := range indices {
		data[i] = float32(index)
	}
	return &Tensor{
		data:  data,
		shape: []int{len(indices)},
	}
}

// Ones creates a tensor filled with ones.
func Ones(shape ...int) *Tensor {
	data := make([]float32, numel(shape))
	for i := range data {
		data[i] = 1
	}
	return &Tensor{
		data:  data,
		shape: shape,
	}
}

// Zeros creates a tensor filled with zeros.
func Zeros(shape ...int) *Tensor {
	return &Tensor{
		data:  make([]float32, numel(shape)),
		shape: shape,
	}
}

// NoGrad detaches a tensor from the graph that produced it.
func (t *Tensor) NoGrad() *Tensor {
	t.op = nil
	return t
}

func (t *Tensor) Data() []float32 {
	return t.data
}

func (t *Tensor) Shape() []int {
	return t.shape
}

func (t *Tensor) Grad() *Tensor {
	return t.grad
}

// Numel returns the number of elements.
func (t *Tensor) Numel() int {
	return len(t.data)
}

func (t *Tensor) String() string {
	// Print scalar value
	if len(t.shape) == 0 {
		return fmt.Sprint(t.data[0])
	}

	builder := strings.Builder{}
	builder.WriteString("[")
	if len(t.data) <= 10 {
		for i := 0; i < len(t.data); i++ {
			builder.WriteString(fmt.Sprint(t.data[i]))
			if i != len(t.data)-1 {
				builder.WriteString(", ")
			}
		}
	} else {
		for i := 0; i < 5; i++ {
			builder.WriteString(fmt.Sprint(t.data[i]))
			builder.WriteString(", ")
		}
		builder.WriteString("..., ")
		for i := len(t.data) - 5; i < len(t.data); i++ {
			builder.WriteString(fmt.Sprint(t.data[i]))
			if i != len(t.data)-1 {
				builder.WriteString(", ")
			}
		}
	}
	builder.WriteString("]")
	return builder.String()
}

// Backward computes gradients of t with respect to every tensor in its graph.
// Gradients are accumulated into leaves until they are cleared by an optimizer.
func (t *Tensor) Backward() {
	t.grad = Ones(t.shape...)
	if t.op == nil {
		return
	}
	// Operations in topological order, the output last.
	var (
		order   []op
		visited = make(map[op]struct{})
		visit   func(o op)
	)
	visit = func(o op) {
		if _, ok := visited[o]; ok {
			return
		}
		visited[o] = struct{}{}
		inputs, _ := o.inputsAndOutput()
		for _, input := range inputs {
			if input.op != nil {
				visit(input.op)
			}
		}
		order = append(order, o)
	}
	visit(t.op)
	for i := len(order) - 1; i >= 0; i-- {
		inputs, output := order[i].inputsAndOutput()
		if output.grad == nil {
			continue
		}
		grads := order[i].backward(output.grad)
		for j := range grads {
			if grads[j] != nil {
				inputs[j].accumulate(grads[j])
			}
		}
	}
}

func (t *Tensor) accumulate(g *Tensor) {
	if t.grad == nil {
		t.grad = &Tensor{data: make([]float32, len(t.data)), shape: t.shape}
	}
	for i := range t.grad.data {
		t.grad.data[i] += g.data[i]
	}
}

func (t *Tensor) clone() *Tensor {
	newData := make([]float32, len(t.data))
	copy(newData, t.data)
	return &Tensor{
		data:  newData,
		shape: t.shape,
	}
}

func (t *Tensor) add(other *Tensor) *Tensor {
	wSize := len(other.data)
	for i := range t.data {
		t.data[i] += other.data[i%wSize]
	}
	return t
}

func (t *Tensor) sub(other *Tensor) *Tensor {
	wSize := len(other.data)
	for i := range t.data {
		t.data[i] -= other.data[i%wSize]
	}
	return t
}

func (t *Tensor) mul(other *Tensor) *Tensor {
	wSize := len(other.data)
	for i := range t.data {
		t.data[i] *= other.data[i%wSize]
	}
	return t
}

func (t *Tensor) div(other *Tensor) *Tensor {
	wSize := len(other.data)
	for i := range t.data {
		t.data[i] /= other.data[i%wSize]
	}
	return t
}

func (t *Tensor) square() *Tensor {
	for i := range t.data {
		t.data[i] = t.data[i] * t.data[i]
	}
	return t
}

func (t *Tensor) exp() *Tensor {
	for i := range t.data {
		t.data[i] = math32.Exp(t.data[i])
	}
	return t
}

func (t *Tensor) log() *Tensor {
	for i := range t.data {
		t.data[i] = math32.Log(t.data[i])
	}
	return t
}

func (t *Tensor) sum() float32 {
	sum := float32(0)
	for i := range t.data {
		sum += t.data[i]
	}
	return sum
}

// matMul multiplies two matrices, optionally transposing either of them.
func (t *Tensor) matMul(other *Tensor, transA, transB bool) *Tensor {
	if len(t.shape) != 2 || len(other.shape) != 2 {
		panic("matMul requires two matrices")
	}
	m, k := t.shape[0], t.shape[1]
	if transA {
		m, k = k, m
	}
	k2, n := other.shape[0], other.shape[1]
	if transB {
		k2, n = n, k2
	}
	if k != k2 {
		panic(fmt.Sprintf("matMul shape mismatch: %v x %v (transA=%v, transB=%v)", t.shape, other.shape, transA, transB))
	}
	a := func(i, j int) float32 {
		if transA {
			return t.data[j*t.shape[1]+i]
		}
		return t.data[i*t.shape[1]+j]
	}
	b := func(i, j int) float32 {
		if transB {
			return other.data[j*other.shape[1]+i]
		}
		return other.data[i*other.shape[1]+j]
	}
	y := Zeros(m, n)
	for i := 0; i < m; i++ {
		for l := 0; l < k; l++ {
			ail := a(i, l)
			if ail == 0 {
				continue
			}
			row := y.data[i*n : (i+1)*n]
			for j := range row {
				row[j] += ail * b(l, j)
			}
		}
	}
	return y
}

func numel(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}
