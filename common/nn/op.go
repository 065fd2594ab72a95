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
	"slices"

	"github.com/chewxy/math32"
)

type op interface {
	String() string
	forward(inputs ...*Tensor) *Tensor
	backward(dy *Tensor) []*Tensor
	inputsAndOutput() ([]*Tensor, *Tensor)
	setInputs(inputs ...*Tensor)
	setOutput(y *Tensor)
}

type base struct {
	inputs []*Tensor
	output *Tensor
}

func (b *base) inputsAndOutput() ([]*Tensor, *Tensor) {
	return b.inputs, b.output
}

func (b *base) setInputs(inputs ...*Tensor) {
	b.inputs = inputs
}

func (b *base) setOutput(y *Tensor) {
	b.output = y
}

func apply[T op](f T, inputs ...*Tensor) *Tensor {
	y := f.forward(inputs...)
	f.setInputs(inputs...)
	f.setOutput(y)
	y.op = f
	return y
}

// reduceSuffix sums dy into a tensor with the suffix shape.
func reduceSuffix(dy *Tensor, shape []int) *Tensor {
	gx := Zeros(shape...)
	wSize := len(gx.data)
	for i := range dy.data {
		gx.data[i%wSize] += dy.data[i]
	}
	return gx
}

type add struct {
	base
}

func (a *add) String() string {
	return "Add"
}

func (a *add) forward(inputs ...*Tensor) *Tensor {
	y := inputs[0].clone()
	y.add(inputs[1])
	return y
}

func (a *add) backward(dy *Tensor) []*Tensor {
	return []*Tensor{dy.clone(), reduceSuffix(dy, a.inputs[1].shape)}
}

type sub struct {
	base
}

func (s *sub) String() string {
	return "Sub"
}

func (s *sub) forward(inputs ...*Tensor) *Tensor {
	y := inputs[0].clone()
	y.sub(inputs[1])
	return y
}

func (s *sub) backward(dy *Tensor) []*Tensor {
	gx1 := reduceSuffix(dy, s.inputs[1].shape)
	for i := range gx1.data {
		gx1.data[i] = -gx1.data[i]
	}
	return []*Tensor{dy.clone(), gx1}
}

type mul struct {
	base
}

func (m *mul) String() string {
	return "Mul"
}

func (m *mul) forward(inputs ...*Tensor) *Tensor {
	y := inputs[0].clone()
	y.mul(inputs[1])
	return y
}

func (m *mul) backward(dy *Tensor) []*Tensor {
	gx0 := dy.clone()
	gx0.mul(m.inputs[1])
	gx1 := Zeros(m.inputs[1].shape...)
	wSize := len(gx1.data)
	for i := range dy.data {
		gx1.data[i%wSize] += dy.data[i] * m.inputs[0].data[i]
	}
	return []*Tensor{gx0, gx1}
}

type div struct {
	base
}

func (d *div) String() string {
	return "Div"
}

func (d *div) forward(inputs ...*Tensor) *Tensor {
	y := inputs[0].clone()
	y.div(inputs[1])
	return y
}

func (d *div) backward(dy *Tensor) []*Tensor {
	x0, x1 := d.inputs[0], d.inputs[1]
	wSize := len(x1.data)
	gx0 := Zeros(x0.shape...)
	gx1 := Zeros(x1.shape...)
	for i := range dy.data {
		w := x1.data[i%wSize]
		gx0.data[i] = dy.data[i] / w
		gx1.data[i%wSize] -= dy.data[i] * x0.data[i] / w / w
	}
	return []*Tensor{gx0, gx1}
}

type square struct {
	base
}

func (s *square) String() string {
	return "Square"
}

func (s *square) forward(inputs ...*Tensor) *Tensor {
	y := inputs[0].clone()
	y.square()
	return y
}

func (s *square) backward(dy *Tensor) []*Tensor {
	dx := s.inputs[0].clone()
	dx.mul(dy)
	for i := range dx.data {
		dx.data[i] *= 2
	}
	return []*Tensor{dx}
}

type exp struct {
	base
}

func (e *exp) String() string {
	return "Exp"
}

func (e *exp) forward(inputs ...*Tensor) *Tensor {
	y := inputs[0].clone()
	y.exp()
	return y
}

func (e *exp) backward(dy *Tensor) []*Tensor {
	dx := e.output.clone()
	dx.mul(dy)
	return []*Tensor{dx}
}

type log struct {
	base
}

func (l *log) String() string {
	return "Log"
}

func (l *log) forward(inputs ...*Tensor) *Tensor {
	y := inputs[0].clone()
	y.log()
	return y
}

func (l *log) backward(dy *Tensor) []*Tensor {
	dx := dy.clone()
	dx.div(l.inputs[0])
	return []*Tensor{dx}
}

type sum struct {
	base
}

func (s *sum) String() string {
	return "Sum"
}

func (s *sum) forward(inputs ...*Tensor) *Tensor {
	return NewScalar(inputs[0].sum())
}

func (s *sum) backward(dy *Tensor) []*Tensor {
	dx := Zeros(s.inputs[0].shape...)
	for i := range dx.data {
		dx.data[i] = dy.data[0]
	}
	return []*Tensor{dx}
}

type mean struct {
	base
}

func (m *mean) String() string {
	return "Mean"
}

func (m *mean) forward(inputs ...*Tensor) *Tensor {
	x := inputs[0]
	return NewScalar(x.sum() / float32(len(x.data)))
}

func (m *mean) backward(dy *Tensor) []*Tensor {
	dx := Zeros(m.inputs[0].shape...)
	for i := range dx.data {
		dx.data[i] = dy.data[0] / float32(len(dx.data))
	}
	return []*Tensor{dx}
}

type matMul struct {
	base
	transA bool
	transB bool
}

func (m *matMul) String() string {
	return "MatMul"
}

func (m *matMul) forward(inputs ...*Tensor) *Tensor {
	return inputs[0].matMul(inputs[1], m.transA, m.transB)
}

func (m *matMul) backward(dy *Tensor) []*Tensor {
	a, b := m.inputs[0], m.inputs[1]
	var da, db *Tensor
	switch {
	case !m.transA && !m.transB:
		da = dy.matMul(b, false, true)
		db = a.matMul(dy, true, false)
	case m.transA && !m.transB:
		da = b.matMul(dy, false, true)
		db = a.matMul(dy, false, false)
	case !m.transA && m.transB:
		da = dy.matMul(b, false, false)
		db = dy.matMul(a, true, false)
	default:
		da = b.matMul(dy, true, true)
		db = dy.matMul(a, true, true)
	}
	return []*Tensor{da, db}
}

type flatten struct {
	base
}

func (f *flatten) String() string {
	return "Flatten"
}

func (f *flatten) forward(inputs ...*Tensor) *Tensor {
	y := inputs[0].clone()
	y.shape = []int{len(y.data)}
	return y
}

func (f *flatten) backward(dy *Tensor) []*Tensor {
	dx := dy.clone()
	dx.shape = f.inputs[0].shape
	return []*Tensor{dx}
}

type reshape struct {
	base
	shape []int
}

func (r *reshape) String() string {
	return "Reshape"
}

func (r *reshape) forward(inputs ...*Tensor) *Tensor {
	y := inputs[0].clone()
	y.shape = r.shape
	return y
}

func (r *reshape) backward(dy *Tensor) []*Tensor {
	dx := dy.clone()
	dx.shape = r.inputs[0].shape
	return []*Tensor{dx}
}

// concat joins two tensors along the last axis.
type concat struct {
	base
}

func (c *concat) String() string {
	return "Concat"
}

func (c *concat) forward(inputs ...*Tensor) *Tensor {
	x0, x1 := inputs[0], inputs[1]
	d0, d1 := x0.shape[len(x0.shape)-1], x1.shape[len(x1.shape)-1]
	rows := len(x0.data) / d0
	shape := slices.Clone(x0.shape)
	shape[len(shape)-1] = d0 + d1
	y := Zeros(shape...)
	for i := 0; i < rows; i++ {
		copy(y.data[i*(d0+d1):], x0.data[i*d0:(i+1)*d0])
		copy(y.data[i*(d0+d1)+d0:], x1.data[i*d1:(i+1)*d1])
	}
	return y
}

func (c *concat) backward(dy *Tensor) []*Tensor {
	x0, x1 := c.inputs[0], c.inputs[1]
	d0, d1 := x0.shape[len(x0.shape)-1], x1.shape[len(x1.shape)-1]
	rows := len(x0.data) / d0
	dx0, dx1 := Zeros(x0.shape...), Zeros(x1.shape...)
	for i := 0; i < rows; i++ {
		copy(dx0.data[i*d0:(i+1)*d0], dy.data[i*(d0+d1):])
		copy(dx1.data[i*d1:(i+1)*d1], dy.data[i*(d0+d1)+d0:])
	}
	return []*Tensor{dx0, dx1}
}

// embedding gathers rows of a weight tensor. The second input holds the
// row indices stored as float32.
type embedding struct {
	base
}

func (e *embedding) String() string {
	return "Embedding"
}

func (e *embedding) forward(inputs ...*Tensor) *Tensor {
	w, x := inputs[0], inputs[1]
	dim := len(w.data) / w.shape[0]
	shape := append(slices.Clone(x.shape), w.shape[1:]...)
	y := Zeros(shape...)
	for i, v := range x.data {
		index := int(v)
		if index < 0 || index >= w.shape[0] {
			panic(fmt.Sprintf("embedding index %d out of range [0, %d)", index, w.shape[0]))
		}
		copy(y.data[i*dim:(i+1)*dim], w.data[index*dim:(index+1)*dim])
	}
	return y
}

func (e *embedding) backward(dy *Tensor) []*Tensor {
	w, x := e.inputs[0], e.inputs[1]
	dim := len(w.data) / w.shape[0]
	dw := Zeros(w.shape...)
	for i, v := range x.data {
		index := int(v)
		for j := 0; j < dim; j++ {
			dw.data[index*dim+j] += dy.data[i*dim+j]
		}
	}
	return []*Tensor{dw, nil}
}

type sigmoid struct {
	base
}

func (s *sigmoid) String() string {
	return "Sigmoid"
}

func (s *sigmoid) forward(inputs ...*Tensor) *Tensor {
	y := inputs[0].clone()
	for i, x := range y.data {
		y.data[i] = stableSigmoid(x)
	}
	return y
}

func (s *sigmoid) backward(dy *Tensor) []*Tensor {
	// dx = dy * y * (1 - y)
	dx := dy.clone()
	for i, y := range s.output.data {
		dx.data[i] *= y * (1 - y)
	}
	return []*Tensor{dx}
}

type relu struct {
	base
}

func (r *relu) String() string {
	return "ReLU"
}

func (r *relu) forward(inputs ...*Tensor) *Tensor {
	y := inputs[0].clone()
	for i := range y.data {
		y.data[i] = max(y.data[i], 0)
	}
	return y
}

func (r *relu) backward(dy *Tensor) []*Tensor {
	dx := dy.clone()
	for i, x := range r.inputs[0].data {
		if x <= 0 {
			dx.data[i] = 0
		}
	}
	return []*Tensor{dx}
}

func stableSigmoid(x float32) float32 {
	if x >= 0 {
		return 1 / (1 + math32.Exp(-x))
	}
	z := math32.Exp(x)
	return z / (1 + z)
}

func checkSuffix(x0, x1 *Tensor) {
	if len(x0.shape) < len(x1.shape) {
		panic("the shape of the second tensor must be a suffix sequence of the shape of the first tensor")
	}
	for i := 0; i < len(x1.shape); i++ {
		if x0.shape[len(x0.shape)-len(x1.shape)+i] != x1.shape[i] {
			panic("the shape of the second tensor must be a suffix sequence of the shape of the first tensor")
		}
	}
}

// Add returns the element-wise sum of two tensors. The shape of one tensor must be a suffix sequence of the shape of the other.
func Add(x0, x1 *Tensor) *Tensor {
	if len(x0.shape) < len(x1.shape) {
		x0, x1 = x1, x0
	}
	checkSuffix(x0, x1)
	return apply(&add{}, x0, x1)
}

// Sub returns the element-wise difference of two tensors. The shape of the second tensor must be a suffix sequence of the shape of the first tensor.
func Sub(x0, x1 *Tensor) *Tensor {
	checkSuffix(x0, x1)
	return apply(&sub{}, x0, x1)
}

// Mul returns the element-wise product of two tensors. The shape of one tensor must be a suffix sequence of the shape of the other.
func Mul(x0, x1 *Tensor) *Tensor {
	if len(x0.shape) < len(x1.shape) {
		x0, x1 = x1, x0
	}
	checkSuffix(x0, x1)
	return apply(&mul{}, x0, x1)
}

// Div returns the element-wise division of two tensors. The shape of the second tensor must be a suffix sequence of the shape of the first tensor.
func Div(x0, x1 *Tensor) *Tensor {
	checkSuffix(x0, x1)
	return apply(&div{}, x0, x1)
}

// Square returns the element-wise square of a tensor.
func Square(x *Tensor) *Tensor {
	return apply(&square{}, x)
}

// Exp returns the element-wise exponential of a tensor.
func Exp(x *Tensor) *Tensor {
	return apply(&exp{}, x)
}

// Log returns the element-wise natural logarithm of a tensor.
func Log(x *Tensor) *Tensor {
	return apply(&log{}, x)
}

// Sum returns the sum of all elements in a tensor.
func Sum(x *Tensor) *Tensor {
	return apply(&sum{}, x)
}

// Mean returns the mean of all elements in a tensor.
func Mean(x *Tensor) *Tensor {
	return apply(&mean{}, x)
}

// MatMul multiplies two matrices. transA and transB transpose the operands.
func MatMul(x, y *Tensor, transA, transB bool) *Tensor {
	return apply(&matMul{transA: transA, transB: transB}, x, y)
}

func Flatten(x *Tensor) *Tensor {
	return apply(&flatten{}, x)
}

func Reshape(x *Tensor, shape ...int) *Tensor {
	if numel(shape) != len(x.data) {
		panic(fmt.Sprintf("cannot reshape tensor of shape %v to %v", x.shape, shape))
	}
	return apply(&reshape{shape: shape}, x)
}

// Concat joins two tensors along their last axis. All leading axes must match.
func Concat(x0, x1 *Tensor) *Tensor {
	if len(x0.shape) == 0 || len(x0.shape) != len(x1.shape) ||
		!slices.Equal(x0.shape[:len(x0.shape)-1], x1.shape[:len(x1.shape)-1]) {
		panic(fmt.Sprintf("cannot concat tensors of shape %v and %v", x0.shape, x1.shape))
	}
	return apply(&concat{}, x0, x1)
}

// Embedding looks up rows of w. The shape of the result is x.shape + w.shape[1:].
func Embedding(w, x *Tensor) *Tensor {
	return apply(&embedding{}, w, x)
}

func Sigmoid(x *Tensor) *Tensor {
	return apply(&sigmoid{}, x)
}

func ReLu(x *Tensor) *Tensor {
	return apply(&relu{}, x)
}
