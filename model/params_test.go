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

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParams_Copy(t *testing.T) {
	// Create parameters
	a := Params{
		NFactors:    1,
		Lr:          0.1,
		RandomState: 0,
	}
	// Create copy
	b := a.Copy()
	b[NFactors] = 2
	b[Lr] = 0.2
	b[RandomState] = 1
	// Check original parameters
	assert.Equal(t, 1, a.GetInt(NFactors, -1))
	assert.Equal(t, float32(0.1), a.GetFloat32(Lr, -0.1))
	assert.Equal(t, int64(0), a.GetInt64(RandomState, -1))
	// Check copy parameters
	assert.Equal(t, 2, b.GetInt(NFactors, -1))
	assert.Equal(t, float32(0.2), b.GetFloat32(Lr, -0.1))
	assert.Equal(t, int64(1), b.GetInt64(RandomState, -1))
}

func TestParams_GetFloat32(t *testing.T) {
	p := Params{}
	// Empty case
	assert.Equal(t, float32(0.1), p.GetFloat32(Lr, 0.1))
	// Normal case
	p[Lr] = float32(1.0)
	assert.Equal(t, float32(1.0), p.GetFloat32(Lr, 0.1))
	// Wrong type case
	p[Lr] = 1
	assert.Equal(t, float32(1.0), p.GetFloat32(Lr, 0.1))
	p[Lr] = "hello"
	assert.Equal(t, float32(0.1), p.GetFloat32(Lr, 0.1))
}

func TestParams_GetInt(t *testing.T) {
	p := Params{}
	// Empty case
	assert.Equal(t, -1, p.GetInt(NFactors, -1))
	// Normal case
	p[NFactors] = 0
	assert.Equal(t, 0, p.GetInt(NFactors, -1))
	// Wrong type case
	p[NFactors] = "hello"
	assert.Equal(t, -1, p.GetInt(NFactors, -1))
}

func TestParams_GetInt64(t *testing.T) {
	p := Params{}
	// Empty case
	assert.Equal(t, int64(-1), p.GetInt64(RandomState, -1))
	// Normal case
	p[RandomState] = int64(0)
	assert.Equal(t, int64(0), p.GetInt64(RandomState, -1))
	// Wrong type case
	p[RandomState] = 0
	assert.Equal(t, int64(0), p.GetInt64(RandomState, -1))
	p[RandomState] = "hello"
	assert.Equal(t, int64(-1), p.GetInt64(RandomState, -1))
}

func TestParams_GetInts(t *testing.T) {
	p := Params{}
	assert.Equal(t, []int{64, 32}, p.GetInts(Layers, []int{64, 32}))
	p[Layers] = []int{16, 8}
	assert.Equal(t, []int{16, 8}, p.GetInts(Layers, nil))
	p[Layers] = []int64{32, 16}
	assert.Equal(t, []int{32, 16}, p.GetInts(Layers, nil))
	p[Layers] = 8
	assert.Nil(t, p.GetInts(Layers, nil))
}

func TestParams_GetBoolAndString(t *testing.T) {
	p := Params{Variant: "GMF", Device: 1}
	assert.Equal(t, "GMF", p.GetString(Variant, "NMF"))
	assert.Equal(t, "cpu", p.GetString(Device, "cpu"))
	assert.False(t, p.GetBool("Missing", false))
}

func TestParams_Overwrite(t *testing.T) {
	a := Params{NFactors: 8, Lr: 0.001}
	b := a.Overwrite(Params{Lr: 0.01, NEpochs: 3})
	assert.Equal(t, Params{NFactors: 8, Lr: 0.01, NEpochs: 3}, b)
	assert.Equal(t, 0.001, a[Lr])
}

func TestParams_ToString(t *testing.T) {
	p := Params{NFactors: 8, Variant: "GMF"}
	assert.JSONEq(t, `{"NFactors":8,"Variant":"GMF"}`, p.ToString())
}

func TestBaseModel(t *testing.T) {
	var m BaseModel
	m.SetParams(Params{RandomState: 42})
	assert.Equal(t, int64(42), m.GetRandomState())
	assert.Equal(t, 42, m.GetParams().GetInt(RandomState, 0))
	a := m.GetRandomGenerator().Int63()
	m.SetParams(Params{RandomState: 42})
	assert.Equal(t, a, m.GetRandomGenerator().Int63())
}
