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

// BaseModel must be included by every recommendation model. Hyper-parameters
// and the random generator are managed by the BaseModel.
type BaseModel struct {
	Params    Params          // Hyper-parameters
	rng       RandomGenerator // Random generator
	randState int64           // Random seed
}

// SetParams sets hyper-parameters and reseeds the random generator.
func (model *BaseModel) SetParams(params Params) {
	model.Params = params
	model.randState = model.Params.GetInt64(RandomState, 0)
	model.rng = NewRandomGenerator(model.randState)
}

// GetParams returns all hyper-parameters.
func (model *BaseModel) GetParams() Params {
	return model.Params
}

func (model *BaseModel) GetRandomGenerator() RandomGenerator {
	return model.rng
}

func (model *BaseModel) GetRandomState() int64 {
	return model.randState
}
