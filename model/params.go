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
	"encoding/json"
	"fmt"

	"github.com/gorse-io/ncf/common/log"
	"go.uber.org/zap"
)

/* ParamName */

// ParamName is the type of hyper-parameter names.
type ParamName string

// Predefined hyper-parameter names
const (
	Lr          ParamName = "Lr"          // learning rate
	Reg         ParamName = "Reg"         // weight decay
	NEpochs     ParamName = "NEpochs"     // number of epochs
	NFactors    ParamName = "NFactors"    // number of predictive factors
	RandomState ParamName = "RandomState" // random state (seed)
	InitStdDev  ParamName = "InitStdDev"  // standard deviation of gaussian initial embeddings
	BatchSize   ParamName = "BatchSize"   // number of samples per mini-batch
	NNegatives  ParamName = "NNegatives"  // number of negative samples per positive sample
	Layers      ParamName = "Layers"      // sizes of the multilayer perceptron
	Variant     ParamName = "Variant"     // model variant
	Device      ParamName = "Device"      // compute device
)

// Params stores hyper-parameters for an model. It is a map between strings
// (names) and interface{}s (values). For example, hyper-parameters for NCF
// is given by:
//
//	model.Params{
//		model.Lr:       0.001,
//		model.NEpochs:  20,
//		model.NFactors: 8,
//		model.Layers:   []int{64, 32, 16, 8},
//	}
type Params map[ParamName]interface{}

// Copy hyper-parameters.
func (parameters Params) Copy() Params {
	newParams := make(Params)
	for k, v := range parameters {
		newParams[k] = v
	}
	return newParams
}

func typeMismatch(name ParamName, expected string, val interface{}) {
	log.Logger().Error("type mismatch",
		zap.String("param", string(name)),
		zap.String("expect", expected),
		zap.String("actual", fmt.Sprintf("%T", val)))
}

// GetInt gets a integer parameter by name. Returns _default if not exists or type doesn't match.
func (parameters Params) GetInt(name ParamName, _default int) int {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case int:
			return val
		default:
			typeMismatch(name, "int", val)
		}
	}
	return _default
}

// GetInt64 gets a int64 parameter by name. Returns _default if not exists or type doesn't match. The
// type will be converted if given int.
func (parameters Params) GetInt64(name ParamName, _default int64) int64 {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case int64:
			return val
		case int:
			return int64(val)
		default:
			typeMismatch(name, "int64", val)
		}
	}
	return _default
}

// GetInts gets an integer list parameter by name.
func (parameters Params) GetInts(name ParamName, _default []int) []int {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case []int:
			return val
		case []int64:
			ints := make([]int, len(val))
			for i := range val {
				ints[i] = int(val[i])
			}
			return ints
		default:
			typeMismatch(name, "[]int", val)
		}
	}
	return _default
}

// GetBool gets a bool parameter by name. Returns _default if not exists or type doesn't match.
func (parameters Params) GetBool(name ParamName, _default bool) bool {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case bool:
			return val
		default:
			typeMismatch(name, "bool", val)
		}
	}
	return _default
}

func (parameters Params) GetFloat32(name ParamName, _default float32) float32 {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case float32:
			return val
		case float64:
			return float32(val)
		case int:
			return float32(val)
		default:
			typeMismatch(name, "float32", val)
		}
	}
	return _default
}

// GetString gets a string parameter. Returns _default if not exists or type doesn't match.
func (parameters Params) GetString(name ParamName, _default string) string {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case string:
			return val
		default:
			typeMismatch(name, "string", val)
		}
	}
	return _default
}

// Overwrite returns a new Params with values in params taking precedence.
func (parameters Params) Overwrite(params Params) Params {
	merged := make(Params)
	for k, v := range parameters {
		merged[k] = v
	}
	for k, v := range params {
		merged[k] = v
	}
	return merged
}

func (parameters Params) ToString() string {
	b, err := json.Marshal(parameters)
	if err != nil {
		log.Logger().Fatal("failed to marshal params", zap.Error(err))
	}
	return string(b)
}
