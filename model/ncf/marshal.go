// Copyright 2021 gorse Project Authors
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

package ncf

import (
	"io"

	"github.com/gorse-io/ncf/common/encoding"
	"github.com/gorse-io/ncf/model"
	"github.com/juju/errors"
)

const modelName = "ncf"

// Marshal writes hyper-parameters, model size and all weights.
func (m *NCF) Marshal(w io.Writer) error {
	if err := encoding.WriteGob(w, m.Params); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteGob(w, []int{m.numUsers, m.numItems}); err != nil {
		return errors.Trace(err)
	}
	for _, p := range m.Parameters() {
		if err := encoding.WriteFloat32s(w, p.Data()); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// Unmarshal rebuilds a model from the output of Marshal.
func Unmarshal(r io.Reader) (*NCF, error) {
	var params model.Params
	if err := encoding.ReadGob(r, &params); err != nil {
		return nil, errors.Trace(err)
	}
	var size []int
	if err := encoding.ReadGob(r, &size); err != nil {
		return nil, errors.Trace(err)
	}
	if len(size) != 2 {
		return nil, errors.NotValidf("model size %v", size)
	}
	m, err := NewNCF(size[0], size[1], params)
	if err != nil {
		return nil, errors.Trace(err)
	}
	for i, p := range m.Parameters() {
		data, err := encoding.ReadFloat32s(r)
		if err != nil {
			return nil, errors.Trace(err)
		}
		if len(data) != p.Numel() {
			return nil, errors.NotValidf("parameter %d with %d elements, expected %d", i, len(data), p.Numel())
		}
		copy(p.Data(), data)
	}
	return m, nil
}

// MarshalModel writes the model name followed by the model.
func MarshalModel(w io.Writer, m *NCF) error {
	if err := encoding.WriteString(w, modelName); err != nil {
		return errors.Trace(err)
	}
	return m.Marshal(w)
}

// UnmarshalModel reads a model written by MarshalModel.
func UnmarshalModel(r io.Reader) (*NCF, error) {
	name, err := encoding.ReadString(r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	switch name {
	case modelName:
		return Unmarshal(r)
	}
	return nil, errors.Errorf("unknown model %v", name)
}
