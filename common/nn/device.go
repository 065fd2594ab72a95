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
	"strings"

	"github.com/juju/errors"
)

// Device is where tensors are stored and computed.
type Device string

const CPU Device = "cpu"

// CUDAAvailable reports whether a CUDA backend is compiled in. Tensors in this
// package live in host memory only.
func CUDAAvailable() bool {
	return false
}

// ParseDevice validates a device name. An empty name selects the CPU.
func ParseDevice(name string) (Device, error) {
	switch {
	case name == "" || name == string(CPU):
		return CPU, nil
	case name == "cuda" || strings.HasPrefix(name, "cuda:"):
		if !CUDAAvailable() {
			return "", errors.Errorf("CUDA error: invalid argument %s", name)
		}
		return Device(name), nil
	default:
		return "", errors.NotSupportedf("device %s", name)
	}
}
