// Copyright 2025 gorse Project Authors
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

package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDataset_AddFeedback(t *testing.T) {
	d := NewDataset(0, 0)
	d.AddFeedback("alice", "apple")
	d.AddFeedback("alice", "banana")
	d.AddFeedback("bob", "apple")
	d.AddItem("cherry")
	assert.Equal(t, 2, d.CountUsers())
	assert.Equal(t, 3, d.CountItems())
	assert.Equal(t, 3, d.CountFeedback())
	assert.Equal(t, [][]int32{{0, 1}, {0}}, d.GetUserFeedback())
	assert.Equal(t, [][]int32{{0, 1}, {0}, nil}, d.GetItemFeedback())
	assert.Equal(t, "bob", d.GetUserId(1))
	assert.Equal(t, "cherry", d.GetItemId(2))
	index, ok := d.GetItemIndex("banana")
	assert.True(t, ok)
	assert.Equal(t, int32(1), index)
	_, ok = d.GetUserIndex("carol")
	assert.False(t, ok)

	assert.Nil(t, d.GetNegatives())
	d.SetNegatives("bob", []string{"banana", "durian"})
	assert.Equal(t, [][]int32{nil, {1, 3}}, d.GetNegatives())
	assert.Equal(t, 4, d.CountItems())
}

func TestDataset_SharedDict(t *testing.T) {
	train := NewDataset(0, 0)
	train.AddFeedback("a", "x")
	test := train.derive()
	test.AddFeedback("b", "y")
	// the train set sees new indices with empty feedback
	assert.Equal(t, 2, train.CountUsers())
	assert.Equal(t, [][]int32{{0}, nil}, train.GetUserFeedback())
	assert.Equal(t, [][]int32{nil, {1}}, test.GetUserFeedback())
	assert.Equal(t, 1, train.CountFeedback())
	assert.Equal(t, 1, test.CountFeedback())
}

func TestLoadNCF(t *testing.T) {
	dir := t.TempDir()
	trainPath := writeFile(t, dir, "train.txt", "0\t0\t5\t978300760\n0\t1\n2\t3\n\n")
	testPath := writeFile(t, dir, "test.txt", "(0,2)\t3\t4\n(2,5)\t0\t1\n")
	train, test, err := LoadNCF(trainPath, testPath)
	assert.NoError(t, err)

	assert.Equal(t, 3, train.CountUsers())
	assert.Equal(t, 6, train.CountItems())
	assert.Equal(t, 3, train.CountFeedback())
	assert.Equal(t, [][]int32{{0, 1}, nil, {3}}, train.GetUserFeedback())
	assert.Equal(t, 2, test.CountFeedback())
	assert.Equal(t, [][]int32{{2}, nil, {5}}, test.GetUserFeedback())
	assert.Equal(t, [][]int32{{3, 4}, nil, {0, 1}}, test.GetNegatives())
	assert.Equal(t, "5", train.GetItemId(5))
}

func TestLoadNCF_WrongFormat(t *testing.T) {
	dir := t.TempDir()
	trainPath := writeFile(t, dir, "train.txt", "0\t0\n")

	testPath := writeFile(t, dir, "test.txt", "0,2\t3\n")
	_, _, err := LoadNCF(trainPath, testPath)
	assert.True(t, errors.Is(err, errors.NotValid))

	testPath = writeFile(t, dir, "test.txt", "(0,a)\t3\n")
	_, _, err = LoadNCF(trainPath, testPath)
	assert.Error(t, err)

	badTrain := writeFile(t, dir, "bad.txt", "0\n")
	_, _, err = LoadNCF(badTrain, testPath)
	assert.True(t, errors.Is(err, errors.NotValid))

	_, _, err = LoadNCF(filepath.Join(dir, "missing.txt"), testPath)
	assert.Error(t, err)
}
