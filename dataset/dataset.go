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
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gorse-io/ncf/common/datautil"
	"github.com/juju/errors"
)

// Dataset holds implicit feedback indexed by dense user and item indices.
// Datasets derived from one another (train and test splits) share their ID
// dictionaries, so an index means the same user or item in both.
type Dataset struct {
	userDict     *FreqDict
	itemDict     *FreqDict
	userFeedback [][]int32
	itemFeedback [][]int32
	negatives    [][]int32
	count        int
}

func NewDataset(userCount, itemCount int) *Dataset {
	return &Dataset{
		userDict:     NewFreqDict(),
		itemDict:     NewFreqDict(),
		userFeedback: make([][]int32, 0, userCount),
		itemFeedback: make([][]int32, 0, itemCount),
	}
}

// derive creates an empty dataset sharing ID dictionaries with d.
func (d *Dataset) derive() *Dataset {
	return &Dataset{
		userDict: d.userDict,
		itemDict: d.itemDict,
	}
}

// sync grows per-index slices after the shared dictionaries have grown.
func (d *Dataset) sync() {
	for len(d.userFeedback) < d.userDict.Count() {
		d.userFeedback = append(d.userFeedback, nil)
	}
	for len(d.itemFeedback) < d.itemDict.Count() {
		d.itemFeedback = append(d.itemFeedback, nil)
	}
	if d.negatives != nil {
		for len(d.negatives) < d.userDict.Count() {
			d.negatives = append(d.negatives, nil)
		}
	}
}

func (d *Dataset) CountUsers() int {
	return d.userDict.Count()
}

func (d *Dataset) CountItems() int {
	return d.itemDict.Count()
}

// CountFeedback returns the number of (user, item) pairs.
func (d *Dataset) CountFeedback() int {
	return d.count
}

func (d *Dataset) GetUserFeedback() [][]int32 {
	d.sync()
	return d.userFeedback
}

func (d *Dataset) GetItemFeedback() [][]int32 {
	d.sync()
	return d.itemFeedback
}

// GetNegatives returns the sampled negative items of each user. It is nil for
// datasets without negatives.
func (d *Dataset) GetNegatives() [][]int32 {
	d.sync()
	return d.negatives
}

func (d *Dataset) GetUserId(index int32) string {
	s, _ := d.userDict.String(int(index))
	return s
}

func (d *Dataset) GetItemId(index int32) string {
	s, _ := d.itemDict.String(int(index))
	return s
}

func (d *Dataset) GetUserIndex(userId string) (int32, bool) {
	index, ok := d.userDict.Lookup(userId)
	return int32(index), ok
}

func (d *Dataset) GetItemIndex(itemId string) (int32, bool) {
	index, ok := d.itemDict.Lookup(itemId)
	return int32(index), ok
}

func (d *Dataset) AddUser(userId string) int32 {
	index := d.userDict.NotCount(userId)
	d.sync()
	return int32(index)
}

func (d *Dataset) AddItem(itemId string) int32 {
	index := d.itemDict.NotCount(itemId)
	d.sync()
	return int32(index)
}

func (d *Dataset) AddFeedback(userId, itemId string) {
	userIndex := d.userDict.Id(userId)
	itemIndex := d.itemDict.Id(itemId)
	d.addFeedback(int32(userIndex), int32(itemIndex))
}

func (d *Dataset) addFeedback(userIndex, itemIndex int32) {
	d.sync()
	d.userFeedback[userIndex] = append(d.userFeedback[userIndex], itemIndex)
	d.itemFeedback[itemIndex] = append(d.itemFeedback[itemIndex], userIndex)
	d.count++
}

// SetNegatives replaces the negative items of a user.
func (d *Dataset) SetNegatives(userId string, negatives []string) {
	userIndex := d.userDict.NotCount(userId)
	indices := make([]int32, len(negatives))
	for i, negative := range negatives {
		indices[i] = int32(d.itemDict.NotCount(negative))
	}
	d.setNegatives(int32(userIndex), indices)
}

func (d *Dataset) setNegatives(userIndex int32, negatives []int32) {
	if d.negatives == nil {
		d.negatives = make([][]int32, 0, d.userDict.Count())
	}
	d.sync()
	d.negatives[userIndex] = negatives
}

// LoadDataFromBuiltIn downloads a built-in dataset in NCF format and returns
// its train and test sets.
func LoadDataFromBuiltIn(ctx context.Context, dataSetName string) (*Dataset, *Dataset, error) {
	path, err := datautil.DownloadAndUnzip(ctx, dataSetName)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	return LoadNCF(filepath.Join(path, "train.txt"), filepath.Join(path, "test.txt"))
}

// LoadNCF loads a train file of "user\titem" lines and a test file of
// "(user,item)\tnegative\t..." lines. IDs are non-negative integers used
// directly as indices.
func LoadNCF(trainPath, testPath string) (*Dataset, *Dataset, error) {
	train, err := loadTrain(trainPath)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	test := train.derive()
	if err = loadTest(test, testPath); err != nil {
		return nil, nil, errors.Trace(err)
	}
	return train, test, nil
}

// ensure adds users and items up to the given integer IDs.
func (d *Dataset) ensure(userId, itemId int) {
	for i := d.userDict.Count(); i <= userId; i++ {
		d.AddUser(strconv.Itoa(i))
	}
	for i := d.itemDict.Count(); i <= itemId; i++ {
		d.AddItem(strconv.Itoa(i))
	}
}

func parseId(s string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, errors.Trace(err)
	}
	if id < 0 {
		return 0, errors.NotValidf("negative id %d", id)
	}
	return id, nil
}

func loadTrain(path string) (*Dataset, error) {
	dataset := NewDataset(0, 0)
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer file.Close()
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			return nil, errors.NotValidf("train line %q", line)
		}
		userId, err := parseId(fields[0])
		if err != nil {
			return nil, err
		}
		itemId, err := parseId(fields[1])
		if err != nil {
			return nil, err
		}
		dataset.ensure(userId, itemId)
		dataset.addFeedback(int32(userId), int32(itemId))
	}
	return dataset, errors.Trace(scanner.Err())
}

func loadTest(dataset *Dataset, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return errors.Trace(err)
	}
	defer file.Close()
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		positive, negatives := fields[0], fields[1:]
		if len(positive) < 2 || positive[0] != '(' || positive[len(positive)-1] != ')' {
			return errors.NotValidf("test line %q", line)
		}
		pair := strings.Split(positive[1:len(positive)-1], ",")
		if len(pair) != 2 {
			return errors.NotValidf("test line %q", line)
		}
		userId, err := parseId(pair[0])
		if err != nil {
			return err
		}
		itemId, err := parseId(pair[1])
		if err != nil {
			return err
		}
		dataset.ensure(userId, itemId)
		dataset.addFeedback(int32(userId), int32(itemId))
		indices := make([]int32, 0, len(negatives))
		for _, negative := range negatives {
			negativeId, err := parseId(negative)
			if err != nil {
				return err
			}
			dataset.ensure(userId, negativeId)
			indices = append(indices, int32(negativeId))
		}
		dataset.setNegatives(int32(userId), indices)
	}
	return errors.Trace(scanner.Err())
}
