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

package ncf

import (
	"context"
	"fmt"
	"runtime"

	"github.com/gorse-io/ncf/common/heap"
	"github.com/gorse-io/ncf/common/log"
	"github.com/gorse-io/ncf/common/nn"
	"github.com/gorse-io/ncf/dataset"
	"github.com/gorse-io/ncf/model"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"modernc.org/mathutil"
)

// Variant selects which branches feed the prediction layer.
type Variant string

const (
	MLP           Variant = "MLP"
	GMF           Variant = "GMF"
	NMF           Variant = "NMF"
	NMFPretrained Variant = "NMF-pretrained"
)

var variants = []Variant{MLP, GMF, NMF, NMFPretrained}

// ParseVariant returns the variant named s.
func ParseVariant(s string) (Variant, error) {
	if lo.Contains(variants, Variant(s)) {
		return Variant(s), nil
	}
	return "", errors.NotValidf("variant %q", s)
}

const predictBatchSize = 4096

// NCF is Neural Collaborative Filtering. It combines a generalized matrix
// factorization branch (element-wise product of user and item embeddings)
// with a multilayer perceptron over concatenated user and item embeddings,
// and projects their outputs to an interaction probability.
//
// Hyper-parameters:
//
//	Variant     - One of MLP, GMF, NMF and NMF-pretrained. Default is NMF.
//	NFactors    - The size of GMF embeddings. Default is 8.
//	Layers      - The sizes of MLP layers. Layers[0]/2 is the size of MLP
//	              embeddings. Default is [64, 32, 16, 8].
//	Lr          - The learning rate. Default is 0.001.
//	Reg         - The weight decay. Default is 0.
//	Device      - The compute device. Default is cpu.
//	InitStdDev  - The standard deviation of initial embeddings. Default is 0.01.
//	BatchSize   - The number of samples per mini-batch. Default is 256.
//	NNegatives  - The number of negatives per positive. Default is 4.
//	NEpochs     - The number of epochs used by Train. Default is 20.
//	RandomState - The random seed. Default is 0.
//
// He, Xiangnan, et al. "Neural collaborative filtering." Proceedings
// of the 26th international conference on world wide web. 2017.
type NCF struct {
	model.BaseModel
	numUsers int
	numItems int
	// hyper parameters
	variant    Variant
	nFactors   int
	layers     []int
	lr         float32
	reg        float32
	initStdDev float32
	batchSize  int
	nNegatives int
	nEpochs    int
	device     nn.Device
	jobs       int
	// layers
	userGMF   *nn.EmbeddingLayer
	itemGMF   *nn.EmbeddingLayer
	userMLP   *nn.EmbeddingLayer
	itemMLP   *nn.EmbeddingLayer
	mlp       *nn.Sequential
	predict   *nn.LinearLayer
	optimizer nn.Optimizer
}

// NewNCF creates a model for numUsers users and numItems items.
func NewNCF(numUsers, numItems int, params model.Params) (*NCF, error) {
	m := &NCF{numUsers: numUsers, numItems: numItems, jobs: runtime.GOMAXPROCS(0)}
	m.SetParams(params)
	var err error
	if m.variant, err = ParseVariant(m.Params.GetString(model.Variant, string(NMF))); err != nil {
		return nil, err
	}
	m.nFactors = m.Params.GetInt(model.NFactors, 8)
	m.layers = m.Params.GetInts(model.Layers, []int{64, 32, 16, 8})
	m.lr = m.Params.GetFloat32(model.Lr, 0.001)
	m.reg = m.Params.GetFloat32(model.Reg, 0)
	m.initStdDev = m.Params.GetFloat32(model.InitStdDev, 0.01)
	m.batchSize = m.Params.GetInt(model.BatchSize, 256)
	m.nNegatives = m.Params.GetInt(model.NNegatives, 4)
	m.nEpochs = m.Params.GetInt(model.NEpochs, 20)
	if err = m.validate(); err != nil {
		return nil, err
	}
	if m.device, err = nn.ParseDevice(m.Params.GetString(model.Device, string(nn.CPU))); err != nil {
		return nil, err
	}

	// default weights come from the model's generator as well
	rng := m.GetRandomGenerator().Rand
	embeddingSize := m.layers[0] / 2
	m.userGMF = nn.NewEmbedding(numUsers, m.nFactors, rng)
	m.itemGMF = nn.NewEmbedding(numItems, m.nFactors, rng)
	m.userMLP = nn.NewEmbedding(numUsers, embeddingSize, rng)
	m.itemMLP = nn.NewEmbedding(numItems, embeddingSize, rng)
	m.mlp = nn.NewMLP(m.layers, rng)
	m.predict = nn.NewLinear(m.predictiveSize(), 1, rng)

	m.initWeights()
	if m.variant == NMFPretrained {
		m.optimizer = nn.NewSGD(m.Parameters(), m.lr)
	} else {
		m.optimizer = nn.NewAdam(m.Parameters(), m.lr)
	}
	m.optimizer.SetWeightDecay(m.reg)
	return m, nil
}

func (m *NCF) validate() error {
	if m.numUsers <= 0 {
		return errors.NotValidf("number of users %d", m.numUsers)
	}
	if m.numItems <= 0 {
		return errors.NotValidf("number of items %d", m.numItems)
	}
	if m.nFactors <= 0 {
		return errors.NotValidf("number of factors %d", m.nFactors)
	}
	if len(m.layers) == 0 {
		return errors.NotValidf("empty layers")
	}
	if m.layers[0]%2 != 0 {
		return errors.NotValidf("odd first layer %d", m.layers[0])
	}
	for _, size := range m.layers {
		if size <= 0 {
			return errors.NotValidf("layer size %d", size)
		}
	}
	if m.lr <= 0 {
		return errors.NotValidf("learning rate %v", m.lr)
	}
	if m.batchSize <= 0 {
		return errors.NotValidf("batch size %d", m.batchSize)
	}
	if m.nNegatives < 0 {
		return errors.NotValidf("number of negatives %d", m.nNegatives)
	}
	return nil
}

// predictiveSize is the input width of the prediction layer.
func (m *NCF) predictiveSize() int {
	switch m.variant {
	case GMF:
		return m.nFactors
	case MLP:
		return m.layers[len(m.layers)-1]
	default:
		return m.layers[len(m.layers)-1] + m.nFactors
	}
}

// initWeights draws embeddings from N(0, InitStdDev) and linear weights from
// Xavier uniform, and zeroes biases. Pretrained models keep their weights,
// which are expected to be loaded by UnmarshalModel.
func (m *NCF) initWeights() {
	if m.variant == NMFPretrained {
		return
	}
	rng := m.GetRandomGenerator().Rand
	for _, e := range []*nn.EmbeddingLayer{m.userGMF, m.itemGMF, m.userMLP, m.itemMLP} {
		nn.NormalInit(e.W, 0, m.initStdDev, rng)
	}
	for _, linear := range append(m.mlp.Linears(), m.predict) {
		nn.XavierUniformInit(linear.W, 1, rng)
		clear(linear.B.Data())
	}
}

// Parameters returns all trainable tensors in a fixed order.
func (m *NCF) Parameters() []*nn.Tensor {
	var params []*nn.Tensor
	params = append(params, m.userGMF.Parameters()...)
	params = append(params, m.itemGMF.Parameters()...)
	params = append(params, m.userMLP.Parameters()...)
	params = append(params, m.itemMLP.Parameters()...)
	params = append(params, m.mlp.Parameters()...)
	params = append(params, m.predict.Parameters()...)
	return params
}

func (m *NCF) NumUsers() int {
	return m.numUsers
}

func (m *NCF) NumItems() int {
	return m.numItems
}

func (m *NCF) Variant() Variant {
	return m.variant
}

func (m *NCF) Device() nn.Device {
	return m.device
}

// SetJobs sets the number of goroutines used by Evaluate.
func (m *NCF) SetJobs(jobs int) {
	m.jobs = max(jobs, 1)
}

// logits computes pre-sigmoid scores of (user, item) pairs.
func (m *NCF) logits(users, items []int32) *nn.Tensor {
	if len(users) != len(items) {
		panic(fmt.Sprintf("%d users but %d items", len(users), len(items)))
	}
	u, i := nn.NewIndices(users), nn.NewIndices(items)
	var vector *nn.Tensor
	switch m.variant {
	case GMF:
		vector = m.gmf(u, i)
	case MLP:
		vector = m.mlpForward(u, i)
	default:
		vector = nn.Concat(m.mlpForward(u, i), m.gmf(u, i))
	}
	return nn.Flatten(m.predict.Forward(vector))
}

func (m *NCF) gmf(u, i *nn.Tensor) *nn.Tensor {
	return nn.Mul(m.userGMF.Forward(u), m.itemGMF.Forward(i))
}

func (m *NCF) mlpForward(u, i *nn.Tensor) *nn.Tensor {
	return m.mlp.Forward(nn.Concat(m.userMLP.Forward(u), m.itemMLP.Forward(i)))
}

// Forward returns interaction probabilities of (users[k], items[k]) pairs.
// It panics if the slices differ in length or hold out-of-range indices.
func (m *NCF) Forward(users, items []int32) *nn.Tensor {
	return nn.Sigmoid(m.logits(users, items))
}

// Fit trains one epoch: negatives are resampled, samples shuffled and
// parameters updated per mini-batch with binary cross-entropy. It returns the
// loss of the last mini-batch.
func (m *NCF) Fit(ctx context.Context, trainSet *dataset.Dataset) (float32, error) {
	if err := m.checkDataset(trainSet); err != nil {
		return 0, err
	}
	rng := m.GetRandomGenerator()
	samples := trainSet.NegativeSample(m.nNegatives, rng)
	if samples.Len() == 0 {
		return 0, errors.NotValidf("empty training set")
	}
	samples.Shuffle(rng)
	var loss, sum float32
	for begin := 0; begin < samples.Len(); begin += m.batchSize {
		if err := ctx.Err(); err != nil {
			return loss, errors.Trace(err)
		}
		batch := samples.Batch(begin, begin+m.batchSize)
		m.optimizer.ZeroGrad()
		logits := m.logits(batch.Users, batch.Items)
		batchLoss := nn.BCEWithLogits(logits, nn.NewTensor(batch.Labels, batch.Len()))
		batchLoss.Backward()
		m.optimizer.Step()
		loss = batchLoss.Data()[0]
		sum += loss * float32(batch.Len())
	}
	log.Logger().Debug("fit ncf epoch",
		zap.Int("n_samples", samples.Len()),
		zap.Float32("mean_loss", sum/float32(samples.Len())),
		zap.Float32("last_loss", loss))
	return loss, nil
}

// Predict returns interaction probabilities without building gradients.
func (m *NCF) Predict(users, items []int32) []float32 {
	if len(users) != len(items) {
		panic(fmt.Sprintf("%d users but %d items", len(users), len(items)))
	}
	scores := make([]float32, 0, len(users))
	for begin := 0; begin < len(users); begin += predictBatchSize {
		end := mathutil.Min(begin+predictBatchSize, len(users))
		y := m.Forward(users[begin:end], items[begin:end]).NoGrad()
		scores = append(scores, y.Data()...)
	}
	return scores
}

// Recommend returns the top n candidates for a user in decreasing order of score.
func (m *NCF) Recommend(userIndex int32, candidates []int32, n int) ([]int32, []float32) {
	return Rank(m, userIndex, candidates, n)
}

// Rank scores candidates for a user and keeps the top n.
func Rank(scorer Scorer, userIndex int32, candidates []int32, n int) ([]int32, []float32) {
	users := make([]int32, len(candidates))
	for i := range users {
		users[i] = userIndex
	}
	scores := scorer.Predict(users, candidates)
	filter := heap.NewTopKFilter[int32, float32](n)
	for i, itemIndex := range candidates {
		filter.Push(itemIndex, scores[i])
	}
	elems := filter.PopAll()
	items := make([]int32, len(elems))
	weights := make([]float32, len(elems))
	for i, elem := range elems {
		items[i], weights[i] = elem.Value, elem.Weight
	}
	return items, weights
}
