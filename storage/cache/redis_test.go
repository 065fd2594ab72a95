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

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRedis struct {
	*Redis
	server *miniredis.Miniredis
}

func newMockRedis(t *testing.T, ttl time.Duration) *mockRedis {
	var err error
	db := new(mockRedis)
	db.server, err = miniredis.Run()
	require.NoError(t, err)
	db.Redis, err = Open(redisPrefix+db.server.Addr(), ttl)
	require.NoError(t, err)
	return db
}

func (db *mockRedis) Close(t *testing.T) {
	err := db.Redis.Close()
	assert.NoError(t, err)
	db.server.Close()
}

func TestRedis_Recommend(t *testing.T) {
	ctx := context.Background()
	db := newMockRedis(t, 0)
	defer db.Close(t)
	assert.NoError(t, db.Ping(ctx))

	err := db.SetRecommend(ctx, "u1", []string{"i1", "i2", "i3"}, []float32{0.1, 0.9, 0.5})
	assert.NoError(t, err)
	items, scores, err := db.GetRecommend(ctx, "u1", 0)
	assert.NoError(t, err)
	assert.Equal(t, []string{"i2", "i3", "i1"}, items)
	assert.Equal(t, []float32{0.9, 0.5, 0.1}, scores)
	items, _, err = db.GetRecommend(ctx, "u1", 2)
	assert.NoError(t, err)
	assert.Equal(t, []string{"i2", "i3"}, items)
	assert.Equal(t, time.Duration(0), db.server.TTL(Key(Recommend, "u1")))

	// replace recommendations
	err = db.SetRecommend(ctx, "u1", []string{"i4"}, []float32{0.3})
	assert.NoError(t, err)
	items, scores, err = db.GetRecommend(ctx, "u1", 10)
	assert.NoError(t, err)
	assert.Equal(t, []string{"i4"}, items)
	assert.Equal(t, []float32{0.3}, scores)

	// clear recommendations
	err = db.SetRecommend(ctx, "u1", nil, nil)
	assert.NoError(t, err)
	items, _, err = db.GetRecommend(ctx, "u1", 10)
	assert.NoError(t, err)
	assert.Empty(t, items)

	err = db.SetRecommend(ctx, "u1", []string{"i1"}, nil)
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestRedis_TTL(t *testing.T) {
	ctx := context.Background()
	db := newMockRedis(t, time.Hour)
	defer db.Close(t)

	err := db.SetRecommend(ctx, "u1", []string{"i1"}, []float32{1})
	assert.NoError(t, err)
	assert.Equal(t, time.Hour, db.server.TTL(Key(Recommend, "u1")))
	db.server.FastForward(2 * time.Hour)
	items, _, err := db.GetRecommend(ctx, "u1", 10)
	assert.NoError(t, err)
	assert.Empty(t, items)
}

func TestOpen(t *testing.T) {
	_, err := Open("mongodb://localhost:27017", 0)
	assert.True(t, errors.Is(err, errors.NotSupported))
	_, err = Open("redis://localhost:abc", 0)
	assert.Error(t, err)
}
