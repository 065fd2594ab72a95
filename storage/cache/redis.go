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
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"
)

const (
	redisPrefix  = "redis://"
	redissPrefix = "rediss://"

	// Recommend is the sorted set of recommended items for each user.
	//  Recommend/{user_id} - {item_id: score}
	Recommend = "recommend"
)

func Key(keys ...string) string {
	return strings.Join(keys, "/")
}

// Redis caches recommendations in sorted sets.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// Open connects to the Redis at url. Cached recommendations expire after ttl
// unless ttl is zero.
func Open(url string, ttl time.Duration) (*Redis, error) {
	if !strings.HasPrefix(url, redisPrefix) && !strings.HasPrefix(url, redissPrefix) {
		return nil, errors.NotSupportedf("cache %s", url)
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Trace(err)
	}
	client := redis.NewClient(opt)
	if err = redisotel.InstrumentTracing(client); err != nil {
		return nil, errors.Trace(err)
	}
	return &Redis{client: client, ttl: ttl}, nil
}

// Close redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}

// Ping checks the connection.
func (r *Redis) Ping(ctx context.Context) error {
	return errors.Trace(r.client.Ping(ctx).Err())
}

// SetRecommend replaces the recommendations of a user.
func (r *Redis) SetRecommend(ctx context.Context, userId string, items []string, scores []float32) error {
	if len(items) != len(scores) {
		return errors.NotValidf("%d items with %d scores", len(items), len(scores))
	}
	key := Key(Recommend, userId)
	members := lo.Map(items, func(item string, i int) redis.Z {
		return redis.Z{Member: item, Score: float64(scores[i])}
	})
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(members) > 0 {
			pipe.ZAdd(ctx, key, members...)
			if r.ttl > 0 {
				pipe.Expire(ctx, key, r.ttl)
			}
		}
		return nil
	})
	return errors.Trace(err)
}

// GetRecommend returns the top n recommendations of a user in decreasing
// order of score. All recommendations are returned if n is not positive.
func (r *Redis) GetRecommend(ctx context.Context, userId string, n int) ([]string, []float32, error) {
	stop := int64(n - 1)
	if n <= 0 {
		stop = -1
	}
	members, err := r.client.ZRevRangeWithScores(ctx, Key(Recommend, userId), 0, stop).Result()
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	items := make([]string, len(members))
	scores := make([]float32, len(members))
	for i, member := range members {
		items[i] = member.Member.(string)
		scores[i] = float32(member.Score)
	}
	return items, scores, nil
}
