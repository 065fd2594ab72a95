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

package dataset

import (
	"context"
	"time"

	"github.com/gorse-io/ncf/common/log"
	"github.com/juju/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
	"go.uber.org/zap"
)

type mongoFeedback struct {
	UserId string `bson:"user_id"`
	ItemId string `bson:"item_id"`
}

// OpenMongo connects to MongoDB and returns the client with the database name
// in the DSN.
func OpenMongo(ctx context.Context, dsn string) (*mongo.Client, string, error) {
	cs, err := connstring.ParseAndValidate(dsn)
	if err != nil {
		return nil, "", errors.Trace(err)
	}
	if cs.Database == "" {
		return nil, "", errors.NotValidf("mongodb dsn without database %s", log.RedactDBURL(dsn))
	}
	opts := options.Client()
	opts.Monitor = otelmongo.NewMonitor()
	opts.ApplyURI(dsn)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, "", errors.Trace(err)
	}
	return client, cs.Database, nil
}

func loadFromMongo(ctx context.Context, dsn, collection string, dbOptions databaseOptions) (*Dataset, error) {
	start := time.Now()
	client, dbName, err := OpenMongo(ctx, dsn)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			log.Logger().Warn("failed to disconnect mongodb", zap.Error(err))
		}
	}()
	filter := make(bson.M)
	if !dbOptions.since.IsZero() {
		filter["time_stamp"] = bson.M{"$gte": dbOptions.since}
	}
	opt := options.Find()
	opt.SetProjection(bson.M{"user_id": 1, "item_id": 1})
	if dbOptions.limit > 0 {
		opt.SetSort(bson.D{{Key: "time_stamp", Value: -1}})
		opt.SetLimit(int64(dbOptions.limit))
	} else {
		opt.SetSort(bson.D{{Key: "time_stamp", Value: 1}})
	}
	c := client.Database(dbName).Collection(collection)
	r, err := c.Find(ctx, filter, opt)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer r.Close(ctx)
	var pairs [][2]string
	for r.Next(ctx) {
		var feedback mongoFeedback
		if err = r.Decode(&feedback); err != nil {
			return nil, errors.Trace(err)
		}
		pairs = append(pairs, [2]string{feedback.UserId, feedback.ItemId})
	}
	if err = r.Err(); err != nil {
		return nil, errors.Trace(err)
	}
	return newDatasetFromPairs(collection, pairs, dbOptions.limit > 0, start), nil
}
