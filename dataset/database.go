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
	"database/sql"
	"net/url"
	"strings"
	"time"

	"github.com/XSAM/otelsql"
	"github.com/gorse-io/ncf/common/log"
	"github.com/juju/errors"
	_ "github.com/lib/pq"
	_ "github.com/mailru/go-clickhouse/v2"
	semconv "go.opentelemetry.io/otel/semconv/v1.12.0"
	"go.uber.org/zap"
	"gorm.io/driver/clickhouse"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
	"moul.io/zapgorm2"
)

const (
	MySQLPrefix      = "mysql://"
	PostgresPrefix   = "postgres://"
	PostgreSQLPrefix = "postgresql://"
	SQLitePrefix     = "sqlite://"
	ClickhousePrefix = "clickhouse://"
	CHHTTPPrefix     = "chhttp://"
	CHHTTPSPrefix    = "chhttps://"
	MongoPrefix      = "mongodb://"
	MongoSrvPrefix   = "mongodb+srv://"
)

type databaseOptions struct {
	since time.Time
	limit int
}

type DatabaseOption func(*databaseOptions)

// WithSince skips feedback older than t.
func WithSince(t time.Time) DatabaseOption {
	return func(o *databaseOptions) {
		o.since = t
	}
}

// WithLimit keeps at most n rows, the most recent ones.
func WithLimit(n int) DatabaseOption {
	return func(o *databaseOptions) {
		o.limit = n
	}
}

// OpenDatabase opens a gorm connection from a prefixed DSN.
func OpenDatabase(dsn string) (*gorm.DB, error) {
	var (
		client    *sql.DB
		dialector gorm.Dialector
		err       error
	)
	switch {
	case strings.HasPrefix(dsn, MySQLPrefix):
		name := dsn[len(MySQLPrefix):]
		if client, err = otelsql.Open("mysql", name,
			otelsql.WithAttributes(semconv.DBSystemMySQL),
			otelsql.WithSpanOptions(otelsql.SpanOptions{DisableErrSkip: true}),
		); err != nil {
			return nil, errors.Trace(err)
		}
		dialector = mysql.New(mysql.Config{Conn: client})
	case strings.HasPrefix(dsn, PostgresPrefix) || strings.HasPrefix(dsn, PostgreSQLPrefix):
		if client, err = otelsql.Open("postgres", dsn,
			otelsql.WithAttributes(semconv.DBSystemPostgreSQL),
			otelsql.WithSpanOptions(otelsql.SpanOptions{DisableErrSkip: true}),
		); err != nil {
			return nil, errors.Trace(err)
		}
		dialector = postgres.New(postgres.Config{Conn: client})
	case strings.HasPrefix(dsn, ClickhousePrefix) || strings.HasPrefix(dsn, CHHTTPPrefix) || strings.HasPrefix(dsn, CHHTTPSPrefix):
		parsed, err := url.Parse(dsn)
		if err != nil {
			return nil, errors.Trace(err)
		}
		if strings.HasPrefix(dsn, CHHTTPSPrefix) {
			parsed.Scheme = "https"
		} else {
			parsed.Scheme = "http"
		}
		if client, err = otelsql.Open("chhttp", parsed.String(),
			otelsql.WithAttributes(semconv.DBSystemKey.String("clickhouse")),
			otelsql.WithSpanOptions(otelsql.SpanOptions{DisableErrSkip: true}),
		); err != nil {
			return nil, errors.Trace(err)
		}
		dialector = clickhouse.New(clickhouse.Config{Conn: client})
	case strings.HasPrefix(dsn, SQLitePrefix):
		name := dsn[len(SQLitePrefix):]
		if client, err = otelsql.Open("sqlite", name,
			otelsql.WithAttributes(semconv.DBSystemSqlite),
			otelsql.WithSpanOptions(otelsql.SpanOptions{DisableErrSkip: true}),
		); err != nil {
			return nil, errors.Trace(err)
		}
		dialector = sqlite.Dialector{Conn: client}
	default:
		return nil, errors.NotSupportedf("database %s", log.RedactDBURL(dsn))
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: &zapgorm2.Logger{
			ZapLogger:     log.Logger(),
			LogLevel:      logger.Warn,
			SlowThreshold: 10 * time.Second,
		},
		SkipDefaultTransaction: true,
	})
	if err != nil {
		_ = client.Close()
		return nil, errors.Trace(err)
	}
	return db, nil
}

// LoadDataFromDatabase reads user_id and item_id columns from a feedback table
// in time_stamp order. For MongoDB, table names a collection whose documents
// carry user_id, item_id and time_stamp fields.
func LoadDataFromDatabase(ctx context.Context, dsn, table string, opts ...DatabaseOption) (*Dataset, error) {
	var options databaseOptions
	for _, opt := range opts {
		opt(&options)
	}
	if strings.HasPrefix(dsn, MongoPrefix) || strings.HasPrefix(dsn, MongoSrvPrefix) {
		return loadFromMongo(ctx, dsn, table, options)
	}
	db, err := OpenDatabase(dsn)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	return loadFromDB(ctx, db, table, options)
}

func loadFromDB(ctx context.Context, db *gorm.DB, table string, options databaseOptions) (*Dataset, error) {
	start := time.Now()
	query := db.WithContext(ctx).Table(table).Select("user_id, item_id")
	if !options.since.IsZero() {
		query = query.Where("time_stamp >= ?", options.since)
	}
	if options.limit > 0 {
		// most recent rows, restored to chronological order below
		query = query.Order("time_stamp DESC").Limit(options.limit)
	} else {
		query = query.Order("time_stamp")
	}
	rows, err := query.Rows()
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer rows.Close()
	var pairs [][2]string
	for rows.Next() {
		var userId, itemId string
		if err = rows.Scan(&userId, &itemId); err != nil {
			return nil, errors.Trace(err)
		}
		pairs = append(pairs, [2]string{userId, itemId})
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Trace(err)
	}
	return newDatasetFromPairs(table, pairs, options.limit > 0, start), nil
}

// newDatasetFromPairs builds a dataset from (user, item) pairs. Pairs fetched
// newest first are reversed into chronological order.
func newDatasetFromPairs(source string, pairs [][2]string, newestFirst bool, start time.Time) *Dataset {
	if newestFirst {
		for i, j := 0, len(pairs)-1; i < j; i, j = i+1, j-1 {
			pairs[i], pairs[j] = pairs[j], pairs[i]
		}
	}
	dataset := NewDataset(0, 0)
	for _, pair := range pairs {
		dataset.AddFeedback(pair[0], pair[1])
	}
	log.Logger().Info("load dataset from database",
		zap.String("table", source),
		zap.Int("n_users", dataset.CountUsers()),
		zap.Int("n_items", dataset.CountItems()),
		zap.Int("n_feedback", dataset.CountFeedback()),
		zap.Duration("used_time", time.Since(start)))
	return dataset
}
