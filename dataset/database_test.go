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
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createFeedbackTable(t *testing.T) string {
	dsn := SQLitePrefix + filepath.Join(t.TempDir(), "ncf.db")
	db, err := OpenDatabase(dsn)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	defer sqlDB.Close()
	require.NoError(t, db.Exec("CREATE TABLE feedback (user_id TEXT, item_id TEXT, time_stamp DATETIME)").Error)
	for _, row := range feedbackRows {
		require.NoError(t, db.Exec("INSERT INTO feedback (user_id, item_id, time_stamp) VALUES (?, ?, ?)",
			row.user, row.item, row.timestamp()).Error)
	}
	return dsn
}

type feedbackRow struct {
	user, item string
	day        int
}

func (row feedbackRow) timestamp() time.Time {
	return time.Date(2024, 1, row.day, 0, 0, 0, 0, time.UTC)
}

var feedbackRows = []feedbackRow{
	{"u2", "i3", 5},
	{"u1", "i1", 1},
	{"u1", "i2", 2},
	{"u2", "i1", 3},
	{"u1", "i3", 4},
}

func testLoadFeedback(t *testing.T, dsn, table string) {
	ctx := context.Background()
	d, err := LoadDataFromDatabase(ctx, dsn, table)
	require.NoError(t, err)
	assert.Equal(t, 2, d.CountUsers())
	assert.Equal(t, 3, d.CountItems())
	assert.Equal(t, 5, d.CountFeedback())
	// chronological: u1 i1, u1 i2, u2 i1, u1 i3, u2 i3
	assert.Equal(t, "u1", d.GetUserId(0))
	assert.Equal(t, [][]int32{{0, 1, 2}, {0, 2}}, d.GetUserFeedback())

	d, err = LoadDataFromDatabase(ctx, dsn, table, WithSince(time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	assert.Equal(t, 3, d.CountFeedback())
	assert.Equal(t, "u2", d.GetUserId(0))

	d, err = LoadDataFromDatabase(ctx, dsn, table, WithLimit(2))
	require.NoError(t, err)
	assert.Equal(t, 2, d.CountFeedback())
	assert.Equal(t, "u1", d.GetUserId(0))
	assert.Equal(t, "i3", d.GetItemId(0))
}

func TestLoadDataFromDatabase(t *testing.T) {
	dsn := createFeedbackTable(t)
	testLoadFeedback(t, dsn, "feedback")
	_, err := LoadDataFromDatabase(context.Background(), dsn, "missing")
	assert.Error(t, err)
}

func TestLoadDataFromDatabase_ClickHouse(t *testing.T) {
	dsn := os.Getenv("CLICKHOUSE_URI")
	if dsn == "" {
		t.Skip("CLICKHOUSE_URI is not set, skipping ClickHouse test")
	}
	db, err := OpenDatabase(dsn)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	defer sqlDB.Close()
	table := fmt.Sprintf("feedback_%d", time.Now().UnixNano())
	require.NoError(t, db.Exec(fmt.Sprintf("CREATE TABLE %s (user_id String, item_id String, time_stamp DateTime) "+
		"ENGINE = MergeTree() ORDER BY time_stamp", table)).Error)
	defer db.Exec(fmt.Sprintf("DROP TABLE %s", table))
	for _, row := range feedbackRows {
		require.NoError(t, db.Exec(fmt.Sprintf("INSERT INTO %s (user_id, item_id, time_stamp) VALUES (?, ?, ?)", table),
			row.user, row.item, row.timestamp().Format(time.DateTime)).Error)
	}
	testLoadFeedback(t, dsn, table)
}

func TestOpenDatabase_NotSupported(t *testing.T) {
	_, err := OpenDatabase("oracle://localhost:1521")
	assert.True(t, errors.Is(err, errors.NotSupported))
	_, err = OpenDatabase(MongoPrefix + "localhost:27017/ncf")
	assert.True(t, errors.Is(err, errors.NotSupported))
}
