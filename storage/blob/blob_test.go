// Copyright 2024 gorse Project Authors
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

package blob

import (
	"testing"

	"github.com/gorse-io/ncf/config"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Azurite's well-known development account.
const azuriteConnectionString = "DefaultEndpointsProtocol=http;AccountName=devstoreaccount1;" +
	"AccountKey=Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw==;" +
	"BlobEndpoint=http://127.0.0.1:10000/devstoreaccount1;"

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(config.CheckpointConfig{URI: dir})
	require.NoError(t, err)
	assert.Equal(t, &POSIX{dir: dir}, store)
	store, err = Open(config.CheckpointConfig{URI: "file://" + dir})
	require.NoError(t, err)
	assert.Equal(t, &POSIX{dir: dir}, store)

	store, err = Open(config.CheckpointConfig{
		URI: "s3://ncf/checkpoints/",
		S3:  config.S3Config{Endpoint: "localhost:9000"},
	})
	require.NoError(t, err)
	if assert.IsType(t, &S3{}, store) {
		assert.Equal(t, "ncf", store.(*S3).bucket)
		assert.Equal(t, "checkpoints", store.(*S3).prefix)
	}

	t.Setenv("GCS_EMULATOR_ENDPOINT", "http://localhost:5050/storage/v1/")
	store, err = Open(config.CheckpointConfig{URI: "gcs://ncf"})
	require.NoError(t, err)
	if assert.IsType(t, &GCS{}, store) {
		assert.Equal(t, "ncf", store.(*GCS).bucket)
		assert.Empty(t, store.(*GCS).prefix)
	}

	store, err = Open(config.CheckpointConfig{
		URI:   "azblob://ncf/a/b",
		Azure: config.AzureBlobConfig{ConnectionString: azuriteConnectionString},
	})
	require.NoError(t, err)
	if assert.IsType(t, &AzureBlob{}, store) {
		assert.Equal(t, "ncf", store.(*AzureBlob).container)
		assert.Equal(t, "a/b", store.(*AzureBlob).prefix)
	}

	_, err = Open(config.CheckpointConfig{URI: "azblob://ncf"})
	assert.True(t, errors.Is(err, errors.NotValid))
	_, err = Open(config.CheckpointConfig{URI: "ftp://ncf"})
	assert.True(t, errors.Is(err, errors.NotSupported))
	_, err = Open(config.CheckpointConfig{})
	assert.True(t, errors.Is(err, errors.NotValid))
}
