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
	"context"
	"io"
	"strings"

	"github.com/gorse-io/ncf/common/log"
	"github.com/gorse-io/ncf/config"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

const (
	S3Prefix    = "s3://"
	GCSPrefix   = "gcs://"
	AzurePrefix = "azblob://"
	FilePrefix  = "file://"
)

// Store keeps checkpoints.
type Store interface {
	// Open a blob for reading.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// Create a blob for writing. The done channel is closed once the blob is
	// stored. Close blocks until then and returns the upload error.
	Create(ctx context.Context, name string) (io.WriteCloser, chan struct{}, error)
	List(ctx context.Context) ([]string, error)
	Remove(ctx context.Context, name string) error
}

// Open creates the store located by cfg.URI.
func Open(cfg config.CheckpointConfig) (Store, error) {
	if cfg.URI == "" {
		return nil, errors.NotValidf("empty checkpoint uri")
	}
	if rest, ok := strings.CutPrefix(cfg.URI, S3Prefix); ok {
		bucket, prefix := splitBucket(rest)
		return NewS3(cfg.S3, bucket, prefix)
	}
	if rest, ok := strings.CutPrefix(cfg.URI, GCSPrefix); ok {
		bucket, prefix := splitBucket(rest)
		return NewGCS(cfg.GCS, bucket, prefix)
	}
	if rest, ok := strings.CutPrefix(cfg.URI, AzurePrefix); ok {
		container, prefix := splitBucket(rest)
		return NewAzureBlob(cfg.Azure, container, prefix)
	}
	if strings.Contains(cfg.URI, "://") && !strings.HasPrefix(cfg.URI, FilePrefix) {
		return nil, errors.NotSupportedf("checkpoint uri %s", cfg.URI)
	}
	return NewPOSIX(strings.TrimPrefix(cfg.URI, FilePrefix)), nil
}

func splitBucket(s string) (bucket, prefix string) {
	bucket, prefix, _ = strings.Cut(s, "/")
	return bucket, strings.Trim(prefix, "/")
}

// Write stores the output of write as a blob.
func Write(ctx context.Context, store Store, name string, write func(w io.Writer) error) error {
	w, done, err := store.Create(ctx, name)
	if err != nil {
		return errors.Trace(err)
	}
	if err = write(w); err != nil {
		if pw, ok := w.(interface{ CloseWithError(error) error }); ok {
			_ = pw.CloseWithError(err)
		} else {
			_ = w.Close()
		}
		<-done
		return errors.Trace(err)
	}
	if err = w.Close(); err != nil {
		return errors.Trace(err)
	}
	<-done
	return nil
}

// Read opens a blob and passes it to read.
func Read(ctx context.Context, store Store, name string, read func(r io.Reader) error) error {
	r, err := store.Open(ctx, name)
	if err != nil {
		return errors.Trace(err)
	}
	defer func() {
		if err := r.Close(); err != nil {
			log.Logger().Warn("failed to close blob", zap.String("name", name), zap.Error(err))
		}
	}()
	return errors.Trace(read(r))
}

// pipeWriter streams writes to an upload running in another goroutine.
type pipeWriter struct {
	*io.PipeWriter
	done chan struct{}
	err  error
}

func newPipeWriter(upload func(r io.Reader) error) *pipeWriter {
	pr, pw := io.Pipe()
	w := &pipeWriter{PipeWriter: pw, done: make(chan struct{})}
	go func() {
		defer close(w.done)
		w.err = upload(pr)
		// unblock the writer if the upload stopped early
		_ = pr.CloseWithError(w.err)
	}()
	return w
}

func (w *pipeWriter) Close() error {
	if err := w.PipeWriter.Close(); err != nil {
		return err
	}
	<-w.done
	return w.err
}

func (w *pipeWriter) CloseWithError(err error) error {
	if err := w.PipeWriter.CloseWithError(err); err != nil {
		return err
	}
	<-w.done
	return nil
}
