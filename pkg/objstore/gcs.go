// Copyright 2026 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package objstore

import (
	"context"
	goerrors "errors"
	"io"

	"cloud.google.com/go/storage"
	"github.com/pingcap/errors"
	aerrors "github.com/pingcap/layout-advisor/pkg/errors"
	"github.com/pingcap/layout-advisor/pkg/util/logutil"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSStorage defines some standard operations on Google Cloud Storage.
// It implements the `Storage` interface.
type GCSStorage struct {
	bucket *storage.BucketHandle
	name   string
	prefix string
}

// NewGCSStorage creates a GCS external storage implementation.
func NewGCSStorage(ctx context.Context, bucket, prefix string, opts *GCSBackendOptions) (*GCSStorage, error) {
	var clientOps []option.ClientOption
	if opts.Endpoint != "" {
		clientOps = append(clientOps, option.WithEndpoint(opts.Endpoint))
	}
	if opts.CredentialsFile != "" {
		clientOps = append(clientOps, option.WithCredentialsFile(opts.CredentialsFile))
	}
	cli, err := storage.NewClient(ctx, clientOps...)
	if err != nil {
		return nil, errors.Annotate(aerrors.ErrStorageInvalidConfig, err.Error())
	}
	logutil.BgLogger().Info("gcs storage created",
		zap.String("bucket", bucket), zap.String("prefix", prefix), zap.String("endpoint", opts.Endpoint))
	return NewGCSStorageWithClient(cli, bucket, prefix), nil
}

// NewGCSStorageWithClient creates a GCSStorage over an existing client.
func NewGCSStorageWithClient(cli *storage.Client, bucket, prefix string) *GCSStorage {
	return &GCSStorage{bucket: cli.Bucket(bucket), name: bucket, prefix: prefix}
}

func (s *GCSStorage) translateError(err error, name string) error {
	if goerrors.Is(err, storage.ErrObjectNotExist) || goerrors.Is(err, storage.ErrBucketNotExist) {
		return errors.Annotatef(aerrors.ErrStorageNotFound, "gcs://%s/%s", s.name, objectKey(s.prefix, name))
	}
	return errors.Annotatef(err, "failed to access gcs file, bucket '%s', object '%s'", s.name, objectKey(s.prefix, name))
}

// WriteFile writes data to a file to storage.
func (s *GCSStorage) WriteFile(ctx context.Context, name string, data []byte) error {
	wc := s.bucket.Object(objectKey(s.prefix, name)).NewWriter(ctx)
	if _, err := wc.Write(data); err != nil {
		_ = wc.Close()
		return errors.Trace(err)
	}
	return errors.Trace(wc.Close())
}

// ReadFile reads the file from the storage and returns the contents.
func (s *GCSStorage) ReadFile(ctx context.Context, name string) ([]byte, error) {
	rc, err := s.bucket.Object(objectKey(s.prefix, name)).NewReader(ctx)
	if err != nil {
		return nil, s.translateError(err, name)
	}
	//nolint: errcheck
	defer rc.Close()
	data, err := io.ReadAll(rc)
	return data, errors.Trace(err)
}

// Stat implements Storage.Stat.
func (s *GCSStorage) Stat(ctx context.Context, name string) (int64, error) {
	attrs, err := s.bucket.Object(objectKey(s.prefix, name)).Attrs(ctx)
	if err != nil {
		return 0, s.translateError(err, name)
	}
	return attrs.Size, nil
}

// Open a Reader by file path.
func (s *GCSStorage) Open(ctx context.Context, name string) (io.ReadSeekCloser, error) {
	size, err := s.Stat(ctx, name)
	if err != nil {
		return nil, err
	}
	return &gcsObjectReader{ctx: ctx, storage: s, name: name, size: size}, nil
}

// WalkDir traverse all the files in a dir.
func (s *GCSStorage) WalkDir(ctx context.Context, opt *WalkOption, fn func(string, int64) error) error {
	if opt == nil {
		opt = &WalkOption{}
	}
	prefix := objectKey(s.prefix, opt.SubDir)
	if opt.SubDir != "" {
		prefix += "/"
	}
	prefix += opt.ObjPrefix
	it := s.bucket.Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if goerrors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return errors.Trace(err)
		}
		if err = fn(trimObjectKey(s.prefix, attrs.Name), attrs.Size); err != nil {
			return errors.Trace(err)
		}
	}
}

// URI returns gcs://<base>/<prefix>.
func (s *GCSStorage) URI() string {
	return "gcs://" + s.name + "/" + s.prefix
}

type gcsObjectReader struct {
	ctx     context.Context
	storage *GCSStorage
	name    string
	pos     int64
	size    int64
	reader  *storage.Reader
}

func (r *gcsObjectReader) Read(p []byte) (int, error) {
	if r.pos >= r.size {
		return 0, io.EOF
	}
	if r.reader == nil {
		rc, err := r.storage.bucket.Object(objectKey(r.storage.prefix, r.name)).NewRangeReader(r.ctx, r.pos, -1)
		if err != nil {
			return 0, r.storage.translateError(err, r.name)
		}
		r.reader = rc
	}
	n, err := r.reader.Read(p)
	r.pos += int64(n)
	return n, err
}

func (r *gcsObjectReader) Seek(offset int64, whence int) (int64, error) {
	pos, err := seekPosition(r.pos, r.size, offset, whence)
	if err != nil {
		return 0, err
	}
	if pos != r.pos && r.reader != nil {
		_ = r.reader.Close()
		r.reader = nil
	}
	r.pos = pos
	return pos, nil
}

func (r *gcsObjectReader) Close() error {
	if r.reader == nil {
		return nil
	}
	err := r.reader.Close()
	r.reader = nil
	return errors.Trace(err)
}
