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
	"io"
	"os"
	"path/filepath"
	"testing"

	aerrors "github.com/pingcap/layout-advisor/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestParseBackend(t *testing.T) {
	cases := []struct {
		uri     string
		backend Backend
	}{
		{"/tmp/data", Backend{Scheme: SchemeLocal, Prefix: "/tmp/data"}},
		{"file:///tmp/data", Backend{Scheme: SchemeLocal, Prefix: "/tmp/data"}},
		{"local:///tmp/data/", Backend{Scheme: SchemeLocal, Prefix: "/tmp/data"}},
		{"memory://", Backend{Scheme: SchemeMemory, Prefix: "/"}},
		{"s3://bucket/prefix/", Backend{Scheme: SchemeS3, Bucket: "bucket", Prefix: "prefix"}},
		{"s3://bucket", Backend{Scheme: SchemeS3, Bucket: "bucket"}},
		{"gcs://bucket/a/b", Backend{Scheme: SchemeGCS, Bucket: "bucket", Prefix: "a/b"}},
		{"gs://bucket/a", Backend{Scheme: SchemeGCS, Bucket: "bucket", Prefix: "a"}},
	}
	for _, ca := range cases {
		b, err := ParseBackend(ca.uri)
		require.NoError(t, err, ca.uri)
		require.Equal(t, ca.backend, *b, ca.uri)
	}

	for _, uri := range []string{"", "s3:///prefix", "hdfs://nn/path", "gcs://"} {
		_, err := ParseBackend(uri)
		require.Error(t, err, uri)
		require.True(t, aerrors.ErrStorageInvalidConfig.Equal(err), uri)
	}
}

func TestS3BackendOptionsValid(t *testing.T) {
	require.NoError(t, (&S3BackendOptions{}).Valid())
	require.NoError(t, (&S3BackendOptions{Endpoint: "http://127.0.0.1:9000", AccessKey: "ak", SecretAccessKey: "sk"}).Valid())
	require.Error(t, (&S3BackendOptions{Endpoint: "127.0.0.1"}).Valid())
	require.True(t, aerrors.ErrStorageInvalidConfig.Equal((&S3BackendOptions{AccessKey: "ak"}).Valid()))
	require.True(t, aerrors.ErrStorageInvalidConfig.Equal((&S3BackendOptions{SecretAccessKey: "sk"}).Valid()))
}

func TestNewMemStorage(t *testing.T) {
	s, err := NewFromURL(context.Background(), "memory://", nil)
	require.NoError(t, err)
	require.IsType(t, (*AferoStorage)(nil), s)
	require.Equal(t, "memory://", s.URI())
}

func checkStorage(t *testing.T, s Storage) {
	ctx := context.Background()
	require.NoError(t, s.WriteFile(ctx, "a/1.csv", []byte("0123456789")))
	require.NoError(t, s.WriteFile(ctx, "a/2.csv", []byte("abc")))
	require.NoError(t, s.WriteFile(ctx, "b.jsonl", []byte("{}")))

	data, err := s.ReadFile(ctx, "a/2.csv")
	require.NoError(t, err)
	require.Equal(t, "abc", string(data))

	size, err := s.Stat(ctx, "a/1.csv")
	require.NoError(t, err)
	require.EqualValues(t, 10, size)

	_, err = s.Stat(ctx, "missing.csv")
	require.True(t, aerrors.ErrStorageNotFound.Equal(err))
	_, err = s.ReadFile(ctx, "missing.csv")
	require.True(t, aerrors.ErrStorageNotFound.Equal(err))

	r, err := s.Open(ctx, "a/1.csv")
	require.NoError(t, err)
	pos, err := r.Seek(4, io.SeekStart)
	require.NoError(t, err)
	require.EqualValues(t, 4, pos)
	buf := make([]byte, 3)
	_, err = io.ReadFull(r, buf)
	require.NoError(t, err)
	require.Equal(t, "456", string(buf))
	pos, err = r.Seek(-2, io.SeekEnd)
	require.NoError(t, err)
	require.EqualValues(t, 8, pos)
	rest, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "89", string(rest))
	require.NoError(t, r.Close())

	var walked []string
	require.NoError(t, s.WalkDir(ctx, nil, func(path string, size int64) error {
		walked = append(walked, path)
		return nil
	}))
	require.Equal(t, []string{"a/1.csv", "a/2.csv", "b.jsonl"}, walked)

	walked = walked[:0]
	require.NoError(t, s.WalkDir(ctx, &WalkOption{SubDir: "a", ObjPrefix: "2"}, func(path string, size int64) error {
		walked = append(walked, path)
		require.EqualValues(t, 3, size)
		return nil
	}))
	require.Equal(t, []string{"a/2.csv"}, walked)
}

func TestMemStorage(t *testing.T) {
	checkStorage(t, NewMemStorage())
}

func TestLocalStorage(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFromURL(context.Background(), "file://"+filepath.ToSlash(dir), nil)
	require.NoError(t, err)
	checkStorage(t, s)

	// Files are really written below the base dir.
	data, err := os.ReadFile(filepath.Join(dir, "a", "2.csv"))
	require.NoError(t, err)
	require.Equal(t, "abc", string(data))
}
