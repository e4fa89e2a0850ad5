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
	"net/http/httptest"
	"testing"

	"github.com/johannesboyne/gofakes3"
	"github.com/johannesboyne/gofakes3/backend/s3mem"
	"github.com/stretchr/testify/require"
)

// newTestS3Storage creates a S3Storage backed by an in-memory fake S3 server.
func newTestS3Storage(t *testing.T, bucket, prefix string) *S3Storage {
	backend := s3mem.New()
	faker := gofakes3.New(backend)
	ts := httptest.NewServer(faker.Server())
	t.Cleanup(ts.Close)
	require.NoError(t, backend.CreateBucket(bucket))

	s, err := NewS3Storage(context.Background(), bucket, prefix, &S3BackendOptions{
		Endpoint:        ts.URL,
		Region:          "region",
		AccessKey:       "dummy-access",
		SecretAccessKey: "dummy-secret",
		ForcePathStyle:  true,
	})
	require.NoError(t, err)
	return s
}

func TestS3Storage(t *testing.T) {
	s := newTestS3Storage(t, "advisor", "data")
	require.Equal(t, "s3://advisor/data", s.URI())
	checkStorage(t, s)
}

func TestS3StorageWithoutPrefix(t *testing.T) {
	checkStorage(t, newTestS3Storage(t, "advisor", ""))
}
