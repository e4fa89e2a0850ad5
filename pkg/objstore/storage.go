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
	"net/url"
	"path"
	"strings"

	"github.com/pingcap/errors"
	aerrors "github.com/pingcap/layout-advisor/pkg/errors"
)

// Backend schemes.
const (
	SchemeLocal  = "local"
	SchemeMemory = "memory"
	SchemeS3     = "s3"
	SchemeGCS    = "gcs"
)

// WalkOption is the option of storage.WalkDir.
type WalkOption struct {
	// walk on SubDir of specify directory
	SubDir string
	// ObjPrefix used fo prefix search in storage.
	ObjPrefix string
}

// Storage represents a kind of file system storage the sampled sources live in.
type Storage interface {
	// WriteFile writes a complete file to storage, similar to os.WriteFile.
	WriteFile(ctx context.Context, name string, data []byte) error
	// ReadFile reads a complete file from storage, similar to os.ReadFile.
	ReadFile(ctx context.Context, name string) ([]byte, error)
	// Stat returns the size in bytes of the file.
	Stat(ctx context.Context, name string) (int64, error)
	// Open a reader by file path. path is relative path to storage base path.
	Open(ctx context.Context, path string) (io.ReadSeekCloser, error)
	// WalkDir traverse all the files in a dir.
	//
	// fn is the function called for each regular file visited by WalkDir.
	// The argument `path` is the file path that can be used in `Open`
	// function; the argument `size` is the size in byte of the file determined
	// by path.
	WalkDir(ctx context.Context, opt *WalkOption, fn func(path string, size int64) error) error
	// URI returns the base path as a URI.
	URI() string
}

// S3BackendOptions contains options for s3 storage.
type S3BackendOptions struct {
	Endpoint        string `json:"endpoint" toml:"endpoint"`
	Region          string `json:"region" toml:"region"`
	AccessKey       string `json:"access-key" toml:"access-key"`
	SecretAccessKey string `json:"-" toml:"secret-access-key"`
	SessionToken    string `json:"-" toml:"session-token"`
	ForcePathStyle  bool   `json:"force-path-style" toml:"force-path-style"`
}

// Valid checks the s3 options.
func (options *S3BackendOptions) Valid() error {
	if options.Endpoint != "" {
		u, err := url.Parse(options.Endpoint)
		if err != nil {
			return errors.Trace(err)
		}
		if u.Scheme == "" {
			return errors.Annotate(aerrors.ErrStorageInvalidConfig, "scheme not found in endpoint")
		}
		if u.Host == "" {
			return errors.Annotate(aerrors.ErrStorageInvalidConfig, "host not found in endpoint")
		}
	}
	if options.AccessKey == "" && options.SecretAccessKey != "" {
		return errors.Annotate(aerrors.ErrStorageInvalidConfig, "access_key not found")
	}
	if options.AccessKey != "" && options.SecretAccessKey == "" {
		return errors.Annotate(aerrors.ErrStorageInvalidConfig, "secret_access_key not found")
	}
	return nil
}

// GCSBackendOptions are options for configuration the GCS storage.
type GCSBackendOptions struct {
	Endpoint        string `json:"endpoint" toml:"endpoint"`
	CredentialsFile string `json:"credentials-file" toml:"credentials-file"`
}

// BackendOptions further configures the storage backend not expressed by the
// storage URL.
type BackendOptions struct {
	S3  S3BackendOptions  `json:"s3" toml:"s3"`
	GCS GCSBackendOptions `json:"gcs" toml:"gcs"`
}

// Backend is a parsed storage URI.
type Backend struct {
	Scheme string
	// Bucket is empty for local and memory storages.
	Bucket string
	// Prefix is the object key prefix for cloud storages and the base dir otherwise.
	Prefix string
}

// ParseBackend parses a storage URI. Supported forms are a bare local path,
// file:///path, memory://, s3://bucket/prefix, gcs://bucket/prefix and gs://bucket/prefix.
func ParseBackend(rawURL string) (*Backend, error) {
	if len(rawURL) == 0 {
		return nil, errors.Annotate(aerrors.ErrStorageInvalidConfig, "empty store is not allowed")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Trace(err)
	}
	switch u.Scheme {
	case "", "file", "local":
		if u.Scheme == "" {
			return &Backend{Scheme: SchemeLocal, Prefix: rawURL}, nil
		}
		return &Backend{Scheme: SchemeLocal, Prefix: path.Join("/", u.Host, u.Path)}, nil
	case "memory", "memstore":
		return &Backend{Scheme: SchemeMemory, Prefix: "/"}, nil
	case "s3", "gcs", "gs":
		if u.Host == "" {
			return nil, errors.Annotatef(aerrors.ErrStorageInvalidConfig, "please specify the bucket for %s in %s", u.Scheme, rawURL)
		}
		scheme := SchemeS3
		if u.Scheme != "s3" {
			scheme = SchemeGCS
		}
		return &Backend{
			Scheme: scheme,
			Bucket: u.Host,
			Prefix: strings.Trim(u.Path, "/"),
		}, nil
	default:
		return nil, errors.Annotatef(aerrors.ErrStorageInvalidConfig, "storage %s not support yet", u.Scheme)
	}
}

// New creates a Storage with the given backend.
func New(ctx context.Context, backend *Backend, opts *BackendOptions) (Storage, error) {
	if opts == nil {
		opts = &BackendOptions{}
	}
	switch backend.Scheme {
	case SchemeLocal:
		return NewLocalStorage(backend.Prefix)
	case SchemeMemory:
		return NewMemStorage(), nil
	case SchemeS3:
		return NewS3Storage(ctx, backend.Bucket, backend.Prefix, &opts.S3)
	case SchemeGCS:
		return NewGCSStorage(ctx, backend.Bucket, backend.Prefix, &opts.GCS)
	default:
		return nil, errors.Annotatef(aerrors.ErrStorageInvalidConfig, "storage %s not support yet", backend.Scheme)
	}
}

// NewFromURL creates a Storage from a URI.
func NewFromURL(ctx context.Context, uri string, opts *BackendOptions) (Storage, error) {
	backend, err := ParseBackend(uri)
	if err != nil {
		return nil, err
	}
	return New(ctx, backend, opts)
}

// objectKey joins the prefix of a cloud storage with a relative name.
func objectKey(prefix, name string) string {
	name = strings.TrimPrefix(name, "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

// trimObjectKey is the reverse of objectKey.
func trimObjectKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return strings.TrimPrefix(strings.TrimPrefix(key, prefix), "/")
}
