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
	"bytes"
	"context"
	goerrors "errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/pingcap/errors"
	aerrors "github.com/pingcap/layout-advisor/pkg/errors"
	"github.com/pingcap/layout-advisor/pkg/util/logutil"
	"go.uber.org/zap"
)

const defaultS3Region = "us-east-1"

// S3Storage defines some standard operations on the S3 storage.
// It implements the `Storage` interface.
type S3Storage struct {
	cli    *s3.Client
	bucket string
	prefix string
}

// NewS3Storage initialize a new s3 storage for metadata.
func NewS3Storage(ctx context.Context, bucket, prefix string, opts *S3BackendOptions) (*S3Storage, error) {
	if err := opts.Valid(); err != nil {
		return nil, err
	}
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretAccessKey, opts.SessionToken)))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.Annotate(aerrors.ErrStorageInvalidConfig, err.Error())
	}
	if cfg.Region == "" {
		cfg.Region = defaultS3Region
	}
	cli := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			// s3 compatible services may not support the default checksums.
			o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
			o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
		}
		o.UsePathStyle = opts.ForcePathStyle
	})
	logutil.BgLogger().Info("s3 storage created",
		zap.String("bucket", bucket), zap.String("prefix", prefix),
		zap.String("region", cfg.Region), zap.String("endpoint", opts.Endpoint))
	return NewS3StorageWithClient(cli, bucket, prefix), nil
}

// NewS3StorageWithClient creates a new S3Storage over an existing client.
func NewS3StorageWithClient(cli *s3.Client, bucket, prefix string) *S3Storage {
	return &S3Storage{cli: cli, bucket: bucket, prefix: prefix}
}

func (rs *S3Storage) translateError(err error, name string) error {
	var (
		noSuchKey *types.NoSuchKey
		notFound  *types.NotFound
	)
	if goerrors.As(err, &noSuchKey) || goerrors.As(err, &notFound) {
		return errors.Annotatef(aerrors.ErrStorageNotFound, "s3://%s/%s", rs.bucket, objectKey(rs.prefix, name))
	}
	return errors.Annotatef(err, "failed to access s3 file, file info: input.bucket='%s', input.key='%s'",
		rs.bucket, objectKey(rs.prefix, name))
}

// WriteFile writes data to a file to storage.
func (rs *S3Storage) WriteFile(ctx context.Context, name string, data []byte) error {
	_, err := rs.cli.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(rs.bucket),
		Key:    aws.String(objectKey(rs.prefix, name)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return rs.translateError(err, name)
	}
	return nil
}

// ReadFile reads the file from the storage and returns the contents.
func (rs *S3Storage) ReadFile(ctx context.Context, name string) ([]byte, error) {
	result, err := rs.cli.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(rs.bucket),
		Key:    aws.String(objectKey(rs.prefix, name)),
	})
	if err != nil {
		return nil, rs.translateError(err, name)
	}
	//nolint: errcheck
	defer result.Body.Close()
	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return data, nil
}

// Stat implements Storage.Stat.
func (rs *S3Storage) Stat(ctx context.Context, name string) (int64, error) {
	result, err := rs.cli.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(rs.bucket),
		Key:    aws.String(objectKey(rs.prefix, name)),
	})
	if err != nil {
		return 0, rs.translateError(err, name)
	}
	return aws.ToInt64(result.ContentLength), nil
}

// Open a Reader by file path.
func (rs *S3Storage) Open(ctx context.Context, name string) (io.ReadSeekCloser, error) {
	size, err := rs.Stat(ctx, name)
	if err != nil {
		return nil, err
	}
	return &s3ObjectReader{ctx: ctx, storage: rs, name: name, size: size}, nil
}

// WalkDir traverse all the files in a dir.
func (rs *S3Storage) WalkDir(ctx context.Context, opt *WalkOption, fn func(string, int64) error) error {
	if opt == nil {
		opt = &WalkOption{}
	}
	prefix := objectKey(rs.prefix, opt.SubDir)
	if opt.SubDir != "" {
		prefix += "/"
	}
	prefix += opt.ObjPrefix
	paginator := s3.NewListObjectsV2Paginator(rs.cli, &s3.ListObjectsV2Input{
		Bucket: aws.String(rs.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return errors.Trace(err)
		}
		for _, obj := range page.Contents {
			key := trimObjectKey(rs.prefix, aws.ToString(obj.Key))
			size := aws.ToInt64(obj.Size)
			// filter out s3's empty directory items
			if size <= 0 && len(key) > 0 && key[len(key)-1] == '/' {
				continue
			}
			if err = fn(key, size); err != nil {
				return errors.Trace(err)
			}
		}
	}
	return nil
}

// URI returns s3://<base>/<prefix>.
func (rs *S3Storage) URI() string {
	return "s3://" + rs.bucket + "/" + rs.prefix
}

// s3ObjectReader reads an object with ranged GETs, reopening the body after a seek.
type s3ObjectReader struct {
	ctx     context.Context
	storage *S3Storage
	name    string
	pos     int64
	size    int64
	body    io.ReadCloser
}

func (r *s3ObjectReader) Read(p []byte) (int, error) {
	if r.pos >= r.size {
		return 0, io.EOF
	}
	if r.body == nil {
		result, err := r.storage.cli.GetObject(r.ctx, &s3.GetObjectInput{
			Bucket: aws.String(r.storage.bucket),
			Key:    aws.String(objectKey(r.storage.prefix, r.name)),
			Range:  aws.String(fmt.Sprintf("bytes=%d-", r.pos)),
		})
		if err != nil {
			return 0, r.storage.translateError(err, r.name)
		}
		r.body = result.Body
	}
	n, err := r.body.Read(p)
	r.pos += int64(n)
	return n, err
}

func (r *s3ObjectReader) Seek(offset int64, whence int) (int64, error) {
	pos, err := seekPosition(r.pos, r.size, offset, whence)
	if err != nil {
		return 0, err
	}
	if pos != r.pos && r.body != nil {
		_ = r.body.Close()
		r.body = nil
	}
	r.pos = pos
	return pos, nil
}

func (r *s3ObjectReader) Close() error {
	if r.body == nil {
		return nil
	}
	err := r.body.Close()
	r.body = nil
	return errors.Trace(err)
}

func seekPosition(cur, size, offset int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = cur + offset
	case io.SeekEnd:
		pos = size + offset
	default:
		return 0, errors.Annotatef(aerrors.ErrInvalidArgument, "Seek: invalid whence '%d'", whence)
	}
	if pos < 0 {
		return 0, errors.Annotatef(aerrors.ErrInvalidArgument, "Seek: offset '%v' out of range", pos)
	}
	return pos, nil
}
