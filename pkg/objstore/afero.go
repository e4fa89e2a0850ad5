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
	"path"
	"path/filepath"
	"strings"

	"github.com/pingcap/errors"
	aerrors "github.com/pingcap/layout-advisor/pkg/errors"
	"github.com/spf13/afero"
)

// AferoStorage is a Storage over an afero file system. It backs both the
// local storage and the in-memory storage used by tests.
type AferoStorage struct {
	fs  afero.Fs
	uri string
}

// NewLocalStorage returns a storage rooted at the local directory base.
func NewLocalStorage(base string) (*AferoStorage, error) {
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &AferoStorage{
		fs:  afero.NewBasePathFs(afero.NewOsFs(), abs),
		uri: "file://" + filepath.ToSlash(abs),
	}, nil
}

// NewMemStorage returns an empty in-memory storage.
func NewMemStorage() *AferoStorage {
	return &AferoStorage{
		fs:  afero.NewMemMapFs(),
		uri: "memory://",
	}
}

func aferoPath(name string) string {
	return path.Join("/", name)
}

func translateNotFound(err error, name string) error {
	if os.IsNotExist(err) {
		return errors.Annotatef(aerrors.ErrStorageNotFound, "file %s: %v", name, err)
	}
	return errors.Trace(err)
}

// WriteFile implements Storage.WriteFile.
func (s *AferoStorage) WriteFile(_ context.Context, name string, data []byte) error {
	p := aferoPath(name)
	if err := s.fs.MkdirAll(path.Dir(p), 0755); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(afero.WriteFile(s.fs, p, data, 0644))
}

// ReadFile implements Storage.ReadFile.
func (s *AferoStorage) ReadFile(_ context.Context, name string) ([]byte, error) {
	data, err := afero.ReadFile(s.fs, aferoPath(name))
	if err != nil {
		return nil, translateNotFound(err, name)
	}
	return data, nil
}

// Stat implements Storage.Stat.
func (s *AferoStorage) Stat(_ context.Context, name string) (int64, error) {
	info, err := s.fs.Stat(aferoPath(name))
	if err != nil {
		return 0, translateNotFound(err, name)
	}
	if info.IsDir() {
		return 0, errors.Annotatef(aerrors.ErrStorageNotFound, "%s is a directory", name)
	}
	return info.Size(), nil
}

// Open implements Storage.Open.
func (s *AferoStorage) Open(_ context.Context, name string) (io.ReadSeekCloser, error) {
	f, err := s.fs.Open(aferoPath(name))
	if err != nil {
		return nil, translateNotFound(err, name)
	}
	return f, nil
}

// WalkDir implements Storage.WalkDir.
func (s *AferoStorage) WalkDir(ctx context.Context, opt *WalkOption, fn func(string, int64) error) error {
	if opt == nil {
		opt = &WalkOption{}
	}
	root := aferoPath(opt.SubDir)
	if ok, err := afero.DirExists(s.fs, root); err != nil || !ok {
		return errors.Trace(err)
	}
	return afero.Walk(s.fs, root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return errors.Trace(err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel := strings.TrimPrefix(filepath.ToSlash(p), "/")
		if opt.ObjPrefix != "" && !strings.HasPrefix(path.Base(rel), opt.ObjPrefix) {
			return nil
		}
		return fn(rel, info.Size())
	})
}

// URI implements Storage.URI.
func (s *AferoStorage) URI() string {
	return s.uri
}
