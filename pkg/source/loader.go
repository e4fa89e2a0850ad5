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

package source

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/dgryski/go-farm"
	"github.com/docker/go-units"
	"github.com/pingcap/errors"
	"github.com/pingcap/layout-advisor/pkg/config"
	"github.com/pingcap/layout-advisor/pkg/objstore"
	"github.com/pingcap/layout-advisor/pkg/statistics/sampler"
	"github.com/pingcap/layout-advisor/pkg/util/logutil"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// collectionID hands out the identities of collections loaded in session seed mode.
var collectionID atomic.Int64

// Partition is a slice of one file which is read by one sampling task.
type Partition struct {
	Path     string
	FileSize int64
	// Offset and End delimit a region of a text file in bytes. The region owns
	// the lines starting in [Offset, End).
	Offset int64
	End    int64
	// RowGroup, RowStart and NumRows locate a row group of a parquet file.
	RowGroup int
	RowStart int64
	NumRows  int64
}

// Loader turns source descriptors into partitioned row collections.
type Loader struct {
	store      objstore.Storage
	regionSize int64
	seedMode   string
}

// NewLoader creates a Loader reading files from store. Text files are split
// into regions of regionSize bytes.
func NewLoader(store objstore.Storage, regionSize int64, seedMode string) *Loader {
	if regionSize <= 0 {
		regionSize = config.DefaultRegionSize
	}
	if seedMode == "" {
		seedMode = config.SeedModeSession
	}
	return &Loader{store: store, regionSize: regionSize, seedMode: seedMode}
}

// Store returns the storage the loader reads from.
func (l *Loader) Store() objstore.Storage {
	return l.store
}

// Load validates desc and splits its files into partitions. Nothing but the
// file sizes and the parquet footers is read here.
func (l *Loader) Load(ctx context.Context, desc *Descriptor) (*Collection, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	sizes := make([]int64, 0, len(desc.Paths))
	var partitions []Partition
	for _, path := range desc.Paths {
		size, err := l.store.Stat(ctx, path)
		if err != nil {
			return nil, err
		}
		sizes = append(sizes, size)
		var parts []Partition
		if desc.Format == FormatParquet {
			parts, err = splitParquetFile(ctx, l.store, path, size)
			if err != nil {
				return nil, err
			}
		} else {
			parts = splitTextFile(path, size, l.regionSize)
		}
		partitions = append(partitions, parts...)
	}

	var id int64
	if l.seedMode == config.SeedModeContent {
		id = contentIdentity(desc, sizes)
	} else {
		id = collectionID.Inc()
	}
	coll := &Collection{
		id:         id,
		desc:       desc,
		store:      l.store,
		partitions: partitions,
	}
	logutil.Logger(ctx).Debug("source loaded",
		zap.Int64(logutil.LogFieldCollection, id),
		zap.Stringer("source", desc),
		zap.Int("partitions", len(partitions)),
		zap.Duration("takeTime", time.Since(start)))
	return coll, nil
}

// splitTextFile splits a file into regions of regionSize bytes. An empty file
// still has one, empty, region.
func splitTextFile(path string, size, regionSize int64) []Partition {
	if size == 0 {
		return []Partition{{Path: path}}
	}
	parts := make([]Partition, 0, (size+regionSize-1)/regionSize)
	for offset := int64(0); offset < size; offset += regionSize {
		parts = append(parts, Partition{
			Path:     path,
			FileSize: size,
			Offset:   offset,
			End:      min(offset+regionSize, size),
		})
	}
	if len(parts) > 1 {
		logutil.BgLogger().Debug("split text file",
			zap.String("path", path),
			zap.String("size", units.HumanSize(float64(size))),
			zap.Int("regions", len(parts)))
	}
	return parts
}

// contentIdentity fingerprints the format and the files of a dataset, so that
// loading the same files again yields the same identity, in any process.
func contentIdentity(desc *Descriptor, sizes []int64) int64 {
	buf := make([]byte, 0, 64)
	buf = append(buf, desc.Format...)
	for i, path := range desc.Paths {
		buf = append(buf, 0)
		buf = append(buf, path...)
		buf = binary.BigEndian.AppendUint64(buf, uint64(sizes[i]))
	}
	return int64(farm.Fingerprint64(buf))
}

// Collection is a source dataset split into partitions.
type Collection struct {
	id         int64
	desc       *Descriptor
	store      objstore.Storage
	partitions []Partition
}

var _ sampler.PartitionedCollection[Row] = (*Collection)(nil)

// ID implements sampler.PartitionedCollection.
func (c *Collection) ID() int64 {
	return c.id
}

// NumPartitions implements sampler.PartitionedCollection.
func (c *Collection) NumPartitions() int {
	return len(c.partitions)
}

// Partitions returns the partitions of the collection.
func (c *Collection) Partitions() []Partition {
	return c.partitions
}

// Descriptor returns the descriptor the collection was loaded from.
func (c *Collection) Descriptor() *Descriptor {
	return c.desc
}

// OpenPartition implements sampler.PartitionedCollection.
func (c *Collection) OpenPartition(ctx context.Context, idx int) (sampler.PartitionIterator[Row], error) {
	if idx < 0 || idx >= len(c.partitions) {
		return nil, errors.Errorf("partition %d out of range [0, %d)", idx, len(c.partitions))
	}
	p := c.partitions[idx]
	switch c.desc.Format {
	case FormatCSV:
		return newCSVIterator(ctx, c.store, c.desc, p)
	case FormatJSONL:
		return newJSONLIterator(ctx, c.store, c.desc, p)
	default:
		return newParquetIterator(ctx, c.store, c.desc, p)
	}
}
