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

package sampler

import (
	"context"
	"runtime"
	"time"

	"github.com/pingcap/errors"
	"github.com/pingcap/failpoint"
	aerrors "github.com/pingcap/layout-advisor/pkg/errors"
	"github.com/pingcap/layout-advisor/pkg/metrics"
	"github.com/pingcap/layout-advisor/pkg/util/fastrand"
	"github.com/pingcap/layout-advisor/pkg/util/logutil"
	"github.com/pingcap/layout-advisor/pkg/util/worker"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// checkCtxInterval is how many items a partition iterator yields between two
// checks of the context.
const checkCtxInterval = 1024

// PartitionIterator iterates the items of one partition.
type PartitionIterator[T any] interface {
	Iterator[T]
	Close() error
}

// PartitionedCollection is a dataset split into partitions which can be read
// independently of each other.
type PartitionedCollection[T any] interface {
	// ID identifies the collection. Together with the partition index it seeds
	// the sampling of a partition.
	ID() int64
	// NumPartitions returns the number of partitions.
	NumPartitions() int
	// OpenPartition opens the partition idx, 0 <= idx < NumPartitions().
	OpenPartition(ctx context.Context, idx int) (PartitionIterator[T], error)
}

// PartitionSample is the sampling result of one partition.
type PartitionSample[T any] struct {
	Index   int
	Count   int64
	Samples []T
}

// Sketch is the sampling result of a whole collection. Partitions are ordered
// by index and empty partitions are kept with a zero count.
type Sketch[T any] struct {
	CollectionID int64
	TotalCount   int64
	Partitions   []PartitionSample[T]
}

// SampleCount returns the number of sampled items over all partitions.
func (s *Sketch[T]) SampleCount() int {
	n := 0
	for _, p := range s.Partitions {
		n += len(p.Samples)
	}
	return n
}

type options struct {
	concurrency int
	label       string
}

// Option configures BuildSketch.
type Option func(*options)

// WithConcurrency bounds how many partitions are sampled at the same time.
// A non-positive value means GOMAXPROCS.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithMetricLabel sets the format label the sampler metrics are reported with.
func WithMetricLabel(label string) Option {
	return func(o *options) {
		o.label = label
	}
}

// BuildSketch samples every partition of coll with a reservoir of size k.
// Partitions are sampled in parallel, each with its own generator seeded by
// fastrand.PartitionSeed(coll.ID(), idx), so the result does not depend on the
// concurrency or on the scheduling. The first failing partition cancels the
// others and its error is returned without a sketch.
func BuildSketch[T any](ctx context.Context, coll PartitionedCollection[T], k int, opts ...Option) (*Sketch[T], error) {
	if k < 0 {
		return nil, errors.Annotatef(aerrors.ErrInvalidArgument, "sample size should not be negative, got %d", k)
	}
	o := options{concurrency: runtime.GOMAXPROCS(0), label: "unknown"}
	for _, opt := range opts {
		opt(&o)
	}

	start := time.Now()
	collID := coll.ID()
	numPartitions := coll.NumPartitions()
	partitions := make([]PartitionSample[T], numPartitions)
	pool := worker.NewPool(uint(o.concurrency), "sketch")
	eg, ectx := errgroup.WithContext(ctx)
	for idx := range numPartitions {
		err := pool.ApplyOnErrorGroup(ectx, eg, func() error {
			samples, count, err := samplePartition(ectx, coll, collID, idx, k)
			if err != nil {
				return errors.Annotatef(err, "sample partition %d of collection %d", idx, collID)
			}
			partitions[idx] = PartitionSample[T]{Index: idx, Count: count, Samples: samples}
			return nil
		})
		if err != nil {
			// ectx is done, Wait reports the reason.
			break
		}
	}
	if err := pool.Wait(ctx, eg); err != nil {
		return nil, err
	}

	sketch := &Sketch[T]{CollectionID: collID, Partitions: partitions}
	for _, p := range partitions {
		sketch.TotalCount += p.Count
	}
	metrics.SampledPartitions.WithLabelValues(o.label).Add(float64(numPartitions))
	metrics.SampledRows.WithLabelValues(o.label).Add(float64(sketch.TotalCount))
	metrics.SketchDuration.Observe(time.Since(start).Seconds())
	logutil.Logger(ctx).Debug("sketch built",
		zap.Int64(logutil.LogFieldCollection, collID),
		zap.Int("partitions", numPartitions),
		zap.Int("concurrency", pool.Limit()),
		zap.Int64("totalCount", sketch.TotalCount),
		zap.Int("samples", sketch.SampleCount()),
		zap.Duration("takeTime", time.Since(start)))
	return sketch, nil
}

func samplePartition[T any](ctx context.Context, coll PartitionedCollection[T], collID int64, idx, k int) (_ []T, _ int64, err error) {
	if val, e := failpoint.Eval("github.com/pingcap/layout-advisor/pkg/statistics/sampler/mockSamplePartitionError"); e == nil {
		if target, ok := val.(int); ok && target == idx {
			return nil, 0, errors.New("mock sample partition error")
		}
	}
	it, err := coll.OpenPartition(ctx, idx)
	if err != nil {
		return nil, 0, errors.Trace(err)
	}
	defer func() {
		if closeErr := it.Close(); err == nil && closeErr != nil {
			err = errors.Trace(closeErr)
		}
	}()
	return SampleAndCount[T](&ctxIterator[T]{ctx: ctx, it: it}, k, fastrand.PartitionSeed(collID, idx))
}

// ctxIterator stops the iteration once ctx is done.
type ctxIterator[T any] struct {
	ctx context.Context
	it  Iterator[T]
	n   int
}

func (c *ctxIterator[T]) Next() (item T, ok bool, err error) {
	c.n++
	if c.n%checkCtxInterval == 0 {
		if err = context.Cause(c.ctx); err != nil {
			return item, false, err
		}
	}
	return c.it.Next()
}
