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
	"testing"

	"github.com/pingcap/errors"
	"github.com/pingcap/failpoint"
	aerrors "github.com/pingcap/layout-advisor/pkg/errors"
	"github.com/pingcap/layout-advisor/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type memCollection struct {
	id         int64
	partitions [][]int
	openErr    map[int]error
}

func (c *memCollection) ID() int64 {
	return c.id
}

func (c *memCollection) NumPartitions() int {
	return len(c.partitions)
}

func (c *memCollection) OpenPartition(_ context.Context, idx int) (PartitionIterator[int], error) {
	if err := c.openErr[idx]; err != nil {
		return nil, err
	}
	return newSliceIterator(c.partitions[idx]), nil
}

func newMemCollection(id int64, sizes ...int) *memCollection {
	c := &memCollection{id: id}
	next := 0
	for _, size := range sizes {
		part := make([]int, size)
		for i := range part {
			part[i] = next
			next++
		}
		c.partitions = append(c.partitions, part)
	}
	return c
}

func TestBuildSketch(t *testing.T) {
	coll := newMemCollection(3, 100, 0, 7, 10, 2500)
	sketch, err := BuildSketch[int](context.Background(), coll, 10, WithConcurrency(2))
	require.NoError(t, err)
	require.EqualValues(t, 3, sketch.CollectionID)
	require.Len(t, sketch.Partitions, 5)

	var total int64
	for i, p := range sketch.Partitions {
		require.Equal(t, i, p.Index)
		require.EqualValues(t, len(coll.partitions[i]), p.Count)
		require.Len(t, p.Samples, min(int(p.Count), 10))
		for _, v := range p.Samples {
			require.Contains(t, coll.partitions[i], v)
		}
		total += p.Count
	}
	require.Equal(t, total, sketch.TotalCount)
	require.EqualValues(t, 2617, sketch.TotalCount)
	require.Equal(t, 10+0+7+10+10, sketch.SampleCount())
}

func TestBuildSketchIndependentOfConcurrency(t *testing.T) {
	coll := newMemCollection(42, 300, 500, 50, 1000, 1, 64, 65)
	serial, err := BuildSketch[int](context.Background(), coll, 8, WithConcurrency(1))
	require.NoError(t, err)
	for _, concurrency := range []int{2, 4, 16, 0} {
		parallel, err := BuildSketch[int](context.Background(), coll, 8, WithConcurrency(concurrency))
		require.NoError(t, err)
		require.Equal(t, serial, parallel)
	}

	other, err := BuildSketch[int](context.Background(), newMemCollection(43, 300, 500, 50, 1000, 1, 64, 65), 8)
	require.NoError(t, err)
	require.NotEqual(t, serial.Partitions[0].Samples, other.Partitions[0].Samples)
}

func TestBuildSketchEmptyCollection(t *testing.T) {
	sketch, err := BuildSketch[int](context.Background(), newMemCollection(1), 10)
	require.NoError(t, err)
	require.Len(t, sketch.Partitions, 0)
	require.EqualValues(t, 0, sketch.TotalCount)
}

func TestBuildSketchInvalidK(t *testing.T) {
	_, err := BuildSketch[int](context.Background(), newMemCollection(1, 3), -1)
	require.True(t, aerrors.ErrInvalidArgument.Equal(err))
}

func TestBuildSketchOpenError(t *testing.T) {
	coll := newMemCollection(1, 10, 10, 10, 10)
	boom := errors.New("cannot open partition")
	coll.openErr = map[int]error{2: boom}
	sketch, err := BuildSketch[int](context.Background(), coll, 3, WithConcurrency(2))
	require.Nil(t, sketch)
	require.Equal(t, boom, errors.Cause(err))
}

func TestBuildSketchCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sketch, err := BuildSketch[int](ctx, newMemCollection(1, 10, 10), 3)
	require.Nil(t, sketch)
	require.ErrorIs(t, errors.Cause(err), context.Canceled)
}

func TestBuildSketchFailpoint(t *testing.T) {
	fpName := "github.com/pingcap/layout-advisor/pkg/statistics/sampler/mockSamplePartitionError"
	require.NoError(t, failpoint.Enable(fpName, "return(1)"))
	defer func() {
		require.NoError(t, failpoint.Disable(fpName))
	}()
	sketch, err := BuildSketch[int](context.Background(), newMemCollection(1, 10, 10, 10), 3)
	require.Nil(t, sketch)
	require.ErrorContains(t, err, "mock sample partition error")
	require.ErrorContains(t, err, "sample partition 1")
}

func TestBuildSketchMetrics(t *testing.T) {
	partitions := testutil.ToFloat64(metrics.SampledPartitions.WithLabelValues("test"))
	rows := testutil.ToFloat64(metrics.SampledRows.WithLabelValues("test"))
	_, err := BuildSketch[int](context.Background(), newMemCollection(1, 10, 0, 5), 3, WithMetricLabel("test"))
	require.NoError(t, err)
	require.Equal(t, partitions+3, testutil.ToFloat64(metrics.SampledPartitions.WithLabelValues("test")))
	require.Equal(t, rows+15, testutil.ToFloat64(metrics.SampledRows.WithLabelValues("test")))
}
