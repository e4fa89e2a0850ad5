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

package estimator

import (
	"context"
	"fmt"
	"time"

	"github.com/pingcap/layout-advisor/pkg/advisor/candidate"
	"github.com/pingcap/layout-advisor/pkg/config"
	aerrors "github.com/pingcap/layout-advisor/pkg/errors"
	"github.com/pingcap/layout-advisor/pkg/metrics"
	"github.com/pingcap/layout-advisor/pkg/planner/locator"
	"github.com/pingcap/layout-advisor/pkg/planner/plan"
	"github.com/pingcap/layout-advisor/pkg/source"
	"github.com/pingcap/layout-advisor/pkg/statistics/sampler"
	"github.com/pingcap/layout-advisor/pkg/util/logutil"
	"go.uber.org/zap"
)

const logCategory = "advisor"

// Estimator projects the write and read sizes of layout candidates from a
// sample of their source datasets.
type Estimator struct {
	cfg    config.Estimator
	loader *source.Loader
}

// New creates an Estimator. Source datasets are loaded by loader.
func New(cfg config.Estimator, loader *source.Loader) (*Estimator, error) {
	if err := cfg.Valid(); err != nil {
		return nil, err
	}
	return &Estimator{cfg: cfg, loader: loader}, nil
}

// Estimate returns the projected size of c without touching c.
//
// Repartition and FileSkipping candidates are sized from a sketch of their
// source, which must be a physical DataSource; when the candidate has no
// source node p is taken instead. Caching candidates only have the sources of
// their sub-plan located against p, they are not sized yet and the returned
// SizeInfo is nil.
func (e *Estimator) Estimate(ctx context.Context, p plan.Plan, c candidate.Candidate) (*candidate.SizeInfo, error) {
	return e.estimate(logutil.WithCategory(ctx, logCategory), p, c)
}

// EstimateSize estimates c and returns a copy of it carrying the size. c itself
// is returned when the estimation fails or produces no size.
func (e *Estimator) EstimateSize(ctx context.Context, p plan.Plan, c candidate.Candidate) (candidate.Candidate, error) {
	ctx = logutil.WithCategory(ctx, logCategory)
	info, err := e.estimate(ctx, p, c)
	if err != nil {
		logutil.Logger(ctx).Warn("estimate candidate size failed",
			zap.String("candidate", describe(c)),
			logutil.ShortError(err))
		return c, err
	}
	if info == nil {
		return c, nil
	}
	logutil.Logger(ctx).Info("candidate size estimated",
		zap.String("candidate", describe(c)),
		zap.Int64("writeSize", info.WriteSize),
		zap.Int64("readSize", info.ReadSize.Bytes()))
	return c.WithSizeInfo(info), nil
}

func (e *Estimator) estimate(ctx context.Context, p plan.Plan, c candidate.Candidate) (info *candidate.SizeInfo, err error) {
	start := time.Now()
	kind := "unknown"
	if c != nil {
		kind = c.Kind().String()
	}
	defer func() {
		result := metrics.RetLabel(err)
		if err == nil && info == nil {
			result = metrics.SkippedLabel()
		}
		metrics.EstimateCounter.WithLabelValues(kind, result).Inc()
		metrics.EstimateDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}()

	switch x := c.(type) {
	case *candidate.Repartition:
		if x == nil {
			return nil, aerrors.ErrUnsupportedCandidate.GenWithStackByArgs(c)
		}
		return e.estimateSource(ctx, sourceNode(p, x.Source), e.cfg.RepartitionReadDivisor)
	case *candidate.FileSkipping:
		if x == nil {
			return nil, aerrors.ErrUnsupportedCandidate.GenWithStackByArgs(c)
		}
		return e.estimateSource(ctx, sourceNode(p, x.Source), e.cfg.FileSkippingReadDivisor)
	case *candidate.Caching:
		if x == nil {
			return nil, aerrors.ErrUnsupportedCandidate.GenWithStackByArgs(c)
		}
		return nil, e.locateCachingSources(ctx, p, x)
	default:
		return nil, aerrors.ErrUnsupportedCandidate.GenWithStackByArgs(c)
	}
}

func (e *Estimator) estimateSource(ctx context.Context, node plan.Plan, readDivisor int) (*candidate.SizeInfo, error) {
	ds, ok := node.(*plan.DataSource)
	if !ok || !ds.IsPhysical() {
		return nil, aerrors.ErrStructuralMismatch.GenWithStackByArgs(
			fmt.Sprintf("%s is not a physical source load", explainID(node)))
	}
	coll, err := e.loader.Load(ctx, ds.Source)
	if err != nil {
		return nil, err
	}
	sketch, err := sampler.BuildSketch[source.Row](ctx, coll, e.cfg.SampleSize,
		sampler.WithConcurrency(e.cfg.GetConcurrency()),
		sampler.WithMetricLabel(string(ds.Source.Format)))
	if err != nil {
		return nil, err
	}
	selectivity, err := MeanSelectivity(sketch)
	if err != nil {
		return nil, err
	}
	info := ProjectSize(selectivity, len(ds.Source.Paths), readDivisor)
	logutil.Logger(ctx).Debug("source sampled",
		zap.String("source", ds.ExplainID()),
		zap.Int64(logutil.LogFieldCollection, sketch.CollectionID),
		zap.Int64("totalCount", sketch.TotalCount),
		zap.Float64("selectivity", selectivity),
		zap.Stringer("size", info))
	return info, nil
}

func (*Estimator) locateCachingSources(ctx context.Context, p plan.Plan, c *candidate.Caching) error {
	descs, err := locator.Locate(p, c.SubPlan)
	if err != nil {
		return err
	}
	sources := make([]string, 0, len(descs))
	for _, d := range descs {
		sources = append(sources, d.String())
	}
	logutil.Logger(ctx).Debug("caching candidate is not sized",
		zap.String("candidate", c.String()),
		zap.Strings("sources", sources))
	return nil
}

// MeanSelectivity averages len(Samples)/Count over the partitions of sketch
// which hold at least one item. Every partition weighs the same, whatever its
// size. It fails with ErrDegenerateSample when all partitions are empty.
func MeanSelectivity[T any](sketch *sampler.Sketch[T]) (float64, error) {
	var (
		sum float64
		n   int
	)
	for _, p := range sketch.Partitions {
		if p.Count == 0 {
			continue
		}
		sum += float64(len(p.Samples)) / float64(p.Count)
		n++
	}
	if n == 0 {
		return 0, aerrors.ErrDegenerateSample.GenWithStackByArgs(
			fmt.Sprintf("none of the %d partitions of collection %d holds data", len(sketch.Partitions), sketch.CollectionID))
	}
	return sum / float64(n), nil
}

// ProjectSize scales the number of source files by the selectivity to get the
// write size, and divides it by readDivisor to get the read size. Both sizes
// are in files, truncated toward zero.
func ProjectSize(selectivity float64, numPaths, readDivisor int) *candidate.SizeInfo {
	return &candidate.SizeInfo{
		WriteSize: int64(selectivity * float64(numPaths)),
		ReadSize:  candidate.ScanReadSize(numPaths / readDivisor),
	}
}

// sourceNode returns the source load a candidate was derived from, falling
// back to the plan node handed to the estimator.
func sourceNode(p, src plan.Plan) plan.Plan {
	if src != nil {
		return src
	}
	return p
}

func explainID(p plan.Plan) string {
	if p == nil {
		return "<nil>"
	}
	return p.ExplainID()
}

func describe(c candidate.Candidate) string {
	if c == nil {
		return "<nil>"
	}
	return c.String()
}
