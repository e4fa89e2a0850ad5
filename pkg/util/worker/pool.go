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

package worker

import (
	"context"

	"github.com/pingcap/errors"
	"github.com/pingcap/layout-advisor/pkg/util/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Pool limits how many tasks of one kind run at the same time.
type Pool struct {
	limit   uint
	workers chan *Worker
	name    string
}

// Worker identified by ID.
type Worker struct {
	ID uint64
}

// NewPool returns a Pool with limit workers.
func NewPool(limit uint, name string) *Pool {
	if limit == 0 {
		limit = 1
	}
	workers := make(chan *Worker, limit)
	for i := uint(0); i < limit; i++ {
		workers <- &Worker{ID: uint64(i + 1)}
	}
	return &Pool{
		limit:   limit,
		workers: workers,
		name:    name,
	}
}

// Limit is the limit of the pool.
func (pool *Pool) Limit() int {
	return int(pool.limit)
}

// ApplyOnErrorGroup executes a task in an errorgroup.
func (pool *Pool) ApplyOnErrorGroup(ctx context.Context, eg *errgroup.Group, fn func() error) error {
	return pool.ApplyWithIDInErrorGroup(ctx, eg, func(uint64) error { return fn() })
}

// ApplyWithIDInErrorGroup executes a task in an errorgroup and provides it with the worker ID.
// It blocks until a worker is free or ctx is done.
func (pool *Pool) ApplyWithIDInErrorGroup(ctx context.Context, eg *errgroup.Group, fn func(id uint64) error) error {
	worker, err := pool.ApplyWorker(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	eg.Go(func() error {
		defer pool.RecycleWorker(worker)
		return fn(worker.ID)
	})
	return nil
}

// ApplyWorker apply a worker.
func (pool *Pool) ApplyWorker(ctx context.Context) (*Worker, error) {
	var worker *Worker
	if ctx.Err() != nil {
		return nil, context.Cause(ctx)
	}
	select {
	case <-ctx.Done():
		return nil, context.Cause(ctx)
	case worker = <-pool.workers:
	default:
		logutil.BgLogger().Debug("wait for workers", zap.String("pool", pool.name))
		select {
		case <-ctx.Done():
			return nil, context.Cause(ctx)
		case worker = <-pool.workers:
		}
	}
	return worker, nil
}

// RecycleWorker recycle a worker.
func (pool *Pool) RecycleWorker(worker *Worker) {
	if worker == nil {
		panic("invalid worker")
	}
	pool.workers <- worker
}

// Wait waits for all the goroutine to complete. ctx is the parent of the
// errgroup context: an error of a task wins over the cancellation of ctx.
func (pool *Pool) Wait(ctx context.Context, eg *errgroup.Group) error {
	if err := eg.Wait(); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(context.Cause(ctx))
}
