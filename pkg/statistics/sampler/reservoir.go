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
	"math"

	"github.com/pingcap/errors"
	aerrors "github.com/pingcap/layout-advisor/pkg/errors"
	"github.com/pingcap/layout-advisor/pkg/util/fastrand"
)

// maxPreallocSize caps the initial capacity of a reservoir so that a huge k
// does not allocate memory for items which may never come.
const maxPreallocSize = 4096

// Iterator is a forward-only sequence of items.
type Iterator[T any] interface {
	// Next returns the next item. ok is false once the sequence is exhausted.
	Next() (item T, ok bool, err error)
}

// SampleAndCount draws a uniform random sample of at most k items from it in a
// single pass and counts every item it yields. It uses reservoir sampling
// (Algorithm R): the first k items fill the reservoir, then the item at 1-based
// position i replaces slot r when a uniform r in [0, i) is less than k.
//
// When the iterator yields fewer than k items the sample holds exactly those
// items. The same seed over the same sequence always returns the same sample.
func SampleAndCount[T any](it Iterator[T], k int, seed int64) ([]T, int64, error) {
	if k < 0 {
		return nil, 0, errors.Annotatef(aerrors.ErrInvalidArgument, "sample size should not be negative, got %d", k)
	}
	reservoir := make([]T, 0, min(k, maxPreallocSize))
	rng := fastrand.NewXORShiftRand(seed)
	var count int64
	for {
		item, ok, err := it.Next()
		if err != nil {
			return nil, 0, errors.Trace(err)
		}
		if !ok {
			break
		}
		count++
		if count <= int64(k) {
			reservoir = append(reservoir, item)
			continue
		}
		if r := randomPosition(rng, count); r < int64(k) {
			reservoir[r] = item
		}
	}
	return reservoir, count, nil
}

// randomPosition returns a uniform integer in [0, n).
func randomPosition(rng *fastrand.XORShiftRand, n int64) int64 {
	if n <= math.MaxInt32+1 {
		return int64(rng.Intn(int(n)))
	}
	// Beyond the bounded integer range the 53 bits of a double still resolve
	// every position below 2^53.
	return int64(rng.Float64() * float64(n))
}
