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

package fastrand

import (
	"encoding/binary"
	"fmt"
	"math/bits"

	"github.com/twmb/murmur3"
)

// seedHashSeed is the murmur3 seed used for the first round of seed hashing.
const seedHashSeed uint32 = 0x3c074a61

// maxBound is the largest bound accepted by Intn.
const maxBound = 1 << 31

// BoundedRand produces uniformly distributed integers in [0, bound).
type BoundedRand interface {
	Intn(bound int) int
}

// XORShiftRand is a xorshift64 generator. Its raw seed goes through a two-round
// murmur3 avalanche before use, so small and sequential seeds still give
// well-mixed sequences.
//
// It is not safe for concurrent use. Create one instance per sampling task.
type XORShiftRand struct {
	state uint64
}

var _ BoundedRand = (*XORShiftRand)(nil)

// NewXORShiftRand creates a generator from seed.
func NewXORShiftRand(seed int64) *XORShiftRand {
	return &XORShiftRand{state: HashSeed(seed)}
}

// HashSeed mixes a raw seed into an initial generator state.
func HashSeed(seed int64) uint64 {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(seed))
	low := murmur3.SeedSum32(seedHashSeed, buf[:])
	high := murmur3.SeedSum32(low, buf[:])
	return uint64(high)<<32 | uint64(low)
}

func (r *XORShiftRand) next(n uint) uint64 {
	s := r.state
	s ^= s << 21
	s ^= s >> 35
	s ^= s << 4
	r.state = s
	return s & (1<<n - 1)
}

// Uint64 returns the next 64 raw bits.
func (r *XORShiftRand) Uint64() uint64 {
	return r.next(64)
}

// Intn returns a uniformly distributed integer in [0, bound).
// It panics if bound is not in (0, 2^31].
func (r *XORShiftRand) Intn(bound int) int {
	if bound <= 0 || bound > maxBound {
		panic(fmt.Sprintf("invalid bound %d for Intn", bound))
	}
	v := int64(r.next(31))
	if bound&(bound-1) == 0 {
		return int((int64(bound) * v) >> 31)
	}
	// Reject draws from the incomplete tail so every residue is equally likely.
	// The wraparound of the 32-bit sum is what detects the tail.
	b := int32(bound)
	u := int32(v)
	res := u % b
	for u-res+(b-1) < 0 {
		u = int32(r.next(31))
		res = u % b
	}
	return int(res)
}

// Float64 returns a uniformly distributed float64 in [0, 1).
func (r *XORShiftRand) Float64() float64 {
	hi := r.next(26)
	lo := r.next(27)
	return float64(hi<<27+lo) * (1.0 / (1 << 53))
}

// Byteswap32 is a cheap bijective mixer for 32-bit integers.
func Byteswap32(v int32) int32 {
	h := uint32(v) * 0x9e3775cd
	h = bits.ReverseBytes32(h)
	return int32(h * 0x9e3775cd)
}

// PartitionSeed derives the sampling seed of one partition from the identity of its
// collection. The identity is folded to 32 bits, so every bit of a 64-bit fingerprint
// counts, and rotated so its low half stays clear of the low bits taken by the
// partition index. For identities below 1<<16 this is byteswap32(partition ^ id<<16).
func PartitionSeed(collectionID int64, partition int) int64 {
	id := uint32(collectionID) ^ uint32(uint64(collectionID)>>32)
	return int64(Byteswap32(int32(partition) ^ int32(bits.RotateLeft32(id, 16))))
}
