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

package candidate

import (
	"fmt"
	"strings"

	"github.com/pingcap/errors"
	aerrors "github.com/pingcap/layout-advisor/pkg/errors"
	"github.com/pingcap/layout-advisor/pkg/planner/plan"
)

// Kind is the kind of a layout candidate.
type Kind int

// Candidate kinds.
const (
	KindRepartition Kind = iota
	KindFileSkipping
	KindCaching
)

var kindNames = map[Kind]string{
	KindRepartition:  "repartition",
	KindFileSkipping: "file-skipping",
	KindCaching:      "caching",
}

// String implements fmt.Stringer.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", int(k))
}

// ParseKind parses a kind name.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, errors.Annotatef(aerrors.ErrInvalidArgument, "unknown candidate kind %q", s)
}

// Sketch types of a file-skipping index.
const (
	SketchMinMax      = "MinMax"
	SketchBloomFilter = "BloomFilter"
	SketchValueList   = "ValueList"
)

// ReadSizeInfo is the projected amount a query reads from a materialized candidate.
type ReadSizeInfo interface {
	Bytes() int64
}

// ScanReadSize is the read size of a scan.
type ScanReadSize int64

// Bytes implements ReadSizeInfo.
func (s ScanReadSize) Bytes() int64 {
	return int64(s)
}

// SizeInfo is the projected size of a candidate. WriteSize counts source
// files, scaled by the sampled selectivity.
type SizeInfo struct {
	WriteSize int64
	ReadSize  ReadSizeInfo
}

// String implements fmt.Stringer.
func (s *SizeInfo) String() string {
	if s == nil {
		return "<unset>"
	}
	read := "<nil>"
	if s.ReadSize != nil {
		read = fmt.Sprint(s.ReadSize.Bytes())
	}
	return fmt.Sprintf("write:%d, read:%s", s.WriteSize, read)
}

// Candidate is a proposed layout transformation. The set of implementations
// is closed: Repartition, FileSkipping and Caching.
//
// A candidate is never modified once built. WithSizeInfo returns a copy
// carrying the size, the receiver keeps its own.
type Candidate interface {
	Kind() Kind
	// SizeInfo returns the projected size, nil until estimated.
	SizeInfo() *SizeInfo
	WithSizeInfo(info *SizeInfo) Candidate
	String() string

	isCandidate()
}

type baseCandidate struct {
	sizeInfo *SizeInfo
}

func (b *baseCandidate) SizeInfo() *SizeInfo {
	return b.sizeInfo
}

func (*baseCandidate) isCandidate() {}

// Repartition rewrites a source dataset partitioned by keys.
type Repartition struct {
	baseCandidate
	// Source is the source load the candidate was derived from.
	Source     plan.Plan
	Keys       []string
	NumBuckets int
}

// NewRepartition creates a Repartition candidate.
func NewRepartition(src plan.Plan, numBuckets int, keys ...string) *Repartition {
	return &Repartition{Source: src, Keys: keys, NumBuckets: numBuckets}
}

// Kind implements Candidate.
func (*Repartition) Kind() Kind {
	return KindRepartition
}

// WithSizeInfo implements Candidate.
func (c *Repartition) WithSizeInfo(info *SizeInfo) Candidate {
	cp := *c
	cp.sizeInfo = info
	return &cp
}

func (c *Repartition) String() string {
	if c == nil {
		return "Repartition(<nil>)"
	}
	return fmt.Sprintf("Repartition(keys:[%s], buckets:%d, source:%s)",
		strings.Join(c.Keys, ","), c.NumBuckets, explainID(c.Source))
}

// FileSkipping builds a file-skipping index over columns of a source dataset.
type FileSkipping struct {
	baseCandidate
	// Source is the source load the candidate was derived from.
	Source     plan.Plan
	Columns    []string
	SketchType string
}

// NewFileSkipping creates a FileSkipping candidate.
func NewFileSkipping(src plan.Plan, sketchType string, columns ...string) *FileSkipping {
	return &FileSkipping{Source: src, Columns: columns, SketchType: sketchType}
}

// Kind implements Candidate.
func (*FileSkipping) Kind() Kind {
	return KindFileSkipping
}

// WithSizeInfo implements Candidate.
func (c *FileSkipping) WithSizeInfo(info *SizeInfo) Candidate {
	cp := *c
	cp.sizeInfo = info
	return &cp
}

func (c *FileSkipping) String() string {
	if c == nil {
		return "FileSkipping(<nil>)"
	}
	return fmt.Sprintf("FileSkipping(%s[%s], source:%s)",
		c.SketchType, strings.Join(c.Columns, ","), explainID(c.Source))
}

// Caching materializes the result of a sub-plan.
type Caching struct {
	baseCandidate
	SubPlan plan.Plan
}

// NewCaching creates a Caching candidate.
func NewCaching(subPlan plan.Plan) *Caching {
	return &Caching{SubPlan: subPlan}
}

// Kind implements Candidate.
func (*Caching) Kind() Kind {
	return KindCaching
}

// WithSizeInfo implements Candidate.
func (c *Caching) WithSizeInfo(info *SizeInfo) Candidate {
	cp := *c
	cp.sizeInfo = info
	return &cp
}

func (c *Caching) String() string {
	if c == nil {
		return "Caching(<nil>)"
	}
	return fmt.Sprintf("Caching(%s)", explainID(c.SubPlan))
}

func explainID(p plan.Plan) string {
	if p == nil {
		return "<nil>"
	}
	return p.ExplainID()
}
