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

package plan

import (
	"fmt"
	"strings"

	"github.com/pingcap/layout-advisor/pkg/objstore"
	"github.com/pingcap/layout-advisor/pkg/source"
	"go.uber.org/atomic"
)

// Plan node types.
const (
	TypeDataSource  = "DataSource"
	TypeSelection   = "Selection"
	TypeProjection  = "Projection"
	TypeJoin        = "Join"
	TypeAggregation = "Aggregation"
	TypeSourceRef   = "SourceRef"
)

var planID atomic.Int64

// Plan is a node of a query plan tree.
type Plan interface {
	// ID is unique among the plans of the process.
	ID() int
	// TP is the type of the node, one of the Type* constants.
	TP() string
	// ExplainID is TP and ID joined, e.g. "Selection_3".
	ExplainID() string
	// ExplainInfo describes the node without its children.
	ExplainInfo() string
	// Children returns the input plans, left to right.
	Children() []Plan
}

type basePlan struct {
	tp string
	id int
}

func newBasePlan(tp string) basePlan {
	return basePlan{tp: tp, id: int(planID.Inc())}
}

// ID implements Plan.
func (p *basePlan) ID() int {
	return p.id
}

// TP implements Plan.
func (p *basePlan) TP() string {
	return p.tp
}

// ExplainID implements Plan.
func (p *basePlan) ExplainID() string {
	return fmt.Sprintf("%s_%d", p.tp, p.id)
}

// DataSource is a physical load of a source dataset from a storage.
type DataSource struct {
	basePlan
	// Store is the scheme of the storage backend, e.g. "s3".
	Store  string
	Source *source.Descriptor
}

// NewDataSource creates a DataSource.
func NewDataSource(store string, desc *source.Descriptor) *DataSource {
	return &DataSource{basePlan: newBasePlan(TypeDataSource), Store: store, Source: desc}
}

// IsPhysical reports whether the node reads a concrete dataset from a known storage backend.
func (p *DataSource) IsPhysical() bool {
	if p == nil || p.Source == nil {
		return false
	}
	switch p.Store {
	case objstore.SchemeLocal, objstore.SchemeMemory, objstore.SchemeS3, objstore.SchemeGCS:
		return true
	default:
		return false
	}
}

// ExplainInfo implements Plan.
func (p *DataSource) ExplainInfo() string {
	if p.Source == nil {
		return fmt.Sprintf("store:%s, source:<nil>", p.Store)
	}
	return fmt.Sprintf("store:%s, source:%s", p.Store, p.Source)
}

// Children implements Plan.
func (*DataSource) Children() []Plan {
	return nil
}

// SourceRef marks, in a candidate plan, the place of a source load of the
// query plan the candidate was derived from.
type SourceRef struct {
	basePlan
	Name string
}

// NewSourceRef creates a SourceRef.
func NewSourceRef(name string) *SourceRef {
	return &SourceRef{basePlan: newBasePlan(TypeSourceRef), Name: name}
}

// ExplainInfo implements Plan.
func (p *SourceRef) ExplainInfo() string {
	return p.Name
}

// Children implements Plan.
func (*SourceRef) Children() []Plan {
	return nil
}

// Selection filters its child by conditions.
type Selection struct {
	basePlan
	Conditions []string
	child      Plan
}

// NewSelection creates a Selection.
func NewSelection(child Plan, conditions ...string) *Selection {
	return &Selection{basePlan: newBasePlan(TypeSelection), Conditions: conditions, child: child}
}

// ExplainInfo implements Plan.
func (p *Selection) ExplainInfo() string {
	return strings.Join(p.Conditions, ", ")
}

// Children implements Plan.
func (p *Selection) Children() []Plan {
	return []Plan{p.child}
}

// Projection evaluates expressions over its child.
type Projection struct {
	basePlan
	Exprs []string
	child Plan
}

// NewProjection creates a Projection.
func NewProjection(child Plan, exprs ...string) *Projection {
	return &Projection{basePlan: newBasePlan(TypeProjection), Exprs: exprs, child: child}
}

// ExplainInfo implements Plan.
func (p *Projection) ExplainInfo() string {
	return strings.Join(p.Exprs, ", ")
}

// Children implements Plan.
func (p *Projection) Children() []Plan {
	return []Plan{p.child}
}

// Join joins two plans.
type Join struct {
	basePlan
	JoinType        string
	EqualConditions []string
	left, right     Plan
}

// NewJoin creates a Join.
func NewJoin(joinType string, left, right Plan, equalConditions ...string) *Join {
	return &Join{
		basePlan:        newBasePlan(TypeJoin),
		JoinType:        joinType,
		EqualConditions: equalConditions,
		left:            left,
		right:           right,
	}
}

// ExplainInfo implements Plan.
func (p *Join) ExplainInfo() string {
	if len(p.EqualConditions) == 0 {
		return p.JoinType
	}
	return fmt.Sprintf("%s, equal:[%s]", p.JoinType, strings.Join(p.EqualConditions, " "))
}

// Children implements Plan.
func (p *Join) Children() []Plan {
	return []Plan{p.left, p.right}
}

// Aggregation groups its child.
type Aggregation struct {
	basePlan
	GroupBy  []string
	AggFuncs []string
	child    Plan
}

// NewAggregation creates an Aggregation.
func NewAggregation(child Plan, groupBy []string, aggFuncs ...string) *Aggregation {
	return &Aggregation{basePlan: newBasePlan(TypeAggregation), GroupBy: groupBy, AggFuncs: aggFuncs, child: child}
}

// ExplainInfo implements Plan.
func (p *Aggregation) ExplainInfo() string {
	return fmt.Sprintf("group by:%s, funcs:%s", strings.Join(p.GroupBy, ", "), strings.Join(p.AggFuncs, ", "))
}

// Children implements Plan.
func (p *Aggregation) Children() []Plan {
	return []Plan{p.child}
}
