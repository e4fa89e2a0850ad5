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

package locator

import (
	"testing"

	aerrors "github.com/pingcap/layout-advisor/pkg/errors"
	"github.com/pingcap/layout-advisor/pkg/objstore"
	"github.com/pingcap/layout-advisor/pkg/planner/plan"
	"github.com/pingcap/layout-advisor/pkg/source"
	"github.com/stretchr/testify/require"
)

// unionAll is a plan with any number of children.
type unionAll struct {
	children []plan.Plan
}

func (*unionAll) ID() int                 { return 0 }
func (*unionAll) TP() string              { return "UnionAll" }
func (*unionAll) ExplainID() string       { return "UnionAll_0" }
func (*unionAll) ExplainInfo() string     { return "" }
func (u *unionAll) Children() []plan.Plan { return u.children }

func csvSource(paths ...string) *source.Descriptor {
	return &source.Descriptor{Paths: paths, Format: source.FormatCSV}
}

func TestLocate(t *testing.T) {
	orders, users, items := csvSource("o.csv"), csvSource("u.csv"), csvSource("i.csv")
	real := plan.NewJoin("Inner",
		plan.NewJoin("Inner",
			plan.NewSelection(plan.NewDataSource(objstore.SchemeS3, orders), "a > 1"),
			plan.NewDataSource(objstore.SchemeS3, users)),
		plan.NewProjection(plan.NewDataSource(objstore.SchemeGCS, items), "id"))
	cand := plan.NewJoin("Inner",
		plan.NewJoin("Inner",
			plan.NewSelection(plan.NewSourceRef("orders"), "a > 1"),
			plan.NewSourceRef("users")),
		plan.NewProjection(plan.NewSourceRef("items"), "id"))

	descs, err := Locate(real, cand)
	require.NoError(t, err)
	require.Equal(t, []*source.Descriptor{orders, users, items}, descs)
}

func TestLocateSubtreeAsSource(t *testing.T) {
	orders, users := csvSource("o.csv"), csvSource("u.csv")
	real := plan.NewSelection(plan.NewDataSource(objstore.SchemeLocal, orders))
	// A DataSource on the candidate side also marks a source load.
	descs, err := Locate(real, plan.NewSelection(plan.NewDataSource(objstore.SchemeLocal, users)))
	require.NoError(t, err)
	require.Equal(t, []*source.Descriptor{orders}, descs)

	// A SourceRef of the query plan is not a physical load.
	descs, err = Locate(plan.NewSourceRef("x"), plan.NewSourceRef("y"))
	require.True(t, aerrors.ErrStructuralMismatch.Equal(err))
	require.Nil(t, descs)
}

func TestLocateMismatch(t *testing.T) {
	ds := func() *plan.DataSource { return plan.NewDataSource(objstore.SchemeS3, csvSource("a.csv")) }
	cases := []struct {
		name       string
		real, cand plan.Plan
		reason     string
	}{
		{
			name:   "different types",
			real:   plan.NewSelection(ds()),
			cand:   plan.NewProjection(plan.NewSourceRef("a")),
			reason: "different node types",
		},
		{
			name:   "different arity",
			real:   &unionAll{children: []plan.Plan{ds(), ds(), ds()}},
			cand:   &unionAll{children: []plan.Plan{plan.NewSourceRef("a"), plan.NewSourceRef("b")}},
			reason: "3 children against 2",
		},
		{
			name:   "missing candidate child",
			real:   plan.NewJoin("Inner", ds(), ds()),
			cand:   plan.NewJoin("Inner", plan.NewSourceRef("a"), nil),
			reason: "missing node",
		},
		{
			name:   "source ref over a selection",
			real:   plan.NewSelection(plan.NewSelection(ds())),
			cand:   plan.NewSelection(plan.NewSourceRef("a")),
			reason: "not a physical source load",
		},
		{
			name:   "unknown store",
			real:   plan.NewDataSource("hdfs", csvSource("a.csv")),
			cand:   plan.NewSourceRef("a"),
			reason: "not a physical source load",
		},
		{
			name:   "no descriptor",
			real:   plan.NewDataSource(objstore.SchemeS3, nil),
			cand:   plan.NewSourceRef("a"),
			reason: "not a physical source load",
		},
		{
			name:   "nil real plan",
			real:   nil,
			cand:   plan.NewSourceRef("a"),
			reason: "missing node",
		},
	}
	for _, ca := range cases {
		descs, err := Locate(ca.real, ca.cand)
		require.Nil(t, descs, ca.name)
		require.True(t, aerrors.ErrStructuralMismatch.Equal(err), ca.name)
		require.ErrorContains(t, err, ca.reason, ca.name)
	}
}

func TestLocateReportsNodes(t *testing.T) {
	sel := plan.NewSelection(plan.NewDataSource(objstore.SchemeS3, csvSource("a.csv")))
	proj := plan.NewProjection(plan.NewSourceRef("a"))
	_, err := Locate(sel, proj)
	require.ErrorContains(t, err, sel.ExplainID())
	require.ErrorContains(t, err, proj.ExplainID())
}
