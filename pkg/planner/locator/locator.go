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
	"fmt"

	aerrors "github.com/pingcap/layout-advisor/pkg/errors"
	"github.com/pingcap/layout-advisor/pkg/planner/plan"
	"github.com/pingcap/layout-advisor/pkg/source"
)

// pair is a node of the query plan together with its mirror in the candidate plan.
type pair struct {
	real plan.Plan
	cand plan.Plan
}

// isSourceLoad reports whether a candidate plan node stands for a source load.
func isSourceLoad(p plan.Plan) bool {
	switch p.(type) {
	case *plan.SourceRef, *plan.DataSource:
		return true
	default:
		return false
	}
}

// Locate walks the query plan real and the candidate plan cand in lock-step
// and returns the descriptors of the sources the candidate plan loads, in
// pre-order, left to right.
//
// Both trees must have the same shape down to the source loads of cand. Every
// source load of cand must face a physical DataSource in real. Any other
// divergence fails with ErrStructuralMismatch.
func Locate(real, cand plan.Plan) ([]*source.Descriptor, error) {
	var descs []*source.Descriptor
	stack := []pair{{real: real, cand: cand}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if top.real == nil || top.cand == nil {
			return nil, mismatch(top, "missing node")
		}
		if isSourceLoad(top.cand) {
			ds, ok := top.real.(*plan.DataSource)
			if !ok || !ds.IsPhysical() {
				return nil, mismatch(top, "not a physical source load")
			}
			descs = append(descs, ds.Source)
			continue
		}
		if top.real.TP() != top.cand.TP() {
			return nil, mismatch(top, "different node types")
		}
		realChildren, candChildren := top.real.Children(), top.cand.Children()
		if len(realChildren) != len(candChildren) {
			return nil, mismatch(top, fmt.Sprintf("%d children against %d", len(realChildren), len(candChildren)))
		}
		for i := len(realChildren) - 1; i >= 0; i-- {
			stack = append(stack, pair{real: realChildren[i], cand: candChildren[i]})
		}
	}
	return descs, nil
}

func mismatch(p pair, reason string) error {
	return aerrors.ErrStructuralMismatch.GenWithStackByArgs(
		fmt.Sprintf("%s against candidate %s: %s", explainID(p.real), explainID(p.cand), reason))
}

func explainID(p plan.Plan) string {
	if p == nil {
		return "<nil>"
	}
	return p.ExplainID()
}
