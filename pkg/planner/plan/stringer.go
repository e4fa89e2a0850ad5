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
)

// ToString explains a Plan, returns description string.
func ToString(p Plan) string {
	strs, _ := toString(p, []string{}, []int{})
	return strings.Join(strs, "->")
}

func toString(in Plan, strs []string, idxs []int) ([]string, []int) {
	if in == nil {
		return append(strs, "<nil>"), idxs
	}
	children := in.Children()
	if len(children) > 1 {
		idxs = append(idxs, len(strs))
	}
	for _, c := range children {
		strs, idxs = toString(c, strs, idxs)
	}

	var str string
	switch x := in.(type) {
	case *DataSource:
		if x.Source == nil {
			str = "DataSource(<nil>)"
		} else {
			str = fmt.Sprintf("DataSource(%s)", x.Source)
		}
	case *SourceRef:
		str = fmt.Sprintf("SourceRef(%s)", x.Name)
	case *Selection:
		str = fmt.Sprintf("Sel(%s)", strings.Join(x.Conditions, ","))
	case *Projection:
		str = fmt.Sprintf("Proj(%s)", strings.Join(x.Exprs, ","))
	case *Aggregation:
		str = fmt.Sprintf("Aggr(%s)", strings.Join(x.AggFuncs, ","))
	case *Join:
		str = x.JoinType + "Join"
	default:
		str = in.TP()
	}
	if len(children) > 1 {
		last := len(idxs) - 1
		idx := idxs[last]
		str = fmt.Sprintf("%s{%s}", str, strings.Join(strs[idx:], "->"))
		strs = strs[:idx]
		idxs = idxs[:last]
	}
	strs = append(strs, str)
	return strs, idxs
}
