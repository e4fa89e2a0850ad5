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

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/pingcap/layout-advisor/pkg/source"
	"github.com/pingcap/layout-advisor/pkg/statistics/sampler"
	"github.com/spf13/cobra"
)

func newSketchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sketch",
		Short: "sample a source dataset and show the sample of every partition",
		Args:  cobra.NoArgs,
		RunE:  runSketch,
	}
	defineSourceFlags(cmd.Flags())
	return cmd
}

func runSketch(cmd *cobra.Command, _ []string) error {
	env, err := newSourceEnv(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	coll, err := env.loader.Load(ctx, env.desc)
	if err != nil {
		return err
	}
	sketch, err := sampler.BuildSketch[source.Row](ctx, coll, env.cfg.Estimator.SampleSize,
		sampler.WithConcurrency(env.cfg.Estimator.GetConcurrency()),
		sampler.WithMetricLabel(string(env.desc.Format)))
	if err != nil {
		return err
	}
	renderSketchTable(cmd.OutOrStdout(), coll, sketch)
	return nil
}

func renderSketchTable(w io.Writer, coll *source.Collection, sketch *sampler.Sketch[source.Row]) {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "File", "Range", "Count", "Samples", "Selectivity"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "File", WidthMax: 48},
		{Name: "Count", Align: text.AlignRight},
		{Name: "Samples", Align: text.AlignRight},
		{Name: "Selectivity", Align: text.AlignRight},
	})
	parquet := coll.Descriptor().Format == source.FormatParquet
	partitions := coll.Partitions()
	for i, ps := range sketch.Partitions {
		p := partitions[i]
		rng := fmt.Sprintf("bytes %d-%d", p.Offset, p.End)
		if parquet {
			rng = fmt.Sprintf("row group %d", p.RowGroup)
		}
		selectivity := "-"
		if ps.Count > 0 {
			selectivity = fmt.Sprintf("%.4f", float64(len(ps.Samples))/float64(ps.Count))
		}
		t.AppendRow(table.Row{ps.Index, p.Path, rng, ps.Count, len(ps.Samples), selectivity})
	}
	t.AppendFooter(table.Row{"", "Total", fmt.Sprintf("collection %d", sketch.CollectionID), sketch.TotalCount, sketch.SampleCount(), ""})
	fmt.Fprintln(w, strings.TrimSpace(t.Render()))
}
