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
	"github.com/pingcap/errors"
	"github.com/pingcap/layout-advisor/pkg/advisor/candidate"
	"github.com/pingcap/layout-advisor/pkg/advisor/estimator"
	aerrors "github.com/pingcap/layout-advisor/pkg/errors"
	"github.com/pingcap/layout-advisor/pkg/planner/plan"
	"github.com/spf13/cobra"
)

const (
	flagKind       = "kind"
	flagKey        = "key"
	flagBuckets    = "buckets"
	flagSketchType = "sketch-type"
)

func newEstimateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "estimate the write and read size of a repartition or file-skipping candidate",
		Args:  cobra.NoArgs,
		RunE:  runEstimate,
	}
	defineSourceFlags(cmd.Flags())
	cmd.Flags().StringP(flagKind, "k", candidate.KindRepartition.String(),
		"Set the candidate kind, one of repartition and file-skipping")
	cmd.Flags().StringSlice(flagKey, nil,
		"Set the partition keys of a repartition candidate or the indexed columns of a file-skipping candidate")
	cmd.Flags().Int(flagBuckets, 0,
		"Set the bucket number of a repartition candidate")
	cmd.Flags().String(flagSketchType, candidate.SketchMinMax,
		"Set the index sketch of a file-skipping candidate, one of MinMax, BloomFilter and ValueList")
	return cmd
}

func runEstimate(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	kindName, err := flags.GetString(flagKind)
	if err != nil {
		return errors.Trace(err)
	}
	kind, err := candidate.ParseKind(kindName)
	if err != nil {
		return err
	}
	keys, err := flags.GetStringSlice(flagKey)
	if err != nil {
		return errors.Trace(err)
	}
	buckets, err := flags.GetInt(flagBuckets)
	if err != nil {
		return errors.Trace(err)
	}
	sketchType, err := flags.GetString(flagSketchType)
	if err != nil {
		return errors.Trace(err)
	}

	env, err := newSourceEnv(cmd)
	if err != nil {
		return err
	}
	ds := plan.NewDataSource(env.scheme, env.desc)
	var c candidate.Candidate
	switch kind {
	case candidate.KindRepartition:
		c = candidate.NewRepartition(ds, buckets, keys...)
	case candidate.KindFileSkipping:
		switch sketchType {
		case candidate.SketchMinMax, candidate.SketchBloomFilter, candidate.SketchValueList:
		default:
			return errors.Annotatef(aerrors.ErrInvalidArgument, "unknown sketch type %q", sketchType)
		}
		c = candidate.NewFileSkipping(ds, sketchType, keys...)
	default:
		return errors.Annotatef(aerrors.ErrInvalidArgument, "%s candidates need a query plan and can not be estimated from the command line", kind)
	}

	est, err := estimator.New(env.cfg.Estimator, env.loader)
	if err != nil {
		return err
	}
	c, err = est.EstimateSize(cmd.Context(), ds, c)
	if err != nil {
		return err
	}
	renderSizeTable(cmd.OutOrStdout(), ds, c)
	return nil
}

func renderSizeTable(w io.Writer, ds *plan.DataSource, c candidate.Candidate) {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Candidate", "Source", "Files", "Write Size", "Read Size"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Candidate", WidthMax: 48},
		{Name: "Source", WidthMax: 48},
	})
	info := c.SizeInfo()
	t.AppendRow(table.Row{
		c.String(),
		ds.Source.String(),
		len(ds.Source.Paths),
		info.WriteSize,
		info.ReadSize.Bytes(),
	})
	fmt.Fprintln(w, strings.TrimSpace(t.Render()))
}
