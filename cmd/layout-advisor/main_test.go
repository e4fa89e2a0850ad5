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
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	aerrors "github.com/pingcap/layout-advisor/pkg/errors"
	"github.com/stretchr/testify/require"
)

func writeCSVFiles(t *testing.T, dir string, rows ...int) []string {
	var args []string
	for i, n := range rows {
		var sb strings.Builder
		for j := range n {
			fmt.Fprintf(&sb, "%d,name%d\n", j, j)
		}
		name := fmt.Sprintf("part-%d.csv", i)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(sb.String()), 0o644))
		args = append(args, "--path", name)
	}
	return args
}

func execute(t *testing.T, args ...string) (string, error) {
	var out bytes.Buffer
	rootCmd := newRootCommand()
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, "--log-file", filepath.Join(t.TempDir(), "advisor.log")))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestEstimateCommand(t *testing.T) {
	dir := t.TempDir()
	args := append([]string{"estimate", "--storage", dir, "--column", "id:int,name"}, writeCSVFiles(t, dir, 3, 5, 2)...)

	out, err := execute(t, append(args, "--kind", "repartition", "--key", "id", "--buckets", "8")...)
	require.NoError(t, err)
	require.Contains(t, out, "WRITE SIZE")
	require.Contains(t, out, "Repartition")
	require.Regexp(t, `\|\s+3\s+\|\s+3\s+\|\s+0\s+\|`, out)

	out, err = execute(t, append(args, "--kind", "file-skipping", "--key", "id", "--sketch-type", "BloomFilter")...)
	require.NoError(t, err)
	require.Regexp(t, `\|\s+3\s+\|\s+3\s+\|\s+1\s+\|`, out)
}

func TestEstimateCommandErrors(t *testing.T) {
	dir := t.TempDir()
	paths := writeCSVFiles(t, dir, 3)
	base := append([]string{"estimate", "--storage", dir}, paths...)

	_, err := execute(t, append(base, "--kind", "caching")...)
	require.True(t, aerrors.ErrInvalidArgument.Equal(err), "%v", err)

	_, err = execute(t, append(base, "--kind", "zorder")...)
	require.True(t, aerrors.ErrInvalidArgument.Equal(err), "%v", err)

	_, err = execute(t, append(base, "--format", "xml")...)
	require.True(t, aerrors.ErrUnsupportedFormat.Equal(err), "%v", err)

	_, err = execute(t, append(base, "--delimiter", "||")...)
	require.True(t, aerrors.ErrInvalidArgument.Equal(err), "%v", err)

	_, err = execute(t, append(base, "--kind", "file-skipping", "--sketch-type", "Histogram")...)
	require.True(t, aerrors.ErrInvalidArgument.Equal(err), "%v", err)

	_, err = execute(t, "estimate", "--storage", dir, "--path", "missing.csv")
	require.True(t, aerrors.ErrStorageNotFound.Equal(err), "%v", err)

	_, err = execute(t, append(base, "--sample-size", "-1")...)
	require.True(t, aerrors.ErrInvalidConfig.Equal(err), "%v", err)
}

func TestEstimateCommandConfigFile(t *testing.T) {
	dir := t.TempDir()
	paths := writeCSVFiles(t, dir, 4, 4)
	conf := filepath.Join(dir, "advisor.toml")
	require.NoError(t, os.WriteFile(conf, []byte(fmt.Sprintf(`
[estimator]
sample-size = 2
repartition-read-divisor = 1

[storage]
uri = %q
`, dir)), 0o644))

	out, err := execute(t, append([]string{"estimate", "--config", conf}, paths...)...)
	require.NoError(t, err)
	// selectivity 0.5 of 2 files
	require.Regexp(t, `\|\s+2\s+\|\s+1\s+\|\s+2\s+\|`, out)

	require.NoError(t, os.WriteFile(conf, []byte("[estimator]\nsample-rate = 0.1\n"), 0o644))
	_, err = execute(t, append([]string{"estimate", "--config", conf, "--storage", dir}, paths...)...)
	require.True(t, aerrors.ErrInvalidConfig.Equal(err), "%v", err)
}

func TestSketchCommand(t *testing.T) {
	dir := t.TempDir()
	args := append([]string{"sketch", "--storage", dir, "--sample-size", "2", "--region-size", "16B"}, writeCSVFiles(t, dir, 10, 0)...)

	out, err := execute(t, args...)
	require.NoError(t, err)
	require.Contains(t, out, "SELECTIVITY")
	require.Contains(t, out, "part-0.csv")
	require.Contains(t, out, "part-1.csv")
	require.Contains(t, out, "bytes 0-16")
	require.Contains(t, out, "TOTAL")
}

func TestStatusServer(t *testing.T) {
	srv, err := startStatusServer("127.0.0.1:0")
	require.NoError(t, err)
	defer func() {
		require.NoError(t, srv.Close())
	}()

	resp, err := http.Get("http://" + srv.Addr + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "layout_advisor_sampler_sketch_duration_seconds")
}

func TestEstimateCommandWithStatusServer(t *testing.T) {
	dir := t.TempDir()
	args := append([]string{"estimate", "--storage", dir, "--status-addr", "127.0.0.1:0"}, writeCSVFiles(t, dir, 2)...)
	out, err := execute(t, args...)
	require.NoError(t, err)
	require.Contains(t, out, "WRITE SIZE")
}
