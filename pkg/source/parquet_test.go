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

package source

import (
	"bytes"
	"context"
	"testing"

	aerrors "github.com/pingcap/layout-advisor/pkg/errors"
	"github.com/pingcap/layout-advisor/pkg/objstore"
	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/writer"
)

type parquetTestRow struct {
	ID    int64    `parquet:"name=id, type=INT64"`
	Name  string   `parquet:"name=name, type=BYTE_ARRAY, convertedtype=UTF8"`
	Score *float64 `parquet:"name=score, type=DOUBLE, repetitiontype=OPTIONAL"`
}

// writeParquet writes rows ids [0, n) into a parquet file, starting a new row
// group every groupSize rows.
func writeParquet(t *testing.T, store objstore.Storage, name string, n, groupSize int) {
	var buf bytes.Buffer
	pw, err := writer.NewParquetWriter(writerfile.NewWriterFile(&buf), new(parquetTestRow), 1)
	require.NoError(t, err)
	for i := range n {
		row := parquetTestRow{ID: int64(i), Name: string(rune('a' + i%26))}
		if i%2 == 0 {
			score := float64(i) / 2
			row.Score = &score
		}
		require.NoError(t, pw.Write(row))
		if (i+1)%groupSize == 0 {
			require.NoError(t, pw.Flush(true))
		}
	}
	require.NoError(t, pw.WriteStop())
	require.NoError(t, store.WriteFile(context.Background(), name, buf.Bytes()))
}

func TestLoadParquet(t *testing.T) {
	store := objstore.NewMemStorage()
	writeParquet(t, store, "p.1.parquet", 50, 20)
	writeParquet(t, store, "p.2.parquet", 7, 100)
	desc := &Descriptor{Paths: []string{"p.1.parquet", "p.2.parquet"}, Format: FormatParquet}
	coll, err := NewLoader(store, 0, "").Load(context.Background(), desc)
	require.NoError(t, err)
	require.GreaterOrEqual(t, coll.NumPartitions(), 2)

	var total int64
	for _, p := range coll.Partitions() {
		total += p.NumRows
	}
	require.EqualValues(t, 57, total)

	rows := readAll(t, coll)
	require.Len(t, rows, 57)
	for i, row := range rows[:50] {
		require.Len(t, row, 3)
		require.Equal(t, int64(i), row[0])
		require.Equal(t, string(rune('a'+i%26)), row[1])
		if i%2 == 0 {
			require.Equal(t, float64(i)/2, row[2])
		} else {
			require.Nil(t, row[2])
		}
	}
	require.Equal(t, int64(6), rows[56][0])
}

func TestLoadParquetProjection(t *testing.T) {
	store := objstore.NewMemStorage()
	writeParquet(t, store, "p.parquet", 5, 2)
	desc := &Descriptor{
		Paths:  []string{"p.parquet"},
		Format: FormatParquet,
		Schema: Schema{{Name: "Score", Type: TypeFloat}, {Name: "id", Type: TypeString}},
	}
	coll, err := NewLoader(store, 0, "").Load(context.Background(), desc)
	require.NoError(t, err)
	require.Equal(t, []Row{
		{0.0, "0"},
		{nil, "1"},
		{1.0, "2"},
		{nil, "3"},
		{2.0, "4"},
	}, readAll(t, coll))

	desc.Schema = Schema{{Name: "missing", Type: TypeInt}}
	coll, err = NewLoader(store, 0, "").Load(context.Background(), desc)
	require.NoError(t, err)
	_, err = coll.OpenPartition(context.Background(), 0)
	require.True(t, aerrors.ErrInvalidDescriptor.Equal(err))
}

func TestLoadParquetCorrupted(t *testing.T) {
	store := objstore.NewMemStorage()
	require.NoError(t, store.WriteFile(context.Background(), "bad.parquet", []byte("PAR1")))
	_, err := NewLoader(store, 0, "").Load(context.Background(), &Descriptor{Paths: []string{"bad.parquet"}, Format: FormatParquet})
	require.True(t, aerrors.ErrInvalidDescriptor.Equal(err))
	require.ErrorContains(t, err, "too small to be a parquet file")
}
