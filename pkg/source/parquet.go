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
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/pingcap/errors"
	aerrors "github.com/pingcap/layout-advisor/pkg/errors"
	"github.com/pingcap/layout-advisor/pkg/objstore"
	"github.com/xitongsys/parquet-go/parquet"
	preader "github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/source"
)

const (
	batchReadRowSize = 32

	// if a parquet if small than this threshold, parquet will load the whole file in a byte slice to
	// optimize the read performance
	smallParquetFileThreshold = 64 * 1024 * 1024
)

// readerWrapper is a used for implement `source.ParquetFile`
type readerWrapper struct {
	io.ReadSeekCloser
	store objstore.Storage
	ctx   context.Context
	// current file path
	path string
}

func (*readerWrapper) Write(_ []byte) (n int, err error) {
	return 0, errors.New("unsupported operation")
}

func (r *readerWrapper) Open(name string) (source.ParquetFile, error) {
	if len(name) == 0 {
		name = r.path
	}
	reader, err := r.store.Open(r.ctx, name)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &readerWrapper{
		ReadSeekCloser: reader,
		store:          r.store,
		ctx:            r.ctx,
		path:           name,
	}, nil
}

func (*readerWrapper) Create(_ string) (source.ParquetFile, error) {
	return nil, errors.New("unsupported operation")
}

// bytesReaderWrapper is a wrapper of bytes.Reader used for implement `source.ParquetFile`
type bytesReaderWrapper struct {
	*bytes.Reader
	rawBytes []byte
	// current file path
	path string
}

func (*bytesReaderWrapper) Close() error {
	return nil
}

func (*bytesReaderWrapper) Create(_ string) (source.ParquetFile, error) {
	return nil, errors.New("unsupported operation")
}

func (*bytesReaderWrapper) Write(_ []byte) (n int, err error) {
	return 0, errors.New("unsupported operation")
}

func (r *bytesReaderWrapper) Open(name string) (source.ParquetFile, error) {
	if len(name) > 0 && name != r.path {
		return nil, errors.Errorf("open with a different name is not supported, current: '%s', new: '%s'", r.path, name)
	}
	return &bytesReaderWrapper{
		Reader:   bytes.NewReader(r.rawBytes),
		rawBytes: r.rawBytes,
		path:     r.path,
	}, nil
}

// openParquetFile opens a parquet file, loading it in memory when it is small.
func openParquetFile(ctx context.Context, store objstore.Storage, path string, size int64) (source.ParquetFile, error) {
	if size <= smallParquetFileThreshold {
		fileBytes, err := store.ReadFile(ctx, path)
		if err != nil {
			return nil, err
		}
		return &bytesReaderWrapper{
			Reader:   bytes.NewReader(fileBytes),
			rawBytes: fileBytes,
			path:     path,
		}, nil
	}
	r, err := store.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	return &readerWrapper{
		ReadSeekCloser: r,
		store:          store,
		ctx:            ctx,
		path:           path,
	}, nil
}

// splitParquetFile reads the footer of a parquet file and returns one
// partition per row group. A file without row groups has one empty partition.
func splitParquetFile(ctx context.Context, store objstore.Storage, path string, size int64) ([]Partition, error) {
	// magic, footer length and magic again
	if size < 12 {
		return nil, aerrors.ErrInvalidDescriptor.GenWithStackByArgs(
			fmt.Sprintf("%s has %d bytes, too small to be a parquet file", path, size))
	}
	r, err := store.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	wrapper := &readerWrapper{
		ReadSeekCloser: r,
		store:          store,
		ctx:            ctx,
		path:           path,
	}
	res := new(preader.ParquetReader)
	res.NP = 1
	res.PFile = wrapper
	if err = res.ReadFooter(); err != nil {
		_ = wrapper.Close()
		return nil, errors.Annotatef(err, "read parquet footer of %s", path)
	}
	if err = wrapper.Close(); err != nil {
		return nil, errors.Trace(err)
	}

	rowGroups := res.Footer.GetRowGroups()
	if len(rowGroups) == 0 {
		return []Partition{{Path: path, FileSize: size}}, nil
	}
	parts := make([]Partition, 0, len(rowGroups))
	var rowStart int64
	for i, rg := range rowGroups {
		parts = append(parts, Partition{
			Path:     path,
			FileSize: size,
			RowGroup: i,
			RowStart: rowStart,
			NumRows:  rg.GetNumRows(),
		})
		rowStart += rg.GetNumRows()
	}
	return parts, nil
}

type parquetIterator struct {
	reader *preader.ParquetReader
	path   string
	remain int64
	rows   []any
	cur    int
	// fields maps the schema columns to the fields of a decoded row. nil
	// keeps every field in file order.
	fields []int
	schema Schema
}

func newParquetIterator(ctx context.Context, store objstore.Storage, desc *Descriptor, p Partition) (*parquetIterator, error) {
	it := &parquetIterator{path: p.Path, remain: p.NumRows, schema: desc.Schema}
	if p.NumRows == 0 {
		return it, nil
	}
	pf, err := openParquetFile(ctx, store, p.Path, p.FileSize)
	if err != nil {
		return nil, err
	}
	reader, err := preader.NewParquetReader(pf, nil, 1)
	if err != nil {
		_ = pf.Close()
		return nil, errors.Annotatef(err, "open parquet file %s", p.Path)
	}
	it.reader = reader
	if len(desc.Schema) > 0 {
		if it.fields, err = mapParquetFields(reader, desc.Schema, p.Path); err != nil {
			_ = it.Close()
			return nil, err
		}
	}
	if p.RowStart > 0 {
		if err = reader.SkipRows(p.RowStart); err != nil {
			_ = it.Close()
			return nil, errors.Annotatef(err, "skip to row group %d of %s", p.RowGroup, p.Path)
		}
	}
	return it, nil
}

// mapParquetFields finds the field of every schema column among the top level
// columns of the file, by case insensitive name.
func mapParquetFields(reader *preader.ParquetReader, schema Schema, path string) ([]int, error) {
	var names []string
	root := reader.SchemaHandler.SchemaElements[0]
	elems := reader.SchemaHandler.SchemaElements
	// Top level columns are the direct children of the root element.
	for i := 1; i < len(elems) && len(names) < int(root.GetNumChildren()); {
		names = append(names, strings.ToLower(elems[i].GetName()))
		i += subtreeSize(elems, i)
	}
	fields := make([]int, len(schema))
	for i, col := range schema {
		fields[i] = -1
		for j, name := range names {
			if name == strings.ToLower(col.Name) {
				fields[i] = j
				break
			}
		}
		if fields[i] < 0 {
			return nil, aerrors.ErrInvalidDescriptor.GenWithStackByArgs(
				fmt.Sprintf("column %s not found in parquet file %s", col.Name, path))
		}
	}
	return fields, nil
}

func subtreeSize(elems []*parquet.SchemaElement, i int) int {
	size := 1
	for range elems[i].GetNumChildren() {
		size += subtreeSize(elems, i+size)
	}
	return size
}

func (it *parquetIterator) Next() (Row, bool, error) {
	if it.cur >= len(it.rows) {
		if it.remain <= 0 {
			return nil, false, nil
		}
		count := int(min(it.remain, batchReadRowSize))
		rows, err := it.reader.ReadByNumber(count)
		if err != nil {
			return nil, false, errors.Annotatef(err, "read parquet file %s", it.path)
		}
		if len(rows) == 0 {
			return nil, false, errors.Errorf("parquet file %s ends %d rows before the end of the row group", it.path, it.remain)
		}
		it.rows = rows
		it.cur = 0
		it.remain -= int64(len(rows))
	}
	v := reflect.ValueOf(it.rows[it.cur])
	it.cur++
	if it.fields == nil {
		row := make(Row, v.NumField())
		for i := range row {
			val, err := parquetValue(v.Field(i))
			if err != nil {
				return nil, false, errors.Annotatef(err, "read parquet file %s", it.path)
			}
			row[i] = val
		}
		return row, true, nil
	}
	row := make(Row, len(it.fields))
	for i, f := range it.fields {
		val, err := parquetValue(v.Field(f))
		if err != nil {
			return nil, false, errors.Annotatef(err, "read parquet file %s", it.path)
		}
		if val, err = it.schema[i].convertParquet(val); err != nil {
			return nil, false, errors.Annotatef(err, "read parquet file %s", it.path)
		}
		row[i] = val
	}
	return row, true, nil
}

func (it *parquetIterator) Close() error {
	if it.reader == nil {
		return nil
	}
	it.reader.ReadStop()
	err := it.reader.PFile.Close()
	it.reader = nil
	return errors.Trace(err)
}

// parquetValue converts a field of a decoded parquet row to a plain value.
func parquetValue(v reflect.Value) (any, error) {
	switch v.Kind() {
	case reflect.Bool:
		return v.Bool(), nil
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(v.Uint()), nil
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), nil
	case reflect.Float32, reflect.Float64:
		return v.Float(), nil
	case reflect.String:
		return v.String(), nil
	case reflect.Ptr:
		if v.IsNil() {
			return nil, nil
		}
		return parquetValue(v.Elem())
	default:
		return nil, errors.Errorf("unsupported parquet value of kind %s", v.Kind())
	}
}

// convertParquet casts a decoded parquet value to the column type.
func (c Column) convertParquet(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		return c.convertString(x)
	case int64:
		switch c.Type {
		case TypeInt:
			return x, nil
		case TypeFloat:
			return float64(x), nil
		}
	case float64:
		if c.Type == TypeFloat {
			return x, nil
		}
	case bool:
		if c.Type == TypeBool {
			return x, nil
		}
	}
	if c.Type == TypeString {
		return fmt.Sprint(v), nil
	}
	return nil, errors.Errorf("column %s: cannot convert %T to %s", c.Name, v, c.Type)
}
