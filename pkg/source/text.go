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
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/pingcap/errors"
	aerrors "github.com/pingcap/layout-advisor/pkg/errors"
	"github.com/pingcap/layout-advisor/pkg/objstore"
)

// jsonlAPI keeps numbers as json.Number so integers survive decoding exactly.
var jsonlAPI = jsoniter.Config{UseNumber: true}.Froze()

// regionReader yields the lines of a file region. A line belongs to the region
// it starts in, so the last line may run past the end of the region while the
// partial first line is left to the previous region.
type regionReader struct {
	file    io.ReadSeekCloser
	br      *bufio.Reader
	pos     int64
	end     int64
	pending []byte
	err     error
}

func openRegion(ctx context.Context, store objstore.Storage, p Partition) (*regionReader, error) {
	file, err := store.Open(ctx, p.Path)
	if err != nil {
		return nil, err
	}
	r := &regionReader{file: file, pos: p.Offset, end: p.End}
	if p.Offset == 0 {
		r.br = bufio.NewReader(file)
		return r, nil
	}
	// Step back one byte: if it is a line break the region starts at a line.
	if _, err = file.Seek(p.Offset-1, io.SeekStart); err != nil {
		_ = file.Close()
		return nil, errors.Trace(err)
	}
	r.br = bufio.NewReader(file)
	skipped, err := r.br.ReadBytes('\n')
	r.pos = p.Offset - 1 + int64(len(skipped))
	if err == io.EOF {
		r.err = io.EOF
	} else if err != nil {
		_ = file.Close()
		return nil, errors.Trace(err)
	}
	return r, nil
}

func (r *regionReader) Read(p []byte) (int, error) {
	if len(r.pending) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		if r.pos >= r.end {
			r.err = io.EOF
			return 0, io.EOF
		}
		line, err := r.br.ReadBytes('\n')
		r.pos += int64(len(line))
		r.pending = line
		if err != nil {
			r.err = err
			if len(line) == 0 {
				return 0, err
			}
		}
	}
	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

func (r *regionReader) Close() error {
	return errors.Trace(r.file.Close())
}

type csvIterator struct {
	region *regionReader
	reader *csv.Reader
	schema Schema
	path   string
}

func newCSVIterator(ctx context.Context, store objstore.Storage, desc *Descriptor, p Partition) (*csvIterator, error) {
	region, err := openRegion(ctx, store, p)
	if err != nil {
		return nil, err
	}
	reader := csv.NewReader(region)
	if desc.CSV.Delimiter != 0 {
		reader.Comma = desc.CSV.Delimiter
	}
	reader.FieldsPerRecord = -1
	it := &csvIterator{region: region, reader: reader, schema: desc.Schema, path: p.Path}
	if desc.CSV.Header && p.Offset == 0 {
		if _, err := reader.Read(); err != nil && err != io.EOF {
			_ = region.Close()
			return nil, errors.Annotatef(err, "read header of %s", p.Path)
		}
	}
	return it, nil
}

func (it *csvIterator) Next() (Row, bool, error) {
	record, err := it.reader.Read()
	if err == io.EOF {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Annotatef(err, "parse csv file %s", it.path)
	}
	if len(it.schema) == 0 {
		row := make(Row, len(record))
		for i, v := range record {
			row[i] = v
		}
		return row, true, nil
	}
	if len(record) != len(it.schema) {
		line, _ := it.reader.FieldPos(0)
		return nil, false, aerrors.ErrInvalidDescriptor.GenWithStackByArgs(
			fmt.Sprintf("%s: record at line %d of the region has %d fields, schema has %d columns",
				it.path, line, len(record), len(it.schema)))
	}
	row := make(Row, len(record))
	for i, col := range it.schema {
		v, err := col.convertString(record[i])
		if err != nil {
			return nil, false, errors.Annotatef(err, "parse csv file %s", it.path)
		}
		row[i] = v
	}
	return row, true, nil
}

func (it *csvIterator) Close() error {
	return it.region.Close()
}

type jsonlIterator struct {
	region *regionReader
	br     *bufio.Reader
	schema Schema
	path   string
}

func newJSONLIterator(ctx context.Context, store objstore.Storage, desc *Descriptor, p Partition) (*jsonlIterator, error) {
	region, err := openRegion(ctx, store, p)
	if err != nil {
		return nil, err
	}
	return &jsonlIterator{region: region, br: bufio.NewReader(region), schema: desc.Schema, path: p.Path}, nil
}

func (it *jsonlIterator) Next() (Row, bool, error) {
	for {
		line, err := it.br.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return nil, false, errors.Trace(err)
		}
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			if err == io.EOF {
				return nil, false, nil
			}
			continue
		}
		var obj map[string]any
		if uerr := jsonlAPI.Unmarshal(line, &obj); uerr != nil {
			return nil, false, errors.Annotatef(uerr, "parse jsonl file %s", it.path)
		}
		row := make(Row, len(it.schema))
		for i, col := range it.schema {
			v, cerr := col.convertJSON(obj[col.Name])
			if cerr != nil {
				return nil, false, errors.Annotatef(cerr, "parse jsonl file %s", it.path)
			}
			row[i] = v
		}
		return row, true, nil
	}
}

func (it *jsonlIterator) Close() error {
	return it.region.Close()
}

// convertString decodes a raw text value. An empty value of a non-string column is NULL.
func (c Column) convertString(raw string) (any, error) {
	if c.Type == TypeString {
		return raw, nil
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var (
		v   any
		err error
	)
	switch c.Type {
	case TypeInt:
		v, err = strconv.ParseInt(raw, 10, 64)
	case TypeFloat:
		v, err = strconv.ParseFloat(raw, 64)
	case TypeBool:
		v, err = strconv.ParseBool(raw)
	default:
		return nil, aerrors.ErrInvalidDescriptor.GenWithStackByArgs(fmt.Sprintf("unknown type %q of column %s", c.Type, c.Name))
	}
	if err != nil {
		return nil, errors.Annotatef(err, "column %s", c.Name)
	}
	return v, nil
}

func (c Column) convertJSON(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		return c.convertString(x)
	case json.Number:
		if c.Type == TypeString {
			return x.String(), nil
		}
		return c.convertString(x.String())
	case bool:
		if c.Type == TypeString {
			return strconv.FormatBool(x), nil
		}
		if c.Type == TypeBool {
			return x, nil
		}
	case map[string]any, []any:
		if c.Type == TypeString {
			s, err := jsonlAPI.MarshalToString(x)
			return s, errors.Trace(err)
		}
	}
	return nil, errors.Errorf("column %s: cannot convert %T to %s", c.Name, v, c.Type)
}
