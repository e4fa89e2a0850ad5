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
	"fmt"
	"strings"

	aerrors "github.com/pingcap/layout-advisor/pkg/errors"
)

// Format is the file format of a source dataset.
type Format string

// Supported formats.
const (
	FormatCSV     Format = "csv"
	FormatJSONL   Format = "jsonl"
	FormatParquet Format = "parquet"
)

// ParseFormat parses a format name, case insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatCSV, FormatJSONL, FormatParquet:
		return f, nil
	case "json", "ndjson":
		return FormatJSONL, nil
	default:
		return "", aerrors.ErrUnsupportedFormat.GenWithStackByArgs(s)
	}
}

// ColumnType is the type a raw value of a column is decoded into.
type ColumnType string

// Column types.
const (
	TypeString ColumnType = "string"
	TypeInt    ColumnType = "int"
	TypeFloat  ColumnType = "float"
	TypeBool   ColumnType = "bool"
)

// Column is a named and typed column of a source dataset.
type Column struct {
	Name string
	Type ColumnType
}

// ParseColumn parses "name" or "name:type".
func ParseColumn(s string) (Column, error) {
	name, tp, found := strings.Cut(s, ":")
	col := Column{Name: strings.TrimSpace(name), Type: TypeString}
	if found {
		col.Type = ColumnType(strings.ToLower(strings.TrimSpace(tp)))
	}
	if err := col.valid(); err != nil {
		return Column{}, err
	}
	return col, nil
}

func (c Column) valid() error {
	if c.Name == "" {
		return aerrors.ErrInvalidDescriptor.GenWithStackByArgs("column name is empty")
	}
	switch c.Type {
	case TypeString, TypeInt, TypeFloat, TypeBool:
		return nil
	default:
		return aerrors.ErrInvalidDescriptor.GenWithStackByArgs(fmt.Sprintf("unknown type %q of column %s", c.Type, c.Name))
	}
}

// Schema is the ordered column list of a source dataset.
type Schema []Column

// Names returns the column names.
func (s Schema) Names() []string {
	names := make([]string, 0, len(s))
	for _, c := range s {
		names = append(names, c.Name)
	}
	return names
}

// CSVOptions controls how csv files are parsed.
type CSVOptions struct {
	// Delimiter separates the fields, ',' when zero.
	Delimiter rune
	// Header means the first line of every file holds the column names.
	Header bool
}

// Row is a decoded row. The values are ordered by the schema, or by the file
// when the descriptor has no schema.
type Row []any

// Descriptor describes a source dataset: its files, their format and schema.
// A descriptor must not be modified after Validate.
type Descriptor struct {
	// Paths are the files, relative to the storage the dataset lives in.
	Paths  []string
	Format Format
	Schema Schema
	CSV    CSVOptions
}

// Validate checks the descriptor. A descriptor without paths is valid and
// describes an empty dataset.
func (d *Descriptor) Validate() error {
	switch d.Format {
	case FormatCSV, FormatParquet:
	case FormatJSONL:
		if len(d.Schema) == 0 {
			return aerrors.ErrInvalidDescriptor.GenWithStackByArgs("jsonl source requires a schema")
		}
	default:
		return aerrors.ErrUnsupportedFormat.GenWithStackByArgs(string(d.Format))
	}
	for i, p := range d.Paths {
		if p == "" {
			return aerrors.ErrInvalidDescriptor.GenWithStackByArgs(fmt.Sprintf("path %d is empty", i))
		}
	}
	names := make(map[string]struct{}, len(d.Schema))
	for _, c := range d.Schema {
		if err := c.valid(); err != nil {
			return err
		}
		key := strings.ToLower(c.Name)
		if _, ok := names[key]; ok {
			return aerrors.ErrInvalidDescriptor.GenWithStackByArgs(fmt.Sprintf("duplicated column %s", c.Name))
		}
		names[key] = struct{}{}
	}
	switch d.CSV.Delimiter {
	case '\r', '\n', '"':
		return aerrors.ErrInvalidDescriptor.GenWithStackByArgs(fmt.Sprintf("invalid csv delimiter %q", d.CSV.Delimiter))
	}
	return nil
}

// String implements fmt.Stringer.
func (d *Descriptor) String() string {
	return fmt.Sprintf("%s[%s]", d.Format, strings.Join(d.Paths, ","))
}
