// Package tabular provides the in-memory table model shared by the bulk
// reader and the store: schemas with per-column inferred types, batches of
// typed rows, and value-set predicates.
//
// A Batch exists only for the lifetime of a single read or query and is
// owned exclusively by its caller.
package tabular

import (
	"sort"
	"strconv"
	"strings"

	"github.com/berkeley-demography/bigtab/pkg/errors"
)

// FieldType is the inferred type of a column
type FieldType string

const (
	// FieldTypeString holds text values
	FieldTypeString FieldType = "string"
	// FieldTypeInt holds 64-bit integer values
	FieldTypeInt FieldType = "int"
	// FieldTypeFloat holds 64-bit float values
	FieldTypeFloat FieldType = "float"
)

// Field is a single named, typed column
type Field struct {
	Name string    `json:"name"`
	Type FieldType `json:"type"`
}

// Schema describes the columns of a batch or store table, in source order
type Schema struct {
	Name   string  `json:"name"`
	Fields []Field `json:"fields"`
}

// Columns returns the column names in schema order
func (s *Schema) Columns() []string {
	cols := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		cols[i] = f.Name
	}
	return cols
}

// Field returns the field with the given name, or false if absent
func (s *Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Row maps column name to typed value. Values are string, int64, float64 or
// nil (empty source field).
type Row map[string]interface{}

// Batch is an ordered in-memory table of typed rows
type Batch struct {
	Schema *Schema
	Rows   []Row
}

// Len returns the number of rows
func (b *Batch) Len() int {
	return len(b.Rows)
}

// Width returns the number of columns
func (b *Batch) Width() int {
	if b.Schema == nil {
		return 0
	}
	return len(b.Schema.Fields)
}

// Predicate restricts rows to those whose Column value lies in Values.
// Values are given in source text form and converted to the column's
// inferred type before comparison, so the in-memory and store query paths
// agree on membership.
type Predicate struct {
	Column string   `json:"column"`
	Values []string `json:"values"`
}

// Filter returns a new batch holding exactly the rows of b that satisfy the
// predicate, with the full schema intact. The predicate column must exist in
// the schema.
func (b *Batch) Filter(pred Predicate) (*Batch, error) {
	field, ok := b.Schema.Field(pred.Column)
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeUnknownColumn,
			"predicate column %q not in schema %s", pred.Column, b.Schema.Name)
	}

	allowed, err := pred.TypedValues(field.Type)
	if err != nil {
		return nil, err
	}

	out := &Batch{Schema: b.Schema, Rows: make([]Row, 0, 64)}
	for _, row := range b.Rows {
		v := row[pred.Column]
		if v == nil {
			continue
		}
		if _, match := allowed[v]; match {
			out.Rows = append(out.Rows, row)
		}
	}
	return out, nil
}

// TypedValues converts the predicate's text values to the given column type
// and returns them as a membership set. A value that does not parse as the
// column type cannot match anything, so it is dropped rather than erroring.
func (p Predicate) TypedValues(ft FieldType) (map[interface{}]struct{}, error) {
	if p.Column == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "predicate column is empty")
	}
	if len(p.Values) == 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "predicate value set is empty")
	}

	set := make(map[interface{}]struct{}, len(p.Values))
	for _, v := range p.TypedList(ft) {
		set[v] = struct{}{}
	}
	return set, nil
}

// TypedList converts the predicate's text values to the given column type,
// in order, dropping empty values and values that do not parse as the type
// (those can never match a value of the column).
func (p Predicate) TypedList(ft FieldType) []interface{} {
	out := make([]interface{}, 0, len(p.Values))
	for _, raw := range p.Values {
		if v, ok := ParseTyped(raw, ft); ok {
			out = append(out, v)
		}
	}
	return out
}

// ParseTyped parses one text value strictly as the given type. Empty values
// and values of the wrong type report false.
func ParseTyped(raw string, ft FieldType) (interface{}, bool) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return nil, false
	}

	switch ft {
	case FieldTypeInt:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, false
		}
		return n, true
	case FieldTypeFloat:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, false
		}
		return f, true
	default:
		return v, true
	}
}

// InferFieldType returns the type of a column given every value it holds.
// The policy is fixed: a column is int iff every non-empty value parses as a
// base-10 integer, else float iff every non-empty value parses as a float,
// else string. A column with no non-empty values is string.
func InferFieldType(values []string) FieldType {
	seen := false
	couldBeInt := true
	couldBeFloat := true

	for _, raw := range values {
		v := strings.TrimSpace(raw)
		if v == "" {
			continue
		}
		seen = true

		if couldBeInt {
			if _, err := strconv.ParseInt(v, 10, 64); err != nil {
				couldBeInt = false
			}
		}
		if !couldBeInt && couldBeFloat {
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				couldBeFloat = false
				break
			}
		}
	}

	switch {
	case !seen:
		return FieldTypeString
	case couldBeInt:
		return FieldTypeInt
	case couldBeFloat:
		return FieldTypeFloat
	default:
		return FieldTypeString
	}
}

// ConvertValue converts one source field to the column's inferred type.
// Empty fields become nil. A non-empty value that fails to parse as the
// column type falls back to its text form; with InferFieldType this cannot
// happen within a single read.
func ConvertValue(raw string, ft FieldType) interface{} {
	v := strings.TrimSpace(raw)
	if v == "" {
		return nil
	}

	switch ft {
	case FieldTypeInt:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	case FieldTypeFloat:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return v
}

// FormatValue renders a typed value back to source text form. nil renders as
// the empty string.
func FormatValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	default:
		return ""
	}
}

// SortRows orders rows by their rendered column values in schema order.
// Row order is not part of any batch contract; tests sort both sides before
// comparing.
func SortRows(b *Batch) {
	cols := b.Schema.Columns()
	sort.SliceStable(b.Rows, func(i, j int) bool {
		for _, c := range cols {
			a, z := FormatValue(b.Rows[i][c]), FormatValue(b.Rows[j][c])
			if a != z {
				return a < z
			}
		}
		return false
	})
}
