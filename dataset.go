/*
Copyright (c) 2025-present, Nudibranches Technologies SAS.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

  http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package gotrino

import (
	"encoding/base64"
	"encoding/json"
	"net/netip"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// DataSet is an assembled result set: the column layout the server
// reported and the materialized rows.
type DataSet[T any] struct {
	columns []RowField
	rows    []T
}

// NewDataSet builds a result set over rows of a typed row T, taking
// the column layout from T's declared row type.
func NewDataSet[T any](rows []T) (*DataSet[T], error) {
	ty, err := tyFor[T]()
	if err != nil {
		return nil, err
	}
	if ty.Kind != KindRow {
		return nil, ErrNotRow
	}
	if len(ty.Fields) == 0 {
		return nil, ErrEmptyRow
	}
	return &DataSet[T]{columns: ty.Fields, rows: rows}, nil
}

// NewRowDataSet builds a generic result set from an explicit column
// layout.
func NewRowDataSet(columns []RowField, rows []Row) (*DataSet[Row], error) {
	if len(columns) == 0 {
		return nil, ErrEmptyRow
	}
	return &DataSet[Row]{columns: columns, rows: rows}, nil
}

// Columns returns the column layout in server order.
func (d *DataSet[T]) Columns() []RowField {
	return d.columns
}

// Rows returns the materialized rows.
func (d *DataSet[T]) Rows() []T {
	return d.rows
}

func (d *DataSet[T]) Len() int {
	return len(d.rows)
}

func (d *DataSet[T]) IsEmpty() bool {
	return len(d.rows) == 0
}

// Merge appends another page's rows. The two column sets must cover
// the same names; order may differ across pages.
func (d *DataSet[T]) Merge(other *DataSet[T]) error {
	if len(d.columns) != len(other.columns) {
		return ErrInconsistentData
	}
	names := make(map[string]struct{}, len(d.columns))
	for _, c := range d.columns {
		names[c.Name] = struct{}{}
	}
	for _, c := range other.columns {
		if _, ok := names[c.Name]; !ok {
			return ErrInconsistentData
		}
	}
	d.rows = append(d.rows, other.rows...)
	return nil
}

// dataSetFromRaw reconciles T's declared row type against the page's
// columns and materializes the raw positional rows.
func dataSetFromRaw[T any](columns []Column, rows []json.RawMessage) (*DataSet[T], error) {
	provided, err := TyFromColumns(columns)
	if err != nil {
		return nil, err
	}

	target, err := tyFor[T]()
	if err != nil {
		return nil, err
	}
	if target.Kind != KindUnknown && target.Kind != KindRow {
		return nil, ErrNotRow
	}

	ctx, err := NewContext(target, provided)
	if err != nil {
		return nil, err
	}

	out := make([]T, len(rows))
	for i, raw := range rows {
		if err := decodeRowInto(ctx, raw, &out[i]); err != nil {
			return nil, errors.Wrapf(err, "row %d", i)
		}
	}
	return &DataSet[T]{columns: provided.Fields, rows: out}, nil
}

var genericRowType = reflect.TypeOf(Row{})

func decodeRowInto(ctx *Context, raw json.RawMessage, dest any) error {
	v := reflect.ValueOf(dest).Elem()
	if v.Type() == genericRowType {
		decoded, err := decodeAny(ctx, raw)
		if err != nil {
			return err
		}
		values, ok := decoded.([]any)
		if !ok {
			return ErrInconsistentData
		}
		v.Set(reflect.ValueOf(Row{Values: values}))
		return nil
	}
	return decodeValue(ctx, raw, v)
}

type dataSetJSON struct {
	Columns []Column          `json:"columns"`
	Data    []json.RawMessage `json:"data"`
}

// MarshalJSON renders the result set in the server's page shape:
// column descriptors plus positional row arrays.
func (d *DataSet[T]) MarshalJSON() ([]byte, error) {
	columns := make([]Column, len(d.columns))
	for i, c := range d.columns {
		sig := c.Ty.Signature()
		columns[i] = Column{Name: c.Name, Type: c.Ty.FullType(), TypeSignature: &sig}
	}

	rowTy := RowOf(d.columns...)
	data := make([][]any, len(d.rows))
	for i := range d.rows {
		row, err := encodeRow(rowTy, reflect.ValueOf(d.rows[i]))
		if err != nil {
			return nil, err
		}
		data[i] = row
	}
	return json.Marshal(struct {
		Columns []Column `json:"columns"`
		Data    [][]any  `json:"data"`
	}{Columns: columns, Data: data})
}

// UnmarshalJSON reads back the same shape, reconciling the columns
// against T's declared type.
func (d *DataSet[T]) UnmarshalJSON(data []byte) error {
	var wire dataSetJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	decoded, err := dataSetFromRaw[T](wire.Columns, wire.Data)
	if err != nil {
		return err
	}
	*d = *decoded
	return nil
}

// encodeRow serializes one row value into its positional array.
func encodeRow(rowTy *Ty, v reflect.Value) ([]any, error) {
	if v.Type() == genericRowType {
		return v.Interface().(Row).Values, nil
	}
	if v.Kind() != reflect.Struct {
		return nil, ErrNotRow
	}
	fields := exportedFields(v.Type())
	if len(fields) != len(rowTy.Fields) {
		return nil, ErrInconsistentData
	}
	out := make([]any, len(fields))
	for i, sf := range fields {
		encoded, err := encodeValue(rowTy.Fields[i].Ty, v.FieldByIndex(sf.Index))
		if err != nil {
			return nil, err
		}
		out[i] = encoded
	}
	return out, nil
}

// encodeValue is the outbound projection of a value: the inverse of
// decodeValue, rendering datetimes, binaries and decimals the way the
// server does.
func encodeValue(ty *Ty, v reflect.Value) (any, error) {
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, nil
		}
		return encodeValue(ty, v.Elem())
	}
	if ty.Kind == KindOption {
		return encodeValue(ty.Elem, v)
	}

	switch ty.Kind {
	case KindRow:
		return encodeRow(ty, v)
	case KindTuple:
		fields := exportedFields(v.Type())
		if len(fields) != len(ty.Items) {
			return nil, ErrInconsistentData
		}
		out := make([]any, len(fields))
		for i, sf := range fields {
			encoded, err := encodeValue(ty.Items[i], v.FieldByIndex(sf.Index))
			if err != nil {
				return nil, err
			}
			out[i] = encoded
		}
		return out, nil
	case KindArray:
		if v.Kind() == reflect.Slice && v.IsNil() {
			return nil, nil
		}
		out := make([]any, v.Len())
		for i := 0; i < v.Len(); i++ {
			encoded, err := encodeValue(ty.Elem, v.Index(i))
			if err != nil {
				return nil, err
			}
			out[i] = encoded
		}
		return out, nil
	case KindMap:
		if v.Kind() == reflect.Map && v.IsNil() {
			return nil, nil
		}
		out := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			encoded, err := encodeValue(ty.Value, iter.Value())
			if err != nil {
				return nil, err
			}
			out[mapKeyString(iter.Key())] = encoded
		}
		return out, nil
	case KindDate, KindTime, KindTimeWithTimeZone, KindTimestamp, KindTimestampWithTimeZone:
		if t, ok := v.Interface().(time.Time); ok {
			return t.Format(datetimeLayouts[ty.Kind][0]), nil
		}
		return v.Interface(), nil
	case KindVarbinary:
		if b, ok := v.Interface().([]byte); ok {
			return base64.StdEncoding.EncodeToString(b), nil
		}
		return v.Interface(), nil
	case KindDecimal:
		if dec, ok := v.Interface().(decimal.Decimal); ok {
			return dec.String(), nil
		}
		return v.Interface(), nil
	case KindUUID:
		if id, ok := v.Interface().(uuid.UUID); ok {
			return id.String(), nil
		}
		return v.Interface(), nil
	case KindIPAddress:
		if addr, ok := v.Interface().(netip.Addr); ok {
			return addr.String(), nil
		}
		return v.Interface(), nil
	default:
		return v.Interface(), nil
	}
}

func mapKeyString(v reflect.Value) string {
	if v.Kind() == reflect.String {
		return v.String()
	}
	b, _ := json.Marshal(v.Interface())
	return string(b)
}
