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
	"database/sql/driver"
	"encoding/json"
	"io"
	"net/netip"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Compile time validation that our types implement the expected interfaces
var (
	_ driver.Rows                           = &resultRows{}
	_ driver.RowsColumnTypeScanType         = &resultRows{}
	_ driver.RowsColumnTypeDatabaseTypeName = &resultRows{}
)

var scanTypes = map[TyKind]reflect.Type{
	KindBoolean:               reflect.TypeOf(true),
	KindInt:                   reflect.TypeOf(int64(0)),
	KindFloat:                 reflect.TypeOf(float64(0)),
	KindDecimal:               reflect.TypeOf(""),
	KindVarchar:               reflect.TypeOf(""),
	KindChar:                  reflect.TypeOf(""),
	KindVarbinary:             reflect.TypeOf([]byte{}),
	KindDate:                  reflect.TypeOf(time.Time{}),
	KindTime:                  reflect.TypeOf(time.Time{}),
	KindTimeWithTimeZone:      reflect.TypeOf(time.Time{}),
	KindTimestamp:             reflect.TypeOf(time.Time{}),
	KindTimestampWithTimeZone: reflect.TypeOf(time.Time{}),
	KindIntervalYearToMonth:   reflect.TypeOf(""),
	KindIntervalDayToSecond:   reflect.TypeOf(""),
	KindUUID:                  reflect.TypeOf(""),
	KindIPAddress:             reflect.TypeOf(""),
	KindJSON:                  reflect.TypeOf(""),
	KindArray:                 reflect.TypeOf(""),
	KindMap:                   reflect.TypeOf(""),
	KindRow:                   reflect.TypeOf(""),
	KindTuple:                 reflect.TypeOf(""),
}

// resultRows exposes a drained generic result set through driver.Rows.
type resultRows struct {
	ds  *DataSet[Row]
	idx int
}

func newResultRows(ds *DataSet[Row]) *resultRows {
	return &resultRows{ds: ds, idx: -1}
}

// Close implements driver.Rows.
func (r *resultRows) Close() error {
	r.ds = nil
	return nil
}

// Columns implements driver.Rows.
func (r *resultRows) Columns() []string {
	cols := make([]string, len(r.ds.Columns()))
	for i, c := range r.ds.Columns() {
		cols[i] = c.Name
	}
	return cols
}

// ColumnTypeDatabaseTypeName implements driver.RowsColumnTypeDatabaseTypeName.
func (r *resultRows) ColumnTypeDatabaseTypeName(index int) string {
	columns := r.ds.Columns()
	if index < 0 || index >= len(columns) {
		return ""
	}
	return strings.ToUpper(columns[index].Ty.FullType())
}

// ColumnTypeScanType implements driver.RowsColumnTypeScanType.
func (r *resultRows) ColumnTypeScanType(index int) reflect.Type {
	columns := r.ds.Columns()
	if index < 0 || index >= len(columns) {
		return nil
	}
	if t, ok := scanTypes[columns[index].Ty.Kind]; ok {
		return t
	}
	return reflect.TypeOf("")
}

// Next implements driver.Rows.
func (r *resultRows) Next(dest []driver.Value) error {
	rows := r.ds.Rows()
	if r.idx+1 >= len(rows) {
		return io.EOF
	}
	r.idx++

	values := rows[r.idx].Values
	if len(values) != len(dest) {
		return internalErrorf("number of columns does not match size of result slice. expected %d, got %d", len(values), len(dest))
	}
	for i, v := range values {
		dv, err := toDriverValue(v)
		if err != nil {
			return err
		}
		dest[i] = dv
	}
	return nil
}

// toDriverValue flattens a materialized value into the driver.Value
// set. Compound values render as their JSON text.
func toDriverValue(v any) (driver.Value, error) {
	switch v := v.(type) {
	case nil, bool, int64, float64, string, time.Time, []byte:
		return v, nil
	case uuid.UUID:
		return v.String(), nil
	case decimal.Decimal:
		return v.String(), nil
	case netip.Addr:
		return v.String(), nil
	case json.RawMessage:
		return string(v), nil
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return string(encoded), nil
	}
}
