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
	"encoding/json"
	"net/netip"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Typer lets a row or value type declare its structural type
// explicitly, overriding reflection. Types that need parameterized
// kinds reflection cannot see, like decimal(p,s) or char(n), implement
// this.
type Typer interface {
	TrinoTy() *Ty
}

// Row is the generic pass-through row: a positional sequence of
// values, shape-compatible with any column set. Its declared type is
// unknown, which makes reconciliation vacuous.
type Row struct {
	Values []any
}

// TrinoTy implements Typer.
func (Row) TrinoTy() *Ty {
	return Unknown()
}

var (
	typerType      = reflect.TypeOf((*Typer)(nil)).Elem()
	timeType       = reflect.TypeOf(time.Time{})
	uuidType       = reflect.TypeOf(uuid.UUID{})
	decimalType    = reflect.TypeOf(decimal.Decimal{})
	netipAddrType  = reflect.TypeOf(netip.Addr{})
	rawMessageType = reflect.TypeOf(json.RawMessage(nil))
	byteSliceType  = reflect.TypeOf([]byte(nil))
)

// tyFor resolves the declared structural type of a row type T: its
// Typer implementation when present, a reflection-derived row
// otherwise.
func tyFor[T any]() (*Ty, error) {
	var zero T
	if typer, ok := any(zero).(Typer); ok {
		return typer.TrinoTy(), nil
	}
	if typer, ok := any(&zero).(Typer); ok {
		return typer.TrinoTy(), nil
	}
	return tyOf(reflect.TypeOf(&zero).Elem())
}

// tyOf derives a structural type from a Go type. Struct fields map in
// declaration order; a `trino` tag overrides the field name. Pointers
// lift to option.
func tyOf(t reflect.Type) (*Ty, error) {
	if t.Implements(typerType) {
		return reflect.New(t).Elem().Interface().(Typer).TrinoTy(), nil
	}
	if reflect.PointerTo(t).Implements(typerType) {
		return reflect.New(t).Interface().(Typer).TrinoTy(), nil
	}

	switch t {
	case timeType:
		return Timestamp(), nil
	case uuidType:
		return UUID(), nil
	case netipAddrType:
		return IPAddress(), nil
	case rawMessageType:
		return JSON(), nil
	case byteSliceType:
		return Varbinary(), nil
	case decimalType:
		return nil, errors.New("decimal fields need an explicit precision and scale: implement Typer on the row type")
	}

	switch t.Kind() {
	case reflect.Bool:
		return Boolean(), nil
	case reflect.Int8, reflect.Uint8:
		return Tinyint(), nil
	case reflect.Int16, reflect.Uint16:
		return Smallint(), nil
	case reflect.Int32, reflect.Uint32:
		return Integer(), nil
	case reflect.Int64, reflect.Int, reflect.Uint64, reflect.Uint:
		// 64-bit unsigned values are best-effort aliases of bigint
		return Bigint(), nil
	case reflect.Float32:
		return Real(), nil
	case reflect.Float64:
		return Double(), nil
	case reflect.String:
		return Varchar(), nil
	case reflect.Pointer:
		elem, err := tyOf(t.Elem())
		if err != nil {
			return nil, err
		}
		return OptionOf(elem), nil
	case reflect.Slice:
		elem, err := tyOf(t.Elem())
		if err != nil {
			return nil, err
		}
		return ArrayOf(elem), nil
	case reflect.Map:
		key, err := tyOf(t.Key())
		if err != nil {
			return nil, err
		}
		value, err := tyOf(t.Elem())
		if err != nil {
			return nil, err
		}
		return MapOf(key, value), nil
	case reflect.Struct:
		return rowTyOf(t)
	default:
		return nil, errors.Errorf("cannot derive a trino type for %s", t)
	}
}

func rowTyOf(t reflect.Type) (*Ty, error) {
	fields := make([]RowField, 0, t.NumField())
	for _, sf := range exportedFields(t) {
		ty, err := tyOf(sf.Type)
		if err != nil {
			return nil, errors.Wrapf(err, "field %s", sf.Name)
		}
		fields = append(fields, RowField{Name: fieldName(sf), Ty: ty})
	}
	if len(fields) == 0 {
		return nil, ErrEmptyRow
	}
	return RowOf(fields...), nil
}

func exportedFields(t reflect.Type) []reflect.StructField {
	fields := make([]reflect.StructField, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() || sf.Tag.Get("trino") == "-" {
			continue
		}
		fields = append(fields, sf)
	}
	return fields
}

func fieldName(sf reflect.StructField) string {
	if tag := sf.Tag.Get("trino"); tag != "" {
		return tag
	}
	return sf.Name
}
