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
	"bytes"
	"encoding/json"
	"net/netip"
	"reflect"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

func isJSONNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// decodeValue materializes one JSON value of the context's provided
// type into dest. Pointer destinations absorb the option layer; the
// provided type never carries one.
func decodeValue(ctx *Context, raw json.RawMessage, dest reflect.Value) error {
	if dest.Kind() == reflect.Pointer {
		if isJSONNull(raw) {
			dest.SetZero()
			return nil
		}
		if dest.IsNil() {
			dest.Set(reflect.New(dest.Type().Elem()))
		}
		return decodeValue(ctx, raw, dest.Elem())
	}
	if isJSONNull(raw) {
		dest.SetZero()
		return nil
	}
	if dest.Kind() == reflect.Interface && dest.NumMethod() == 0 {
		v, err := decodeAny(ctx, raw)
		if err != nil {
			return err
		}
		if v != nil {
			dest.Set(reflect.ValueOf(v))
		} else {
			dest.SetZero()
		}
		return nil
	}

	ty := ctx.Ty()
	switch ty.Kind {
	case KindRow:
		return decodeRowValue(ctx, raw, dest)
	case KindTuple:
		return decodeTupleValue(ctx, raw, dest)
	case KindArray:
		return decodeArrayValue(ctx, raw, dest)
	case KindMap:
		return decodeMapValue(ctx, raw, dest)
	default:
		return decodeScalarValue(ty, raw, dest)
	}
}

// decodeRowValue reads a positional row array into a struct, placing
// the i-th provided cell at the target position the reconciliation
// permutation assigned it.
func decodeRowValue(ctx *Context, raw json.RawMessage, dest reflect.Value) error {
	if dest.Kind() != reflect.Struct {
		return errors.Errorf("cannot decode row into %s", dest.Type())
	}

	var cells []json.RawMessage
	if err := json.Unmarshal(raw, &cells); err != nil {
		return errors.Wrap(err, "row value is not a positional array")
	}

	ty := ctx.Ty()
	if len(cells) != len(ty.Fields) {
		return ErrInconsistentData
	}

	fields := exportedFields(dest.Type())
	if len(fields) != len(ty.Fields) {
		return ErrInvalidType
	}

	perm, hasPerm := ctx.RowPerm()
	for i, cell := range cells {
		target := i
		if hasPerm {
			target = perm[i]
		}
		field := dest.FieldByIndex(fields[target].Index)
		if err := decodeValue(ctx.WithTy(ty.Fields[i].Ty), cell, field); err != nil {
			return errors.Wrapf(err, "field %s", ty.Fields[i].Name)
		}
	}
	return nil
}

// decodeTupleValue reads an unnamed row into a struct positionally.
func decodeTupleValue(ctx *Context, raw json.RawMessage, dest reflect.Value) error {
	if dest.Kind() != reflect.Struct {
		return errors.Errorf("cannot decode tuple into %s", dest.Type())
	}

	var cells []json.RawMessage
	if err := json.Unmarshal(raw, &cells); err != nil {
		return errors.Wrap(err, "tuple value is not a positional array")
	}

	ty := ctx.Ty()
	fields := exportedFields(dest.Type())
	if len(cells) != len(ty.Items) || len(fields) != len(ty.Items) {
		return ErrInconsistentData
	}
	for i, cell := range cells {
		field := dest.FieldByIndex(fields[i].Index)
		if err := decodeValue(ctx.WithTy(ty.Items[i]), cell, field); err != nil {
			return err
		}
	}
	return nil
}

func decodeArrayValue(ctx *Context, raw json.RawMessage, dest reflect.Value) error {
	if dest.Kind() != reflect.Slice {
		return errors.Errorf("cannot decode array into %s", dest.Type())
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return errors.Wrap(err, "array value is not an array")
	}

	elemCtx := ctx.WithTy(ctx.Ty().Elem)
	out := reflect.MakeSlice(dest.Type(), len(elems), len(elems))
	for i, elem := range elems {
		if err := decodeValue(elemCtx, elem, out.Index(i)); err != nil {
			return err
		}
	}
	dest.Set(out)
	return nil
}

func decodeMapValue(ctx *Context, raw json.RawMessage, dest reflect.Value) error {
	if dest.Kind() != reflect.Map {
		return errors.Errorf("cannot decode map into %s", dest.Type())
	}

	var entries map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return errors.Wrap(err, "map value is not an object")
	}

	ty := ctx.Ty()
	valueCtx := ctx.WithTy(ty.Value)
	out := reflect.MakeMapWithSize(dest.Type(), len(entries))
	for k, v := range entries {
		key := reflect.New(dest.Type().Key()).Elem()
		if err := decodeMapKey(k, key); err != nil {
			return err
		}
		value := reflect.New(dest.Type().Elem()).Elem()
		if err := decodeValue(valueCtx, v, value); err != nil {
			return err
		}
		out.SetMapIndex(key, value)
	}
	dest.Set(out)
	return nil
}

// decodeMapKey converts the JSON object key, always a string on the
// wire, into the destination key type.
func decodeMapKey(k string, dest reflect.Value) error {
	switch dest.Kind() {
	case reflect.String:
		dest.SetString(k)
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			return errors.Wrapf(err, "map key %q", k)
		}
		dest.SetInt(n)
		return nil
	default:
		return errors.Errorf("unsupported map key type %s", dest.Type())
	}
}

func decodeScalarValue(ty *Ty, raw json.RawMessage, dest reflect.Value) error {
	switch dest.Type() {
	case timeType:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		t, err := parseDateTime(ty, s)
		if err != nil {
			return err
		}
		dest.Set(reflect.ValueOf(t))
		return nil
	case uuidType:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		id, err := uuid.Parse(s)
		if err != nil {
			return errors.Wrap(err, "invalid uuid value")
		}
		dest.Set(reflect.ValueOf(id))
		return nil
	case netipAddrType:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		addr, err := netip.ParseAddr(s)
		if err != nil {
			return errors.Wrap(err, "invalid ipaddress value")
		}
		dest.Set(reflect.ValueOf(addr))
		return nil
	case decimalType:
		var s json.Number
		if err := json.Unmarshal(raw, &s); err != nil {
			var str string
			if err := json.Unmarshal(raw, &str); err != nil {
				return errors.Wrap(err, "invalid decimal value")
			}
			s = json.Number(str)
		}
		d, err := decimal.NewFromString(s.String())
		if err != nil {
			return errors.Wrap(err, "invalid decimal value")
		}
		dest.Set(reflect.ValueOf(d))
		return nil
	case rawMessageType:
		dest.SetBytes(append([]byte(nil), raw...))
		return nil
	case byteSliceType:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		b, err := base64Decode(s)
		if err != nil {
			return err
		}
		dest.SetBytes(b)
		return nil
	}

	switch dest.Kind() {
	case reflect.Bool:
		var v bool
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		dest.SetBool(v)
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		var v int64
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		if dest.OverflowInt(v) {
			return errors.Errorf("value %d overflows %s", v, dest.Type())
		}
		dest.SetInt(v)
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		var v uint64
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		if dest.OverflowUint(v) {
			return errors.Errorf("value %d overflows %s", v, dest.Type())
		}
		dest.SetUint(v)
		return nil
	case reflect.Float32, reflect.Float64:
		var v float64
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		dest.SetFloat(v)
		return nil
	case reflect.String:
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		dest.SetString(v)
		return nil
	default:
		return json.Unmarshal(raw, dest.Addr().Interface())
	}
}

// decodeAny materializes a value of the provided type into the natural
// Go representation: int64 for any integer kind, float64 for floats,
// time.Time for datetime kinds, and nested slices and maps for the
// compound shapes.
func decodeAny(ctx *Context, raw json.RawMessage) (any, error) {
	if isJSONNull(raw) {
		return nil, nil
	}

	ty := ctx.Ty()
	switch ty.Kind {
	case KindRow, KindTuple:
		var cells []json.RawMessage
		if err := json.Unmarshal(raw, &cells); err != nil {
			return nil, errors.Wrap(err, "row value is not a positional array")
		}
		childTy := func(i int) *Ty {
			if ty.Kind == KindRow {
				return ty.Fields[i].Ty
			}
			return ty.Items[i]
		}
		n := len(ty.Fields) + len(ty.Items)
		if len(cells) != n {
			return nil, ErrInconsistentData
		}
		out := make([]any, len(cells))
		for i, cell := range cells {
			v, err := decodeAny(ctx.WithTy(childTy(i)), cell)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case KindArray:
		var elems []json.RawMessage
		if err := json.Unmarshal(raw, &elems); err != nil {
			return nil, errors.Wrap(err, "array value is not an array")
		}
		elemCtx := ctx.WithTy(ty.Elem)
		out := make([]any, len(elems))
		for i, elem := range elems {
			v, err := decodeAny(elemCtx, elem)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case KindMap:
		var entries map[string]json.RawMessage
		if err := json.Unmarshal(raw, &entries); err != nil {
			return nil, errors.Wrap(err, "map value is not an object")
		}
		valueCtx := ctx.WithTy(ty.Value)
		out := make(map[string]any, len(entries))
		for k, v := range entries {
			decoded, err := decodeAny(valueCtx, v)
			if err != nil {
				return nil, err
			}
			out[k] = decoded
		}
		return out, nil
	case KindBoolean:
		var v bool
		err := json.Unmarshal(raw, &v)
		return v, err
	case KindInt:
		var v int64
		err := json.Unmarshal(raw, &v)
		return v, err
	case KindFloat:
		var v float64
		err := json.Unmarshal(raw, &v)
		return v, err
	case KindDecimal:
		var dummy decimal.Decimal
		dest := reflect.ValueOf(&dummy).Elem()
		if err := decodeScalarValue(ty, raw, dest); err != nil {
			return nil, err
		}
		return dummy, nil
	case KindDate, KindTime, KindTimeWithTimeZone, KindTimestamp, KindTimestampWithTimeZone:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return parseDateTime(ty, s)
	case KindVarbinary:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return base64Decode(s)
	case KindUUID:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return uuid.Parse(s)
	case KindIPAddress:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return netip.ParseAddr(s)
	case KindJSON:
		return json.RawMessage(append([]byte(nil), raw...)), nil
	case KindVarchar, KindChar, KindIntervalYearToMonth, KindIntervalDayToSecond:
		var v string
		err := json.Unmarshal(raw, &v)
		return v, err
	default:
		var v any
		err := json.Unmarshal(raw, &v)
		return v, err
	}
}

var datetimeLayouts = map[TyKind][]string{
	KindDate: {"2006-01-02"},
	KindTime: {
		"15:04:05.999999999",
		"15:04:05",
	},
	KindTimeWithTimeZone: {
		"15:04:05.999999999Z07:00",
		"15:04:05.999999999 Z07:00",
		"15:04:05Z07:00",
	},
	KindTimestamp: {
		"2006-01-02 15:04:05.999999999",
		"2006-01-02 15:04:05",
	},
	KindTimestampWithTimeZone: {
		"2006-01-02 15:04:05.999999999 Z07:00",
		"2006-01-02 15:04:05.999999999 MST",
		"2006-01-02 15:04:05.999999999Z07:00",
	},
}

// parseDateTime parses the server's rendering of a datetime kind. Zone
// names and numeric offsets both occur in the wild, so the layout list
// is tried in order.
func parseDateTime(ty *Ty, s string) (time.Time, error) {
	layouts, ok := datetimeLayouts[ty.Kind]
	if !ok {
		return time.Time{}, errors.Errorf("%s is not a datetime type", ty.FullType())
	}
	var lastErr error
	for _, layout := range layouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, errors.Wrapf(lastErr, "invalid %s value %q", ty.FullType(), s)
}
