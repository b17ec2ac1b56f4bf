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
	"fmt"
	"strings"
)

var (
	ErrInvalidType          = &ClientError{message: "invalid type"}
	ErrInvalidColumn        = &ClientError{message: "invalid column"}
	ErrInvalidTypeSignature = &ClientError{message: "invalid type signature"}
	ErrEmptyRow             = &ClientError{message: "empty row type"}
	ErrNotRow               = &ClientError{message: "type is not a row"}
)

// TyKind discriminates the shapes of a structural type.
type TyKind int

const (
	KindBoolean TyKind = iota
	KindDate
	KindTime
	KindTimeWithTimeZone
	KindTimestamp
	KindTimestampWithTimeZone
	KindIntervalYearToMonth
	KindIntervalDayToSecond
	KindInt
	KindFloat
	KindDecimal
	KindVarchar
	KindChar
	KindVarbinary
	KindIPAddress
	KindUUID
	KindJSON
	KindOption
	KindArray
	KindMap
	KindTuple
	KindRow
	KindUnknown
)

// RowField is one named element of a row type.
type RowField struct {
	Name string
	Ty   *Ty
}

// Ty is the structural type of a column or row. Compound shapes carry
// their children as pointers; a row node's pointer identity is what the
// reconciliation context keys its permutations on.
type Ty struct {
	Kind TyKind

	// Bits is the width of an int (8/16/32/64) or float (32/64).
	Bits int
	// Precision and Scale parameterize a decimal.
	Precision int
	Scale     int
	// Length parameterizes a char.
	Length int

	// Elem is the inner type of an option or array.
	Elem *Ty
	// Key and Value are the entry types of a map.
	Key   *Ty
	Value *Ty
	// Items are the unnamed elements of a tuple.
	Items []*Ty
	// Fields are the named elements of a row.
	Fields []RowField
}

func Boolean() *Ty              { return &Ty{Kind: KindBoolean} }
func Date() *Ty                 { return &Ty{Kind: KindDate} }
func Time() *Ty                 { return &Ty{Kind: KindTime} }
func TimeWithTimeZone() *Ty     { return &Ty{Kind: KindTimeWithTimeZone} }
func Timestamp() *Ty            { return &Ty{Kind: KindTimestamp} }
func TimestampWithTimeZone() *Ty { return &Ty{Kind: KindTimestampWithTimeZone} }
func IntervalYearToMonth() *Ty  { return &Ty{Kind: KindIntervalYearToMonth} }
func IntervalDayToSecond() *Ty  { return &Ty{Kind: KindIntervalDayToSecond} }
func Tinyint() *Ty              { return &Ty{Kind: KindInt, Bits: 8} }
func Smallint() *Ty             { return &Ty{Kind: KindInt, Bits: 16} }
func Integer() *Ty              { return &Ty{Kind: KindInt, Bits: 32} }
func Bigint() *Ty               { return &Ty{Kind: KindInt, Bits: 64} }
func Real() *Ty                 { return &Ty{Kind: KindFloat, Bits: 32} }
func Double() *Ty               { return &Ty{Kind: KindFloat, Bits: 64} }
func Varchar() *Ty              { return &Ty{Kind: KindVarchar} }
func Varbinary() *Ty            { return &Ty{Kind: KindVarbinary} }
func IPAddress() *Ty            { return &Ty{Kind: KindIPAddress} }
func UUID() *Ty                 { return &Ty{Kind: KindUUID} }
func JSON() *Ty                 { return &Ty{Kind: KindJSON} }
func Unknown() *Ty              { return &Ty{Kind: KindUnknown} }

func Decimal(precision, scale int) *Ty {
	return &Ty{Kind: KindDecimal, Precision: precision, Scale: scale}
}

func Char(length int) *Ty {
	return &Ty{Kind: KindChar, Length: length}
}

func OptionOf(elem *Ty) *Ty {
	return &Ty{Kind: KindOption, Elem: elem}
}

func ArrayOf(elem *Ty) *Ty {
	return &Ty{Kind: KindArray, Elem: elem}
}

func MapOf(key, value *Ty) *Ty {
	return &Ty{Kind: KindMap, Key: key, Value: value}
}

func TupleOf(items ...*Ty) *Ty {
	return &Ty{Kind: KindTuple, Items: items}
}

func RowOf(fields ...RowField) *Ty {
	return &Ty{Kind: KindRow, Fields: fields}
}

// Raw returns the raw type token backing this structural type. Options
// report their element's token; tuples render as rows on the wire.
func (t *Ty) Raw() RawType {
	switch t.Kind {
	case KindBoolean:
		return RawBoolean
	case KindDate:
		return RawDate
	case KindTime:
		return RawTime
	case KindTimeWithTimeZone:
		return RawTimeWithTimeZone
	case KindTimestamp:
		return RawTimestamp
	case KindTimestampWithTimeZone:
		return RawTimestampWithTimeZone
	case KindIntervalYearToMonth:
		return RawIntervalYearToMonth
	case KindIntervalDayToSecond:
		return RawIntervalDayToSecond
	case KindInt:
		switch t.Bits {
		case 8:
			return RawTinyint
		case 16:
			return RawSmallint
		case 32:
			return RawInteger
		default:
			return RawBigint
		}
	case KindFloat:
		if t.Bits == 32 {
			return RawReal
		}
		return RawDouble
	case KindDecimal:
		return RawDecimal
	case KindVarchar:
		return RawVarchar
	case KindChar:
		return RawChar
	case KindVarbinary:
		return RawVarbinary
	case KindIPAddress:
		return RawIPAddress
	case KindUUID:
		return RawUUID
	case KindJSON:
		return RawJSON
	case KindOption:
		return t.Elem.Raw()
	case KindArray:
		return RawArray
	case KindMap:
		return RawMap
	case KindTuple, KindRow:
		return RawRow
	default:
		return RawUnknown
	}
}

// FullType renders the canonical type string used in the `type` field
// of a column descriptor, e.g. decimal(20,4) or row(x bigint,y varchar).
func (t *Ty) FullType() string {
	switch t.Kind {
	case KindDecimal:
		return fmt.Sprintf("%s(%d,%d)", RawDecimal, t.Precision, t.Scale)
	case KindChar:
		return fmt.Sprintf("%s(%d)", RawChar, t.Length)
	case KindOption:
		return t.Elem.FullType()
	case KindArray:
		return fmt.Sprintf("%s(%s)", RawArray, t.Elem.FullType())
	case KindMap:
		return fmt.Sprintf("%s(%s,%s)", RawMap, t.Key.FullType(), t.Value.FullType())
	case KindTuple:
		items := make([]string, len(t.Items))
		for i, item := range t.Items {
			items[i] = item.FullType()
		}
		return fmt.Sprintf("%s(%s)", RawRow, strings.Join(items, ","))
	case KindRow:
		fields := make([]string, len(t.Fields))
		for i, f := range t.Fields {
			fields[i] = f.Name + " " + f.Ty.FullType()
		}
		return fmt.Sprintf("%s(%s)", RawRow, strings.Join(fields, ","))
	default:
		return t.Raw().String()
	}
}

// unboundedVarchar is the length sentinel varchar signatures carry.
const unboundedVarchar = 2147483647

// Signature converts the structural type back into its wire signature.
// Options serialize as their element: the option layer never appears on
// the wire.
func (t *Ty) Signature() TypeSignature {
	var args []TypeSignatureParameter
	switch t.Kind {
	case KindDecimal:
		args = []TypeSignatureParameter{
			LongParameter(uint64(t.Precision)),
			LongParameter(uint64(t.Scale)),
		}
	case KindVarchar:
		args = []TypeSignatureParameter{LongParameter(unboundedVarchar)}
	case KindChar:
		args = []TypeSignatureParameter{LongParameter(uint64(t.Length))}
	case KindOption:
		return t.Elem.Signature()
	case KindArray:
		args = []TypeSignatureParameter{SignatureParameter(t.Elem.Signature())}
	case KindMap:
		args = []TypeSignatureParameter{
			SignatureParameter(t.Key.Signature()),
			SignatureParameter(t.Value.Signature()),
		}
	case KindTuple:
		args = make([]TypeSignatureParameter, len(t.Items))
		for i, item := range t.Items {
			args[i] = NamedParameter(NamedTypeSignature{TypeSignature: item.Signature()})
		}
	case KindRow:
		args = make([]TypeSignatureParameter, len(t.Fields))
		for i, f := range t.Fields {
			args[i] = NamedParameter(NamedTypeSignature{
				FieldName:     &RowFieldName{Name: f.Name},
				TypeSignature: f.Ty.Signature(),
			})
		}
	}
	if args == nil {
		args = []TypeSignatureParameter{}
	}
	return TypeSignature{RawType: t.Raw(), Arguments: args}
}

// TyFromSignature builds the structural type described by a wire
// signature. Options never appear on the wire; they are synthesized on
// the caller side.
func TyFromSignature(sig TypeSignature) (*Ty, error) {
	switch sig.RawType {
	case RawBoolean:
		return Boolean(), nil
	case RawDate:
		return Date(), nil
	case RawTime:
		return Time(), nil
	case RawTimeWithTimeZone:
		return TimeWithTimeZone(), nil
	case RawTimestamp:
		return Timestamp(), nil
	case RawTimestampWithTimeZone:
		return TimestampWithTimeZone(), nil
	case RawIntervalYearToMonth:
		return IntervalYearToMonth(), nil
	case RawIntervalDayToSecond:
		return IntervalDayToSecond(), nil
	case RawTinyint:
		return Tinyint(), nil
	case RawSmallint:
		return Smallint(), nil
	case RawInteger:
		return Integer(), nil
	case RawBigint:
		return Bigint(), nil
	case RawReal:
		return Real(), nil
	case RawDouble:
		return Double(), nil
	case RawVarchar:
		return Varchar(), nil
	case RawVarbinary:
		return Varbinary(), nil
	case RawIPAddress:
		return IPAddress(), nil
	case RawUUID:
		return UUID(), nil
	case RawJSON:
		return JSON(), nil
	case RawUnknown:
		return Unknown(), nil
	case RawDecimal:
		if len(sig.Arguments) != 2 {
			return nil, ErrInvalidTypeSignature
		}
		p, pok := sig.Arguments[0].Long()
		s, sok := sig.Arguments[1].Long()
		if !pok || !sok {
			return nil, ErrInvalidTypeSignature
		}
		return Decimal(int(p), int(s)), nil
	case RawChar:
		if len(sig.Arguments) != 1 {
			return nil, ErrInvalidTypeSignature
		}
		n, ok := sig.Arguments[0].Long()
		if !ok {
			return nil, ErrInvalidTypeSignature
		}
		return Char(int(n)), nil
	case RawArray:
		if len(sig.Arguments) != 1 {
			return nil, ErrInvalidTypeSignature
		}
		inner, ok := sig.Arguments[0].Signature()
		if !ok {
			return nil, ErrInvalidTypeSignature
		}
		elem, err := TyFromSignature(*inner)
		if err != nil {
			return nil, err
		}
		return ArrayOf(elem), nil
	case RawMap:
		if len(sig.Arguments) != 2 {
			return nil, ErrInvalidTypeSignature
		}
		keySig, kok := sig.Arguments[0].Signature()
		valueSig, vok := sig.Arguments[1].Signature()
		if !kok || !vok {
			return nil, ErrInvalidTypeSignature
		}
		key, err := TyFromSignature(*keySig)
		if err != nil {
			return nil, err
		}
		value, err := TyFromSignature(*valueSig)
		if err != nil {
			return nil, err
		}
		return MapOf(key, value), nil
	case RawRow:
		return rowFromSignature(sig)
	default:
		return nil, ErrInvalidTypeSignature
	}
}

// rowFromSignature builds a row when every argument carries a field
// name and a tuple when none do. A mix is invalid.
func rowFromSignature(sig TypeSignature) (*Ty, error) {
	if len(sig.Arguments) == 0 {
		return nil, ErrInvalidTypeSignature
	}

	named := 0
	fields := make([]RowField, 0, len(sig.Arguments))
	items := make([]*Ty, 0, len(sig.Arguments))
	for _, arg := range sig.Arguments {
		nts, ok := arg.Named()
		if !ok {
			return nil, ErrInvalidTypeSignature
		}
		elem, err := TyFromSignature(nts.TypeSignature)
		if err != nil {
			return nil, err
		}
		if nts.FieldName != nil {
			named++
			fields = append(fields, RowField{Name: nts.FieldName.Name, Ty: elem})
		} else {
			items = append(items, elem)
		}
	}

	switch named {
	case len(sig.Arguments):
		return RowOf(fields...), nil
	case 0:
		return TupleOf(items...), nil
	default:
		return nil, ErrInvalidTypeSignature
	}
}

// TyFromColumn resolves a column descriptor into its name and
// structural type. The signature wins over the rendered type string
// when both are present.
func TyFromColumn(col Column) (string, *Ty, error) {
	if col.TypeSignature != nil {
		ty, err := TyFromSignature(*col.TypeSignature)
		if err != nil {
			return "", nil, err
		}
		return col.Name, ty, nil
	}
	if col.Type != "" {
		ty, err := ParseTy(col.Type)
		if err != nil {
			return "", nil, err
		}
		return col.Name, ty, nil
	}
	return "", nil, ErrInvalidColumn
}

// TyFromColumns assembles a row type from a page's column list. An
// empty list yields the empty row a schema-less statement reports.
func TyFromColumns(columns []Column) (*Ty, error) {
	fields := make([]RowField, len(columns))
	for i, col := range columns {
		name, ty, err := TyFromColumn(col)
		if err != nil {
			return nil, err
		}
		fields[i] = RowField{Name: name, Ty: ty}
	}
	return RowOf(fields...), nil
}
