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

// Context is the result of reconciling a declared row type against the
// row type a server reported. It travels alongside the provided type
// during page decoding; WithTy rebases it onto nested nodes while the
// permutation map stays shared.
type Context struct {
	ty    *Ty
	perms map[*Ty][]int
}

// NewContext reconciles target against provided. For every row node in
// provided it records the permutation mapping the node's field order
// onto the target's. A target of unknown accepts any provided type.
func NewContext(target, provided *Ty) (*Context, error) {
	perms := make(map[*Ty][]int)
	if err := reconcile(target, provided, perms); err != nil {
		return nil, err
	}
	return &Context{ty: provided, perms: perms}, nil
}

// WithTy rebases the context onto a nested node of the provided type.
func (c *Context) WithTy(ty *Ty) *Context {
	return &Context{ty: ty, perms: c.perms}
}

// Ty returns the provided-type node the context currently points at.
func (c *Context) Ty() *Ty {
	return c.ty
}

// RowPerm returns the permutation recorded for the current node: entry
// i is the target index of the node's i-th field. It reports false for
// nodes reconciled against unknown, which accept fields positionally.
func (c *Context) RowPerm() ([]int, bool) {
	perm, ok := c.perms[c.ty]
	return perm, ok
}

func reconcile(target, provided *Ty, perms map[*Ty][]int) error {
	if target.Kind == KindUnknown {
		return nil
	}
	if target.Kind == KindOption {
		return reconcile(target.Elem, provided, perms)
	}

	switch target.Kind {
	case KindBoolean, KindDate, KindTime, KindTimeWithTimeZone,
		KindTimestamp, KindTimestampWithTimeZone,
		KindIntervalYearToMonth, KindIntervalDayToSecond,
		KindVarchar, KindVarbinary, KindIPAddress, KindUUID, KindJSON:
		if provided.Kind != target.Kind {
			return ErrInvalidType
		}
		return nil
	case KindInt:
		// width coercion is the decoder's job
		if provided.Kind != KindInt {
			return ErrInvalidType
		}
		return nil
	case KindFloat:
		if provided.Kind != KindFloat {
			return ErrInvalidType
		}
		return nil
	case KindDecimal:
		if provided.Kind != KindDecimal ||
			provided.Precision != target.Precision || provided.Scale != target.Scale {
			return ErrInvalidType
		}
		return nil
	case KindChar:
		if provided.Kind != KindChar || provided.Length != target.Length {
			return ErrInvalidType
		}
		return nil
	case KindTuple:
		if provided.Kind != KindTuple || len(provided.Items) != len(target.Items) {
			return ErrInvalidType
		}
		for i, item := range target.Items {
			if err := reconcile(item, provided.Items[i], perms); err != nil {
				return err
			}
		}
		return nil
	case KindRow:
		return reconcileRow(target, provided, perms)
	case KindArray:
		if provided.Kind != KindArray {
			return ErrInvalidType
		}
		return reconcile(target.Elem, provided.Elem, perms)
	case KindMap:
		if provided.Kind != KindMap {
			return ErrInvalidType
		}
		if err := reconcile(target.Key, provided.Key, perms); err != nil {
			return err
		}
		return reconcile(target.Value, provided.Value, perms)
	default:
		return ErrInvalidType
	}
}

// reconcileRow matches rows by field-name set and records, keyed on the
// provided node, where each provided field lands in the target.
func reconcileRow(target, provided *Ty, perms map[*Ty][]int) error {
	if provided.Kind != KindRow || len(provided.Fields) != len(target.Fields) {
		return ErrInvalidType
	}

	targetIdx := make(map[string]int, len(target.Fields))
	for i, f := range target.Fields {
		targetIdx[f.Name] = i
	}

	perm := make([]int, len(provided.Fields))
	for i, f := range provided.Fields {
		j, ok := targetIdx[f.Name]
		if !ok {
			return ErrInvalidType
		}
		if err := reconcile(target.Fields[j].Ty, f.Ty, perms); err != nil {
			return err
		}
		perm[i] = j
	}
	perms[provided] = perm
	return nil
}
