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
	"testing"

	"github.com/onsi/gomega"
	. "github.com/onsi/gomega"
)

func TestReconcilePermutation(t *testing.T) {
	g := gomega.NewWithT(t)

	target := RowOf(
		RowField{Name: "a", Ty: Varchar()},
		RowField{Name: "b", Ty: Integer()},
		RowField{Name: "c", Ty: Varchar()},
	)
	provided := RowOf(
		RowField{Name: "b", Ty: Integer()},
		RowField{Name: "c", Ty: Varchar()},
		RowField{Name: "a", Ty: Varchar()},
	)

	ctx, err := NewContext(target, provided)
	g.Expect(err).To(BeNil())

	perm, ok := ctx.RowPerm()
	g.Expect(ok).To(BeTrue())
	g.Expect(perm).To(Equal([]int{1, 2, 0}))

	// each provided field lands on the target field of the same name
	for i, f := range provided.Fields {
		g.Expect(target.Fields[perm[i]].Name).To(Equal(f.Name))
	}
}

func TestReconcileIdentity(t *testing.T) {
	g := gomega.NewWithT(t)

	target := RowOf(RowField{Name: "x", Ty: Bigint()}, RowField{Name: "y", Ty: Varchar()})
	provided := RowOf(RowField{Name: "x", Ty: Bigint()}, RowField{Name: "y", Ty: Varchar()})

	ctx, err := NewContext(target, provided)
	g.Expect(err).To(BeNil())
	perm, ok := ctx.RowPerm()
	g.Expect(ok).To(BeTrue())
	g.Expect(perm).To(Equal([]int{0, 1}))
}

func TestReconcileUnknownIsVacuous(t *testing.T) {
	g := gomega.NewWithT(t)

	provided := RowOf(RowField{Name: "anything", Ty: MapOf(Varchar(), Bigint())})
	ctx, err := NewContext(Unknown(), provided)
	g.Expect(err).To(BeNil())
	_, ok := ctx.RowPerm()
	g.Expect(ok).To(BeFalse())
}

func TestReconcileWidthCoercion(t *testing.T) {
	g := gomega.NewWithT(t)

	// integers match any integer, floats any float
	_, err := NewContext(
		RowOf(RowField{Name: "n", Ty: Tinyint()}, RowField{Name: "f", Ty: Real()}),
		RowOf(RowField{Name: "n", Ty: Bigint()}, RowField{Name: "f", Ty: Double()}),
	)
	g.Expect(err).To(BeNil())

	// but an integer never matches a float
	_, err = NewContext(
		RowOf(RowField{Name: "n", Ty: Bigint()}),
		RowOf(RowField{Name: "n", Ty: Double()}),
	)
	g.Expect(err).To(Equal(ErrInvalidType))
}

func TestReconcileParameterizedKinds(t *testing.T) {
	g := gomega.NewWithT(t)

	_, err := NewContext(Decimal(20, 4), Decimal(20, 4))
	g.Expect(err).To(BeNil())
	_, err = NewContext(Decimal(20, 4), Decimal(20, 2))
	g.Expect(err).To(Equal(ErrInvalidType))

	_, err = NewContext(Char(3), Char(3))
	g.Expect(err).To(BeNil())
	_, err = NewContext(Char(3), Char(4))
	g.Expect(err).To(Equal(ErrInvalidType))
}

func TestReconcileRowMismatches(t *testing.T) {
	g := gomega.NewWithT(t)

	target := RowOf(RowField{Name: "a", Ty: Varchar()}, RowField{Name: "b", Ty: Bigint()})

	// different name set
	_, err := NewContext(target, RowOf(
		RowField{Name: "a", Ty: Varchar()},
		RowField{Name: "z", Ty: Bigint()},
	))
	g.Expect(err).To(Equal(ErrInvalidType))

	// different cardinality
	_, err = NewContext(target, RowOf(RowField{Name: "a", Ty: Varchar()}))
	g.Expect(err).To(Equal(ErrInvalidType))

	// same name, incompatible field type
	_, err = NewContext(target, RowOf(
		RowField{Name: "a", Ty: Bigint()},
		RowField{Name: "b", Ty: Bigint()},
	))
	g.Expect(err).To(Equal(ErrInvalidType))
}

func TestReconcileNestedRows(t *testing.T) {
	g := gomega.NewWithT(t)

	target := RowOf(RowField{Name: "outer", Ty: RowOf(
		RowField{Name: "p", Ty: Bigint()},
		RowField{Name: "q", Ty: Varchar()},
	)})
	inner := RowOf(
		RowField{Name: "q", Ty: Varchar()},
		RowField{Name: "p", Ty: Bigint()},
	)
	provided := RowOf(RowField{Name: "outer", Ty: inner})

	ctx, err := NewContext(target, provided)
	g.Expect(err).To(BeNil())

	perm, ok := ctx.RowPerm()
	g.Expect(ok).To(BeTrue())
	g.Expect(perm).To(Equal([]int{0}))

	// rebasing onto the nested row keeps the shared permutation map
	nested := ctx.WithTy(inner)
	perm, ok = nested.RowPerm()
	g.Expect(ok).To(BeTrue())
	g.Expect(perm).To(Equal([]int{1, 0}))
}

func TestReconcileOptionAndCompound(t *testing.T) {
	g := gomega.NewWithT(t)

	_, err := NewContext(OptionOf(Varchar()), Varchar())
	g.Expect(err).To(BeNil())

	_, err = NewContext(ArrayOf(Bigint()), ArrayOf(Bigint()))
	g.Expect(err).To(BeNil())
	_, err = NewContext(ArrayOf(Bigint()), ArrayOf(Varchar()))
	g.Expect(err).To(Equal(ErrInvalidType))

	_, err = NewContext(MapOf(Varchar(), Bigint()), MapOf(Varchar(), Bigint()))
	g.Expect(err).To(BeNil())

	_, err = NewContext(TupleOf(Bigint(), Varchar()), TupleOf(Bigint(), Varchar()))
	g.Expect(err).To(BeNil())
	_, err = NewContext(TupleOf(Bigint()), TupleOf(Bigint(), Varchar()))
	g.Expect(err).To(Equal(ErrInvalidType))
}
